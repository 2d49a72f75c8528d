package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// FeedbackStatus is the lifecycle state of a feedback item
type FeedbackStatus string

const (
	StatusPending    FeedbackStatus = "pending"
	StatusInProgress FeedbackStatus = "in_progress"
	StatusResolved   FeedbackStatus = "resolved"
	StatusRejected   FeedbackStatus = "rejected"
)

// AllStatuses lists statuses in display order
var AllStatuses = []FeedbackStatus{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// ParseStatus parses a status name. The empty string is not a status.
func ParseStatus(s string) (FeedbackStatus, bool) {
	st := FeedbackStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Label is the human readable status name
func (s FeedbackStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}

// Category is the council portfolio a feedback item concerns
type Category string

const (
	CategoryPresident     Category = "president"
	CategoryVicePresident Category = "vice_president"
	CategorySecretary     Category = "secretary"
	CategoryFinance       Category = "finance"
	CategoryEditor        Category = "editor"
	CategoryWebsite       Category = "website"
	CategoryWelfare       Category = "welfare"
	CategorySports        Category = "sports"
	CategoryAcademic      Category = "academic"
	CategoryOther         Category = "other"
)

// AllCategories lists every known portfolio
var AllCategories = []Category{
	CategoryPresident,
	CategoryVicePresident,
	CategorySecretary,
	CategoryFinance,
	CategoryEditor,
	CategoryWebsite,
	CategoryWelfare,
	CategorySports,
	CategoryAcademic,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryPresident:     "President",
	CategoryVicePresident: "Vice President",
	CategorySecretary:     "Secretary",
	CategoryFinance:       "Finance",
	CategoryEditor:        "Editor",
	CategoryWebsite:       "Website",
	CategoryWelfare:       "Welfare",
	CategorySports:        "Sports",
	CategoryAcademic:      "Academic",
	CategoryOther:         "Other",
}

// ParseCategory parses a known category name
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := categoryLabels[c]
	return c, ok
}

// Label is the human readable portfolio name
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// SubmitterKind tags which Submitter variant is populated
type SubmitterKind string

const (
	SubmitterRegistered SubmitterKind = "registered"
	SubmitterDirect     SubmitterKind = "direct"
	SubmitterAnonymous  SubmitterKind = "anonymous"
)

// Submitter identifies who raised a feedback item. Registered submitters keep a
// name/email snapshot so search works without a join; anonymous submitters carry nothing.
type Submitter struct {
	Kind   SubmitterKind `json:"kind"`
	UserID int           `json:"user_id,omitempty"`
	Name   string        `json:"name,omitempty"`
	Email  string        `json:"email,omitempty"`
	Phone  string        `json:"phone,omitempty"`
}

// RegisteredSubmitter builds the variant for a logged-in user
func RegisteredSubmitter(userID int, name, email, phone string) Submitter {
	return Submitter{Kind: SubmitterRegistered, UserID: userID, Name: name, Email: email, Phone: phone}
}

// DirectSubmitter builds the variant for a visitor who left contact details
func DirectSubmitter(name, email, phone string) Submitter {
	return Submitter{Kind: SubmitterDirect, Name: name, Email: email, Phone: phone}
}

// AnonymousSubmitter builds the variant that carries no contact data
func AnonymousSubmitter() Submitter {
	return Submitter{Kind: SubmitterAnonymous}
}

// IsRegistered reports whether the submitter is a registered user
func (s Submitter) IsRegistered() bool {
	return s.Kind == SubmitterRegistered && s.UserID > 0
}

// DisplayName is what the feedback list shows in the "From" column
func (s Submitter) DisplayName() string {
	if s.Kind == SubmitterAnonymous {
		return "Anonymous"
	}
	if s.Name != "" {
		return s.Name
	}
	return "Unknown"
}

// FeedbackItem is one ticket in the council feedback workflow
type FeedbackItem struct {
	ID           int            `json:"id" db:"id"`
	Submitter    Submitter      `json:"submitter"`
	Category     Category       `json:"category" db:"category"`
	Message      string         `json:"message" db:"message"`
	Status       FeedbackStatus `json:"status" db:"status"`
	AssigneeID   sql.NullInt64  `json:"assignee_id" db:"assignee_id"`
	AssigneeName string         `json:"assignee_name,omitempty"`
	Resolution   sql.NullString `json:"resolution" db:"resolution"`
	RespondedBy  sql.NullInt64  `json:"responded_by" db:"responded_by"`
	RespondedAt  sql.NullTime   `json:"responded_at" db:"responded_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAssigned reports whether the item currently has an assignee
func (f *FeedbackItem) IsAssigned() bool {
	return f.AssigneeID.Valid && f.AssigneeID.Int64 > 0
}

// AssigneeUserID returns the assignee id or 0
func (f *FeedbackItem) AssigneeUserID() int {
	if !f.IsAssigned() {
		return 0
	}
	return int(f.AssigneeID.Int64)
}

// ResolutionText returns the recorded response or ""
func (f *FeedbackItem) ResolutionText() string {
	if f.Resolution.Valid {
		return f.Resolution.String
	}
	return ""
}

// MarshalJSON flattens the sql.Null fields for the detail endpoint
func (f FeedbackItem) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID           int            `json:"id"`
		Submitter    Submitter      `json:"submitter"`
		Category     Category       `json:"category"`
		Message      string         `json:"message"`
		Status       FeedbackStatus `json:"status"`
		AssigneeID   *int64         `json:"assignee_id"`
		AssigneeName string         `json:"assignee_name,omitempty"`
		Resolution   *string        `json:"resolution"`
		RespondedBy  *int64         `json:"responded_by"`
		RespondedAt  *time.Time     `json:"responded_at"`
		CreatedAt    time.Time      `json:"created_at"`
		UpdatedAt    time.Time      `json:"updated_at"`
	}{
		ID:           f.ID,
		Submitter:    f.Submitter,
		Category:     f.Category,
		Message:      f.Message,
		Status:       f.Status,
		AssigneeID:   nullInt64ToPointer(f.AssigneeID),
		AssigneeName: f.AssigneeName,
		Resolution:   nullStringToPointer(f.Resolution),
		RespondedBy:  nullInt64ToPointer(f.RespondedBy),
		RespondedAt:  nullTimeToPointer(f.RespondedAt),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	})
}

// AssignmentFilter narrows a list by whether items have an assignee
type AssignmentFilter string

const (
	AssignmentAll        AssignmentFilter = "all"
	AssignmentAssigned   AssignmentFilter = "assigned"
	AssignmentUnassigned AssignmentFilter = "unassigned"
)

// DateRange narrows a list by creation time
type DateRange string

const (
	DateRangeAll   DateRange = "all"
	DateRangeToday DateRange = "today"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
)

// Since returns the inclusive lower bound for the range relative to now.
// ok is false for "all" and unknown values.
func (d DateRange) Since(now time.Time) (since time.Time, ok bool) {
	switch d {
	case DateRangeToday:
		y, m, day := now.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, now.Location()), true
	case DateRangeWeek:
		return now.AddDate(0, 0, -7), true
	case DateRangeMonth:
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// FeedbackFilter holds the list filters. Empty strings and "all" mean no restriction.
type FeedbackFilter struct {
	Status     string
	Category   string
	Assignment AssignmentFilter
	Search     string
	DateRange  DateRange

	// SubmitterUserID restricts results to one registered submitter when > 0
	SubmitterUserID int
}

// IsAll reports whether a filter value means "no restriction"
func IsAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all")
}

// FeedbackStats is the per-status count shown above the list
type FeedbackStats struct {
	Total    int                    `json:"total"`
	ByStatus map[FeedbackStatus]int `json:"by_status"`
}

// Count returns the number of items in the given status
func (s FeedbackStats) Count(status FeedbackStatus) int {
	return s.ByStatus[status]
}
