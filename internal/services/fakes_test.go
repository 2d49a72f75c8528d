package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"srcapp/internal/models"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"
)

// memFeedbackRepo is an in-memory FeedbackRepository used by workflow tests
type memFeedbackRepo struct {
	mu     sync.Mutex
	items  map[int]*models.FeedbackItem
	nextID int
	users  *memUserDirectory
	now    func() time.Time

	countErr error
}

var _ serviceinterfaces.FeedbackRepository = (*memFeedbackRepo)(nil)

func newMemFeedbackRepo(users *memUserDirectory) *memFeedbackRepo {
	return &memFeedbackRepo{items: map[int]*models.FeedbackItem{}, users: users, now: func() time.Time { return fixedNow }}
}

func (r *memFeedbackRepo) snapshot(item *models.FeedbackItem) *models.FeedbackItem {
	out := *item
	out.AssigneeName = ""
	if out.IsAssigned() && r.users != nil {
		if u := r.users.byID(out.AssigneeUserID()); u != nil {
			out.AssigneeName = u.FullName()
		}
	}
	return &out
}

func (r *memFeedbackRepo) CreateFeedback(_ context.Context, item *models.FeedbackItem) (*models.FeedbackItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *item
	stored.ID = r.nextID
	stored.Status = models.StatusPending
	stored.CreatedAt = r.now().Add(time.Duration(r.nextID) * time.Second)
	stored.UpdatedAt = stored.CreatedAt
	if stored.Submitter.Kind == models.SubmitterAnonymous {
		stored.Submitter = models.AnonymousSubmitter()
	}
	r.items[stored.ID] = &stored
	return r.snapshot(&stored), nil
}

func (r *memFeedbackRepo) GetFeedbackByID(_ context.Context, id int) (*models.FeedbackItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback %d not found", id)
	}
	return r.snapshot(item), nil
}

func (r *memFeedbackRepo) ListFeedback(_ context.Context, filter models.FeedbackFilter) ([]models.FeedbackItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.FeedbackItem{}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, item := range r.items {
		if !models.IsAll(filter.Status) && string(item.Status) != strings.ToLower(filter.Status) {
			continue
		}
		if !models.IsAll(filter.Category) && string(item.Category) != strings.ToLower(filter.Category) {
			continue
		}
		if filter.Assignment == models.AssignmentAssigned && !item.IsAssigned() {
			continue
		}
		if filter.Assignment == models.AssignmentUnassigned && item.IsAssigned() {
			continue
		}
		if filter.SubmitterUserID > 0 && item.Submitter.UserID != filter.SubmitterUserID {
			continue
		}
		if search != "" {
			haystack := strings.ToLower(strings.Join([]string{item.Message, string(item.Category), item.Submitter.Name, item.Submitter.Email}, " "))
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		out = append(out, *r.snapshot(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memFeedbackRepo) UpdateAssignment(_ context.Context, id, assigneeID int, status models.FeedbackStatus) (*models.FeedbackItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback %d not found", id)
	}
	item.AssigneeID = sql.NullInt64{Int64: int64(assigneeID), Valid: assigneeID > 0}
	item.Status = status
	item.UpdatedAt = r.now()
	return r.snapshot(item), nil
}

func (r *memFeedbackRepo) RecordResponse(_ context.Context, id int, resolution string, status models.FeedbackStatus, respondedBy int, respondedAt time.Time) (*models.FeedbackItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback %d not found", id)
	}
	item.Resolution = sql.NullString{String: resolution, Valid: true}
	item.Status = status
	item.RespondedBy = sql.NullInt64{Int64: int64(respondedBy), Valid: respondedBy > 0}
	item.RespondedAt = sql.NullTime{Time: respondedAt, Valid: true}
	item.UpdatedAt = respondedAt
	return r.snapshot(item), nil
}

func (r *memFeedbackRepo) DeleteFeedback(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback %d not found", id)
	}
	delete(r.items, id)
	return nil
}

func (r *memFeedbackRepo) CountByStatus(_ context.Context, submitterUserID int) (models.FeedbackStats, error) {
	if r.countErr != nil {
		return models.FeedbackStats{}, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := models.FeedbackStats{ByStatus: map[models.FeedbackStatus]int{}}
	for _, item := range r.items {
		if submitterUserID > 0 && item.Submitter.UserID != submitterUserID {
			continue
		}
		stats.ByStatus[item.Status]++
		stats.Total++
	}
	return stats, nil
}

// memUserDirectory is an in-memory UserDirectory
type memUserDirectory struct {
	users   []models.User
	listErr error
}

var _ serviceinterfaces.UserDirectory = (*memUserDirectory)(nil)

func newMemUserDirectory(users ...models.User) *memUserDirectory {
	return &memUserDirectory{users: users}
}

func testUser(id int, username, first, last, email string, role models.Role) models.User {
	return models.User{
		ID:        id,
		Username:  username,
		FirstName: first,
		LastName:  last,
		Email:     sql.NullString{String: email, Valid: email != ""},
		Role:      role,
	}
}

func (d *memUserDirectory) byID(id int) *models.User {
	for i := range d.users {
		if d.users[i].ID == id {
			u := d.users[i]
			return &u
		}
	}
	return nil
}

func (d *memUserDirectory) GetUserByID(_ context.Context, id int) (*models.User, error) {
	return d.byID(id), nil
}

func (d *memUserDirectory) ListUsersByRoles(_ context.Context, roles []models.Role) ([]models.User, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := []models.User{}
	for _, u := range d.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (d *memUserDirectory) ResolveAssignee(_ context.Context, ref string) (*models.User, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		if u := d.byID(id); u != nil && u.Role.IsAssignable() {
			return u, nil
		}
		return nil, contextutils.NewAppError(contextutils.ErrorCodeUserResolution, contextutils.SeverityWarn, "no assignable user with that id", ref)
	}
	name, hint := parseAssigneeName(ref)
	var matches []models.User
	for _, u := range d.users {
		if !u.Role.IsAssignable() || (hint != "" && string(u.Role) != hint) {
			continue
		}
		if strings.EqualFold(u.FullName(), name) || strings.EqualFold(u.Username, name) {
			matches = append(matches, u)
		}
	}
	if len(matches) != 1 {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeUserResolution, contextutils.SeverityWarn, "could not resolve assignee", ref)
	}
	return &matches[0], nil
}

// memNotificationStore is an in-memory NotificationStore
type memNotificationStore struct {
	mu        sync.Mutex
	rows      []models.Notification
	nextID    int
	createErr error
}

var _ serviceinterfaces.NotificationStore = (*memNotificationStore)(nil)

func (s *memNotificationStore) CreateNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := *n
	stored.ID = s.nextID
	stored.CreatedAt = fixedNow
	s.rows = append(s.rows, stored)
	return &stored, nil
}

func (s *memNotificationStore) forUser(userID int) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.rows {
		if n.RecipientUserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memNotificationStore) ListForUser(_ context.Context, userID, _ int) ([]models.Notification, error) {
	return s.forUser(userID), nil
}

func (s *memNotificationStore) UnreadCount(_ context.Context, userID int) (int, error) {
	count := 0
	for _, n := range s.forUser(userID) {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memNotificationStore) MarkRead(_ context.Context, userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].RecipientUserID == userID {
			s.rows[i].IsRead = true
			return nil
		}
	}
	return contextutils.ErrRecordNotFound
}

func (s *memNotificationStore) MarkAllRead(_ context.Context, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.rows {
		if s.rows[i].RecipientUserID == userID && !s.rows[i].IsRead {
			s.rows[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (s *memNotificationStore) Dismiss(_ context.Context, userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].RecipientUserID == userID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return contextutils.ErrRecordNotFound
}

// blockingMailer never finishes a send before its context expires
type blockingMailer struct{}

func (blockingMailer) SendEmail(ctx context.Context, _, _, _ string, _ map[string]interface{}) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingMailer) IsEnabled() bool { return true }

// failingMailer rejects every message
type failingMailer struct{}

func (failingMailer) SendEmail(context.Context, string, string, string, map[string]interface{}) error {
	return errors.New("smtp: connection refused")
}

func (failingMailer) IsEnabled() bool { return true }
