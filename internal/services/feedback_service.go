package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// FeedbackService is the PostgreSQL implementation of serviceinterfaces.FeedbackRepository.
type FeedbackService struct {
	db     *sql.DB
	logger *observability.Logger
	now    func() time.Time
}

var _ serviceinterfaces.FeedbackRepository = (*FeedbackService)(nil)

// NewFeedbackService creates a new FeedbackService instance.
func NewFeedbackService(db *sql.DB, logger *observability.Logger) *FeedbackService {
	if db == nil {
		panic("NewFeedbackService: db is nil")
	}
	if logger == nil {
		panic("NewFeedbackService: logger is nil")
	}
	return &FeedbackService{db: db, logger: logger, now: time.Now}
}

const feedbackSelect = `SELECT f.id, f.submitter_kind, f.submitter_user_id, f.submitter_name, f.submitter_email, f.submitter_phone,
       f.category, f.message, f.status, f.assignee_id,
       COALESCE(NULLIF(TRIM(a.first_name || ' ' || a.last_name), ''), a.username, '') AS assignee_name,
       f.resolution, f.responded_by, f.responded_at, f.created_at, f.updated_at
  FROM feedback f
  LEFT JOIN users a ON a.id = f.assignee_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedback(row rowScanner) (*models.FeedbackItem, error) {
	var (
		item               models.FeedbackItem
		kind               string
		userID             sql.NullInt64
		name, email, phone sql.NullString
		category, status   string
	)
	err := row.Scan(&item.ID, &kind, &userID, &name, &email, &phone,
		&category, &item.Message, &status, &item.AssigneeID, &item.AssigneeName,
		&item.Resolution, &item.RespondedBy, &item.RespondedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Category = models.Category(category)
	item.Status = models.FeedbackStatus(status)
	switch models.SubmitterKind(kind) {
	case models.SubmitterRegistered:
		item.Submitter = models.RegisteredSubmitter(int(userID.Int64), name.String, email.String, phone.String)
	case models.SubmitterDirect:
		item.Submitter = models.DirectSubmitter(name.String, email.String, phone.String)
	default:
		item.Submitter = models.AnonymousSubmitter()
	}
	return &item, nil
}

func nullableString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableID(id int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id > 0}
}

// CreateFeedback inserts a new item with status pending and no assignee.
func (s *FeedbackService) CreateFeedback(ctx context.Context, item *models.FeedbackItem) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "create_feedback",
		observability.AttributeCategory(string(item.Category)),
		attribute.String("submitter.kind", string(item.Submitter.Kind)),
	)
	defer observability.FinishSpan(span, &err)

	sub := item.Submitter
	if sub.Kind == models.SubmitterAnonymous {
		sub = models.AnonymousSubmitter()
	}

	query := `INSERT INTO feedback (submitter_kind, submitter_user_id, submitter_name, submitter_email, submitter_phone,
                      category, message, status, created_at, updated_at)
              VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`
	now := s.now()
	var created models.FeedbackItem
	err = s.db.QueryRowContext(ctx, query,
		string(sub.Kind), nullableID(sub.UserID), nullableString(sub.Name), nullableString(sub.Email), nullableString(sub.Phone),
		string(item.Category), item.Message, string(models.StatusPending), now, now,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert feedback")
	}

	created.Submitter = sub
	created.Category = item.Category
	created.Message = item.Message
	created.Status = models.StatusPending
	span.SetAttributes(observability.AttributeFeedbackID(created.ID))
	return &created, nil
}

// GetFeedbackByID fetches a single item together with its assignee's name.
func (s *FeedbackService) GetFeedbackByID(ctx context.Context, id int) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "get_feedback_by_id", observability.AttributeFeedbackID(id))
	defer observability.FinishSpan(span, &err)

	item, err := scanFeedback(s.db.QueryRowContext(ctx, feedbackSelect+" WHERE f.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback with ID %d not found", id)
		}
		return nil, contextutils.WrapError(err, "failed to scan feedback")
	}
	return item, nil
}

// escapeLike escapes LIKE wildcards so user search text matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildFeedbackWhere turns a filter into a WHERE clause and its positional args
func buildFeedbackWhere(filter models.FeedbackFilter, now time.Time) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !models.IsAll(filter.Status) {
		conditions = append(conditions, "f.status = "+next(strings.ToLower(strings.TrimSpace(filter.Status))))
	}
	if !models.IsAll(filter.Category) {
		conditions = append(conditions, "f.category = "+next(strings.ToLower(strings.TrimSpace(filter.Category))))
	}
	switch filter.Assignment {
	case models.AssignmentAssigned:
		conditions = append(conditions, "f.assignee_id IS NOT NULL")
	case models.AssignmentUnassigned:
		conditions = append(conditions, "f.assignee_id IS NULL")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + escapeLike(search) + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(f.message ILIKE %[1]s OR f.category ILIKE %[1]s OR f.submitter_name ILIKE %[1]s OR f.submitter_email ILIKE %[1]s)", p))
	}
	if since, ok := filter.DateRange.Since(now); ok {
		conditions = append(conditions, "f.created_at >= "+next(since))
	}
	if filter.SubmitterUserID > 0 {
		conditions = append(conditions, "f.submitter_user_id = "+next(filter.SubmitterUserID))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListFeedback returns every item matching the filter, newest first.
func (s *FeedbackService) ListFeedback(ctx context.Context, filter models.FeedbackFilter) (result0 []models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "list_feedback",
		observability.AttributeStatusFilter(filter.Status),
		observability.AttributeTypeFilter(filter.Category),
		observability.AttributeSearch(filter.Search),
		attribute.String("filter.assignment", string(filter.Assignment)),
		attribute.String("filter.date_range", string(filter.DateRange)),
	)
	defer observability.FinishSpan(span, &err)

	where, args := buildFeedbackWhere(filter, s.now())
	rows, err := s.db.QueryContext(ctx, feedbackSelect+where+" ORDER BY f.created_at DESC, f.id DESC", args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query feedback list")
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []models.FeedbackItem{}
	for rows.Next() {
		item, err := scanFeedback(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "scan feedback list")
		}
		list = append(list, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "iterate feedback list")
	}

	span.SetAttributes(attribute.Int("feedback.count", len(list)))
	return list, nil
}

// execAffectingOne runs a mutation and maps zero affected rows to ErrRecordNotFound
func (s *FeedbackService) execAffectingOne(ctx context.Context, id int, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return contextutils.WrapError(err, "failed to update feedback")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback with ID %d not found", id)
	}
	return nil
}

// UpdateAssignment sets or clears the assignee and writes the status in the same statement.
func (s *FeedbackService) UpdateAssignment(ctx context.Context, id, assigneeID int, status models.FeedbackStatus) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "update_assignment",
		observability.AttributeFeedbackID(id),
		attribute.Int("feedback.assignee_id", assigneeID),
		observability.AttributeFeedbackStatus(string(status)),
	)
	defer observability.FinishSpan(span, &err)

	query := `UPDATE feedback SET assignee_id = $1, status = $2, updated_at = $3 WHERE id = $4`
	if err := s.execAffectingOne(ctx, id, query, nullableID(assigneeID), string(status), s.now(), id); err != nil {
		return nil, err
	}
	return s.GetFeedbackByID(ctx, id)
}

// RecordResponse stores the resolution text and the responder audit columns.
func (s *FeedbackService) RecordResponse(ctx context.Context, id int, resolution string, status models.FeedbackStatus, respondedBy int, respondedAt time.Time) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "record_response",
		observability.AttributeFeedbackID(id),
		observability.AttributeFeedbackStatus(string(status)),
		observability.AttributeUserID(respondedBy),
	)
	defer observability.FinishSpan(span, &err)

	query := `UPDATE feedback SET resolution = $1, status = $2, responded_by = $3, responded_at = $4, updated_at = $4 WHERE id = $5`
	if err := s.execAffectingOne(ctx, id, query, resolution, string(status), nullableID(respondedBy), respondedAt, id); err != nil {
		return nil, err
	}
	return s.GetFeedbackByID(ctx, id)
}

// DeleteFeedback deletes a single item by ID. Notifications pointing at it are left alone.
func (s *FeedbackService) DeleteFeedback(ctx context.Context, id int) (err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "delete_feedback", observability.AttributeFeedbackID(id))
	defer observability.FinishSpan(span, &err)

	return s.execAffectingOne(ctx, id, `DELETE FROM feedback WHERE id = $1`, id)
}

// DeleteFeedbackByStatus deletes all items with a specific status.
func (s *FeedbackService) DeleteFeedbackByStatus(ctx context.Context, status models.FeedbackStatus) (result0 int, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "delete_feedback_by_status", observability.AttributeFeedbackStatus(string(status)))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE status = $1`, string(status))
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to delete feedback by status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}

	return int(rowsAffected), nil
}

// DeleteAllFeedback deletes all items regardless of status.
func (s *FeedbackService) DeleteAllFeedback(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "delete_all_feedback")
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM feedback`)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to delete all feedback")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to get rows affected")
	}

	return int(rowsAffected), nil
}

// CountByStatus returns per-status totals, optionally for a single registered submitter.
func (s *FeedbackService) CountByStatus(ctx context.Context, submitterUserID int) (result0 models.FeedbackStats, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "count_by_status", observability.AttributeUserID(submitterUserID))
	defer observability.FinishSpan(span, &err)

	stats := models.FeedbackStats{ByStatus: map[models.FeedbackStatus]int{}}
	query := `SELECT status, COUNT(*) FROM feedback`
	var args []interface{}
	if submitterUserID > 0 {
		query += ` WHERE submitter_user_id = $1`
		args = append(args, submitterUserID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, contextutils.WrapError(err, "failed to count feedback")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, contextutils.WrapError(err, "scan feedback counts")
		}
		stats.ByStatus[models.FeedbackStatus(status)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}
