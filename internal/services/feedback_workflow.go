package services

import (
	"context"
	"strings"
	"time"

	"srcapp/internal/config"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// UnassignedRef is the assignee reference that clears the assignee
const UnassignedRef = "unassigned"

// FeedbackWorkflowInterface is the lifecycle engine used by the handlers
type FeedbackWorkflowInterface interface {
	Submit(ctx context.Context, actor models.Actor, input SubmitFeedbackInput) (*models.FeedbackItem, error)
	Assign(ctx context.Context, actor models.Actor, feedbackID int, assigneeRef, status string) (*models.FeedbackItem, error)
	Respond(ctx context.Context, actor models.Actor, feedbackID int, input RespondInput) (*models.FeedbackItem, error)
	Delete(ctx context.Context, actor models.Actor, feedbackID int) error
	List(ctx context.Context, actor models.Actor, filter models.FeedbackFilter) ([]models.FeedbackItem, error)
	Get(ctx context.Context, actor models.Actor, feedbackID int) (*models.FeedbackItem, error)
	Stats(ctx context.Context, actor models.Actor) models.FeedbackStats
	Categories() []models.Category
}

// SubmitFeedbackInput is the submission form. Contact fields are ignored for
// anonymous submissions.
type SubmitFeedbackInput struct {
	Category    string `validate:"required"`
	Message     string `validate:"required,max=5000"`
	IsAnonymous bool
	Name        string `validate:"required,max=200"`
	Email       string `validate:"required,email,max=255"`
	Phone       string `validate:"max=32" label:"phone number"`

	// CaptchaExpected is the redeemed answer for the form's challenge, 0 when none is outstanding
	CaptchaExpected int
	CaptchaAnswer   string
}

// RespondInput is the response form. A nil NotifySubmitter means true.
type RespondInput struct {
	ResponseText    string
	Status          string
	NotifySubmitter *bool
}

// FeedbackWorkflow enforces permissions, validation and the status machine,
// then persists through the repository and hands events to the dispatcher.
type FeedbackWorkflow struct {
	repo       serviceinterfaces.FeedbackRepository
	users      serviceinterfaces.UserDirectory
	dispatcher serviceinterfaces.NotificationDispatcher
	captcha    *CaptchaService
	cfg        *config.Config
	logger     *observability.Logger
	now        func() time.Time
}

var _ FeedbackWorkflowInterface = (*FeedbackWorkflow)(nil)

// NewFeedbackWorkflow wires the lifecycle engine
func NewFeedbackWorkflow(
	repo serviceinterfaces.FeedbackRepository,
	users serviceinterfaces.UserDirectory,
	dispatcher serviceinterfaces.NotificationDispatcher,
	captcha *CaptchaService,
	cfg *config.Config,
	logger *observability.Logger,
) *FeedbackWorkflow {
	return &FeedbackWorkflow{
		repo:       repo,
		users:      users,
		dispatcher: dispatcher,
		captcha:    captcha,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func permissionError(message string) error {
	return contextutils.NewAppError(contextutils.ErrorCodeForbidden, contextutils.SeverityWarn, message, "")
}

// Categories returns the accepted categories in display order
func (w *FeedbackWorkflow) Categories() []models.Category {
	if w.cfg == nil || len(w.cfg.Feedback.Categories) == 0 {
		return append([]models.Category(nil), models.AllCategories...)
	}
	allowed := make(map[models.Category]bool, len(w.cfg.Feedback.Categories))
	for _, name := range w.cfg.Feedback.Categories {
		if c, ok := models.ParseCategory(name); ok {
			allowed[c] = true
		}
	}
	out := make([]models.Category, 0, len(allowed))
	for _, c := range models.AllCategories {
		if allowed[c] {
			out = append(out, c)
		}
	}
	return out
}

func (w *FeedbackWorkflow) parseCategory(raw string) (models.Category, error) {
	c, ok := models.ParseCategory(raw)
	if ok {
		for _, allowed := range w.Categories() {
			if allowed == c {
				return c, nil
			}
		}
	}
	return "", contextutils.ValidationErrorf("unknown category %q", strings.TrimSpace(raw))
}

// actorName is how the acting user appears in notification texts
func (w *FeedbackWorkflow) actorName(ctx context.Context, actor models.Actor) string {
	if actor.UserID > 0 {
		if u, err := w.users.GetUserByID(ctx, actor.UserID); err == nil && u != nil {
			return u.FullName()
		}
	}
	return actor.Username
}

func (in *SubmitFeedbackInput) normalize() {
	in.Category = strings.TrimSpace(in.Category)
	in.Message = strings.TrimSpace(in.Message)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
}

// Submit records a new feedback item in pending state and tells every admin
// and member about it.
func (w *FeedbackWorkflow) Submit(ctx context.Context, actor models.Actor, input SubmitFeedbackInput) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "submit",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeCategory(input.Category),
		attribute.Bool("feedback.anonymous", input.IsAnonymous),
	)
	defer observability.FinishSpan(span, &err)

	if !actor.CanCreate() {
		return nil, permissionError("you are not allowed to submit feedback")
	}

	input.normalize()
	if !input.IsAnonymous && actor.IsAuthenticated() && (input.Name == "" || input.Email == "") {
		if profile, err := w.users.GetUserByID(ctx, actor.UserID); err == nil && profile != nil {
			if input.Name == "" {
				input.Name = profile.FullName()
			}
			if input.Email == "" {
				input.Email = profile.EmailAddress()
			}
		}
	}

	if input.IsAnonymous {
		err = contextutils.ValidateStructPartial(input, "Category", "Message")
	} else {
		err = contextutils.ValidateStruct(input)
	}
	if err != nil {
		return nil, contextutils.ValidationErrorf("%s", contextutils.ValidationMessage(err))
	}
	category, err := w.parseCategory(input.Category)
	if err != nil {
		return nil, err
	}
	if !input.IsAnonymous && input.Phone != "" && !contextutils.IsValidPhone(input.Phone) {
		return nil, contextutils.ValidationErrorf("phone number is invalid")
	}

	if err := w.captcha.Verify(input.CaptchaExpected, input.CaptchaAnswer); err != nil {
		return nil, err
	}

	var submitter models.Submitter
	switch {
	case input.IsAnonymous:
		submitter = models.AnonymousSubmitter()
	case actor.IsAuthenticated():
		submitter = models.RegisteredSubmitter(actor.UserID, input.Name, input.Email, input.Phone)
	default:
		submitter = models.DirectSubmitter(input.Name, input.Email, input.Phone)
	}

	created, err := w.repo.CreateFeedback(ctx, &models.FeedbackItem{
		Submitter: submitter,
		Category:  category,
		Message:   input.Message,
		Status:    models.StatusPending,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to save feedback")
	}
	span.SetAttributes(observability.AttributeFeedbackID(created.ID))

	w.logger.Info(ctx, "Feedback submitted", map[string]interface{}{
		"feedback_id":    created.ID,
		"category":       string(created.Category),
		"submitter_kind": string(created.Submitter.Kind),
	})

	w.dispatcher.NotifyRoles(ctx, models.NotificationFeedbackSubmitted,
		[]models.Role{models.RoleAdmin, models.RoleMember},
		models.NotificationContext{
			FeedbackID: created.ID,
			Category:   created.Category,
			Status:     created.Status,
			ActorName:  created.Submitter.DisplayName(),
			Message:    created.Message,
		})

	return created, nil
}

// Assign hands an item to an admin or member, or clears the assignee when
// assigneeRef is "unassigned".
func (w *FeedbackWorkflow) Assign(ctx context.Context, actor models.Actor, feedbackID int, assigneeRef, status string) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "assign",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeFeedbackID(feedbackID),
		attribute.String("assignee.ref", assigneeRef),
	)
	defer observability.FinishSpan(span, &err)

	if !actor.CanAssign() {
		return nil, permissionError("you are not allowed to assign feedback")
	}
	assigneeRef = strings.TrimSpace(assigneeRef)
	if assigneeRef == "" {
		return nil, contextutils.ValidationErrorf("choose an assignee")
	}

	current, err := w.repo.GetFeedbackByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(assigneeRef, UnassignedRef) {
		return w.unassign(ctx, actor, current)
	}

	target := models.StatusInProgress
	if strings.TrimSpace(status) != "" {
		parsed, ok := models.ParseStatus(status)
		if !ok {
			return nil, contextutils.ValidationErrorf("unknown status %q", status)
		}
		if parsed != models.StatusPending {
			target = parsed
		}
	}

	assignee, err := w.users.ResolveAssignee(ctx, assigneeRef)
	if err != nil {
		return nil, err
	}

	updated, err := w.repo.UpdateAssignment(ctx, feedbackID, assignee.ID, target)
	if err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "Feedback assigned", map[string]interface{}{
		"feedback_id": feedbackID,
		"assignee_id": assignee.ID,
		"status":      string(target),
		"actor_id":    actor.UserID,
	})

	w.dispatcher.Notify(ctx, models.NotificationFeedbackAssigned, assignee.ID, models.NotificationContext{
		FeedbackID:    updated.ID,
		Category:      updated.Category,
		Status:        updated.Status,
		ActorName:     w.actorName(ctx, actor),
		RecipientName: assignee.FullName(),
		Message:       updated.Message,
	})
	return updated, nil
}

func (w *FeedbackWorkflow) unassign(ctx context.Context, actor models.Actor, current *models.FeedbackItem) (*models.FeedbackItem, error) {
	previous := current.AssigneeUserID()
	updated, err := w.repo.UpdateAssignment(ctx, current.ID, 0, models.StatusPending)
	if err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "Feedback unassigned", map[string]interface{}{
		"feedback_id":       current.ID,
		"previous_assignee": previous,
		"actor_id":          actor.UserID,
	})

	if previous > 0 {
		w.dispatcher.Notify(ctx, models.NotificationFeedbackUnassigned, previous, models.NotificationContext{
			FeedbackID: updated.ID,
			Category:   updated.Category,
			Status:     updated.Status,
			ActorName:  w.actorName(ctx, actor),
			Message:    updated.Message,
		})
	}
	return updated, nil
}

// Respond records the council's answer and tells the submitter when asked to
func (w *FeedbackWorkflow) Respond(ctx context.Context, actor models.Actor, feedbackID int, input RespondInput) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "respond",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeFeedbackID(feedbackID),
		observability.AttributeFeedbackStatus(input.Status),
	)
	defer observability.FinishSpan(span, &err)

	if !actor.CanRespond() {
		return nil, permissionError("you are not allowed to respond to feedback")
	}

	text := strings.TrimSpace(input.ResponseText)
	if text == "" {
		return nil, contextutils.ValidationErrorf("response text is required")
	}
	status := models.StatusResolved
	if strings.TrimSpace(input.Status) != "" {
		parsed, ok := models.ParseStatus(input.Status)
		if !ok {
			return nil, contextutils.ValidationErrorf("unknown status %q", input.Status)
		}
		status = parsed
	}
	if status == models.StatusPending {
		return nil, contextutils.ValidationErrorf("a response cannot leave feedback pending")
	}

	updated, err := w.repo.RecordResponse(ctx, feedbackID, text, status, actor.UserID, w.now())
	if err != nil {
		return nil, err
	}

	notify := input.NotifySubmitter == nil || *input.NotifySubmitter
	w.logger.Info(ctx, "Feedback response recorded", map[string]interface{}{
		"feedback_id":      feedbackID,
		"status":           string(status),
		"actor_id":         actor.UserID,
		"notify_submitter": notify,
	})
	if !notify {
		return updated, nil
	}

	nctx := models.NotificationContext{
		FeedbackID:    updated.ID,
		Category:      updated.Category,
		Status:        updated.Status,
		ActorName:     w.actorName(ctx, actor),
		RecipientName: updated.Submitter.Name,
		Message:       updated.Message,
		Response:      text,
	}
	switch {
	case updated.Submitter.IsRegistered():
		w.dispatcher.Notify(ctx, models.NotificationFeedbackResponse, updated.Submitter.UserID, nctx)
	case updated.Submitter.Kind == models.SubmitterDirect && updated.Submitter.Email != "":
		w.dispatcher.NotifyAddress(ctx, models.NotificationFeedbackResponse, updated.Submitter.Email, nctx)
	}
	return updated, nil
}

// Delete removes an item. Notifications that mention it are left alone.
func (w *FeedbackWorkflow) Delete(ctx context.Context, actor models.Actor, feedbackID int) (err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "delete",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeFeedbackID(feedbackID),
	)
	defer observability.FinishSpan(span, &err)

	if !actor.CanDelete() {
		return permissionError("you are not allowed to delete feedback")
	}
	if err := w.repo.DeleteFeedback(ctx, feedbackID); err != nil {
		return err
	}

	w.logger.Info(ctx, "Feedback deleted", map[string]interface{}{
		"feedback_id": feedbackID,
		"actor_id":    actor.UserID,
	})
	return nil
}

// normalizeFilter drops unknown filter values so they behave like "all"
func normalizeFilter(filter models.FeedbackFilter) models.FeedbackFilter {
	if _, ok := models.ParseStatus(filter.Status); !ok {
		filter.Status = ""
	}
	if _, ok := models.ParseCategory(filter.Category); !ok {
		filter.Category = ""
	}
	switch filter.Assignment {
	case models.AssignmentAssigned, models.AssignmentUnassigned:
	default:
		filter.Assignment = models.AssignmentAll
	}
	switch filter.DateRange {
	case models.DateRangeToday, models.DateRangeWeek, models.DateRangeMonth:
	default:
		filter.DateRange = models.DateRangeAll
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return filter
}

// List returns the items visible to actor, newest first. Managers see every
// item; other users only what they submitted while logged in; guests nothing.
func (w *FeedbackWorkflow) List(ctx context.Context, actor models.Actor, filter models.FeedbackFilter) (result0 []models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "list",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeStatusFilter(filter.Status),
		observability.AttributeTypeFilter(filter.Category),
		observability.AttributeSearch(filter.Search),
	)
	defer observability.FinishSpan(span, &err)

	filter = normalizeFilter(filter)
	switch {
	case actor.IsManager():
	case actor.IsAuthenticated():
		filter.SubmitterUserID = actor.UserID
	default:
		return []models.FeedbackItem{}, nil
	}

	items, err := w.repo.ListFeedback(ctx, filter)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("feedback.count", len(items)))
	return items, nil
}

// Get returns one item under the same visibility rule as List. Items the
// actor may not see are reported as not found.
func (w *FeedbackWorkflow) Get(ctx context.Context, actor models.Actor, feedbackID int) (result0 *models.FeedbackItem, err error) {
	ctx, span := observability.TraceFeedbackFunction(ctx, "get",
		observability.AttributeUserID(actor.UserID),
		observability.AttributeFeedbackID(feedbackID),
	)
	defer observability.FinishSpan(span, &err)

	item, err := w.repo.GetFeedbackByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if actor.IsManager() {
		return item, nil
	}
	if actor.IsAuthenticated() && item.Submitter.IsRegistered() && item.Submitter.UserID == actor.UserID {
		return item, nil
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "feedback %d not found", feedbackID)
}

// Stats counts the items visible to actor by status. Errors yield zero counts.
func (w *FeedbackWorkflow) Stats(ctx context.Context, actor models.Actor) models.FeedbackStats {
	empty := models.FeedbackStats{ByStatus: map[models.FeedbackStatus]int{}}

	submitter := 0
	switch {
	case actor.IsManager():
	case actor.IsAuthenticated():
		submitter = actor.UserID
	default:
		return empty
	}

	stats, err := w.repo.CountByStatus(ctx, submitter)
	if err != nil {
		w.logger.Warn(ctx, "Failed to load feedback stats", map[string]interface{}{
			"error":   err.Error(),
			"user_id": actor.UserID,
		})
		return empty
	}
	return stats
}
