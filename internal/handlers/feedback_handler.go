package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"srcapp/internal/config"
	"srcapp/internal/middleware"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// FeedbackHandler serves the feedback list, submission form, detail page and
// the assign, respond and delete actions.
type FeedbackHandler struct {
	workflow    services.FeedbackWorkflowInterface
	userService services.UserServiceInterface
	captcha     *services.CaptchaService
	renderer    *PageRenderer
	config      *config.Config
	logger      *observability.Logger
}

// NewFeedbackHandler creates a FeedbackHandler.
func NewFeedbackHandler(
	workflow services.FeedbackWorkflowInterface,
	userService services.UserServiceInterface,
	captcha *services.CaptchaService,
	renderer *PageRenderer,
	cfg *config.Config,
	logger *observability.Logger,
) *FeedbackHandler {
	return &FeedbackHandler{
		workflow:    workflow,
		userService: userService,
		captcha:     captcha,
		renderer:    renderer,
		config:      cfg,
		logger:      logger,
	}
}

// SubmitFeedbackForm is the body of POST /feedback
type SubmitFeedbackForm struct {
	Category      string `form:"category" json:"category"`
	Message       string `form:"message" json:"message"`
	IsAnonymous   bool   `form:"is_anonymous" json:"is_anonymous"`
	Name          string `form:"name" json:"name"`
	Email         string `form:"email" json:"email"`
	Phone         string `form:"phone" json:"phone"`
	CaptchaAnswer string `form:"captcha_answer" json:"captcha_answer"`
}

// AssignFeedbackForm is the body of POST /feedback/:id/assign
type AssignFeedbackForm struct {
	Assignee string `form:"assignee" json:"assignee"`
	Status   string `form:"status" json:"status"`
}

// RespondFeedbackForm is the body of POST /feedback/:id/respond. A missing
// notify_submitter means notify.
type RespondFeedbackForm struct {
	ResponseText    string `form:"response_text" json:"response_text"`
	Status          string `form:"status" json:"status"`
	NotifySubmitter *bool  `form:"-" json:"notify_submitter"`
}

// listFilterView echoes the list filters back into the filter form
type listFilterView struct {
	Status   string
	Category string
	Assigned string
	Search   string
	Date     string
}

func orAll(v string) string {
	if models.IsAll(v) {
		return "all"
	}
	return v
}

func detailPath(id int) string {
	return fmt.Sprintf("/feedback/%d", id)
}

// List handles GET /feedback
func (h *FeedbackHandler) List(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_feedback")
	defer observability.FinishSpan(span, nil)

	actor := middleware.CurrentActor(c)
	filters := ParseFilters(c, "status", "type", "category", "assigned", "search", "date")
	category := filters["type"]
	if category == "" {
		category = filters["category"]
	}

	span.SetAttributes(
		observability.AttributeStatusFilter(filters["status"]),
		observability.AttributeTypeFilter(category),
		observability.AttributeSearch(filters["search"]),
	)

	items, err := h.workflow.List(ctx, actor, models.FeedbackFilter{
		Status:     filters["status"],
		Category:   category,
		Assignment: models.AssignmentFilter(strings.ToLower(filters["assigned"])),
		Search:     filters["search"],
		DateRange:  models.DateRange(strings.ToLower(filters["date"])),
	})
	if err != nil {
		h.logger.Error(ctx, "Failed to list feedback", err, map[string]interface{}{"user_id": actor.UserID})
		HandleAppError(c, err)
		return
	}

	page, size := ParsePagination(c, 1, defaultPageSize, maxPageSize)
	pageItems, pagination := Paginate(items, page, size)
	stats := h.workflow.Stats(ctx, actor)

	if middleware.WantsJSON(c) {
		WritePaginated(c, "items", pageItems, pagination, gin.H{"stats": stats})
		return
	}

	linkFilters := make(map[string]string, len(filters))
	for k, v := range filters {
		linkFilters[k] = v
	}
	if size != defaultPageSize {
		linkFilters["page_size"] = strconv.Itoa(size)
	}

	h.renderer.HTML(c, http.StatusOK, "feedback_list.html", "Feedback", gin.H{
		"Items":      pageItems,
		"Page":       pagination,
		"PrevURL":    pageURL("/feedback", linkFilters, pagination.PrevPage()),
		"NextURL":    pageURL("/feedback", linkFilters, pagination.NextPage()),
		"Stats":      stats,
		"Statuses":   models.AllStatuses,
		"Categories": h.workflow.Categories(),
		"Filter": listFilterView{
			Status:   orAll(filters["status"]),
			Category: orAll(category),
			Assigned: orAll(filters["assigned"]),
			Search:   filters["search"],
			Date:     orAll(filters["date"]),
		},
	})
}

// issueCaptcha stores a fresh challenge nonce in the session and returns its prompt
func (h *FeedbackHandler) issueCaptcha(c *gin.Context) string {
	challenge, nonce := h.captcha.Issue()
	if err := storeCaptcha(c, nonce); err != nil {
		h.logger.Warn(c.Request.Context(), "Failed to store captcha in session", map[string]interface{}{"error": err.Error()})
	}
	return challenge.Question()
}

func (h *FeedbackHandler) renderForm(c *gin.Context, status int, form SubmitFeedbackForm, errMsg string) {
	question := h.issueCaptcha(c)
	h.renderer.HTML(c, status, "feedback_new.html", "Submit feedback", gin.H{
		"Categories":      h.workflow.Categories(),
		"Form":            form,
		"CaptchaQuestion": question,
		"Error":           errMsg,
	})
}

// NewForm handles GET /feedback/new
func (h *FeedbackHandler) NewForm(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "new_feedback_form")
	defer observability.FinishSpan(span, nil)

	if middleware.WantsJSON(c) {
		question := h.issueCaptcha(c)
		c.JSON(http.StatusOK, gin.H{
			"categories":       h.workflow.Categories(),
			"captcha_question": question,
		})
		return
	}
	h.renderForm(c, http.StatusOK, SubmitFeedbackForm{Category: c.Query("type")}, "")
}

// Submit handles POST /feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_feedback")
	defer observability.FinishSpan(span, nil)

	actor := middleware.CurrentActor(c)
	var form SubmitFeedbackForm
	if err := c.ShouldBind(&form); err != nil {
		bindErr := contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid form submission",
			"",
			err,
		)
		if middleware.WantsJSON(c) {
			HandleAppError(c, bindErr)
			return
		}
		h.renderForm(c, http.StatusBadRequest, form, bindErr.Message)
		return
	}

	span.SetAttributes(
		observability.AttributeCategory(form.Category),
		attribute.Bool("feedback.anonymous", form.IsAnonymous),
	)

	item, err := h.workflow.Submit(ctx, actor, services.SubmitFeedbackInput{
		Category:        form.Category,
		Message:         form.Message,
		IsAnonymous:     form.IsAnonymous,
		Name:            form.Name,
		Email:           form.Email,
		Phone:           form.Phone,
		CaptchaExpected: h.captcha.Redeem(takeCaptcha(c)),
		CaptchaAnswer:   form.CaptchaAnswer,
	})
	if err != nil {
		if middleware.WantsJSON(c) || !isFormError(err) {
			HandleAppError(c, err)
			return
		}
		_ = c.Error(err)
		form.CaptchaAnswer = ""
		h.renderForm(c, middleware.StatusForError(err), form, contextutils.UserMessage(err))
		return
	}

	message := fmt.Sprintf("Thank you! Your feedback #%d has been received.", item.ID)
	redirectTo := "/feedback/new"
	if actor.IsAuthenticated() {
		redirectTo = detailPath(item.ID)
	}
	succeedAction(c, http.StatusCreated, message, redirectTo, gin.H{"feedback": item})
}

// Detail handles GET /feedback/:id
func (h *FeedbackHandler) Detail(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "feedback_detail")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeFeedbackID(id))

	actor := middleware.CurrentActor(c)
	item, err := h.workflow.Get(ctx, actor, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, item)
		return
	}

	var assignees []models.User
	if actor.CanAssign() {
		assignees, err = h.userService.ListAssignableUsers(ctx)
		if err != nil {
			h.logger.Warn(ctx, "Failed to load assignable users", map[string]interface{}{"error": err.Error()})
		}
	}

	h.renderer.HTML(c, http.StatusOK, "feedback_detail.html", fmt.Sprintf("Feedback #%d", item.ID), gin.H{
		"Item":      item,
		"Assignees": assignees,
		"Statuses":  models.AllStatuses,
	})
}

// Assign handles POST /feedback/:id/assign
func (h *FeedbackHandler) Assign(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "assign_feedback")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeFeedbackID(id))

	var form AssignFeedbackForm
	if err := c.ShouldBind(&form); err != nil {
		failAction(c, contextutils.ValidationErrorf("invalid assignment form"), detailPath(id))
		return
	}

	item, err := h.workflow.Assign(ctx, middleware.CurrentActor(c), id, form.Assignee, form.Status)
	if err != nil {
		failAction(c, err, detailPath(id))
		return
	}

	message := fmt.Sprintf("Feedback #%d is now unassigned.", item.ID)
	if item.IsAssigned() {
		message = fmt.Sprintf("Feedback #%d assigned to %s.", item.ID, item.AssigneeName)
	}
	succeedAction(c, http.StatusOK, message, detailPath(item.ID), gin.H{"feedback": item})
}

// notifyChoice reads notify_submitter from a form where a hidden "false" may
// precede the checkbox value. The last value wins; no value means notify.
func notifyChoice(c *gin.Context) *bool {
	values := c.PostFormArray("notify_submitter")
	if len(values) == 0 {
		return nil
	}
	notify, err := strconv.ParseBool(strings.TrimSpace(values[len(values)-1]))
	if err != nil {
		notify = values[len(values)-1] == "on"
	}
	return &notify
}

// Respond handles POST /feedback/:id/respond
func (h *FeedbackHandler) Respond(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "respond_feedback")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeFeedbackID(id))

	var form RespondFeedbackForm
	if err := c.ShouldBind(&form); err != nil {
		failAction(c, contextutils.ValidationErrorf("invalid response form"), detailPath(id))
		return
	}
	if !strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		form.NotifySubmitter = notifyChoice(c)
	}

	item, err := h.workflow.Respond(ctx, middleware.CurrentActor(c), id, services.RespondInput{
		ResponseText:    form.ResponseText,
		Status:          form.Status,
		NotifySubmitter: form.NotifySubmitter,
	})
	if err != nil {
		failAction(c, err, detailPath(id))
		return
	}

	message := fmt.Sprintf("Response saved. Feedback #%d is %s.", item.ID, item.Status.Label())
	succeedAction(c, http.StatusOK, message, detailPath(item.ID), gin.H{"feedback": item})
}

// Delete handles POST /feedback/:id/delete
func (h *FeedbackHandler) Delete(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_feedback")
	defer observability.FinishSpan(span, nil)

	id, err := parseIDParam(c, "id")
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeFeedbackID(id))

	if err := h.workflow.Delete(ctx, middleware.CurrentActor(c), id); err != nil {
		failAction(c, err, detailPath(id))
		return
	}
	succeedAction(c, http.StatusOK, fmt.Sprintf("Feedback #%d deleted.", id), "/feedback", gin.H{"id": id})
}
