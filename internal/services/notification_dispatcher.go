package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"srcapp/internal/config"
	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const dispatcherInstrumentation = "srcapp/internal/services/notifications"

// Delivery channels used as metric attributes
const (
	channelInApp = "in_app"
	channelEmail = "email"
)

// NotificationDispatcher writes inbox rows and sends the optional email for
// each lifecycle event. It never returns delivery errors to the workflow.
type NotificationDispatcher struct {
	store  serviceinterfaces.NotificationStore
	users  serviceinterfaces.UserDirectory
	mailer serviceinterfaces.EmailService
	cfg    *config.Config
	logger *observability.Logger

	delivered metric.Int64Counter
	failed    metric.Int64Counter
}

var _ serviceinterfaces.NotificationDispatcher = (*NotificationDispatcher)(nil)

// NewNotificationDispatcher wires the dispatcher. mailer may be nil when email is not configured.
func NewNotificationDispatcher(
	store serviceinterfaces.NotificationStore,
	users serviceinterfaces.UserDirectory,
	mailer serviceinterfaces.EmailService,
	cfg *config.Config,
	logger *observability.Logger,
) *NotificationDispatcher {
	d := &NotificationDispatcher{store: store, users: users, mailer: mailer, cfg: cfg, logger: logger}

	meter := otel.Meter(dispatcherInstrumentation)
	var err error
	if d.delivered, err = meter.Int64Counter("src.notifications.delivered",
		metric.WithDescription("Notifications delivered, by channel and event type"),
		metric.WithUnit("{notification}")); err != nil {
		logger.Warn(context.Background(), "Falling back to no-op delivered counter", map[string]interface{}{"error": err.Error()})
		d.delivered = noop.Int64Counter{}
	}
	if d.failed, err = meter.Int64Counter("src.notifications.failed",
		metric.WithDescription("Notification deliveries that failed or timed out, by channel and event type"),
		metric.WithUnit("{notification}")); err != nil {
		logger.Warn(context.Background(), "Falling back to no-op failed counter", map[string]interface{}{"error": err.Error()})
		d.failed = noop.Int64Counter{}
	}
	return d
}

func (d *NotificationDispatcher) record(ctx context.Context, counter metric.Int64Counter, channel string, event models.NotificationType) {
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("event", string(event)),
	))
}

// deliveryFailure logs a NOTIFICATION_DELIVERY_FAILED error and counts it
func (d *NotificationDispatcher) deliveryFailure(ctx context.Context, channel string, event models.NotificationType, cause error, fields map[string]interface{}) {
	err := contextutils.NewAppErrorWithCause(contextutils.ErrorCodeNotificationDelivery, contextutils.SeverityWarn,
		fmt.Sprintf("%s delivery failed", channel), string(event), cause)
	fields["channel"] = channel
	fields["event"] = string(event)
	d.logger.Error(ctx, "Notification delivery failed", err, fields)
	d.record(ctx, d.failed, channel, event)
}

func actionURLFor(nctx models.NotificationContext) string {
	if nctx.ActionURL != "" {
		return nctx.ActionURL
	}
	if nctx.FeedbackID > 0 {
		return fmt.Sprintf("/feedback/%d", nctx.FeedbackID)
	}
	return ""
}

// excerpt shortens free text for notification bodies
func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// composeNotification renders the title and body for an event
func composeNotification(event models.NotificationType, nctx models.NotificationContext) (title, message string) {
	category := nctx.Category.Label()
	switch event {
	case models.NotificationFeedbackSubmitted:
		return fmt.Sprintf("New %s feedback", category),
			fmt.Sprintf("%s submitted feedback #%d: %s", orDefault(nctx.ActorName, "Someone"), nctx.FeedbackID, excerpt(nctx.Message, 120))
	case models.NotificationFeedbackAssigned:
		return fmt.Sprintf("Feedback #%d assigned to you", nctx.FeedbackID),
			fmt.Sprintf("%s assigned you a %s feedback item (%s): %s", orDefault(nctx.ActorName, "A council admin"), category, nctx.Status.Label(), excerpt(nctx.Message, 120))
	case models.NotificationFeedbackUnassigned:
		return fmt.Sprintf("Feedback #%d unassigned", nctx.FeedbackID),
			fmt.Sprintf("%s removed you from %s feedback #%d.", orDefault(nctx.ActorName, "A council admin"), category, nctx.FeedbackID)
	case models.NotificationFeedbackResponse:
		return fmt.Sprintf("Response to your feedback #%d", nctx.FeedbackID),
			fmt.Sprintf("Your %s feedback is now %s: %s", category, nctx.Status.Label(), excerpt(nctx.Response, 160))
	}
	return "Notification", excerpt(nctx.Message, 160)
}

func emailTemplateFor(event models.NotificationType) string {
	if event == models.NotificationFeedbackAssigned {
		return TemplateFeedbackAssigned
	}
	return TemplateFeedbackResponse
}

func emailData(nctx models.NotificationContext, recipientName string) map[string]interface{} {
	return map[string]interface{}{
		"RecipientName": recipientName,
		"ActorName":     orDefault(nctx.ActorName, "A council admin"),
		"FeedbackID":    nctx.FeedbackID,
		"Category":      nctx.Category.Label(),
		"Status":        nctx.Status.Label(),
		"Message":       nctx.Message,
		"Response":      nctx.Response,
		"ActionURL":     actionURLFor(nctx),
	}
}

func (d *NotificationDispatcher) emailEnabled() bool {
	return d.mailer != nil && d.mailer.IsEnabled()
}

// sendEmailBounded runs the send in its own goroutine and gives up after
// email.send_timeout. A timed out send counts as not sent.
func (d *NotificationDispatcher) sendEmailBounded(ctx context.Context, event models.NotificationType, to string, nctx models.NotificationContext, recipientName string) bool {
	timeout := d.cfg.EmailSendTimeout()
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	template := emailTemplateFor(event)
	done := make(chan error, 1)
	go func() {
		done <- d.mailer.SendEmail(sendCtx, to, emailSubject(template, nctx.FeedbackID), template, emailData(nctx, recipientName))
	}()

	select {
	case err := <-done:
		if err != nil {
			d.deliveryFailure(ctx, channelEmail, event, err, map[string]interface{}{
				"to":          contextutils.MaskEmail(to),
				"feedback_id": nctx.FeedbackID,
			})
			return false
		}
		d.record(ctx, d.delivered, channelEmail, event)
		return true
	case <-sendCtx.Done():
		d.deliveryFailure(ctx, channelEmail, event, contextutils.WrapErrorf(contextutils.ErrTimeout, "email send exceeded %s", timeout), map[string]interface{}{
			"to":          contextutils.MaskEmail(to),
			"feedback_id": nctx.FeedbackID,
		})
		return false
	}
}

// Notify writes an inbox row for the recipient and, for assignment and
// response events, emails them when they have an address on file.
func (d *NotificationDispatcher) Notify(ctx context.Context, event models.NotificationType, recipientUserID int, nctx models.NotificationContext) (result models.DispatchResult) {
	ctx, span := observability.TraceNotificationFunction(ctx, "Notify",
		observability.AttributeNotificationType(string(event)),
		observability.AttributeUserID(recipientUserID),
		observability.AttributeFeedbackID(nctx.FeedbackID),
	)
	defer func() {
		span.SetAttributes(
			attribute.Bool("notification.sent", result.NotificationSent),
			attribute.Bool("email.sent", result.EmailSent),
		)
		span.End()
	}()

	if recipientUserID <= 0 {
		return result
	}

	title, message := composeNotification(event, nctx)
	n := &models.Notification{
		RecipientUserID: recipientUserID,
		Title:           title,
		Message:         message,
		Type:            event,
		ActionURL:       nullableString(actionURLFor(nctx)),
		FeedbackID:      nullableID(nctx.FeedbackID),
	}
	if _, err := d.store.CreateNotification(ctx, n); err != nil {
		d.deliveryFailure(ctx, channelInApp, event, err, map[string]interface{}{
			"recipient_user_id": recipientUserID,
			"feedback_id":       nctx.FeedbackID,
		})
	} else {
		result.NotificationSent = true
		d.record(ctx, d.delivered, channelInApp, event)
	}

	if !event.SendsEmail() || !d.emailEnabled() {
		return result
	}

	recipient, err := d.users.GetUserByID(ctx, recipientUserID)
	if err != nil {
		d.deliveryFailure(ctx, channelEmail, event, err, map[string]interface{}{"recipient_user_id": recipientUserID})
		return result
	}
	if recipient == nil || recipient.EmailAddress() == "" {
		d.logger.Debug(ctx, "Recipient has no email address, skipping email", map[string]interface{}{"recipient_user_id": recipientUserID})
		return result
	}

	result.EmailSent = d.sendEmailBounded(ctx, event, recipient.EmailAddress(), nctx, orDefault(nctx.RecipientName, recipient.FullName()))
	return result
}

// NotifyAddress emails a non-registered recipient. No inbox row is written.
func (d *NotificationDispatcher) NotifyAddress(ctx context.Context, event models.NotificationType, address string, nctx models.NotificationContext) (sent bool) {
	ctx, span := observability.TraceNotificationFunction(ctx, "NotifyAddress",
		observability.AttributeNotificationType(string(event)),
		observability.AttributeFeedbackID(nctx.FeedbackID),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("email.sent", sent))
		span.End()
	}()

	address = strings.TrimSpace(address)
	if address == "" || !event.SendsEmail() || !d.emailEnabled() {
		return false
	}
	if !contextutils.IsValidEmail(address) {
		d.deliveryFailure(ctx, channelEmail, event, contextutils.ErrInvalidInput, map[string]interface{}{"to": contextutils.MaskEmail(address)})
		return false
	}
	return d.sendEmailBounded(ctx, event, address, nctx, nctx.RecipientName)
}

// NotifyRoles fans an event out to every user holding one of roles and
// returns how many inbox rows were written.
func (d *NotificationDispatcher) NotifyRoles(ctx context.Context, event models.NotificationType, roles []models.Role, nctx models.NotificationContext) (sent int) {
	ctx, span := observability.TraceNotificationFunction(ctx, "NotifyRoles",
		observability.AttributeNotificationType(string(event)),
		attribute.Int("roles.count", len(roles)),
	)
	defer func() {
		span.SetAttributes(attribute.Int("notifications.sent", sent))
		span.End()
	}()

	recipients, err := d.users.ListUsersByRoles(ctx, roles)
	if err != nil {
		d.deliveryFailure(ctx, channelInApp, event, err, map[string]interface{}{"feedback_id": nctx.FeedbackID})
		return 0
	}

	start := time.Now()
	for _, u := range recipients {
		nctx.RecipientName = u.FullName()
		if d.Notify(ctx, event, u.ID, nctx).NotificationSent {
			sent++
		}
	}

	d.logger.Info(ctx, "Fanned out notification", map[string]interface{}{
		"event":       string(event),
		"recipients":  len(recipients),
		"sent":        sent,
		"feedback_id": nctx.FeedbackID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return sent
}
