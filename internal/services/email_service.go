// Package services provides business logic services for the council portal.
package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"srcapp/internal/config"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// Email template names
const (
	TemplateFeedbackAssigned = "feedback_assigned"
	TemplateFeedbackResponse = "feedback_response"
	TemplateTestEmail        = "test_email"
)

// EmailService implements serviceinterfaces.EmailService using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

// Ensure EmailService implements the EmailService interface
var _ serviceinterfaces.EmailService = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
		dialer.Timeout = cfg.EmailSendTimeout()
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendEmail sends a templated email to a single recipient
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "SendEmail",
		attribute.String("email.to", contextutils.MaskEmail(to)),
		attribute.String("email.subject", subject),
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       contextutils.MaskEmail(to),
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	content, err := renderEmail(templateName, e.withDefaults(data))
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", e.cfg.Email.SMTP.FromAddress, e.cfg.Email.SMTP.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       contextutils.MaskEmail(to),
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapError(err, "failed to send email")
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       contextutils.MaskEmail(to),
		"template": templateName,
		"subject":  subject,
	})

	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

func (e *EmailService) withDefaults(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+2)
	out["AppURL"] = strings.TrimRight(e.cfg.Server.AppBaseURL, "/")
	out["FromName"] = e.cfg.Email.SMTP.FromName
	for k, v := range data {
		out[k] = v
	}
	return out
}

const emailLayout = `
{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{template "title" .}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1d4e89; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .quote { border-left: 4px solid #1d4e89; margin: 12px 0; padding: 8px 12px; background: #fff; }
        .button { display: inline-block; background-color: #1d4e89; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{template "title" .}}</h1></div>
        <div class="content">{{template "body" .}}</div>
        <div class="footer"><p>This email was sent by {{if .FromName}}{{.FromName}}{{else}}the SRC portal{{end}}.</p></div>
    </div>
</body>
</html>{{end}}`

var emailBodies = map[string]string{
	TemplateFeedbackAssigned: `
{{define "title"}}Feedback assigned to you{{end}}
{{define "body"}}
<h2>Hello {{.RecipientName}},</h2>
<p>{{.ActorName}} assigned you feedback #{{.FeedbackID}} ({{.Category}}). Current status: <strong>{{.Status}}</strong>.</p>
<div class="quote">{{.Message}}</div>
{{if .ActionURL}}<div style="text-align: center;"><a href="{{.AppURL}}{{.ActionURL}}" class="button">Open feedback</a></div>{{end}}
{{end}}`,
	TemplateFeedbackResponse: `
{{define "title"}}Your feedback has a response{{end}}
{{define "body"}}
<h2>Hello {{if .RecipientName}}{{.RecipientName}}{{else}}there{{end}},</h2>
<p>The council responded to your {{.Category}} feedback #{{.FeedbackID}}. It is now <strong>{{.Status}}</strong>.</p>
<div class="quote">{{.Response}}</div>
{{if .ActionURL}}<div style="text-align: center;"><a href="{{.AppURL}}{{.ActionURL}}" class="button">View feedback</a></div>{{end}}
{{end}}`,
	TemplateTestEmail: `
{{define "title"}}Test Email{{end}}
{{define "body"}}
<h2>Hello {{.RecipientName}}!</h2>
<p>This is a test email to verify that the portal's email settings are working correctly.</p>
<p><strong>Message:</strong> {{.Message}}</p>
{{end}}`,
}

var emailTemplates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(emailBodies))
	for name, body := range emailBodies {
		out[name] = template.Must(template.Must(template.New(name).Parse(emailLayout)).Parse(body))
	}
	return out
}()

// renderEmail executes a named email template
func renderEmail(templateName string, data map[string]interface{}) (string, error) {
	tmpl, ok := emailTemplates[templateName]
	if !ok {
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}

// emailSubject returns the subject line for a template
func emailSubject(templateName string, feedbackID int) string {
	switch templateName {
	case TemplateFeedbackAssigned:
		return fmt.Sprintf("[SRC] Feedback #%d assigned to you", feedbackID)
	case TemplateFeedbackResponse:
		return fmt.Sprintf("[SRC] Response to your feedback #%d", feedbackID)
	}
	return "[SRC] Notification"
}
