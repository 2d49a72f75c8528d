package services

import (
	"context"
	"sync"
	"time"

	"srcapp/internal/config"
	"srcapp/internal/observability"
	"srcapp/internal/serviceinterfaces"
	contextutils "srcapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// SentEmail is one message captured by TestEmailService
type SentEmail struct {
	To       string
	Subject  string
	Template string
	Data     map[string]interface{}
	SentAt   time.Time
}

// TestEmailService implements the EmailService interface for test mode.
// It doesn't send anything; messages are logged and kept in memory.
type TestEmailService struct {
	cfg    *config.Config
	logger *observability.Logger

	mu   sync.Mutex
	sent []SentEmail
}

var _ serviceinterfaces.EmailService = (*TestEmailService)(nil)

// NewTestEmailService creates a new TestEmailService instance
func NewTestEmailService(cfg *config.Config, logger *observability.Logger) *TestEmailService {
	return &TestEmailService{
		cfg:    cfg,
		logger: logger,
	}
}

// SendEmail renders the template so broken templates still fail, then records the message
func (e *TestEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "TestSendEmail",
		attribute.String("email.to", contextutils.MaskEmail(to)),
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	if _, err := renderEmail(templateName, data); err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}

	e.mu.Lock()
	e.sent = append(e.sent, SentEmail{To: to, Subject: subject, Template: templateName, Data: data, SentAt: time.Now()})
	e.mu.Unlock()

	e.logger.Info(ctx, "TEST MODE: Would send email", map[string]interface{}{
		"to":        contextutils.MaskEmail(to),
		"subject":   subject,
		"template":  templateName,
		"test_mode": true,
		"data_keys": getMapKeys(data),
	})
	return nil
}

// Sent returns a copy of every captured message
func (e *TestEmailService) Sent() []SentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SentEmail(nil), e.sent...)
}

// IsEnabled follows email.enabled so tests can exercise the disabled path
func (e *TestEmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled
}

// getMapKeys returns the keys of a map as a slice of strings
func getMapKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}
