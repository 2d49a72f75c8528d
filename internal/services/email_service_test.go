package services

import (
	"context"
	"testing"
	"time"

	"srcapp/internal/config"
	"srcapp/internal/observability"
	contextutils "srcapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestLogger creates a logger for testing
func createTestLogger() *observability.Logger {
	cfg := &config.OpenTelemetryConfig{
		EnableLogging: false, // Disable logging for tests
	}
	return observability.NewLogger(cfg)
}

func smtpConfig(enabled bool, host string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AppBaseURL: "https://src.school.test/"},
		Email: config.EmailConfig{
			Enabled:     enabled,
			SendTimeout: 3 * time.Second,
			SMTP: config.SMTPConfig{
				Host:        host,
				Port:        587,
				Username:    "council@school.test",
				Password:    "password",
				FromAddress: "noreply@school.test",
				FromName:    "Student Council",
			},
		},
	}
}

func TestNewEmailService(t *testing.T) {
	service := NewEmailService(smtpConfig(true, "smtp.school.test"), createTestLogger())

	assert.NotNil(t, service)
	assert.True(t, service.IsEnabled())
	require.NotNil(t, service.dialer)
	assert.Equal(t, 3*time.Second, service.dialer.Timeout)
}

func TestEmailService_IsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		host     string
		expected bool
	}{
		{"enabled with host", true, "smtp.school.test", true},
		{"enabled without host", true, "", false},
		{"disabled with host", false, "smtp.school.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewEmailService(smtpConfig(tt.enabled, tt.host), createTestLogger())
			assert.Equal(t, tt.expected, service.IsEnabled())
		})
	}
}

func TestEmailService_SendEmail_DisabledIsNoop(t *testing.T) {
	service := NewEmailService(smtpConfig(false, ""), createTestLogger())

	err := service.SendEmail(context.Background(), "ama@school.test", "subject", TemplateFeedbackResponse, nil)
	assert.NoError(t, err)
}

func TestEmailService_SendEmail_UnknownTemplate(t *testing.T) {
	service := NewEmailService(smtpConfig(true, "smtp.school.test"), createTestLogger())

	err := service.SendEmail(context.Background(), "ama@school.test", "subject", "word_of_the_day", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestRenderEmail_FeedbackAssigned(t *testing.T) {
	service := NewEmailService(smtpConfig(true, "smtp.school.test"), createTestLogger())

	content, err := renderEmail(TemplateFeedbackAssigned, service.withDefaults(map[string]interface{}{
		"RecipientName": "Efua Owusu",
		"ActorName":     "Kwame Asante",
		"FeedbackID":    42,
		"Category":      "Welfare",
		"Status":        "In Progress",
		"Message":       "<script>alert(1)</script>",
		"ActionURL":     "/feedback/42",
	}))
	require.NoError(t, err)

	assert.Contains(t, content, "Hello Efua Owusu")
	assert.Contains(t, content, "Kwame Asante assigned you feedback #42")
	assert.Contains(t, content, `href="https://src.school.test/feedback/42"`)
	assert.Contains(t, content, "Student Council")
	assert.NotContains(t, content, "<script>")
}

func TestRenderEmail_FeedbackResponse(t *testing.T) {
	content, err := renderEmail(TemplateFeedbackResponse, map[string]interface{}{
		"RecipientName": "",
		"FeedbackID":    7,
		"Category":      "Sports",
		"Status":        "Resolved",
		"Response":      "New footballs arrive Friday",
	})
	require.NoError(t, err)

	assert.Contains(t, content, "Hello there")
	assert.Contains(t, content, "New footballs arrive Friday")
	assert.Contains(t, content, "<strong>Resolved</strong>")
}

func TestRenderEmail_UnknownTemplate(t *testing.T) {
	_, err := renderEmail("daily_reminder", nil)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
}

func TestEmailSubject(t *testing.T) {
	assert.Equal(t, "[SRC] Feedback #3 assigned to you", emailSubject(TemplateFeedbackAssigned, 3))
	assert.Equal(t, "[SRC] Response to your feedback #3", emailSubject(TemplateFeedbackResponse, 3))
	assert.Equal(t, "[SRC] Notification", emailSubject(TemplateTestEmail, 3))
}
