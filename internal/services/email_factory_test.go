package services

import (
	"testing"

	"srcapp/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestCreateEmailService_TestMode(t *testing.T) {
	cfg := &config.Config{
		IsTest: true,
		Email:  config.EmailConfig{Enabled: true},
	}

	service := CreateEmailService(cfg, createTestLogger())

	// Should create a test email service
	assert.IsType(t, &TestEmailService{}, service)
	assert.True(t, service.IsEnabled())
}

func TestCreateEmailService_ProductionMode(t *testing.T) {
	cfg := &config.Config{
		IsTest: false,
		Email: config.EmailConfig{
			Enabled: true,
			SMTP: config.SMTPConfig{
				Host: "smtp.example.com",
			},
		},
	}

	service := CreateEmailService(cfg, createTestLogger())

	// Should create a real email service
	assert.IsType(t, &EmailService{}, service)
	assert.True(t, service.IsEnabled())
}
