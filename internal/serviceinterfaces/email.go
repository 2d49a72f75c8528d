// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import "context"

// EmailService defines the interface for email functionality
type EmailService interface {
	// SendEmail renders templateName with data and sends it to a single address
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}
