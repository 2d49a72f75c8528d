package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	ServerReadHeaderTimeout = 10 * time.Second
	ServerShutdownTimeout   = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Outbound email
	DefaultEmailSendTimeout = 10 * time.Second
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true

	// Session name
	SessionName = "src-session"
)

// Feature toggle names
const (
	FeatureFeedback = "enable_feedback"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
