// Package models holds the domain types shared by the feedback workflow, the
// notification dispatcher and the presentation layer.
package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is a registered portal account
type User struct {
	ID           int            `json:"id" yaml:"id"`
	Username     string         `json:"username" yaml:"username"`
	FirstName    string         `json:"first_name" yaml:"first_name"`
	LastName     string         `json:"last_name" yaml:"last_name"`
	Email        sql.NullString `json:"email" yaml:"email"`
	Role         Role           `json:"role" yaml:"role"`
	PasswordHash sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// FullName joins first and last name, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// DisplayName is the "First Last(role)" label used in assignee dropdowns
func (u *User) DisplayName() string {
	return fmt.Sprintf("%s(%s)", u.FullName(), u.Role)
}

// EmailAddress returns the email or "" when none is on file
func (u *User) EmailAddress() string {
	if u.Email.Valid {
		return u.Email.String
	}
	return ""
}

// MarshalJSON customizes JSON marshaling for User to handle sql.NullString properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID        int       `json:"id"`
		Username  string    `json:"username"`
		FirstName string    `json:"first_name"`
		LastName  string    `json:"last_name"`
		Email     *string   `json:"email"`
		Role      Role      `json:"role"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     nullStringToPointer(u.Email),
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt64ToPointer(ni sql.NullInt64) *int64 {
	if ni.Valid {
		return &ni.Int64
	}
	return nil
}
