//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxClientNameLen = 255

// APIClient represents an API-client record owned by a user. The record
// itself is plain CRUD; the interesting part is the scope checks its
// operations must enforce (see service.ClientService).
type APIClient struct {
	ID           string     `json:"id"                     db:"id"`
	UserID       string     `json:"user_id"                db:"user_id"`
	Name         string     `json:"name"                   db:"name"`
	Scope        []string   `json:"scope"                  db:"scope"`
	Unlocked     bool       `json:"unlocked"               db:"unlocked"`
	LastIssuedAt *time.Time `json:"last_issued_at,omitempty" db:"last_issued_at"`
	CreatedAt    time.Time  `json:"created_at"             db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"             db:"updated_at"`
}

// CreateClientRequest represents parameters to create an APIClient.
// UserID is optional; when set by a caller without client:write it must match
// the caller's own user id.
type CreateClientRequest struct {
	UserID string   `json:"user,omitempty"`
	Name   string   `json:"name"`
	Scope  []string `json:"scope,omitempty"`
}

// UpdateClientRequest represents parameters to update an APIClient.
// UserID and Unlocked are privileged fields gated behind client:write.
type UpdateClientRequest struct {
	UserID   *string  `json:"user,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Scope    []string `json:"scope,omitempty"`
	Unlocked *bool    `json:"unlocked,omitempty"`
}

// ClientsListOptions controls paging and filtering for listing API clients.
type ClientsListOptions struct {
	Limit  int
	Offset int
	UserID *string // exact match; forced to the caller for unprivileged reads
}

// Validate validates CreateClientRequest.
func (r *CreateClientRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxClientNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	r.Name = name
	return nil
}

// Validate validates UpdateClientRequest and reports whether it carries any change.
func (r *UpdateClientRequest) Validate() error {
	if r.UserID == nil && r.Name == nil && r.Scope == nil && r.Unlocked == nil {
		return errors.New("update request must set at least one field")
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		if utf8.RuneCountInString(name) > maxClientNameLen {
			return errors.New("name cannot exceed 255 characters")
		}
		r.Name = &name
	}
	return nil
}
