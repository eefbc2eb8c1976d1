// Package model defines the core domain types for the run club event system.
package model

import "time"

// Role is the privilege level stored in a user's role record.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the external-provider user behind a session. It is held only
// for the lifetime of that session; the provider owns the record.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// RoleRecord is the persisted per-user role document, keyed by identity id.
type RoleRecord struct {
	UserID      string     `json:"user_id"`
	Role        Role       `json:"role"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    string     `json:"photo_url"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// Event is a scheduled run. TargetDate is the authoritative start instant;
// display strings are derived from it at read time.
type Event struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Creator            string    `json:"creator"`
	Description        string    `json:"description"`
	Address            string    `json:"address"`
	BackgroundImageURL string    `json:"background_image_url"`
	SecondaryImages    []string  `json:"secondary_images"`
	TargetDate         time.Time `json:"target_date"`
	EndsAt             time.Time `json:"ends_at"`
	LumaLink           string    `json:"luma_link,omitempty"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
}

// Registration records that a user signed up for an event. At most one
// exists per (UserID, EventID); see RegistrationID.
type Registration struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegistrationID returns the deterministic identifier of the registration for
// a (user, event) pair, so that creating it twice overwrites instead of
// duplicating.
func RegistrationID(eventID, userID string) string {
	return eventID + ":" + userID
}

// EventInput is the payload for creating or editing an event.
type EventInput struct {
	Title              string    `json:"title"`
	Creator            string    `json:"creator"`
	Description        string    `json:"description"`
	Address            string    `json:"address"`
	BackgroundImageURL string    `json:"background_image_url"`
	SecondaryImages    []string  `json:"secondary_images"`
	TargetDate         time.Time `json:"target_date"`
	EndsAt             time.Time `json:"ends_at"`
	LumaLink           string    `json:"luma_link"`
}

// Registrant is a registration as shown to an event's owner.
type Registrant struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ErrorResponse is a standard JSON error envelope. Action names the attempted
// operation and Notice carries the human-readable cause.
type ErrorResponse struct {
	Error    string `json:"error"`
	Action   string `json:"action,omitempty"`
	Notice   string `json:"notice,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}
