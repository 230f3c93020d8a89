package model

import "time"

// AuthEventKind classifies an entry in the sign-in audit trail.
type AuthEventKind string

const (
	EventRegistered      AuthEventKind = "registered"
	EventLogin           AuthEventKind = "login"
	EventLoginFailed     AuthEventKind = "login_failed"
	EventFederatedLogin  AuthEventKind = "federated_login"
	EventPasswordChanged AuthEventKind = "password_changed"
)

// AuthEvent records one authentication attempt. Failed attempts against unknown
// emails have no UserID. Nothing secret or identifying beyond the user id is stored.
type AuthEvent struct {
	ID        uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    *uint         `json:"user_id,omitempty" gorm:"index"`
	Kind      AuthEventKind `json:"kind" gorm:"type:varchar(32);not null;index"`
	Provider  string        `json:"provider,omitempty" gorm:"type:varchar(32)"`
	CreatedAt time.Time     `json:"created_at" gorm:"index"`
}
