package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationStatus is the state of a moderation request; only pending is non-terminal.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ModerationStatus) Valid() bool {
	return s == ModerationPending || s == ModerationApproved || s == ModerationRejected
}

// RequestedPermissions are the media capabilities a viewer asks for.
type RequestedPermissions struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// ModerationRequest is a viewer's request to be elevated to moderator.
type ModerationRequest struct {
	ID                   uuid.UUID            `json:"id"`
	SessionID            uuid.UUID            `json:"session_id"`
	UserID               uuid.UUID            `json:"user_id"`
	RequestedPermissions RequestedPermissions `json:"requested_permissions"`
	Message              *string              `json:"message,omitempty"`
	Status               ModerationStatus     `json:"status"`
	ReviewedBy           *uuid.UUID           `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time           `json:"reviewed_at,omitempty"`
	ReviewMessage        *string              `json:"review_message,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
}
