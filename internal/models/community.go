package models

import (
	"time"

	"github.com/google/uuid"
)

// Community is a group owned by a host. Sessions belong to a community.
type Community struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	HostID    uuid.UUID `json:"host_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
