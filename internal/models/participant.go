package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole is a participant's role inside one session.
type ParticipantRole string

const (
	ParticipantAdmin     ParticipantRole = "admin"
	ParticipantModerator ParticipantRole = "moderator"
	ParticipantViewer    ParticipantRole = "viewer"
)

// Permissions is the capability bundle attached to a role.
type Permissions struct {
	CanStream   bool `json:"can_stream"`
	CanModerate bool `json:"can_moderate"`
	CanReact    bool `json:"can_react"`
	CanChat     bool `json:"can_chat"`
}

// AdminPermissions is the host's bundle.
func AdminPermissions() Permissions {
	return Permissions{CanStream: true, CanModerate: true, CanReact: true, CanChat: true}
}

// ViewerPermissions derives a new viewer's bundle from the session settings.
func ViewerPermissions(settings SessionSettings) Permissions {
	return Permissions{CanReact: settings.AllowReactions, CanChat: settings.AllowChat}
}

// ModeratorPermissions is granted on an approved moderation request.
func ModeratorPermissions(req RequestedPermissions) Permissions {
	return Permissions{
		CanStream:   req.Video || req.Audio,
		CanModerate: true,
		CanReact:    true,
		CanChat:     true,
	}
}

// StreamQuality is the participant's requested playback quality.
type StreamQuality string

const (
	QualityAuto   StreamQuality = "auto"
	QualityLow    StreamQuality = "low"
	QualityMedium StreamQuality = "medium"
	QualityHigh   StreamQuality = "high"
)

// Valid reports whether q is a known quality.
func (q StreamQuality) Valid() bool {
	switch q {
	case QualityAuto, QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// StreamState holds connection and media flags of a participant.
type StreamState struct {
	HasVideo   bool          `json:"has_video"`
	HasAudio   bool          `json:"has_audio"`
	IsMuted    bool          `json:"is_muted"`
	IsVideoOff bool          `json:"is_video_off"`
	Quality    StreamQuality `json:"quality"`
}

// StreamStatePatch is a partial update of StreamState; nil fields are left alone.
type StreamStatePatch struct {
	HasVideo   *bool          `json:"has_video"`
	HasAudio   *bool          `json:"has_audio"`
	IsMuted    *bool          `json:"is_muted"`
	IsVideoOff *bool          `json:"is_video_off"`
	Quality    *StreamQuality `json:"quality"`
}

// Apply merges p into s.
func (p StreamStatePatch) Apply(s StreamState) StreamState {
	if p.HasVideo != nil {
		s.HasVideo = *p.HasVideo
	}
	if p.HasAudio != nil {
		s.HasAudio = *p.HasAudio
	}
	if p.IsMuted != nil {
		s.IsMuted = *p.IsMuted
	}
	if p.IsVideoOff != nil {
		s.IsVideoOff = *p.IsVideoOff
	}
	if p.Quality != nil {
		s.Quality = *p.Quality
	}
	return s
}

// Participant is a user's membership record in one session. There is exactly one
// row per (session, user); leaving deactivates it and rejoining reactivates it.
type Participant struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     uuid.UUID       `json:"session_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Role          ParticipantRole `json:"role"`
	Permissions   Permissions     `json:"permissions"`
	IsActive      bool            `json:"is_active"`
	JoinedAt      time.Time       `json:"joined_at"`
	LeftAt        *time.Time      `json:"left_at,omitempty"`
	WatchSeconds  int64           `json:"watch_seconds"`
	Stream        StreamState     `json:"stream"`
	RemovalReason *string         `json:"removal_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewViewer builds the first row for a user joining a session.
func NewViewer(id, sessionID, userID uuid.UUID, settings SessionSettings, quality StreamQuality, now time.Time) *Participant {
	return &Participant{
		ID:          id,
		SessionID:   sessionID,
		UserID:      userID,
		Role:        ParticipantViewer,
		Permissions: ViewerPermissions(settings),
		IsActive:    true,
		JoinedAt:    now,
		Stream:      StreamState{Quality: quality},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewHost builds the admin row for a host joining their own session.
func NewHost(id, sessionID, hostID uuid.UUID, now time.Time) *Participant {
	return &Participant{
		ID:          id,
		SessionID:   sessionID,
		UserID:      hostID,
		Role:        ParticipantAdmin,
		Permissions: AdminPermissions(),
		IsActive:    true,
		JoinedAt:    now,
		Stream:      StreamState{HasVideo: true, HasAudio: true, Quality: QualityAuto},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Reactivate brings an inactive row back, keeping its role and permissions.
func (p *Participant) Reactivate(quality StreamQuality, now time.Time) {
	p.IsActive = true
	p.LeftAt = nil
	p.JoinedAt = now
	p.RemovalReason = nil
	p.Stream.Quality = quality
	p.UpdatedAt = now
}

// Deactivate marks the row inactive and folds the current stint into WatchSeconds.
func (p *Participant) Deactivate(now time.Time) {
	if !p.IsActive {
		return
	}
	p.IsActive = false
	p.LeftAt = &now
	if d := now.Sub(p.JoinedAt); d > 0 {
		p.WatchSeconds += int64(d / time.Second)
	}
	p.UpdatedAt = now
}

// PromoteToModerator sets the moderator role together with its permissions.
func (p *Participant) PromoteToModerator(req RequestedPermissions, now time.Time) {
	p.Role = ParticipantModerator
	p.Permissions = ModeratorPermissions(req)
	p.UpdatedAt = now
}
