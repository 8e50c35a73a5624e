package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a live session.
// Allowed edges: scheduled -> live -> ended, scheduled -> cancelled.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionEnded     SessionStatus = "ended"
	SessionCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionLive, SessionEnded, SessionCancelled:
		return true
	}
	return false
}

// Active reports whether s counts against the one-active-session-per-community rule.
func (s SessionStatus) Active() bool {
	return s == SessionScheduled || s == SessionLive
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionScheduled:
		return next == SessionLive || next == SessionCancelled
	case SessionLive:
		return next == SessionEnded
	}
	return false
}

// SessionSettings are host-controlled switches for a session.
type SessionSettings struct {
	AllowReactions     bool `json:"allow_reactions"`
	AllowChat          bool `json:"allow_chat"`
	ModerationRequired bool `json:"moderation_required"`
	RecordSession      bool `json:"record_session"`
}

// DefaultSessionSettings is used when a create request omits settings.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{AllowReactions: true, AllowChat: true}
}

// StreamCredential is the ingest key and the URLs derived from it.
// PlaybackURL is empty until the session starts.
type StreamCredential struct {
	Key          string `json:"key,omitempty"`
	PlaybackURL  string `json:"playback_url,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
}

// SessionStats accumulate over a session's lifetime.
type SessionStats struct {
	TotalViews       int   `json:"total_views"`
	PeakViewers      int   `json:"peak_viewers"`
	TotalReactions   int   `json:"total_reactions"`
	AverageWatchTime int64 `json:"average_watch_time"` // seconds
}

// LiveSession is a scheduled or live broadcast owned by a community host.
type LiveSession struct {
	ID                  uuid.UUID        `json:"id"`
	CommunityID         uuid.UUID        `json:"community_id"`
	HostID              uuid.UUID        `json:"host_id"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Status              SessionStatus    `json:"status"`
	ScheduledStartTime  *time.Time       `json:"scheduled_start_time,omitempty"`
	ActualStartTime     *time.Time       `json:"actual_start_time,omitempty"`
	EndTime             *time.Time       `json:"end_time,omitempty"`
	DurationMinutes     int              `json:"duration_minutes"`
	MaxParticipants     int              `json:"max_participants"`
	CurrentParticipants int              `json:"current_participants"`
	Settings            SessionSettings  `json:"settings"`
	StreamCredential    StreamCredential `json:"stream_credential"`
	Stats               SessionStats     `json:"stats"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// IsLive reports whether the session is currently broadcasting.
func (s *LiveSession) IsLive() bool { return s.Status == SessionLive }

// AtCapacity reports whether no further participant may join.
func (s *LiveSession) AtCapacity() bool { return s.CurrentParticipants >= s.MaxParticipants }

// Deadline returns when a live session's time box runs out.
func (s *LiveSession) Deadline() (time.Time, bool) {
	if s.ActualStartTime == nil || s.DurationMinutes <= 0 {
		return time.Time{}, false
	}
	return s.ActualStartTime.Add(time.Duration(s.DurationMinutes) * time.Minute), true
}

// ViewFor returns the session as seen by userID: only the host sees the ingest key.
func (s LiveSession) ViewFor(userID uuid.UUID) LiveSession {
	if userID != s.HostID {
		s.StreamCredential.Key = ""
	}
	return s
}
