package livesessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/models"
)

// SessionFilter narrows ListSessions. Nil fields are not filtered on.
type SessionFilter struct {
	HostID      *uuid.UUID
	CommunityID *uuid.UUID
	Status      *models.SessionStatus
}

// ParticipantFilter selects which participants ListParticipants returns.
type ParticipantFilter string

const (
	FilterActive     ParticipantFilter = "active"
	FilterModerators ParticipantFilter = "moderators"
	FilterAll        ParticipantFilter = "all"
)

// Valid reports whether f is a known filter.
func (f ParticipantFilter) Valid() bool {
	return f == FilterActive || f == FilterModerators || f == FilterAll
}

// Matches reports whether p passes the filter.
func (f ParticipantFilter) Matches(p *models.Participant) bool {
	switch f {
	case FilterActive:
		return p.IsActive
	case FilterModerators:
		return p.Role == models.ParticipantModerator || p.Role == models.ParticipantAdmin
	}
	return true
}

// Store is the persistence boundary of live sessions.
//
// List methods return at most limit items with id greater than after (nil for the
// first page), ordered by id, plus the total count of items matching the filter.
// Every read returns a copy the caller may modify.
type Store interface {
	// CreateSession inserts s. It returns ErrActiveSessionExists when the community
	// already has a scheduled or live session; this is enforced by the store itself.
	CreateSession(ctx context.Context, s *models.LiveSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
	ListSessions(ctx context.Context, f SessionFilter, after *uuid.UUID, limit int) ([]models.LiveSession, int, error)
	// SessionsForCommunity returns sessions of a community created, started or ended
	// at or after since, plus every live one. A nil since returns all sessions.
	SessionsForCommunity(ctx context.Context, communityID uuid.UUID, since *time.Time) ([]models.LiveSession, error)
	// OverdueSessions returns ids of live sessions whose time box ended before now.
	OverdueSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	ListParticipants(ctx context.Context, sessionID uuid.UUID, f ParticipantFilter, after *uuid.UUID, limit int) ([]models.Participant, int, error)

	GetModerationRequest(ctx context.Context, id uuid.UUID) (*models.ModerationRequest, error)
	ListModerationRequests(ctx context.Context, sessionID uuid.UUID, status *models.ModerationStatus, after *uuid.UUID, limit int) ([]models.ModerationRequest, int, error)

	ListReactions(ctx context.Context, sessionID uuid.UUID, after *uuid.UUID, limit int) ([]models.Reaction, int, error)
	CountReactions(ctx context.Context, sessionID uuid.UUID) ([]models.ReactionCount, error)

	// InSession runs fn with the session locked against concurrent mutation.
	// Writes made through tx are applied only if fn returns nil.
	// It returns ErrSessionNotFound if the session does not exist.
	InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx Tx) error) error
}

// Tx is the set of writes available while a session is locked.
type Tx interface {
	// Session returns the locked session. Persist changes with SaveSession.
	Session() *models.LiveSession
	SaveSession(ctx context.Context, s *models.LiveSession) error

	// GetParticipant returns ErrParticipantNotFound when the user never joined.
	GetParticipant(ctx context.Context, userID uuid.UUID) (*models.Participant, error)
	// SaveParticipant inserts or updates the single row keyed by (session, user).
	SaveParticipant(ctx context.Context, p *models.Participant) error
	Participants(ctx context.Context) ([]models.Participant, error)
	// CountSeated counts active participants holding a seat. The admin row of the host
	// never takes a seat.
	CountSeated(ctx context.Context) (int, error)

	GetModerationRequest(ctx context.Context, id uuid.UUID) (*models.ModerationRequest, error)
	// HasPendingRequest reports whether userID has a pending request in the session.
	HasPendingRequest(ctx context.Context, userID uuid.UUID) (bool, error)
	// SaveModerationRequest inserts or updates r. A second pending request for the same
	// user returns ErrPendingRequestExists.
	SaveModerationRequest(ctx context.Context, r *models.ModerationRequest) error

	AppendReaction(ctx context.Context, r *models.Reaction) error
}
