// Package livesessions orchestrates live co-streaming sessions: lifecycle, participant
// capacity, moderation requests and reactions.
package livesessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
	"github.com/aura-community/backend/pkg/pagination"
	"github.com/aura-community/backend/pkg/queue"
)

// Event names published to session subscribers.
const (
	EventSessionStarted     = "session_started"
	EventSessionEnded       = "session_ended"
	EventSessionCancelled   = "session_cancelled"
	EventParticipantJoined  = "participant_joined"
	EventParticipantLeft    = "participant_left"
	EventParticipantRemoved = "participant_removed"
	EventModerationRequest  = "moderation_requested"
	EventModerationReviewed = "moderation_reviewed"
	EventReaction           = "reaction"
)

// CommunityResolver maps a host to the community they own.
type CommunityResolver interface {
	CommunityForHost(ctx context.Context, hostID uuid.UUID) (uuid.UUID, error)
}

// KeyIssuer issues stream keys and resolves the URLs derived from them.
type KeyIssuer interface {
	GenerateKey() (string, error)
	ResolveURL(key string) (string, error)
	IngestURL(key string) (string, error)
}

// EventPublisher fans session events out to subscribers. Delivery is best effort.
type EventPublisher interface {
	BroadcastToSessionAndPublish(sessionID uuid.UUID, event string, payload interface{})
}

// RecordingQueue receives recording finalisation jobs for ended sessions.
type RecordingQueue interface {
	EnqueueRecordingFinalize(ctx context.Context, payload queue.RecordingFinalizePayload) error
}

// Config holds session defaults and limits.
type Config struct {
	DefaultMaxParticipants int
	MaxParticipantsLimit   int
	DefaultDurationMinutes int
	MaxDurationMinutes     int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		DefaultMaxParticipants: 50,
		MaxParticipantsLimit:   1000,
		DefaultDurationMinutes: 60,
		MaxDurationMinutes:     720,
	}
}

// Service implements session orchestration on top of a Store.
type Service struct {
	store       Store
	communities CommunityResolver
	keys        KeyIssuer
	events      EventPublisher
	recordings  RecordingQueue
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a session service.
func NewService(store Store, communities CommunityResolver, keys KeyIssuer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.DefaultMaxParticipants <= 0 {
		cfg.DefaultMaxParticipants = def.DefaultMaxParticipants
	}
	if cfg.MaxParticipantsLimit <= 0 {
		cfg.MaxParticipantsLimit = def.MaxParticipantsLimit
	}
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = def.MaxDurationMinutes
	}
	return &Service{
		store:       store,
		communities: communities,
		keys:        keys,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets where session events are published (e.g. the websocket hub).
func (s *Service) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// SetRecordingQueue sets the queue recording jobs are pushed to when a recorded session ends.
func (s *Service) SetRecordingQueue(q RecordingQueue) {
	s.recordings = q
}

// fail passes typed errors through and turns anything else into an internal error.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Internal(err)
	}
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return apperr.Internal(err)
}

func (s *Service) publish(sessionID uuid.UUID, event string, payload interface{}) {
	if s.events == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("publish session event panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	s.events.BroadcastToSessionAndPublish(sessionID, event, payload)
}

func newID() (uuid.UUID, error) {
	return uuid.NewV7()
}

func requireHost(sess *models.LiveSession, hostID uuid.UUID) error {
	if sess.HostID != hostID {
		return ErrNotSessionHost
	}
	return nil
}

func pageArgs(req pagination.Request) (*uuid.UUID, int, error) {
	req = req.Normalize()
	after, err := req.After()
	if err != nil {
		return nil, 0, ErrInvalidCursor
	}
	return after, req.Limit, nil
}
