// Package analytics derives summary statistics over a host's community sessions.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
)

// Period selects the summary window.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ErrInvalidPeriod is returned for an unknown period.
var ErrInvalidPeriod = apperr.Invalid("invalid_period", "period must be one of today, week, month, all")

// Since returns the start of the window ending at now; nil means unbounded.
func (p Period) Since(now time.Time) (*time.Time, error) {
	now = now.UTC()
	var t time.Time
	switch p {
	case PeriodToday:
		t = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodWeek:
		t = now.AddDate(0, 0, -7)
	case PeriodMonth:
		t = now.AddDate(0, 0, -30)
	case PeriodAll:
		return nil, nil
	default:
		return nil, ErrInvalidPeriod
	}
	return &t, nil
}

// SessionSource reads sessions.
type SessionSource interface {
	SessionsForCommunity(ctx context.Context, communityID uuid.UUID, since *time.Time) ([]models.LiveSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// CommunityResolver maps a host to the community they own.
type CommunityResolver interface {
	CommunityForHost(ctx context.Context, hostID uuid.UUID) (uuid.UUID, error)
}

// Summary aggregates a community's sessions over a period.
type Summary struct {
	CommunityID      uuid.UUID                    `json:"community_id"`
	Period           Period                       `json:"period"`
	Since            *time.Time                   `json:"since,omitempty"`
	TotalSessions    int                          `json:"total_sessions"`
	ByStatus         map[models.SessionStatus]int `json:"by_status"`
	TotalViews       int                          `json:"total_views"`
	TotalReactions   int                          `json:"total_reactions"`
	MaxPeakViewers   int                          `json:"max_peak_viewers"`
	AverageWatchTime int64                        `json:"average_watch_time"`
}

// Service computes analytics.
type Service struct {
	sessions    SessionSource
	communities CommunityResolver
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates an analytics service.
func NewService(sessions SessionSource, communities CommunityResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:    sessions,
		communities: communities,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) fail(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if !errors.Is(err, context.Canceled) {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	return apperr.Internal(err)
}

// Summary aggregates the sessions of hostID's community touching the period window.
// MaxPeakViewers is the highest single-session peak; AverageWatchTime is the mean over
// ended sessions.
func (s *Service) Summary(ctx context.Context, hostID uuid.UUID, period Period) (*Summary, error) {
	if period == "" {
		period = PeriodAll
	}
	since, err := period.Since(s.now())
	if err != nil {
		return nil, err
	}
	communityID, err := s.communities.CommunityForHost(ctx, hostID)
	if err != nil {
		return nil, s.fail("resolve community", err)
	}
	list, err := s.sessions.SessionsForCommunity(ctx, communityID, since)
	if err != nil {
		return nil, s.fail("load sessions", err)
	}

	out := &Summary{
		CommunityID: communityID,
		Period:      period,
		Since:       since,
		ByStatus: map[models.SessionStatus]int{
			models.SessionScheduled: 0,
			models.SessionLive:      0,
			models.SessionEnded:     0,
			models.SessionCancelled: 0,
		},
	}
	var watch int64
	var ended int64
	for i := range list {
		sess := &list[i]
		out.TotalSessions++
		out.ByStatus[sess.Status]++
		out.TotalViews += sess.Stats.TotalViews
		out.TotalReactions += sess.Stats.TotalReactions
		if sess.Stats.PeakViewers > out.MaxPeakViewers {
			out.MaxPeakViewers = sess.Stats.PeakViewers
		}
		if sess.Status == models.SessionEnded {
			watch += sess.Stats.AverageWatchTime
			ended++
		}
	}
	if ended > 0 {
		out.AverageWatchTime = watch / ended
	}
	return out, nil
}

// SessionSnapshot returns a session's current stats block.
func (s *Service) SessionSnapshot(ctx context.Context, sessionID uuid.UUID) (models.SessionStats, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.SessionStats{}, s.fail("get session", err)
	}
	return sess.Stats, nil
}
