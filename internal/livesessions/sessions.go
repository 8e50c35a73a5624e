package livesessions

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
	"github.com/aura-community/backend/pkg/pagination"
	"github.com/aura-community/backend/pkg/queue"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
)

// CreateSessionInput describes a new session.
type CreateSessionInput struct {
	Title              string
	Description        string
	ScheduledStartTime *time.Time
	MaxParticipants    int // 0 uses the configured default
	DurationMinutes    int // 0 uses the configured default
	Settings           *models.SessionSettings
}

// SessionPatch is a partial update of a scheduled session.
type SessionPatch struct {
	Title              *string
	Description        *string
	ScheduledStartTime *time.Time
	MaxParticipants    *int
	DurationMinutes    *int
	Settings           *models.SessionSettings
}

// ListSessionsInput selects sessions by host or community.
type ListSessionsInput struct {
	HostID      *uuid.UUID
	CommunityID *uuid.UUID
	Status      *models.SessionStatus
	Page        pagination.Request
}

func (s *Service) validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return apperr.Invalid("invalid_title", "title is required and must be at most 200 characters")
	}
	return nil
}

func (s *Service) validateCapacity(n int) error {
	if n < 1 || n > s.cfg.MaxParticipantsLimit {
		return apperr.Invalid("invalid_max_participants", "max_participants is out of range")
	}
	return nil
}

func (s *Service) validateDuration(n int) error {
	if n < 1 || n > s.cfg.MaxDurationMinutes {
		return apperr.Invalid("invalid_duration", "duration_minutes is out of range")
	}
	return nil
}

// CreateSession schedules a session in the host's community and issues its stream key.
func (s *Service) CreateSession(ctx context.Context, hostID uuid.UUID, in CreateSessionInput) (*models.LiveSession, error) {
	if err := s.validateTitle(in.Title); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, apperr.Invalid("invalid_description", "description is too long")
	}
	if in.MaxParticipants == 0 {
		in.MaxParticipants = s.cfg.DefaultMaxParticipants
	}
	if err := s.validateCapacity(in.MaxParticipants); err != nil {
		return nil, err
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = s.cfg.DefaultDurationMinutes
	}
	if err := s.validateDuration(in.DurationMinutes); err != nil {
		return nil, err
	}
	settings := models.DefaultSessionSettings()
	if in.Settings != nil {
		settings = *in.Settings
	}

	communityID, err := s.communities.CommunityForHost(ctx, hostID)
	if err != nil {
		return nil, s.fail("resolve community", err, zap.String("host_id", hostID.String()))
	}
	key, err := s.keys.GenerateKey()
	if err != nil {
		return nil, s.fail("generate stream key", err)
	}
	id, err := newID()
	if err != nil {
		return nil, s.fail("generate id", err)
	}

	now := s.now()
	sess := &models.LiveSession{
		ID:                 id,
		CommunityID:        communityID,
		HostID:             hostID,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		Status:             models.SessionScheduled,
		ScheduledStartTime: in.ScheduledStartTime,
		DurationMinutes:    in.DurationMinutes,
		MaxParticipants:    in.MaxParticipants,
		Settings:           settings,
		StreamCredential:   models.StreamCredential{Key: key},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, s.fail("create session", err, zap.String("community_id", communityID.String()))
	}
	s.logger.Info("session created",
		zap.String("session_id", sess.ID.String()),
		zap.String("community_id", communityID.String()),
		zap.String("host_id", hostID.String()))
	return sess, nil
}

// GetSession returns a session as seen by callerID.
func (s *Service) GetSession(ctx context.Context, callerID, id uuid.UUID) (*models.LiveSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, s.fail("get session", err, zap.String("session_id", id.String()))
	}
	view := sess.ViewFor(callerID)
	return &view, nil
}

// ListSessions lists sessions of a host or community in creation order.
func (s *Service) ListSessions(ctx context.Context, callerID uuid.UUID, in ListSessionsInput) (pagination.Page[models.LiveSession], error) {
	var empty pagination.Page[models.LiveSession]
	if in.Status != nil && !in.Status.Valid() {
		return empty, ErrInvalidFilter
	}
	after, limit, err := pageArgs(in.Page)
	if err != nil {
		return empty, err
	}
	f := SessionFilter{HostID: in.HostID, CommunityID: in.CommunityID, Status: in.Status}
	items, total, err := s.store.ListSessions(ctx, f, after, limit+1)
	if err != nil {
		return empty, s.fail("list sessions", err)
	}
	for i := range items {
		items[i] = items[i].ViewFor(callerID)
	}
	return pagination.Build(items, limit, total, func(x models.LiveSession) uuid.UUID { return x.ID }), nil
}

// UpdateSession applies patch to a scheduled session owned by hostID.
func (s *Service) UpdateSession(ctx context.Context, hostID, id uuid.UUID, patch SessionPatch) (*models.LiveSession, error) {
	if patch.Title != nil {
		if err := s.validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil && utf8.RuneCountInString(*patch.Description) > maxDescriptionLen {
		return nil, apperr.Invalid("invalid_description", "description is too long")
	}
	if patch.MaxParticipants != nil {
		if err := s.validateCapacity(*patch.MaxParticipants); err != nil {
			return nil, err
		}
	}
	if patch.DurationMinutes != nil {
		if err := s.validateDuration(*patch.DurationMinutes); err != nil {
			return nil, err
		}
	}

	var out *models.LiveSession
	err := s.store.InSession(ctx, id, func(tx Tx) error {
		sess := tx.Session()
		if err := requireHost(sess, hostID); err != nil {
			return err
		}
		if sess.Status != models.SessionScheduled {
			return ErrSessionNotScheduled
		}
		if patch.Title != nil {
			sess.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			sess.Description = *patch.Description
		}
		if patch.ScheduledStartTime != nil {
			sess.ScheduledStartTime = patch.ScheduledStartTime
		}
		if patch.MaxParticipants != nil {
			sess.MaxParticipants = *patch.MaxParticipants
		}
		if patch.DurationMinutes != nil {
			sess.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Settings != nil {
			sess.Settings = *patch.Settings
		}
		sess.UpdatedAt = s.now()
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, s.fail("update session", err, zap.String("session_id", id.String()))
	}
	return out, nil
}

// DeleteSession cancels a scheduled session. Rows are never removed: live sessions must
// be ended first, and ended or cancelled sessions stay as history.
func (s *Service) DeleteSession(ctx context.Context, hostID, id uuid.UUID) error {
	err := s.store.InSession(ctx, id, func(tx Tx) error {
		sess := tx.Session()
		if err := requireHost(sess, hostID); err != nil {
			return err
		}
		switch sess.Status {
		case models.SessionLive:
			return ErrSessionIsLive
		case models.SessionScheduled:
			sess.Status = models.SessionCancelled
			sess.UpdatedAt = s.now()
			return tx.SaveSession(ctx, sess)
		default:
			return ErrSessionTerminal
		}
	})
	if err != nil {
		return s.fail("delete session", err, zap.String("session_id", id.String()))
	}
	s.logger.Info("session cancelled", zap.String("session_id", id.String()))
	s.publish(id, EventSessionCancelled, map[string]interface{}{"session_id": id})
	return nil
}

// StartSession puts a scheduled session live, resolves its playback URL and seats the
// host as admin. The admin row does not count against MaxParticipants.
func (s *Service) StartSession(ctx context.Context, hostID, id uuid.UUID) (*models.LiveSession, error) {
	var out *models.LiveSession
	err := s.store.InSession(ctx, id, func(tx Tx) error {
		sess := tx.Session()
		if err := requireHost(sess, hostID); err != nil {
			return err
		}
		if !sess.Status.CanTransitionTo(models.SessionLive) {
			return ErrSessionNotScheduled
		}
		playbackURL, err := s.keys.ResolveURL(sess.StreamCredential.Key)
		if err != nil {
			return err
		}
		now := s.now()
		sess.Status = models.SessionLive
		sess.ActualStartTime = &now
		sess.StreamCredential.PlaybackURL = playbackURL
		sess.CurrentParticipants = 0
		sess.UpdatedAt = now
		if err := s.seatHost(ctx, tx, now); err != nil {
			return err
		}
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, s.fail("start session", err, zap.String("session_id", id.String()))
	}
	s.logger.Info("session started", zap.String("session_id", id.String()))
	s.publish(id, EventSessionStarted, map[string]interface{}{
		"session_id":   id,
		"playback_url": out.StreamCredential.PlaybackURL,
	})
	return out, nil
}

// seatHost creates the host's admin row, or reactivates it with admin permissions.
func (s *Service) seatHost(ctx context.Context, tx Tx, now time.Time) error {
	sess := tx.Session()
	host, err := tx.GetParticipant(ctx, sess.HostID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}
	if host != nil {
		host.Reactivate(models.QualityAuto, now)
		host.Role = models.ParticipantAdmin
		host.Permissions = models.AdminPermissions()
		return tx.SaveParticipant(ctx, host)
	}
	id, err := newID()
	if err != nil {
		return err
	}
	return tx.SaveParticipant(ctx, models.NewHost(id, sess.ID, sess.HostID, now))
}

// EndSession ends a live session and deactivates every participant.
func (s *Service) EndSession(ctx context.Context, hostID, id uuid.UUID) (*models.LiveSession, error) {
	var out *models.LiveSession
	err := s.store.InSession(ctx, id, func(tx Tx) error {
		sess := tx.Session()
		if err := requireHost(sess, hostID); err != nil {
			return err
		}
		ended, err := s.endLocked(ctx, tx)
		out = ended
		return err
	})
	if err != nil {
		return nil, s.fail("end session", err, zap.String("session_id", id.String()))
	}
	s.afterEnd(ctx, out, "host")
	return out, nil
}

// ExpireOverdue ends live sessions whose time box has run out. It returns how many ended.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.OverdueSessions(ctx, now)
	if err != nil {
		return 0, s.fail("list overdue sessions", err)
	}
	n := 0
	for _, id := range ids {
		var out *models.LiveSession
		err := s.store.InSession(ctx, id, func(tx Tx) error {
			deadline, ok := tx.Session().Deadline()
			if !tx.Session().IsLive() || !ok || deadline.After(now) {
				return nil
			}
			ended, err := s.endLocked(ctx, tx)
			out = ended
			return err
		})
		if err != nil {
			s.logger.Warn("expire session failed", zap.String("session_id", id.String()), zap.Error(err))
			continue
		}
		if out != nil {
			n++
			s.afterEnd(ctx, out, "time_limit")
		}
	}
	return n, nil
}

// endLocked moves the locked session to ended: every active participant is deactivated,
// the counter reset and the average watch time computed over non-admin participants.
func (s *Service) endLocked(ctx context.Context, tx Tx) (*models.LiveSession, error) {
	sess := tx.Session()
	if !sess.Status.CanTransitionTo(models.SessionEnded) {
		return nil, ErrSessionNotLive
	}
	now := s.now()
	parts, err := tx.Participants(ctx)
	if err != nil {
		return nil, err
	}
	var watched int64
	var viewers int64
	for i := range parts {
		p := &parts[i]
		if p.IsActive {
			p.Deactivate(now)
			if err := tx.SaveParticipant(ctx, p); err != nil {
				return nil, err
			}
		}
		if p.Role != models.ParticipantAdmin {
			watched += p.WatchSeconds
			viewers++
		}
	}
	if viewers > 0 {
		sess.Stats.AverageWatchTime = watched / viewers
	}
	sess.Status = models.SessionEnded
	sess.EndTime = &now
	sess.CurrentParticipants = 0
	sess.UpdatedAt = now
	if err := tx.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// afterEnd runs the side effects of an ended session. Failures are logged only.
func (s *Service) afterEnd(ctx context.Context, sess *models.LiveSession, reason string) {
	s.logger.Info("session ended", zap.String("session_id", sess.ID.String()), zap.String("reason", reason))
	s.publish(sess.ID, EventSessionEnded, map[string]interface{}{
		"session_id": sess.ID,
		"reason":     reason,
		"stats":      sess.Stats,
	})
	if !sess.Settings.RecordSession || s.recordings == nil {
		return
	}
	payload := queue.RecordingFinalizePayload{SessionID: sess.ID, StreamKey: sess.StreamCredential.Key}
	if err := s.recordings.EnqueueRecordingFinalize(ctx, payload); err != nil {
		s.logger.Warn("enqueue recording finalize failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
	}
}

// IngestCredentials is what the host's encoder needs to push the stream.
type IngestCredentials struct {
	StreamKey string `json:"stream_key"`
	IngestURL string `json:"ingest_url"`
}

// IngestCredentials returns the ingest endpoint of a session to its host.
func (s *Service) IngestCredentials(ctx context.Context, hostID, id uuid.UUID) (*IngestCredentials, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, s.fail("get session", err, zap.String("session_id", id.String()))
	}
	if err := requireHost(sess, hostID); err != nil {
		return nil, err
	}
	if !sess.Status.Active() {
		return nil, ErrSessionNotLive
	}
	u, err := s.keys.IngestURL(sess.StreamCredential.Key)
	if err != nil {
		return nil, s.fail("resolve ingest url", err)
	}
	return &IngestCredentials{StreamKey: sess.StreamCredential.Key, IngestURL: u}, nil
}

// AttachRecording stores the recording URL of an ended session. Re-attaching replaces it.
func (s *Service) AttachRecording(ctx context.Context, sessionID uuid.UUID, recordingURL string) error {
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		sess := tx.Session()
		if sess.Status != models.SessionEnded {
			return ErrSessionNotEnded
		}
		sess.StreamCredential.RecordingURL = recordingURL
		sess.UpdatedAt = s.now()
		return tx.SaveSession(ctx, sess)
	})
	if err != nil {
		return s.fail("attach recording", err, zap.String("session_id", sessionID.String()))
	}
	s.logger.Info("recording attached", zap.String("session_id", sessionID.String()))
	return nil
}
