package livesessions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
	"github.com/aura-community/backend/pkg/pagination"
)

const maxReasonLen = 500

// Eligibility is the answer to CanJoin.
type Eligibility struct {
	CanJoin bool   `json:"can_join"`
	Reason  string `json:"reason,omitempty"`
}

// Join admits userID to a live session. The capacity check, the participant upsert and
// the counter update happen under the session lock, so concurrent joins cannot overshoot
// MaxParticipants. A user who left gets their old row back with its role. The host's admin
// row rejoins without taking a seat.
func (s *Service) Join(ctx context.Context, userID, sessionID uuid.UUID, quality models.StreamQuality) (*models.Participant, error) {
	if quality == "" {
		quality = models.QualityAuto
	}
	if !quality.Valid() {
		return nil, ErrInvalidQuality
	}

	var (
		out     *models.Participant
		current int
		joined  bool
	)
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		sess := tx.Session()
		if !sess.IsLive() {
			return ErrSessionNotLive
		}
		now := s.now()

		existing, err := tx.GetParticipant(ctx, userID)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}
		if existing != nil && existing.IsActive {
			// already in: refresh quality without touching counters
			existing.Stream.Quality = quality
			existing.UpdatedAt = now
			out = existing
			return tx.SaveParticipant(ctx, existing)
		}

		seated, err := tx.CountSeated(ctx)
		if err != nil {
			return err
		}
		if userID != sess.HostID && seated >= sess.MaxParticipants {
			return ErrCapacityExceeded
		}

		p := existing
		if p != nil {
			p.Reactivate(quality, now)
		} else {
			id, err := newID()
			if err != nil {
				return err
			}
			if userID == sess.HostID {
				p = models.NewHost(id, sess.ID, userID, now)
				p.Stream.Quality = quality
			} else {
				p = models.NewViewer(id, sess.ID, userID, sess.Settings, quality, now)
			}
		}
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}

		if seated, err = tx.CountSeated(ctx); err != nil {
			return err
		}
		sess.CurrentParticipants = seated
		if seated > sess.Stats.PeakViewers {
			sess.Stats.PeakViewers = seated
		}
		sess.Stats.TotalViews++
		sess.UpdatedAt = now
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		out, current, joined = p, seated, true
		return nil
	})
	if err != nil {
		return nil, s.fail("join session", err, zap.String("session_id", sessionID.String()), zap.String("user_id", userID.String()))
	}
	if joined {
		s.publish(sessionID, EventParticipantJoined, map[string]interface{}{
			"user_id": userID, "role": out.Role, "current_participants": current,
		})
	}
	return out, nil
}

// Leave deactivates userID in the session. Leaving when not active is a no-op.
func (s *Service) Leave(ctx context.Context, userID, sessionID uuid.UUID) error {
	left := false
	current := 0
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		p, err := tx.GetParticipant(ctx, userID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if !p.IsActive {
			return nil
		}
		now := s.now()
		p.Deactivate(now)
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}
		if current, err = s.recount(ctx, tx); err != nil {
			return err
		}
		left = true
		return nil
	})
	if err != nil {
		return s.fail("leave session", err, zap.String("session_id", sessionID.String()), zap.String("user_id", userID.String()))
	}
	if left {
		s.publish(sessionID, EventParticipantLeft, map[string]interface{}{
			"user_id": userID, "current_participants": current,
		})
	}
	return nil
}

// ListParticipants lists participants of a session in join order. Anyone may list the
// active participants; the moderators and all filters are for the host.
func (s *Service) ListParticipants(ctx context.Context, callerID, sessionID uuid.UUID, filter ParticipantFilter, page pagination.Request) (pagination.Page[models.Participant], error) {
	var empty pagination.Page[models.Participant]
	if filter == "" {
		filter = FilterActive
	}
	if !filter.Valid() {
		return empty, ErrInvalidFilter
	}
	after, limit, err := pageArgs(page)
	if err != nil {
		return empty, err
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return empty, s.fail("get session", err)
	}
	if filter != FilterActive && sess.HostID != callerID {
		return empty, ErrHostOnlyFilter
	}
	items, total, err := s.store.ListParticipants(ctx, sessionID, filter, after, limit+1)
	if err != nil {
		return empty, s.fail("list participants", err, zap.String("session_id", sessionID.String()))
	}
	return pagination.Build(items, limit, total, func(p models.Participant) uuid.UUID { return p.ID }), nil
}

// UpdateStreamSettings merges stream and connection flags of an active participant.
func (s *Service) UpdateStreamSettings(ctx context.Context, userID, sessionID uuid.UUID, patch models.StreamStatePatch) (*models.Participant, error) {
	if patch.Quality != nil && !patch.Quality.Valid() {
		return nil, ErrInvalidQuality
	}
	var out *models.Participant
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		p, err := tx.GetParticipant(ctx, userID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return ErrParticipantInactive
		}
		p.Stream = patch.Apply(p.Stream)
		p.UpdatedAt = s.now()
		out = p
		return tx.SaveParticipant(ctx, p)
	})
	if err != nil {
		return nil, s.fail("update stream settings", err, zap.String("session_id", sessionID.String()))
	}
	return out, nil
}

// RemoveParticipant lets the host deactivate a participant. Admins cannot be removed.
func (s *Service) RemoveParticipant(ctx context.Context, hostID, sessionID, targetUserID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return apperr.Invalid("invalid_reason", "reason is too long")
	}
	current := 0
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		if err := requireHost(tx.Session(), hostID); err != nil {
			return err
		}
		p, err := tx.GetParticipant(ctx, targetUserID)
		if err != nil {
			return err
		}
		if p.Role == models.ParticipantAdmin {
			return ErrCannotRemoveAdmin
		}
		if !p.IsActive {
			return ErrParticipantInactive
		}
		p.Deactivate(s.now())
		if reason != "" {
			p.RemovalReason = &reason
		}
		if err := tx.SaveParticipant(ctx, p); err != nil {
			return err
		}
		current, err = s.recount(ctx, tx)
		return err
	})
	if err != nil {
		return s.fail("remove participant", err, zap.String("session_id", sessionID.String()))
	}
	s.logger.Info("participant removed",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", targetUserID.String()),
		zap.String("reason", reason))
	s.publish(sessionID, EventParticipantRemoved, map[string]interface{}{
		"user_id": targetUserID, "reason": reason, "current_participants": current,
	})
	return nil
}

// CanJoin reports whether a join would currently be admitted. Only liveness and
// capacity are considered; the host is never held back by capacity.
func (s *Service) CanJoin(ctx context.Context, userID, sessionID uuid.UUID) (Eligibility, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Eligibility{}, s.fail("get session", err)
	}
	if !sess.IsLive() {
		return Eligibility{Reason: ErrSessionNotLive.Code}, nil
	}
	if sess.HostID != userID && sess.AtCapacity() {
		return Eligibility{Reason: ErrCapacityExceeded.Code}, nil
	}
	return Eligibility{CanJoin: true}, nil
}

// recount stores the seated participant count on the locked session.
func (s *Service) recount(ctx context.Context, tx Tx) (int, error) {
	seated, err := tx.CountSeated(ctx)
	if err != nil {
		return 0, err
	}
	sess := tx.Session()
	sess.CurrentParticipants = seated
	sess.UpdatedAt = s.now()
	return seated, tx.SaveSession(ctx, sess)
}
