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

const maxModerationMessageLen = 500

// ModerationRequestInput is a viewer's elevation request.
type ModerationRequestInput struct {
	Requested models.RequestedPermissions
	Message   string
}

func optionalText(s string) (*string, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxModerationMessageLen {
		return nil, apperr.Invalid("invalid_message", "message is too long")
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// RequestModeration files a pending request for userID to become a moderator.
func (s *Service) RequestModeration(ctx context.Context, userID, sessionID uuid.UUID, in ModerationRequestInput) (*models.ModerationRequest, error) {
	msg, err := optionalText(in.Message)
	if err != nil {
		return nil, err
	}
	var out *models.ModerationRequest
	err = s.store.InSession(ctx, sessionID, func(tx Tx) error {
		if !tx.Session().IsLive() {
			return ErrSessionNotLive
		}
		p, err := tx.GetParticipant(ctx, userID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return ErrParticipantInactive
		}
		if p.Role != models.ParticipantViewer {
			return ErrAlreadyModerator
		}
		pending, err := tx.HasPendingRequest(ctx, userID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingRequestExists
		}
		id, err := newID()
		if err != nil {
			return err
		}
		r := &models.ModerationRequest{
			ID:                   id,
			SessionID:            sessionID,
			UserID:               userID,
			RequestedPermissions: in.Requested,
			Message:              msg,
			Status:               models.ModerationPending,
			CreatedAt:            s.now(),
		}
		if err := tx.SaveModerationRequest(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, s.fail("request moderation", err, zap.String("session_id", sessionID.String()), zap.String("user_id", userID.String()))
	}
	s.publish(sessionID, EventModerationRequest, map[string]interface{}{
		"request_id": out.ID, "user_id": userID, "requested_permissions": out.RequestedPermissions,
	})
	return out, nil
}

// ListModerationRequests lists requests of a session for its host.
func (s *Service) ListModerationRequests(ctx context.Context, hostID, sessionID uuid.UUID, status *models.ModerationStatus, page pagination.Request) (pagination.Page[models.ModerationRequest], error) {
	var empty pagination.Page[models.ModerationRequest]
	if status != nil && !status.Valid() {
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
	if err := requireHost(sess, hostID); err != nil {
		return empty, err
	}
	items, total, err := s.store.ListModerationRequests(ctx, sessionID, status, after, limit+1)
	if err != nil {
		return empty, s.fail("list moderation requests", err, zap.String("session_id", sessionID.String()))
	}
	return pagination.Build(items, limit, total, func(r models.ModerationRequest) uuid.UUID { return r.ID }), nil
}

// ReviewModerationRequest resolves a pending request. Approval promotes the participant
// to moderator; rejection leaves the participant untouched. A request is reviewed once.
func (s *Service) ReviewModerationRequest(ctx context.Context, hostID, requestID uuid.UUID, decision models.ModerationStatus, reviewMessage string) (*models.ModerationRequest, error) {
	if decision != models.ModerationApproved && decision != models.ModerationRejected {
		return nil, ErrInvalidReview
	}
	msg, err := optionalText(reviewMessage)
	if err != nil {
		return nil, err
	}
	req, err := s.store.GetModerationRequest(ctx, requestID)
	if err != nil {
		return nil, s.fail("get moderation request", err, zap.String("request_id", requestID.String()))
	}

	var out *models.ModerationRequest
	err = s.store.InSession(ctx, req.SessionID, func(tx Tx) error {
		if err := requireHost(tx.Session(), hostID); err != nil {
			return err
		}
		r, err := tx.GetModerationRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != models.ModerationPending {
			return ErrRequestAlreadyReviewed
		}
		now := s.now()
		r.Status = decision
		r.ReviewedBy = &hostID
		r.ReviewedAt = &now
		r.ReviewMessage = msg
		if err := tx.SaveModerationRequest(ctx, r); err != nil {
			return err
		}
		if decision == models.ModerationApproved {
			p, err := tx.GetParticipant(ctx, r.UserID)
			if err != nil {
				return err
			}
			p.PromoteToModerator(r.RequestedPermissions, now)
			if err := tx.SaveParticipant(ctx, p); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, s.fail("review moderation request", err, zap.String("request_id", requestID.String()))
	}
	s.logger.Info("moderation request reviewed",
		zap.String("request_id", requestID.String()),
		zap.String("decision", string(decision)))
	s.publish(out.SessionID, EventModerationReviewed, map[string]interface{}{
		"request_id": out.ID, "user_id": out.UserID, "status": out.Status,
	})
	return out, nil
}
