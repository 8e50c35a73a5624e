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

const maxEmojiBytes = 32

// AddReaction appends a reaction from an active participant allowed to react and bumps
// the session's reaction counter by one.
func (s *Service) AddReaction(ctx context.Context, userID, sessionID uuid.UUID, emoji string) (*models.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiBytes {
		return nil, ErrInvalidEmoji
	}
	var out *models.Reaction
	err := s.store.InSession(ctx, sessionID, func(tx Tx) error {
		sess := tx.Session()
		if !sess.IsLive() {
			return ErrReactionsNotAllowed
		}
		if !sess.Settings.AllowReactions {
			return ErrReactionsDisabled
		}
		p, err := tx.GetParticipant(ctx, userID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ErrCannotReact
		}
		if err != nil {
			return err
		}
		if !p.IsActive || !p.Permissions.CanReact {
			return ErrCannotReact
		}
		id, err := newID()
		if err != nil {
			return err
		}
		now := s.now()
		r := &models.Reaction{ID: id, SessionID: sessionID, UserID: userID, Emoji: emoji, CreatedAt: now}
		if err := tx.AppendReaction(ctx, r); err != nil {
			return err
		}
		sess.Stats.TotalReactions++
		sess.UpdatedAt = now
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, s.fail("add reaction", err, zap.String("session_id", sessionID.String()))
	}
	s.publish(sessionID, EventReaction, out)
	return out, nil
}

// ListReactions lists reactions of a session oldest first.
func (s *Service) ListReactions(ctx context.Context, sessionID uuid.UUID, page pagination.Request) (pagination.Page[models.Reaction], error) {
	var empty pagination.Page[models.Reaction]
	after, limit, err := pageArgs(page)
	if err != nil {
		return empty, err
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return empty, s.fail("get session", err)
	}
	items, total, err := s.store.ListReactions(ctx, sessionID, after, limit+1)
	if err != nil {
		return empty, s.fail("list reactions", err, zap.String("session_id", sessionID.String()))
	}
	return pagination.Build(items, limit, total, func(r models.Reaction) uuid.UUID { return r.ID }), nil
}

// ReactionSummary counts a session's reactions per emoji, most used first.
func (s *Service) ReactionSummary(ctx context.Context, sessionID uuid.UUID) ([]models.ReactionCount, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, s.fail("get session", err)
	}
	counts, err := s.store.CountReactions(ctx, sessionID)
	if err != nil {
		return nil, s.fail("count reactions", err, zap.String("session_id", sessionID.String()))
	}
	if counts == nil {
		counts = []models.ReactionCount{}
	}
	return counts, nil
}
