// Package communities owns the community directory sessions are scheduled in.
package communities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
)

var (
	ErrNotFound    = apperr.NotFound("community_not_found", "community not found")
	ErrNoCommunity = apperr.Forbidden("no_community", "caller does not host a community")
	ErrSlugTaken   = apperr.Conflict("slug_taken", "a community with this slug already exists")
)

// Repository handles community persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a communities repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a community.
func (r *Repository) Create(ctx context.Context, c *models.Community) error {
	const q = `INSERT INTO communities (id, name, slug, host_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.Name, c.Slug, c.HostID).Scan(&c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("insert community: %w", err)
	}
	return nil
}

// GetByID returns a community by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	const q = `SELECT id, name, slug, host_id, created_at, updated_at FROM communities WHERE id = $1`
	var c models.Community
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Slug, &c.HostID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get community: %w", err)
	}
	return &c, nil
}

// CommunityForHost returns the community hostID owns. A host with several communities
// schedules into the oldest one.
func (r *Repository) CommunityForHost(ctx context.Context, hostID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT id FROM communities WHERE host_id = $1 ORDER BY created_at, id LIMIT 1`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, hostID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNoCommunity
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("community for host: %w", err)
	}
	return id, nil
}
