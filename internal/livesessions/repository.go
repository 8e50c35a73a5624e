package livesessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-community/backend/internal/models"
)

const (
	uniqueViolation = "23505"

	constraintOneActiveSession = "live_sessions_one_active_per_community"
	constraintOnePendingReq    = "moderation_requests_one_pending"
)

const sessionColumns = `id, community_id, host_id, title, description, status,
	scheduled_start_time, actual_start_time, end_time, duration_minutes,
	max_participants, current_participants,
	allow_reactions, allow_chat, moderation_required, record_session,
	stream_key, playback_url, recording_url,
	total_views, peak_viewers, total_reactions, average_watch_time,
	created_at, updated_at`

const participantColumns = `id, session_id, user_id, role,
	can_stream, can_moderate, can_react, can_chat,
	is_active, joined_at, left_at, watch_seconds,
	has_video, has_audio, is_muted, is_video_off, quality, removal_reason,
	created_at, updated_at`

const requestColumns = `id, session_id, user_id, request_video, request_audio, message,
	status, reviewed_by, reviewed_at, review_message, created_at`

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a live sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func scanSession(row pgx.Row) (*models.LiveSession, error) {
	var s models.LiveSession
	var status string
	err := row.Scan(&s.ID, &s.CommunityID, &s.HostID, &s.Title, &s.Description, &status,
		&s.ScheduledStartTime, &s.ActualStartTime, &s.EndTime, &s.DurationMinutes,
		&s.MaxParticipants, &s.CurrentParticipants,
		&s.Settings.AllowReactions, &s.Settings.AllowChat, &s.Settings.ModerationRequired, &s.Settings.RecordSession,
		&s.StreamCredential.Key, &s.StreamCredential.PlaybackURL, &s.StreamCredential.RecordingURL,
		&s.Stats.TotalViews, &s.Stats.PeakViewers, &s.Stats.TotalReactions, &s.Stats.AverageWatchTime,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	return &s, nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	var role, quality string
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &role,
		&p.Permissions.CanStream, &p.Permissions.CanModerate, &p.Permissions.CanReact, &p.Permissions.CanChat,
		&p.IsActive, &p.JoinedAt, &p.LeftAt, &p.WatchSeconds,
		&p.Stream.HasVideo, &p.Stream.HasAudio, &p.Stream.IsMuted, &p.Stream.IsVideoOff, &quality, &p.RemovalReason,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Role = models.ParticipantRole(role)
	p.Stream.Quality = models.StreamQuality(quality)
	return &p, nil
}

func scanRequest(row pgx.Row) (*models.ModerationRequest, error) {
	var r models.ModerationRequest
	var status string
	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.RequestedPermissions.Video, &r.RequestedPermissions.Audio, &r.Message,
		&status, &r.ReviewedBy, &r.ReviewedAt, &r.ReviewMessage, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.ModerationStatus(status)
	return &r, nil
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var list []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// pageQuery runs a count and a keyset page query over the same WHERE clause.
// where uses placeholders $1..$len(args).
func pageQuery[T any](ctx context.Context, q querier, table, columns, where string, args []any, after *uuid.UUID, limit int, scan func(pgx.Row) (*T, error)) ([]T, int, error) {
	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}
	cond := where
	if after != nil {
		args = append(args, *after)
		cond += " AND id > $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	sql := "SELECT " + columns + " FROM " + table + " WHERE " + cond + " ORDER BY id LIMIT $" + strconv.Itoa(len(args))
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	list, err := collect(rows, scan)
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", table, err)
	}
	return list, total, nil
}

// CreateSession inserts a session. The partial unique index rejects a second active
// session in the same community.
func (r *Repository) CreateSession(ctx context.Context, s *models.LiveSession) error {
	const q = `INSERT INTO live_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err := r.pool.Exec(ctx, q, s.ID, s.CommunityID, s.HostID, s.Title, s.Description, string(s.Status),
		s.ScheduledStartTime, s.ActualStartTime, s.EndTime, s.DurationMinutes,
		s.MaxParticipants, s.CurrentParticipants,
		s.Settings.AllowReactions, s.Settings.AllowChat, s.Settings.ModerationRequired, s.Settings.RecordSession,
		s.StreamCredential.Key, s.StreamCredential.PlaybackURL, s.StreamCredential.RecordingURL,
		s.Stats.TotalViews, s.Stats.PeakViewers, s.Stats.TotalReactions, s.Stats.AverageWatchTime,
		s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err, constraintOneActiveSession) {
		return ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions matching f in id order.
func (r *Repository) ListSessions(ctx context.Context, f SessionFilter, after *uuid.UUID, limit int) ([]models.LiveSession, int, error) {
	where := "TRUE"
	var args []any
	if f.HostID != nil {
		args = append(args, *f.HostID)
		where += " AND host_id = $" + strconv.Itoa(len(args))
	}
	if f.CommunityID != nil {
		args = append(args, *f.CommunityID)
		where += " AND community_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where += " AND status = $" + strconv.Itoa(len(args))
	}
	return pageQuery(ctx, r.pool, "live_sessions", sessionColumns, where, args, after, limit, scanSession)
}

// SessionsForCommunity returns the community's sessions touching the window starting at since.
func (r *Repository) SessionsForCommunity(ctx context.Context, communityID uuid.UUID, since *time.Time) ([]models.LiveSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM live_sessions
		WHERE community_id = $1
		AND ($2::timestamptz IS NULL OR status = 'live' OR created_at >= $2 OR actual_start_time >= $2 OR end_time >= $2)
		ORDER BY id`
	rows, err := r.pool.Query(ctx, q, communityID, since)
	if err != nil {
		return nil, fmt.Errorf("query community sessions: %w", err)
	}
	return collect(rows, scanSession)
}

// OverdueSessions returns live sessions whose time box ended before now.
func (r *Repository) OverdueSessions(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const q = `SELECT id FROM live_sessions
		WHERE status = 'live' AND actual_start_time + make_interval(mins => duration_minutes) < $1
		ORDER BY id`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("query overdue sessions: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListParticipants returns participants of a session in id order.
func (r *Repository) ListParticipants(ctx context.Context, sessionID uuid.UUID, f ParticipantFilter, after *uuid.UUID, limit int) ([]models.Participant, int, error) {
	where := "session_id = $1"
	switch f {
	case FilterActive:
		where += " AND is_active"
	case FilterModerators:
		where += " AND role IN ('moderator', 'admin')"
	}
	return pageQuery(ctx, r.pool, "session_participants", participantColumns, where, []any{sessionID}, after, limit, scanParticipant)
}

// GetModerationRequest returns a moderation request by ID.
func (r *Repository) GetModerationRequest(ctx context.Context, id uuid.UUID) (*models.ModerationRequest, error) {
	return getRequest(ctx, r.pool, `SELECT `+requestColumns+` FROM moderation_requests WHERE id = $1`, id)
}

func getRequest(ctx context.Context, q querier, sql string, args ...any) (*models.ModerationRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get moderation request: %w", err)
	}
	return req, nil
}

// ListModerationRequests returns requests of a session, optionally by status.
func (r *Repository) ListModerationRequests(ctx context.Context, sessionID uuid.UUID, status *models.ModerationStatus, after *uuid.UUID, limit int) ([]models.ModerationRequest, int, error) {
	where := "session_id = $1"
	args := []any{sessionID}
	if status != nil {
		args = append(args, string(*status))
		where += " AND status = $2"
	}
	return pageQuery(ctx, r.pool, "moderation_requests", requestColumns, where, args, after, limit, scanRequest)
}

func scanReaction(row pgx.Row) (*models.Reaction, error) {
	var x models.Reaction
	if err := row.Scan(&x.ID, &x.SessionID, &x.UserID, &x.Emoji, &x.CreatedAt); err != nil {
		return nil, err
	}
	return &x, nil
}

// ListReactions returns reactions of a session oldest first.
func (r *Repository) ListReactions(ctx context.Context, sessionID uuid.UUID, after *uuid.UUID, limit int) ([]models.Reaction, int, error) {
	return pageQuery(ctx, r.pool, "session_reactions", "id, session_id, user_id, emoji, created_at", "session_id = $1", []any{sessionID}, after, limit, scanReaction)
}

// CountReactions groups a session's reactions by emoji.
func (r *Repository) CountReactions(ctx context.Context, sessionID uuid.UUID) ([]models.ReactionCount, error) {
	const q = `SELECT emoji, COUNT(*) FROM session_reactions WHERE session_id = $1
		GROUP BY emoji ORDER BY COUNT(*) DESC, emoji`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count reactions: %w", err)
	}
	defer rows.Close()
	var list []models.ReactionCount
	for rows.Next() {
		var c models.ReactionCount
		if err := rows.Scan(&c.Emoji, &c.Count); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// InSession locks the session row with SELECT ... FOR UPDATE and runs fn in the same
// transaction. The transaction commits only if fn succeeds.
func (r *Repository) InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1 FOR UPDATE`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	if err := fn(&pgTx{tx: tx, session: s}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// pgTx implements Tx inside one pgx transaction.
type pgTx struct {
	tx      pgx.Tx
	session *models.LiveSession
}

func (t *pgTx) Session() *models.LiveSession { return t.session }

func (t *pgTx) SaveSession(ctx context.Context, s *models.LiveSession) error {
	const q = `UPDATE live_sessions SET
		title = $2, description = $3, status = $4,
		scheduled_start_time = $5, actual_start_time = $6, end_time = $7, duration_minutes = $8,
		max_participants = $9, current_participants = $10,
		allow_reactions = $11, allow_chat = $12, moderation_required = $13, record_session = $14,
		playback_url = $15, recording_url = $16,
		total_views = $17, peak_viewers = $18, total_reactions = $19, average_watch_time = $20,
		updated_at = $21
		WHERE id = $1`
	_, err := t.tx.Exec(ctx, q, s.ID, s.Title, s.Description, string(s.Status),
		s.ScheduledStartTime, s.ActualStartTime, s.EndTime, s.DurationMinutes,
		s.MaxParticipants, s.CurrentParticipants,
		s.Settings.AllowReactions, s.Settings.AllowChat, s.Settings.ModerationRequired, s.Settings.RecordSession,
		s.StreamCredential.PlaybackURL, s.StreamCredential.RecordingURL,
		s.Stats.TotalViews, s.Stats.PeakViewers, s.Stats.TotalReactions, s.Stats.AverageWatchTime,
		s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (t *pgTx) GetParticipant(ctx context.Context, userID uuid.UUID) (*models.Participant, error) {
	p, err := scanParticipant(t.tx.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM session_participants WHERE session_id = $1 AND user_id = $2`,
		t.session.ID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// SaveParticipant upserts on (session_id, user_id); the row id never changes.
func (t *pgTx) SaveParticipant(ctx context.Context, p *models.Participant) error {
	const q = `INSERT INTO session_participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			role = EXCLUDED.role,
			can_stream = EXCLUDED.can_stream, can_moderate = EXCLUDED.can_moderate,
			can_react = EXCLUDED.can_react, can_chat = EXCLUDED.can_chat,
			is_active = EXCLUDED.is_active, joined_at = EXCLUDED.joined_at, left_at = EXCLUDED.left_at,
			watch_seconds = EXCLUDED.watch_seconds,
			has_video = EXCLUDED.has_video, has_audio = EXCLUDED.has_audio,
			is_muted = EXCLUDED.is_muted, is_video_off = EXCLUDED.is_video_off,
			quality = EXCLUDED.quality, removal_reason = EXCLUDED.removal_reason,
			updated_at = EXCLUDED.updated_at`
	_, err := t.tx.Exec(ctx, q, p.ID, t.session.ID, p.UserID, string(p.Role),
		p.Permissions.CanStream, p.Permissions.CanModerate, p.Permissions.CanReact, p.Permissions.CanChat,
		p.IsActive, p.JoinedAt, p.LeftAt, p.WatchSeconds,
		p.Stream.HasVideo, p.Stream.HasAudio, p.Stream.IsMuted, p.Stream.IsVideoOff, string(p.Stream.Quality), p.RemovalReason,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (t *pgTx) Participants(ctx context.Context) ([]models.Participant, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+participantColumns+` FROM session_participants WHERE session_id = $1 ORDER BY id`, t.session.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collect(rows, scanParticipant)
}

func (t *pgTx) CountSeated(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_participants WHERE session_id = $1 AND is_active AND role <> 'admin'`,
		t.session.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count seated participants: %w", err)
	}
	return n, nil
}

func (t *pgTx) GetModerationRequest(ctx context.Context, id uuid.UUID) (*models.ModerationRequest, error) {
	return getRequest(ctx, t.tx, `SELECT `+requestColumns+` FROM moderation_requests WHERE id = $1 AND session_id = $2`, id, t.session.ID)
}

func (t *pgTx) HasPendingRequest(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM moderation_requests WHERE session_id = $1 AND user_id = $2 AND status = 'pending')`,
		t.session.ID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists, nil
}

func (t *pgTx) SaveModerationRequest(ctx context.Context, r *models.ModerationRequest) error {
	const q = `INSERT INTO moderation_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, reviewed_by = EXCLUDED.reviewed_by,
			reviewed_at = EXCLUDED.reviewed_at, review_message = EXCLUDED.review_message`
	_, err := t.tx.Exec(ctx, q, r.ID, t.session.ID, r.UserID, r.RequestedPermissions.Video, r.RequestedPermissions.Audio, r.Message,
		string(r.Status), r.ReviewedBy, r.ReviewedAt, r.ReviewMessage, r.CreatedAt)
	if isUniqueViolation(err, constraintOnePendingReq) {
		return ErrPendingRequestExists
	}
	if err != nil {
		return fmt.Errorf("save moderation request: %w", err)
	}
	return nil
}

func (t *pgTx) AppendReaction(ctx context.Context, r *models.Reaction) error {
	const q = `INSERT INTO session_reactions (id, session_id, user_id, emoji, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := t.tx.Exec(ctx, q, r.ID, t.session.ID, r.UserID, r.Emoji, r.CreatedAt); err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}
