package livesessions

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/models"
)

// MemoryStore is an in-process Store. InSession holds a single mutex for the whole
// callback and stages writes, so it gives the same guarantees as the Postgres store.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*models.LiveSession
	participants map[uuid.UUID]map[uuid.UUID]*models.Participant // session -> user
	requests     map[uuid.UUID]*models.ModerationRequest
	reactions    map[uuid.UUID][]models.Reaction
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[uuid.UUID]*models.LiveSession),
		participants: make(map[uuid.UUID]map[uuid.UUID]*models.Participant),
		requests:     make(map[uuid.UUID]*models.ModerationRequest),
		reactions:    make(map[uuid.UUID][]models.Reaction),
	}
}

func lessID(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// pageOf sorts items by id and returns up to limit after the cursor, plus the total.
func pageOf[T any](items []T, idOf func(T) uuid.UUID, after *uuid.UUID, limit int) ([]T, int) {
	sort.Slice(items, func(i, j int) bool { return lessID(idOf(items[i]), idOf(items[j])) })
	total := len(items)
	start := 0
	if after != nil {
		start = sort.Search(len(items), func(i int) bool { return lessID(*after, idOf(items[i])) })
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[start:end]...), total
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.LiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status.Active() {
		for _, other := range m.sessions {
			if other.CommunityID == s.CommunityID && other.Status.Active() {
				return ErrActiveSessionExists
			}
		}
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListSessions(_ context.Context, f SessionFilter, after *uuid.UUID, limit int) ([]models.LiveSession, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.LiveSession
	for _, s := range m.sessions {
		if f.HostID != nil && s.HostID != *f.HostID {
			continue
		}
		if f.CommunityID != nil && s.CommunityID != *f.CommunityID {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		items = append(items, *s)
	}
	page, total := pageOf(items, func(s models.LiveSession) uuid.UUID { return s.ID }, after, limit)
	return page, total, nil
}

func inWindow(s *models.LiveSession, since time.Time) bool {
	if s.IsLive() || !s.CreatedAt.Before(since) {
		return true
	}
	if s.ActualStartTime != nil && !s.ActualStartTime.Before(since) {
		return true
	}
	return s.EndTime != nil && !s.EndTime.Before(since)
}

func (m *MemoryStore) SessionsForCommunity(_ context.Context, communityID uuid.UUID, since *time.Time) ([]models.LiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LiveSession
	for _, s := range m.sessions {
		if s.CommunityID != communityID {
			continue
		}
		if since != nil && !inWindow(s, *since) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

func (m *MemoryStore) OverdueSessions(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range m.sessions {
		if d, ok := s.Deadline(); ok && s.IsLive() && d.Before(now) {
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids, nil
}

func (m *MemoryStore) ListParticipants(_ context.Context, sessionID uuid.UUID, f ParticipantFilter, after *uuid.UUID, limit int) ([]models.Participant, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.Participant
	for _, p := range m.participants[sessionID] {
		if f.Matches(p) {
			items = append(items, *p)
		}
	}
	page, total := pageOf(items, func(p models.Participant) uuid.UUID { return p.ID }, after, limit)
	return page, total, nil
}

func (m *MemoryStore) GetModerationRequest(_ context.Context, id uuid.UUID) (*models.ModerationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListModerationRequests(_ context.Context, sessionID uuid.UUID, status *models.ModerationStatus, after *uuid.UUID, limit int) ([]models.ModerationRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.ModerationRequest
	for _, r := range m.requests {
		if r.SessionID != sessionID || (status != nil && r.Status != *status) {
			continue
		}
		items = append(items, *r)
	}
	page, total := pageOf(items, func(r models.ModerationRequest) uuid.UUID { return r.ID }, after, limit)
	return page, total, nil
}

func (m *MemoryStore) ListReactions(_ context.Context, sessionID uuid.UUID, after *uuid.UUID, limit int) ([]models.Reaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]models.Reaction(nil), m.reactions[sessionID]...)
	page, total := pageOf(items, func(r models.Reaction) uuid.UUID { return r.ID }, after, limit)
	return page, total, nil
}

func (m *MemoryStore) CountReactions(_ context.Context, sessionID uuid.UUID) ([]models.ReactionCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range m.reactions[sessionID] {
		counts[r.Emoji]++
	}
	out := make([]models.ReactionCount, 0, len(counts))
	for emoji, n := range counts {
		out = append(out, models.ReactionCount{Emoji: emoji, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out, nil
}

func (m *MemoryStore) InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *s
	tx := &memTx{
		store:        m,
		session:      &cp,
		participants: make(map[uuid.UUID]*models.Participant),
		requests:     make(map[uuid.UUID]*models.ModerationRequest),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memTx stages writes of one InSession call; the store mutex is held throughout.
type memTx struct {
	store        *MemoryStore
	session      *models.LiveSession
	saved        *models.LiveSession
	participants map[uuid.UUID]*models.Participant // user -> staged row
	requests     map[uuid.UUID]*models.ModerationRequest
	reactions    []models.Reaction
}

func (t *memTx) Session() *models.LiveSession { return t.session }

func (t *memTx) SaveSession(_ context.Context, s *models.LiveSession) error {
	cp := *s
	t.saved = &cp
	return nil
}

// participantsView merges staged rows over stored ones.
func (t *memTx) participantsView() map[uuid.UUID]*models.Participant {
	view := make(map[uuid.UUID]*models.Participant)
	for uid, p := range t.store.participants[t.session.ID] {
		view[uid] = p
	}
	for uid, p := range t.participants {
		view[uid] = p
	}
	return view
}

func (t *memTx) GetParticipant(_ context.Context, userID uuid.UUID) (*models.Participant, error) {
	p, ok := t.participantsView()[userID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) SaveParticipant(_ context.Context, p *models.Participant) error {
	cp := *p
	cp.SessionID = t.session.ID
	t.participants[p.UserID] = &cp
	return nil
}

func (t *memTx) Participants(_ context.Context) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range t.participantsView() {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

func (t *memTx) CountSeated(_ context.Context) (int, error) {
	n := 0
	for _, p := range t.participantsView() {
		if p.IsActive && p.Role != models.ParticipantAdmin {
			n++
		}
	}
	return n, nil
}

func (t *memTx) requestView(id uuid.UUID) (*models.ModerationRequest, bool) {
	if r, ok := t.requests[id]; ok {
		return r, true
	}
	r, ok := t.store.requests[id]
	if !ok || r.SessionID != t.session.ID {
		return nil, false
	}
	return r, true
}

func (t *memTx) GetModerationRequest(_ context.Context, id uuid.UUID) (*models.ModerationRequest, error) {
	r, ok := t.requestView(id)
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) pendingFor(userID uuid.UUID, except uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool)
	for id, r := range t.requests {
		seen[id] = true
		if id != except && r.UserID == userID && r.Status == models.ModerationPending {
			return true
		}
	}
	for id, r := range t.store.requests {
		if seen[id] || r.SessionID != t.session.ID {
			continue
		}
		if id != except && r.UserID == userID && r.Status == models.ModerationPending {
			return true
		}
	}
	return false
}

func (t *memTx) HasPendingRequest(_ context.Context, userID uuid.UUID) (bool, error) {
	return t.pendingFor(userID, uuid.Nil), nil
}

func (t *memTx) SaveModerationRequest(_ context.Context, r *models.ModerationRequest) error {
	if r.Status == models.ModerationPending && t.pendingFor(r.UserID, r.ID) {
		return ErrPendingRequestExists
	}
	cp := *r
	cp.SessionID = t.session.ID
	t.requests[r.ID] = &cp
	return nil
}

func (t *memTx) AppendReaction(_ context.Context, r *models.Reaction) error {
	cp := *r
	cp.SessionID = t.session.ID
	t.reactions = append(t.reactions, cp)
	return nil
}

func (t *memTx) commit() {
	m := t.store
	id := t.session.ID
	if t.saved != nil {
		m.sessions[id] = t.saved
	}
	if len(t.participants) > 0 && m.participants[id] == nil {
		m.participants[id] = make(map[uuid.UUID]*models.Participant)
	}
	for uid, p := range t.participants {
		m.participants[id][uid] = p
	}
	for rid, r := range t.requests {
		m.requests[rid] = r
	}
	m.reactions[id] = append(m.reactions[id], t.reactions...)
}
