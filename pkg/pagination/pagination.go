// Package pagination implements cursor pagination over id-ordered lists.
// Ids are UUIDv7, so ordering by id is ordering by creation.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors this package did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// Request is a page request. Cursor is empty for the first page.
type Request struct {
	Cursor string
	Limit  int
}

// Page is a page of items.
type Page[T any] struct {
	Items      []T    `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	TotalCount int    `json:"total_count"`
}

// NewRequest parses query string values; bad limits fall back to defaults.
func NewRequest(cursor, limit string) Request {
	n, err := strconv.Atoi(limit)
	if err != nil {
		n = 0
	}
	return Request{Cursor: cursor, Limit: n}.Normalize()
}

// Normalize clamps Limit into [1, MaxLimit].
func (r Request) Normalize() Request {
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	return r
}

// After decodes the cursor into the id to continue after. Nil means first page.
func (r Request) After() (*uuid.UUID, error) {
	if r.Cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(r.Cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &id, nil
}

// EncodeCursor returns the opaque cursor for id.
func EncodeCursor(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Build turns up to limit+1 fetched items into a page.
func Build[T any](items []T, limit, total int, idOf func(T) uuid.UUID) Page[T] {
	p := Page[T]{Items: items, TotalCount: total}
	if len(items) > limit {
		p.Items = items[:limit]
		p.HasMore = true
	}
	if p.HasMore && len(p.Items) > 0 {
		p.NextCursor = EncodeCursor(idOf(p.Items[len(p.Items)-1]))
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}
