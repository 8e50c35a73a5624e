package pagination

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.Must(uuid.NewV7())
	after, err := Request{Cursor: EncodeCursor(id)}.After()
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, id, *after)
}

func TestAfterRejectsGarbage(t *testing.T) {
	_, err := Request{Cursor: "!!not-base64"}.After()
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = Request{Cursor: "c2hvcnQ"}.After()
	assert.ErrorIs(t, err, ErrInvalidCursor)

	after, err := Request{}.After()
	assert.NoError(t, err)
	assert.Nil(t, after)
}

func TestNewRequestClampsLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NewRequest("", "").Limit)
	assert.Equal(t, DefaultLimit, NewRequest("", "-3").Limit)
	assert.Equal(t, MaxLimit, NewRequest("", "1000").Limit)
	assert.Equal(t, 5, NewRequest("", "5").Limit)
}

func TestBuild(t *testing.T) {
	ids := []uuid.UUID{uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())}
	idOf := func(id uuid.UUID) uuid.UUID { return id }

	p := Build(ids, 2, 7, idOf)
	assert.Len(t, p.Items, 2)
	assert.True(t, p.HasMore)
	assert.Equal(t, EncodeCursor(ids[1]), p.NextCursor)
	assert.Equal(t, 7, p.TotalCount)

	last := Build(ids[:1], 2, 1, idOf)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)

	empty := Build[uuid.UUID](nil, 2, 0, idOf)
	assert.NotNil(t, empty.Items)
}
