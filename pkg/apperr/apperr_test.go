package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errFull = Conflict("capacity_exceeded", "session is full")

func TestIsMatchesByKindAndCode(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", errFull.Wrap(errors.New("count=2")))

	assert.ErrorIs(t, wrapped, errFull)
	assert.NotErrorIs(t, wrapped, Conflict("session_not_live", "session is not live"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(Internal(errors.New("boom"))))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "session is full", errFull.Error())
	assert.Equal(t, "internal error: boom", Internal(errors.New("boom")).Error())

	e, ok := As(fmt.Errorf("x: %w", errFull))
	assert.True(t, ok)
	assert.Equal(t, "capacity_exceeded", e.Code)
	assert.Equal(t, "conflict", e.Kind.String())
}
