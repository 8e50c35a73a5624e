package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/pkg/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func send(err error) (*httptest.ResponseRecorder, Body) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	var body Body
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(apperr.KindInvalid))
	assert.Equal(t, http.StatusNotFound, Status(apperr.KindNotFound))
	assert.Equal(t, http.StatusForbidden, Status(apperr.KindForbidden))
	assert.Equal(t, http.StatusConflict, Status(apperr.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, Status(apperr.KindInternal))
}

func TestErrorEnvelope(t *testing.T) {
	conflict := apperr.Conflict("capacity_exceeded", "session is at capacity")
	w, body := send(fmt.Errorf("join: %w", conflict))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "capacity_exceeded", body.Code)
	assert.Equal(t, "session is at capacity", body.Error)
}

func TestErrorHidesInternals(t *testing.T) {
	w, body := send(errors.New("pq: password authentication failed"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", body.Code)
	assert.Equal(t, "internal error", body.Error)

	w, body = send(apperr.Internal(errors.New("dial tcp: refused")))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", body.Error)
}

func TestBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	BadRequest(c, "invalid id")

	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", body.Code)
	assert.Equal(t, "invalid id", body.Error)
}
