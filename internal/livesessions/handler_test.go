package livesessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// newRouter mounts the handler behind a stub auth middleware that reads the caller
// from the X-User header.
func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-User"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ContextUserID, id)
		c.Next()
	})
	NewHandler(f.svc).RegisterRoutes(api)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, user uuid.UUID, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestHandlerSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)

	code, env := do(t, r, http.MethodPost, "/api/sessions", f.hostID, map[string]interface{}{
		"title":                "Live Q&A",
		"max_participants":     2,
		"scheduled_start_time": "2026-03-01T19:00:00+01:00",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created struct {
		ID                 uuid.UUID `json:"id"`
		Status             string    `json:"status"`
		ScheduledStartTime string    `json:"scheduled_start_time"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "scheduled", created.Status)
	assert.Equal(t, "2026-03-01T18:00:00Z", created.ScheduledStartTime)
	base := "/api/sessions/" + created.ID.String()

	code, env = do(t, r, http.MethodPost, base+"/start", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_session_host", env.Code)

	code, _ = do(t, r, http.MethodPost, base+"/start", f.hostID, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPatch, base, f.hostID, map[string]string{"title": "late rename"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "session_not_scheduled", env.Code)

	code, _ = do(t, r, http.MethodPost, base+"/join", uuid.New(), nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, base+"/join", uuid.New(), map[string]string{"quality": "high"})
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, r, http.MethodPost, base+"/join", uuid.New(), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "capacity_exceeded", env.Code)

	code, env = do(t, r, http.MethodDelete, base, f.hostID, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "session_is_live", env.Code)

	code, _ = do(t, r, http.MethodPost, base+"/end", f.hostID, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, r, http.MethodPost, base+"/join", uuid.New(), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "session_not_live", env.Code)

	code, env = do(t, r, http.MethodDelete, base, f.hostID, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "session_terminal", env.Code)
	code, env = do(t, r, http.MethodGet, base, f.hostID, nil)
	require.Equal(t, http.StatusOK, code)
	var ended struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ended))
	assert.Equal(t, "ended", ended.Status)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	sess := f.live(t, CreateSessionInput{})
	base := "/api/sessions/" + sess.ID.String()

	code, env := do(t, r, http.MethodGet, "/api/sessions/not-a-uuid", f.hostID, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Code)

	code, _ = do(t, r, http.MethodPost, "/api/sessions", f.hostID, map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/sessions", f.hostID, map[string]string{"title": "x", "scheduled_start_time": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodPost, base+"/join", uuid.New(), map[string]string{"quality": "4k"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_quality", env.Code)

	code, env = do(t, r, http.MethodGet, base+"/participants?filter=banned", f.hostID, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_filter", env.Code)

	code, env = do(t, r, http.MethodGet, base+"/participants?cursor=%21%21", f.hostID, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_cursor", env.Code)
}

func TestHandlerModerationFlow(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	sess := f.live(t, CreateSessionInput{})
	base := "/api/sessions/" + sess.ID.String()
	viewer := uuid.New()

	code, _ := do(t, r, http.MethodPost, base+"/join", viewer, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := do(t, r, http.MethodPost, base+"/moderation-requests", viewer, map[string]interface{}{"audio": true, "message": "let me help"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var req struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &req))

	code, env = do(t, r, http.MethodPost, base+"/moderation-requests", viewer, map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "pending_request_exists", env.Code)

	code, _ = do(t, r, http.MethodGet, base+"/moderation-requests?status=pending", viewer, nil)
	assert.Equal(t, http.StatusForbidden, code)

	review := "/api/moderation-requests/" + req.ID.String() + "/review"
	code, _ = do(t, r, http.MethodPost, review, f.hostID, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, r, http.MethodPost, review, f.hostID, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "request_already_reviewed", env.Code)

	code, env = do(t, r, http.MethodGet, base+"/participants?filter=moderators", f.hostID, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items []struct {
			UserID uuid.UUID `json:"user_id"`
			Role   string    `json:"role"`
		} `json:"items"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 2)
	roles := map[uuid.UUID]string{}
	for _, item := range page.Items {
		roles[item.UserID] = item.Role
	}
	assert.Equal(t, "admin", roles[f.hostID])
	assert.Equal(t, "moderator", roles[viewer])
}

func TestHandlerReactions(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	sess := f.live(t, CreateSessionInput{})
	base := "/api/sessions/" + sess.ID.String()
	user := uuid.New()

	code, env := do(t, r, http.MethodPost, base+"/reactions", user, map[string]string{"emoji": "🎉"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "cannot_react", env.Code)

	code, _ = do(t, r, http.MethodPost, base+"/join", user, nil)
	require.Equal(t, http.StatusOK, code)
	for _, e := range []string{"🎉", "🎉", "👍"} {
		code, _ := do(t, r, http.MethodPost, base+"/reactions", user, map[string]string{"emoji": e})
		require.Equal(t, http.StatusCreated, code)
	}
	code, _ = do(t, r, http.MethodPost, base+"/reactions", user, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, http.MethodGet, base+"/reactions/summary", user, nil)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		SessionID uuid.UUID `json:"session_id"`
		Counts    []struct {
			Emoji string `json:"emoji"`
			Count int    `json:"count"`
		} `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, sess.ID, summary.SessionID)
	require.Len(t, summary.Counts, 2)
	assert.Equal(t, "🎉", summary.Counts[0].Emoji)
	assert.Equal(t, 2, summary.Counts[0].Count)
}

func TestHandlerParticipantEndpoints(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	sess := f.live(t, CreateSessionInput{})
	base := "/api/sessions/" + sess.ID.String()
	viewer := uuid.New()

	code, env := do(t, r, http.MethodGet, base+"/can-join", viewer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"can_join":true}`, string(env.Data))

	code, _ = do(t, r, http.MethodPost, base+"/join", viewer, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, base+"/participants", viewer, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = do(t, r, http.MethodGet, base+"/participants?filter=all", viewer, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "host_only_filter", env.Code)
	code, _ = do(t, r, http.MethodGet, base+"/participants?filter=all", f.hostID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPatch, base+"/participants/me", viewer, map[string]bool{"is_muted": true})
	require.Equal(t, http.StatusOK, code)
	var p struct {
		Stream struct {
			IsMuted bool `json:"is_muted"`
		} `json:"stream"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.True(t, p.Stream.IsMuted)

	code, _ = do(t, r, http.MethodDelete, base+"/participants/"+viewer.String()+"?reason=spam", f.hostID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, r, http.MethodPost, base+"/leave", viewer, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, env = do(t, r, http.MethodGet, base+"/ingest", viewer, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_session_host", env.Code)
	code, _ = do(t, r, http.MethodGet, base+"/ingest", f.hostID, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandlerListsRedactKeys(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	sess := f.create(t, CreateSessionInput{})

	code, env := do(t, r, http.MethodGet, "/api/communities/"+f.communityID.String()+"/sessions", uuid.New(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), sess.StreamCredential.Key)

	code, env = do(t, r, http.MethodGet, "/api/sessions", f.hostID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), sess.StreamCredential.Key)
}
