package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/pkg/response"
)

// Handler handles analytics endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the analytics routes.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/analytics/summary", h.Summary)
	api.GET("/sessions/:id/stats", h.SessionStats)
}

// Summary handles GET /analytics/summary?period=today|week|month|all.
func (h *Handler) Summary(c *gin.Context) {
	out, err := h.svc.Summary(c.Request.Context(), middleware.UserID(c), Period(c.Query("period")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// SessionStats handles GET /sessions/:id/stats.
func (h *Handler) SessionStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	stats, err := h.svc.SessionSnapshot(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": id, "stats": stats})
}
