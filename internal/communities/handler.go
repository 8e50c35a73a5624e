package communities

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
	"github.com/aura-community/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the persistence the handler needs.
type Store interface {
	Create(ctx context.Context, c *models.Community) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error)
}

// Handler handles community HTTP endpoints.
type Handler struct {
	repo Store
}

// NewHandler creates a communities handler.
func NewHandler(repo Store) *Handler {
	return &Handler{repo: repo}
}

// CreateRequest is the body for POST /communities.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// RegisterRoutes mounts the community routes.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/communities", h.Create)
	api.GET("/communities/:id", h.GetByID)
}

// Create handles POST /communities. The caller becomes the host.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		response.Error(c, apperr.Internal(err))
		return
	}
	community := &models.Community{ID: id, Name: body.Name, Slug: body.Slug, HostID: middleware.UserID(c)}
	if err := h.repo.Create(c.Request.Context(), community); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, community)
}

// GetByID handles GET /communities/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid community id")
		return
	}
	community, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, community)
}
