package livesessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/middleware"
	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/pagination"
	"github.com/aura-community/backend/pkg/response"
)

func parseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func pageFromQuery(c *gin.Context) pagination.Request {
	return pagination.NewRequest(c.Query("cursor"), c.Query("limit"))
}

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	Title              string                  `json:"title" binding:"required"`
	Description        string                  `json:"description"`
	ScheduledStartTime *string                 `json:"scheduled_start_time"`
	MaxParticipants    int                     `json:"max_participants" binding:"omitempty,min=1"`
	DurationMinutes    int                     `json:"duration_minutes" binding:"omitempty,min=1"`
	Settings           *models.SessionSettings `json:"settings"`
}

// UpdateRequest is the body for PATCH /sessions/:id. Absent fields are left unchanged.
type UpdateRequest struct {
	Title              *string                 `json:"title"`
	Description        *string                 `json:"description"`
	ScheduledStartTime *string                 `json:"scheduled_start_time"`
	MaxParticipants    *int                    `json:"max_participants"`
	DurationMinutes    *int                    `json:"duration_minutes"`
	Settings           *models.SessionSettings `json:"settings"`
}

// JoinRequest is the optional body for POST /sessions/:id/join.
type JoinRequest struct {
	Quality models.StreamQuality `json:"quality"`
}

// ModerationRequestBody is the body for POST /sessions/:id/moderation-requests.
type ModerationRequestBody struct {
	Video   bool   `json:"video"`
	Audio   bool   `json:"audio"`
	Message string `json:"message"`
}

// ReviewRequest is the body for POST /moderation-requests/:id/review.
type ReviewRequest struct {
	Status  models.ModerationStatus `json:"status" binding:"required"`
	Message string                  `json:"message"`
}

// ReactionRequest is the body for POST /sessions/:id/reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Handler handles live session HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a live sessions handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the session routes on an authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/sessions", h.Create)
	api.GET("/sessions", h.List)
	api.GET("/sessions/:id", h.GetByID)
	api.PATCH("/sessions/:id", h.Update)
	api.DELETE("/sessions/:id", h.Delete)
	api.POST("/sessions/:id/start", h.Start)
	api.POST("/sessions/:id/end", h.End)
	api.GET("/sessions/:id/ingest", h.Ingest)

	api.POST("/sessions/:id/join", h.Join)
	api.POST("/sessions/:id/leave", h.Leave)
	api.GET("/sessions/:id/can-join", h.CanJoin)
	api.GET("/sessions/:id/participants", h.ListParticipants)
	api.PATCH("/sessions/:id/participants/me", h.UpdateMe)
	api.DELETE("/sessions/:id/participants/:userId", h.RemoveParticipant)

	api.GET("/sessions/:id/moderation-requests", h.ListModerationRequests)
	api.POST("/sessions/:id/moderation-requests", h.RequestModeration)
	api.POST("/moderation-requests/:id/review", h.Review)

	api.POST("/sessions/:id/reactions", h.AddReaction)
	api.GET("/sessions/:id/reactions", h.ListReactions)
	api.GET("/sessions/:id/reactions/summary", h.ReactionSummary)

	api.GET("/communities/:id/sessions", h.ListByCommunity)
}

func idParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseTime(req.ScheduledStartTime)
	if err != nil {
		response.BadRequest(c, "invalid scheduled_start_time")
		return
	}
	sess, err := h.svc.CreateSession(c.Request.Context(), middleware.UserID(c), CreateSessionInput{
		Title:              req.Title,
		Description:        req.Description,
		ScheduledStartTime: start,
		MaxParticipants:    req.MaxParticipants,
		DurationMinutes:    req.DurationMinutes,
		Settings:           req.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

func statusQuery(c *gin.Context) *models.SessionStatus {
	v := c.Query("status")
	if v == "" {
		return nil
	}
	st := models.SessionStatus(v)
	return &st
}

// List handles GET /sessions. Sessions hosted by the caller are returned.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	page, err := h.svc.ListSessions(c.Request.Context(), userID, ListSessionsInput{
		HostID: &userID,
		Status: statusQuery(c),
		Page:   pageFromQuery(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// ListByCommunity handles GET /communities/:id/sessions.
func (h *Handler) ListByCommunity(c *gin.Context) {
	communityID, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.svc.ListSessions(c.Request.Context(), middleware.UserID(c), ListSessionsInput{
		CommunityID: &communityID,
		Status:      statusQuery(c),
		Page:        pageFromQuery(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sess, err := h.svc.GetSession(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// Update handles PATCH /sessions/:id (host, scheduled sessions only).
func (h *Handler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseTime(req.ScheduledStartTime)
	if err != nil {
		response.BadRequest(c, "invalid scheduled_start_time")
		return
	}
	sess, err := h.svc.UpdateSession(c.Request.Context(), middleware.UserID(c), id, SessionPatch{
		Title:              req.Title,
		Description:        req.Description,
		ScheduledStartTime: start,
		MaxParticipants:    req.MaxParticipants,
		DurationMinutes:    req.DurationMinutes,
		Settings:           req.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// Delete handles DELETE /sessions/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSession(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sess, err := h.svc.StartSession(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// End handles POST /sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sess, err := h.svc.EndSession(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// Ingest handles GET /sessions/:id/ingest (host only).
func (h *Handler) Ingest(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	creds, err := h.svc.IngestCredentials(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, creds)
}

// Join handles POST /sessions/:id/join. The body is optional.
func (h *Handler) Join(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	p, err := h.svc.Join(c.Request.Context(), middleware.UserID(c), id, req.Quality)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Leave handles POST /sessions/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CanJoin handles GET /sessions/:id/can-join.
func (h *Handler) CanJoin(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.CanJoin(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ListParticipants handles GET /sessions/:id/participants?filter=active|moderators|all.
func (h *Handler) ListParticipants(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.svc.ListParticipants(c.Request.Context(), middleware.UserID(c), id, ParticipantFilter(c.Query("filter")), pageFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// UpdateMe handles PATCH /sessions/:id/participants/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch models.StreamStatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.UpdateStreamSettings(c.Request.Context(), middleware.UserID(c), id, patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// RemoveParticipant handles DELETE /sessions/:id/participants/:userId?reason=.
func (h *Handler) RemoveParticipant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	target, ok := idParam(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveParticipant(c.Request.Context(), middleware.UserID(c), id, target, c.Query("reason")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RequestModeration handles POST /sessions/:id/moderation-requests.
func (h *Handler) RequestModeration(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ModerationRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := h.svc.RequestModeration(c.Request.Context(), middleware.UserID(c), id, ModerationRequestInput{
		Requested: models.RequestedPermissions{Video: req.Video, Audio: req.Audio},
		Message:   req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, r)
}

// ListModerationRequests handles GET /sessions/:id/moderation-requests?status=.
func (h *Handler) ListModerationRequests(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var status *models.ModerationStatus
	if v := c.Query("status"); v != "" {
		st := models.ModerationStatus(v)
		status = &st
	}
	page, err := h.svc.ListModerationRequests(c.Request.Context(), middleware.UserID(c), id, status, pageFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Review handles POST /moderation-requests/:id/review.
func (h *Handler) Review(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := h.svc.ReviewModerationRequest(c.Request.Context(), middleware.UserID(c), id, req.Status, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, r)
}

// AddReaction handles POST /sessions/:id/reactions.
func (h *Handler) AddReaction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := h.svc.AddReaction(c.Request.Context(), middleware.UserID(c), id, req.Emoji)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, r)
}

// ListReactions handles GET /sessions/:id/reactions.
func (h *Handler) ListReactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.svc.ListReactions(c.Request.Context(), id, pageFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// ReactionSummary handles GET /sessions/:id/reactions/summary.
func (h *Handler) ReactionSummary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	counts, err := h.svc.ReactionSummary(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": id, "counts": counts})
}
