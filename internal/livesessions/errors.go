package livesessions

import "github.com/aura-community/backend/pkg/apperr"

var (
	ErrInvalidCursor  = apperr.Invalid("invalid_cursor", "invalid cursor")
	ErrInvalidQuality = apperr.Invalid("invalid_quality", "quality must be auto, low, medium or high")
	ErrInvalidFilter  = apperr.Invalid("invalid_filter", "unknown filter")
	ErrInvalidEmoji   = apperr.Invalid("invalid_emoji", "emoji must be 1 to 32 bytes")
	ErrInvalidReview  = apperr.Invalid("invalid_decision", "decision must be approved or rejected")

	ErrSessionNotFound     = apperr.NotFound("session_not_found", "session not found")
	ErrParticipantNotFound = apperr.NotFound("participant_not_found", "participant not found")
	ErrRequestNotFound     = apperr.NotFound("moderation_request_not_found", "moderation request not found")

	ErrNotSessionHost      = apperr.Forbidden("not_session_host", "only the session host can do this")
	ErrCannotRemoveAdmin   = apperr.Forbidden("cannot_remove_admin", "admin participants cannot be removed")
	ErrReactionsDisabled   = apperr.Forbidden("reactions_disabled", "reactions are disabled for this session")
	ErrReactionsNotAllowed = apperr.Forbidden("reactions_not_live", "reactions are only accepted while the session is live")
	ErrCannotReact         = apperr.Forbidden("cannot_react", "only active participants allowed to react can react")
	ErrHostOnlyFilter      = apperr.Forbidden("host_only_filter", "only the session host can list inactive participants or moderators")

	ErrActiveSessionExists    = apperr.Conflict("active_session_exists", "community already has a scheduled or live session")
	ErrSessionNotScheduled    = apperr.Conflict("session_not_scheduled", "session is not scheduled")
	ErrSessionNotLive         = apperr.Conflict("session_not_live", "session is not live")
	ErrSessionIsLive          = apperr.Conflict("session_is_live", "end the session before deleting it")
	ErrSessionTerminal        = apperr.Conflict("session_terminal", "ended and cancelled sessions are kept as history")
	ErrSessionNotEnded        = apperr.Conflict("session_not_ended", "session has not ended")
	ErrCapacityExceeded       = apperr.Conflict("capacity_exceeded", "session is at capacity")
	ErrParticipantInactive    = apperr.Conflict("participant_inactive", "participant is not active in this session")
	ErrAlreadyModerator       = apperr.Conflict("already_moderator", "participant is already a moderator or admin")
	ErrPendingRequestExists   = apperr.Conflict("pending_request_exists", "a pending moderation request already exists")
	ErrRequestAlreadyReviewed = apperr.Conflict("request_already_reviewed", "moderation request was already reviewed")
)
