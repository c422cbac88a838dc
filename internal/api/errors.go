package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/playback"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

// respondError maps domain errors to HTTP status codes. Anything unknown is
// logged and reported as fallbackCode.
func respondError(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Msg(fallbackMessage)
		body = ErrorResponse{Error: fallbackCode, Message: fallbackMessage}
	}
	c.JSON(status, body)
}

func classify(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, playback.ErrStartInFlight):
		return http.StatusConflict, ErrorResponse{Error: "start_in_flight", Message: "Playback is already starting"}
	case playback.IsAutoplayBlocked(err):
		return http.StatusPreconditionRequired, ErrorResponse{Error: "interaction_required", Message: "Playback requires a user gesture before it can start"}
	case errors.Is(err, montage.ErrCircuitOpen):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "circuit_open", Message: "Playback failed repeatedly; retry later"}
	case errors.Is(err, montage.ErrManagerStopped):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "shutting_down", Message: "Server is shutting down"}
	case errors.Is(err, playback.ErrStartAborted):
		return http.StatusConflict, ErrorResponse{Error: "start_aborted", Message: "Playback was stopped while starting"}
	case montage.IsMontageNotFound(err):
		return http.StatusNotFound, ErrorResponse{Error: "montage_not_found", Message: "Montage not found"}
	case montage.IsMediaNotFound(err):
		return http.StatusBadRequest, ErrorResponse{Error: "media_not_found", Message: err.Error()}
	case montage.IsDuplicateName(err):
		return http.StatusConflict, ErrorResponse{Error: "duplicate_name", Message: "A montage with this name already exists"}
	case montage.IsValidationError(err):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_montage", Message: err.Error()}
	case db.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Resource not found"}
	case db.IsDuplicate(err):
		return http.StatusConflict, ErrorResponse{Error: "duplicate", Message: "Resource already exists"}
	case db.IsForeignKey(err):
		return http.StatusConflict, ErrorResponse{Error: "in_use", Message: "Resource is referenced by a montage"}
	default:
		return http.StatusInternalServerError, ErrorResponse{}
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}
