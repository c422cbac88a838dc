package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/playback"
)

// Request/Response DTOs

// ClipRequest is one clip of a montage, in play order
type ClipRequest struct {
	MediaID  string  `json:"media_id" binding:"required"`
	Duration float64 `json:"duration" binding:"gt=0"`
}

// PhaseRequest is one phase breakpoint
type PhaseRequest struct {
	Phase        int     `json:"phase"`
	StartSeconds float64 `json:"start_seconds" binding:"gte=0"`
}

// CreateMontageRequest represents a request to create a montage
type CreateMontageRequest struct {
	Name              string         `json:"name" binding:"required"`
	AudioMediaID      string         `json:"audio_media_id" binding:"required"`
	MontageStartPhase *int           `json:"montage_start_phase,omitempty"`
	Clips             []ClipRequest  `json:"clips" binding:"required,min=1,dive"`
	Phases            []PhaseRequest `json:"phases" binding:"dive"`
}

// MontageListResponse represents a list of montages
type MontageListResponse struct {
	Montages []*models.Montage `json:"montages"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// RunListResponse represents a montage's playback history
type RunListResponse struct {
	Runs []*models.PlaybackRun `json:"runs"`
}

// MontageHandler handles montage definition and playback requests
type MontageHandler struct {
	service *montage.Service
	manager *montage.Manager
}

// NewMontageHandler creates a new montage handler instance
func NewMontageHandler(service *montage.Service, manager *montage.Manager) *MontageHandler {
	return &MontageHandler{
		service: service,
		manager: manager,
	}
}

// toCreateInput converts a request body, rejecting malformed media ids
func (req *CreateMontageRequest) toCreateInput() (montage.CreateInput, error) {
	audioID, err := uuid.Parse(req.AudioMediaID)
	if err != nil {
		return montage.CreateInput{}, errors.New("audio_media_id must be a UUID")
	}

	in := montage.CreateInput{
		Name:              req.Name,
		AudioMediaID:      audioID,
		MontageStartPhase: 1,
		Phases: lo.Map(req.Phases, func(p PhaseRequest, _ int) montage.PhaseInput {
			return montage.PhaseInput{Phase: p.Phase, StartSeconds: p.StartSeconds}
		}),
	}
	if req.MontageStartPhase != nil {
		in.MontageStartPhase = *req.MontageStartPhase
	}

	for i, clip := range req.Clips {
		mediaID, err := uuid.Parse(clip.MediaID)
		if err != nil {
			return montage.CreateInput{}, errors.New("clips[" + strconv.Itoa(i) + "].media_id must be a UUID")
		}
		in.Clips = append(in.Clips, montage.ClipInput{MediaID: mediaID, Duration: clip.Duration})
	}
	return in, nil
}

// CreateMontage handles POST /api/montages
func (h *MontageHandler) CreateMontage(c *gin.Context) {
	var req CreateMontageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	in, err := req.toCreateInput()
	if err != nil {
		badRequest(c, "invalid_id", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	m, err := h.service.CreateMontage(ctx, in)
	if err != nil {
		respondError(c, err, "create_failed", "Failed to create montage")
		return
	}

	c.JSON(http.StatusCreated, m)
}

// ListMontages handles GET /api/montages
func (h *MontageHandler) ListMontages(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 500)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	montages, err := h.service.List(ctx, limit, offset)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve montages")
		return
	}

	c.JSON(http.StatusOK, MontageListResponse{
		Montages: montages,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetMontage handles GET /api/montages/:id
func (h *MontageHandler) GetMontage(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	m, err := h.service.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve montage")
		return
	}

	c.JSON(http.StatusOK, m)
}

// DeleteMontage handles DELETE /api/montages/:id
func (h *MontageHandler) DeleteMontage(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Stop playback first so no run is written for a deleted montage
	h.manager.Remove(id)

	if err := h.service.Delete(ctx, id); err != nil {
		respondError(c, err, "delete_failed", "Failed to delete montage")
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Montage deleted successfully",
	})
}

// PlayMontage handles POST /api/montages/:id/play. Also used to retry after
// the host refused autoplay.
func (h *MontageHandler) PlayMontage(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}

	status, err := h.manager.PlayMontage(c.Request.Context(), id)
	if err != nil {
		if playback.IsAutoplayBlocked(err) {
			logger.Log.Info().
				Str("montage_id", id.String()).
				Msg("Playback waiting for user interaction")
		}
		respondError(c, err, "play_failed", "Failed to start playback")
		return
	}

	c.JSON(http.StatusOK, status)
}

// StopMontage handles POST /api/montages/:id/stop
func (h *MontageHandler) StopMontage(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}

	status, err := h.manager.StopMontage(c.Request.Context(), id)
	if errors.Is(err, montage.ErrSessionNotFound) {
		// Nothing is playing; stopping is idempotent
		h.idleStatus(c, id)
		return
	}
	if err != nil {
		respondError(c, err, "stop_failed", "Failed to stop playback")
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetStatus handles GET /api/montages/:id/status
func (h *MontageHandler) GetStatus(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}

	status, err := h.manager.GetStatus(id)
	if errors.Is(err, montage.ErrSessionNotFound) {
		h.idleStatus(c, id)
		return
	}
	if err != nil {
		respondError(c, err, "status_failed", "Failed to retrieve playback status")
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListRuns handles GET /api/montages/:id/runs
func (h *MontageHandler) ListRuns(c *gin.Context) {
	id, ok := parseID(c, "Invalid montage ID format")
	if !ok {
		return
	}
	limit, _ := parsePagination(c, 20, 200)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	runs, err := h.manager.Runs(ctx, id, limit)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve playback runs")
		return
	}

	c.JSON(http.StatusOK, RunListResponse{Runs: runs})
}

// idleStatus answers for a montage without a live session, or 404 when the
// montage does not exist
func (h *MontageHandler) idleStatus(c *gin.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.service.GetByID(ctx, id); err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve montage")
		return
	}
	c.JSON(http.StatusOK, h.manager.IdleStatus(id))
}

// SetupMontageRoutes registers montage definition and playback routes
func SetupMontageRoutes(apiGroup *gin.RouterGroup, service *montage.Service, manager *montage.Manager) {
	handler := NewMontageHandler(service, manager)

	montages := apiGroup.Group("/montages")
	{
		montages.POST("", handler.CreateMontage)
		montages.GET("", handler.ListMontages)
		montages.GET("/:id", handler.GetMontage)
		montages.DELETE("/:id", handler.DeleteMontage)

		montages.POST("/:id/play", handler.PlayMontage)
		montages.POST("/:id/stop", handler.StopMontage)
		montages.GET("/:id/status", handler.GetStatus)
		montages.GET("/:id/runs", handler.ListRuns)
	}
}
