package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/models"
)

// Request/Response DTOs

// RegisterMediaRequest registers a media asset by URI
type RegisterMediaRequest struct {
	URI      string  `json:"uri" binding:"required"`
	Title    string  `json:"title"`
	Kind     string  `json:"kind" binding:"required,oneof=audio video"`
	Duration float64 `json:"duration" binding:"gte=0"`
	Codec    *string `json:"codec,omitempty"`
}

// ScanRequest represents a request to trigger a media library scan
type ScanRequest struct {
	Path string `json:"path"` // Optional: defaults to the configured library path
}

// ScanResponse represents the response after triggering a scan
type ScanResponse struct {
	ScanID  string `json:"scan_id"`
	Message string `json:"message"`
}

// MediaListResponse represents a paginated list of media assets
type MediaListResponse struct {
	Items  []*models.MediaAsset `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// MediaHandler handles media-related API requests
type MediaHandler struct {
	scanner     *media.Scanner
	repos       *db.Repositories
	libraryPath string
}

// NewMediaHandler creates a new media handler instance
func NewMediaHandler(scanner *media.Scanner, repos *db.Repositories, libraryPath string) *MediaHandler {
	return &MediaHandler{
		scanner:     scanner,
		repos:       repos,
		libraryPath: libraryPath,
	}
}

// RegisterMedia handles POST /api/media
func (h *MediaHandler) RegisterMedia(c *gin.Context) {
	var req RegisterMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.URI
	}

	asset := models.NewMediaAsset(req.URI, title, req.Kind, req.Duration)
	asset.Codec = req.Codec

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Media.Create(ctx, asset); err != nil {
		respondError(c, err, "create_failed", "Failed to register media")
		return
	}

	logger.Log.Info().
		Str("id", asset.ID.String()).
		Str("uri", asset.URI).
		Str("kind", asset.Kind).
		Msg("Media registered")

	c.JSON(http.StatusCreated, asset)
}

// TriggerScan handles POST /api/media/scan
func (h *MediaHandler) TriggerScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is acceptable - use default path
		if c.Request.ContentLength > 0 {
			badRequest(c, "invalid_request", "Invalid request body")
			return
		}
	}

	path := req.Path
	if path == "" {
		path = h.libraryPath
	}
	if path == "" {
		badRequest(c, "missing_path", "Media library path is required")
		return
	}

	scanID, err := h.scanner.StartScan(c.Request.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrScanAlreadyRunning):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "scan_in_progress",
				Message: "A scan is already running",
			})
		case errors.Is(err, media.ErrInvalidDirectory):
			badRequest(c, "invalid_directory", err.Error())
		default:
			respondError(c, err, "scan_failed", "Failed to start media scan")
		}
		return
	}

	c.JSON(http.StatusCreated, ScanResponse{
		ScanID:  scanID,
		Message: "Scan started",
	})
}

// GetScanStatus handles GET /api/media/scan/:scanId/status
func (h *MediaHandler) GetScanStatus(c *gin.Context) {
	progress, err := h.scanner.GetScanProgress(c.Param("scanId"))
	if err != nil {
		if errors.Is(err, media.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "scan_not_found",
				Message: "Scan not found",
			})
			return
		}
		respondError(c, err, "internal_error", "Failed to retrieve scan progress")
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CancelScan handles DELETE /api/media/scan/:scanId
func (h *MediaHandler) CancelScan(c *gin.Context) {
	scanID := c.Param("scanId")
	if err := h.scanner.CancelScan(scanID); err != nil {
		if errors.Is(err, media.ErrScanNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "scan_not_found",
				Message: "Scan not found",
			})
			return
		}
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "scan_not_running",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, DeleteResponse{Message: "Scan cancellation requested"})
}

// ListMedia handles GET /api/media
func (h *MediaHandler) ListMedia(c *gin.Context) {
	limit, offset := parsePagination(c, 20, 1000)

	kind := c.Query("kind")
	if kind != "" && !media.Kind(kind).IsValid() {
		badRequest(c, "invalid_kind", "Kind must be audio or video")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, err := h.repos.Media.List(ctx, kind, limit, offset)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve media list")
		return
	}

	total, err := h.repos.Media.Count(ctx, kind)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve media count")
		return
	}

	c.JSON(http.StatusOK, MediaListResponse{
		Items:  items,
		Total:  int(total),
		Limit:  limit,
		Offset: offset,
	})
}

// GetMedia handles GET /api/media/:id
func (h *MediaHandler) GetMedia(c *gin.Context) {
	id, ok := parseID(c, "Invalid media ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	asset, err := h.repos.Media.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "query_failed", "Failed to retrieve media")
		return
	}

	c.JSON(http.StatusOK, asset)
}

// DeleteMedia handles DELETE /api/media/:id
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	id, ok := parseID(c, "Invalid media ID format")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repos.Media.Delete(ctx, id); err != nil {
		respondError(c, err, "delete_failed", "Failed to delete media")
		return
	}

	logger.Log.Info().
		Str("id", id.String()).
		Msg("Media deleted successfully")

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Media deleted successfully",
	})
}

// parseID reads the :id path parameter, answering 400 when it is not a UUID
func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", message)
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads limit and offset, clamping limit to max
func parsePagination(c *gin.Context, defaultLimit, max int) (int, int) {
	limit := defaultLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
		if limit > max {
			limit = max
		}
	}

	offset := 0
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// SetupMediaRoutes registers media-related routes
func SetupMediaRoutes(apiGroup *gin.RouterGroup, scanner *media.Scanner, repos *db.Repositories, libraryPath string) {
	handler := NewMediaHandler(scanner, repos, libraryPath)

	// Scan endpoints
	apiGroup.POST("/media/scan", handler.TriggerScan)
	apiGroup.GET("/media/scan/:scanId/status", handler.GetScanStatus)
	apiGroup.DELETE("/media/scan/:scanId", handler.CancelScan)

	// Media endpoints
	apiGroup.POST("/media", handler.RegisterMedia)
	apiGroup.GET("/media", handler.ListMedia)
	apiGroup.GET("/media/:id", handler.GetMedia)
	apiGroup.DELETE("/media/:id", handler.DeleteMedia)
}
