package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/montage/internal/db"
)

// SessionCounter reports how many montages are playing
type SessionCounter interface {
	ActiveSessions() int
}

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status         string                 `json:"status"`
	Database       string                 `json:"database"`
	ActiveSessions int                    `json:"active_sessions"`
	Time           string                 `json:"time"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       *db.DB
	sessions SessionCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database *db.DB, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: database, sessions: sessions}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Details: make(map[string]interface{}),
	}
	if h.sessions != nil {
		response.ActiveSessions = h.sessions.ActiveSessions()
	}

	// Check database connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, sessions SessionCounter) {
	handler := NewHealthHandler(database, sessions)
	apiGroup.GET("/health", handler.Check)
}
