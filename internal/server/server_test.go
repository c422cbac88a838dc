package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/scheduler"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: config.LoggingConfig{Level: "info"},
		Playback: config.PlaybackConfig{
			FrameInterval:       100 * time.Millisecond,
			WatchdogInterval:    100 * time.Millisecond,
			StallRecoveryDelay:  500 * time.Millisecond,
			SessionGracePeriod:  time.Minute,
			CleanupInterval:     time.Minute,
			CircuitThreshold:    3,
			CircuitResetTimeout: time.Minute,
		},
		Media: config.MediaConfig{Backend: config.MediaBackendSimulated},
	}

	sched := scheduler.NewManual(100 * time.Millisecond)
	repos := db.NewRepositories(database)
	s := NewWithDependencies(cfg, database, Dependencies{
		Scheduler: sched,
		Backend:   &montage.SimulatedBackend{Now: sched.Now},
		Scanner: media.NewScannerWithProbe(repos, func(context.Context, string) (*media.ProbeResult, error) {
			return &media.ProbeResult{Kind: media.KindVideo, Duration: 1}, nil
		}),
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/montages", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/montages/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)

	// One success and one client error before scraping
	for _, path := range []string{"/api/health", "/api/media/not-a-uuid"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "montage_requests_total 2")
	assert.Contains(t, string(body), "montage_errors_total 1")
	assert.Contains(t, string(body), "montage_active_sessions 0")
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}
