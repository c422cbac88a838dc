package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/scheduler"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// testServer wires every route against a temp database and virtual time
type testServer struct {
	router  *gin.Engine
	db      *db.DB
	repos   *db.Repositories
	sched   *scheduler.Manual
	manager *montage.Manager
	// blockAutoplay makes newly created elements refuse to start
	blockAutoplay atomic.Bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	ts := &testServer{
		db:    database,
		repos: db.NewRepositories(database),
		sched: scheduler.NewManual(100 * time.Millisecond),
	}

	backend := &montage.SimulatedBackend{
		Now: ts.sched.Now,
		OnLibrary: func(_ *timeline.Definition, lib *media.SimulatedLibrary) {
			lib.OnCreate(func(el *media.Simulated) {
				el.BlockAutoplay(ts.blockAutoplay.Load())
			})
		},
	}

	ts.manager = montage.NewManager(montage.ManagerOptions{
		Repos:     ts.repos,
		Timelines: timeline.NewService(ts.repos),
		Backend:   backend,
		Scheduler: ts.sched,
		Config: config.PlaybackConfig{
			FrameInterval:         100 * time.Millisecond,
			WatchdogInterval:      100 * time.Millisecond,
			StallRecoveryDelay:    500 * time.Millisecond,
			FallbackAssetDuration: 10,
			SessionGracePeriod:    time.Minute,
			CleanupInterval:       time.Minute,
			CircuitThreshold:      3,
			CircuitResetTimeout:   30 * time.Second,
		},
	})
	t.Cleanup(ts.manager.Stop)

	scanner := media.NewScannerWithProbe(ts.repos, func(context.Context, string) (*media.ProbeResult, error) {
		return &media.ProbeResult{Duration: 5, Kind: media.KindVideo}, nil
	})
	t.Cleanup(scanner.Stop)

	gin.SetMode(gin.TestMode)
	ts.router = gin.New()
	apiGroup := ts.router.Group("/api")
	SetupHealthRoutes(apiGroup, database, ts.manager)
	SetupMediaRoutes(apiGroup, scanner, ts.repos, "")
	SetupMontageRoutes(apiGroup, montage.NewService(ts.repos), ts.manager)

	return ts
}

// do sends a JSON request and returns the recorder
func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// createAsset stores a media asset directly
func (ts *testServer) createAsset(t *testing.T, uri, kind string, duration float64) *models.MediaAsset {
	t.Helper()
	asset := models.NewMediaAsset(uri, filepath.Base(uri), kind, duration)
	require.NoError(t, ts.repos.Media.Create(context.Background(), asset))
	return asset
}

// createMontage stores a two-clip montage (A 8s, B 6s) over a 20s track
func (ts *testServer) createMontage(t *testing.T, name string) *models.Montage {
	t.Helper()

	audio := ts.createAsset(t, "/media/"+name+"/track.mp3", models.MediaKindAudio, 20)
	clipA := ts.createAsset(t, "/media/"+name+"/a.mp4", models.MediaKindVideo, 8)
	clipB := ts.createAsset(t, "/media/"+name+"/b.mp4", models.MediaKindVideo, 4)

	m, err := montage.NewService(ts.repos).CreateMontage(context.Background(), montage.CreateInput{
		Name:              name,
		AudioMediaID:      audio.ID,
		MontageStartPhase: 2,
		Clips: []montage.ClipInput{
			{MediaID: clipA.ID, Duration: 8},
			{MediaID: clipB.ID, Duration: 6},
		},
		Phases: []montage.PhaseInput{{Phase: 1, StartSeconds: 0}, {Phase: 2, StartSeconds: 8}},
	})
	require.NoError(t, err)
	return m
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
}
