package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/playback"
)

func TestCreateMontage(t *testing.T) {
	ts := newTestServer(t)
	audio := ts.createAsset(t, "/media/track.mp3", models.MediaKindAudio, 30)
	clip := ts.createAsset(t, "/media/clip.mp4", models.MediaKindVideo, 5)

	valid := func() CreateMontageRequest {
		return CreateMontageRequest{
			Name:         "Highlights",
			AudioMediaID: audio.ID.String(),
			Clips:        []ClipRequest{{MediaID: clip.ID.String(), Duration: 10}},
			Phases:       []PhaseRequest{{Phase: 1, StartSeconds: 0}},
		}
	}

	w := ts.do(t, http.MethodPost, "/api/montages", valid())
	requireStatus(t, w, http.StatusCreated)
	created := decode[models.Montage](t, w)
	assert.Equal(t, "Highlights", created.Name)
	assert.Equal(t, 1, created.MontageStartPhase)

	tests := []struct {
		name     string
		mutate   func(*CreateMontageRequest)
		wantCode int
		wantErr  string
	}{
		{
			name:     "duplicate name",
			mutate:   func(*CreateMontageRequest) {},
			wantCode: http.StatusConflict,
			wantErr:  "duplicate_name",
		},
		{
			name:     "no clips",
			mutate:   func(r *CreateMontageRequest) { r.Name = "Empty"; r.Clips = nil },
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_request",
		},
		{
			name:     "malformed media id",
			mutate:   func(r *CreateMontageRequest) { r.Name = "Bad"; r.Clips[0].MediaID = "nope" },
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_id",
		},
		{
			name:     "unknown media",
			mutate:   func(r *CreateMontageRequest) { r.Name = "Ghost"; r.AudioMediaID = uuid.New().String() },
			wantCode: http.StatusBadRequest,
			wantErr:  "media_not_found",
		},
		{
			name:     "video as master clock",
			mutate:   func(r *CreateMontageRequest) { r.Name = "Silent"; r.AudioMediaID = clip.ID.String() },
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_montage",
		},
		{
			name: "unsorted phases",
			mutate: func(r *CreateMontageRequest) {
				r.Name = "Unsorted"
				r.Phases = []PhaseRequest{{Phase: 2, StartSeconds: 5}, {Phase: 1, StartSeconds: 1}}
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_montage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			w := ts.do(t, http.MethodPost, "/api/montages", req)
			requireStatus(t, w, tt.wantCode)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestListGetDeleteMontage(t *testing.T) {
	ts := newTestServer(t)
	m := ts.createMontage(t, "Opening")
	ts.createMontage(t, "Closing")

	w := ts.do(t, http.MethodGet, "/api/montages", nil)
	requireStatus(t, w, http.StatusOK)
	list := decode[MontageListResponse](t, w)
	require.Len(t, list.Montages, 2)
	assert.Equal(t, "Closing", list.Montages[0].Name)

	w = ts.do(t, http.MethodGet, "/api/montages/"+m.ID.String(), nil)
	requireStatus(t, w, http.StatusOK)
	got := decode[models.Montage](t, w)
	require.Len(t, got.Clips, 2)
	assert.Equal(t, 0, got.Clips[0].Position)
	require.Len(t, got.Phases, 2)
	require.NotNil(t, got.Audio)

	w = ts.do(t, http.MethodDelete, "/api/montages/"+m.ID.String(), nil)
	requireStatus(t, w, http.StatusOK)

	w = ts.do(t, http.MethodGet, "/api/montages/"+m.ID.String(), nil)
	requireStatus(t, w, http.StatusNotFound)
	assert.Equal(t, "montage_not_found", decode[ErrorResponse](t, w).Error)

	w = ts.do(t, http.MethodDelete, "/api/montages/"+m.ID.String(), nil)
	requireStatus(t, w, http.StatusNotFound)
}

func TestPlaybackLifecycle(t *testing.T) {
	ts := newTestServer(t)
	m := ts.createMontage(t, "Opening")
	base := "/api/montages/" + m.ID.String()

	// Before any play the montage reports idle
	w := ts.do(t, http.MethodGet, base+"/status", nil)
	requireStatus(t, w, http.StatusOK)
	idle := decode[montage.Status](t, w)
	assert.Equal(t, playback.StateIdle, idle.State)
	assert.Equal(t, "closed", idle.CircuitState)

	w = ts.do(t, http.MethodPost, base+"/play", nil)
	requireStatus(t, w, http.StatusOK)
	started := decode[montage.Status](t, w)
	assert.True(t, started.IsPlaying)
	assert.Equal(t, m.ID, started.MontageID)
	assert.Equal(t, 1, started.Phase)
	assert.False(t, started.ShowOverlay)

	ts.sched.Advance(9 * time.Second)

	w = ts.do(t, http.MethodGet, base+"/status", nil)
	requireStatus(t, w, http.StatusOK)
	mid := decode[montage.Status](t, w)
	assert.Equal(t, 1, mid.ActiveSegmentIndex)
	assert.Equal(t, 2, mid.Phase)
	assert.True(t, mid.ShowOverlay)

	w = ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, 1, decode[HealthResponse](t, w).ActiveSessions)

	w = ts.do(t, http.MethodPost, base+"/stop", nil)
	requireStatus(t, w, http.StatusOK)
	stopped := decode[montage.Status](t, w)
	assert.False(t, stopped.IsPlaying)
	assert.Equal(t, playback.StateIdle, stopped.State)

	// Stopping again is harmless
	w = ts.do(t, http.MethodPost, base+"/stop", nil)
	requireStatus(t, w, http.StatusOK)

	w = ts.do(t, http.MethodGet, base+"/runs", nil)
	requireStatus(t, w, http.StatusOK)
	runs := decode[RunListResponse](t, w).Runs
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunOutcomeStopped, runs[0].Outcome)
	assert.InDelta(t, 9.0, runs[0].Elapsed, 0.11)
}

func TestPlayMontage_AutoplayBlocked(t *testing.T) {
	ts := newTestServer(t)
	ts.blockAutoplay.Store(true)
	m := ts.createMontage(t, "Opening")
	base := "/api/montages/" + m.ID.String()

	w := ts.do(t, http.MethodPost, base+"/play", nil)
	requireStatus(t, w, http.StatusPreconditionRequired)
	assert.Equal(t, "interaction_required", decode[ErrorResponse](t, w).Error)

	w = ts.do(t, http.MethodGet, base+"/status", nil)
	requireStatus(t, w, http.StatusOK)
	status := decode[montage.Status](t, w)
	assert.True(t, status.AutoplayBlocked)
	assert.False(t, status.IsPlaying)

	w = ts.do(t, http.MethodGet, base+"/runs", nil)
	runs := decode[RunListResponse](t, w).Runs
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunOutcomeInteractionRequired, runs[0].Outcome)
}

func TestPlaybackRoutes_UnknownMontage(t *testing.T) {
	ts := newTestServer(t)
	base := "/api/montages/" + uuid.New().String()

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, base + "/play"},
		{http.MethodPost, base + "/stop"},
		{http.MethodGet, base + "/status"},
		{http.MethodGet, base + "/runs"},
	} {
		t.Run(route.method+" "+route.path[len(base):], func(t *testing.T) {
			w := ts.do(t, route.method, route.path, nil)
			requireStatus(t, w, http.StatusNotFound)
			assert.Equal(t, "montage_not_found", decode[ErrorResponse](t, w).Error)
		})
	}

	w := ts.do(t, http.MethodPost, "/api/montages/not-a-uuid/play", nil)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"start in flight", playback.ErrStartInFlight, http.StatusConflict},
		{"circuit open", montage.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"manager stopped", montage.ErrManagerStopped, http.StatusServiceUnavailable},
		{"montage missing", montage.ErrMontageNotFound, http.StatusNotFound},
		{"invalid name", montage.ErrInvalidName, http.StatusBadRequest},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := classify(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}
