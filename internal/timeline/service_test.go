package timeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/models"
)

// setupTestService creates a service with a test database
func setupTestService(t *testing.T) (*Service, *db.Repositories, func()) {
	// Create temporary database
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	// Run migrations
	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	migrationsPath := "file://../../migrations"
	err = db.RunMigrations(sqlDB, migrationsPath)
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	service := NewService(repos)

	cleanup := func() {
		_ = database.Close()
	}

	return service, repos, cleanup
}

func createAsset(t *testing.T, repos *db.Repositories, uri, kind string, duration float64) *models.MediaAsset {
	asset := models.NewMediaAsset(uri, filepath.Base(uri), kind, duration)
	require.NoError(t, repos.Media.Create(context.Background(), asset))
	return asset
}

func TestNewService(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	assert.NotNil(t, service)
	assert.NotNil(t, service.repos)
}

func TestLoad_Success(t *testing.T) {
	service, repos, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	audio := createAsset(t, repos, "/media/track.mp3", models.MediaKindAudio, 20)
	clipA := createAsset(t, repos, "/media/a.mp4", models.MediaKindVideo, 8)
	clipB := createAsset(t, repos, "/media/b.mp4", models.MediaKindVideo, 4)

	m := models.NewMontage("Opening", audio.ID, 2)
	// Inserted out of order on purpose; positions decide the order.
	clips := []*models.MontageClip{
		models.NewMontageClip(m.ID, clipB.ID, 1, 6),
		models.NewMontageClip(m.ID, clipA.ID, 0, 8),
	}
	phases := []*models.MontagePhase{
		models.NewMontagePhase(m.ID, 2, 8),
		models.NewMontagePhase(m.ID, 1, 0),
	}
	require.NoError(t, repos.Montages.Create(ctx, m, clips, phases))

	def, err := service.Load(ctx, m.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, def.MontageStartPhase)
	assert.Equal(t, audio.ID.String(), def.AudioMediaID)
	require.Equal(t, 2, def.Timeline.Len())
	assert.Equal(t, Segment{MediaID: clipA.ID.String(), Start: 0, End: 8}, def.Timeline.Segment(0))
	assert.Equal(t, Segment{MediaID: clipB.ID.String(), Start: 8, End: 14}, def.Timeline.Segment(1))
	assert.Equal(t, 14.0, def.Timeline.TotalDuration())

	assert.Equal(t, 1, def.Timeline.PhaseAt(3))
	assert.Equal(t, 2, def.Timeline.PhaseAt(9))

	assert.Len(t, def.Assets, 3)
	assert.Equal(t, 4.0, def.AssetDuration(clipB.ID.String()))
	assert.Zero(t, def.AssetDuration("missing"))
}

func TestLoad_NotFound(t *testing.T) {
	service, _, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrMontageNotFound)
}

func TestLoad_EmptyMontage(t *testing.T) {
	service, repos, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	audio := createAsset(t, repos, "/media/track.mp3", models.MediaKindAudio, 20)
	m := models.NewMontage("Empty", audio.ID, 1)
	require.NoError(t, repos.Montages.Create(ctx, m, nil, nil))

	_, err := service.Load(ctx, m.ID)
	assert.ErrorIs(t, err, ErrEmptyTimeline)
}

func TestBuild_RejectsUnsortedPhases(t *testing.T) {
	audioID := uuid.New()
	m := models.NewMontage("Bad", audioID, 1)
	m.Clips = []*models.MontageClip{models.NewMontageClip(m.ID, uuid.New(), 0, 5)}
	m.Phases = []*models.MontagePhase{
		models.NewMontagePhase(m.ID, 2, 3),
		models.NewMontagePhase(m.ID, 1, 1),
	}

	_, err := Build(m)
	assert.ErrorIs(t, err, ErrUnsortedBreakpoints)
}
