package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/montage/internal/models"
)

func setupTestRepos(t *testing.T) *Repositories {
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, RunMigrations(sqlDB, "file://../../migrations"))

	return NewRepositories(database)
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_journal_mode=WAL", buildDSN("a.db", Options{EnableWAL: true}))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", buildDSN("file:x?mode=memory", Options{}))
}

func TestMapGormError(t *testing.T) {
	assert.Nil(t, MapGormError(nil))
	assert.ErrorIs(t, MapGormError(assert.AnError), assert.AnError)
}

func TestMediaRepository_DuplicateURI(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Media.Create(ctx, models.NewMediaAsset("/m/a.mp4", "a", models.MediaKindVideo, 3)))
	err := repos.Media.Create(ctx, models.NewMediaAsset("/m/a.mp4", "again", models.MediaKindVideo, 3))
	assert.True(t, IsDuplicate(err))

	count, err := repos.Media.Count(ctx, models.MediaKindVideo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMontageRepository_CreateIsAtomic(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	audio := models.NewMediaAsset("/m/track.mp3", "track", models.MediaKindAudio, 30)
	require.NoError(t, repos.Media.Create(ctx, audio))

	m := models.NewMontage("Broken", audio.ID, 1)
	// The clip references media that does not exist
	clips := []*models.MontageClip{models.NewMontageClip(m.ID, uuid.New(), 0, 5)}

	err := repos.Montages.Create(ctx, m, clips, nil)
	require.Error(t, err)
	assert.True(t, IsForeignKey(err))

	exists, err := repos.Montages.ExistsByName(ctx, "Broken")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMontageRepository_DeleteCascades(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	audio := models.NewMediaAsset("/m/track.mp3", "track", models.MediaKindAudio, 30)
	clip := models.NewMediaAsset("/m/a.mp4", "a", models.MediaKindVideo, 5)
	require.NoError(t, repos.Media.Create(ctx, audio))
	require.NoError(t, repos.Media.Create(ctx, clip))

	m := models.NewMontage("Cascade", audio.ID, 1)
	require.NoError(t, repos.Montages.Create(ctx, m,
		[]*models.MontageClip{models.NewMontageClip(m.ID, clip.ID, 0, 5)},
		[]*models.MontagePhase{models.NewMontagePhase(m.ID, 1, 0)},
	))
	require.NoError(t, repos.Runs.Create(ctx, models.NewPlaybackRun(m.ID, "s1", time.Now())))

	// Referenced media cannot be removed
	assert.True(t, IsForeignKey(repos.Media.Delete(ctx, clip.ID)))

	require.NoError(t, repos.Montages.Delete(ctx, m.ID))
	assert.True(t, IsNotFound(repos.Montages.Delete(ctx, m.ID)))

	runs, err := repos.Runs.ListByMontage(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, repos.Media.Delete(ctx, clip.ID))
}

func TestPlaybackRunRepository_Lifecycle(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	audio := models.NewMediaAsset("/m/track.mp3", "track", models.MediaKindAudio, 30)
	require.NoError(t, repos.Media.Create(ctx, audio))
	m := models.NewMontage("Runs", audio.ID, 1)
	require.NoError(t, repos.Montages.Create(ctx, m, nil, nil))

	start := time.Now().Add(-time.Minute)
	finished := models.NewPlaybackRun(m.ID, "s1", start)
	require.NoError(t, repos.Runs.Create(ctx, finished))
	finished.Finish(models.RunOutcomeCompleted, 12.5, nil, start.Add(13*time.Second))
	require.NoError(t, repos.Runs.Update(ctx, finished))

	open := models.NewPlaybackRun(m.ID, "s2", start.Add(30*time.Second))
	require.NoError(t, repos.Runs.Create(ctx, open))

	n, err := repos.Runs.MarkInterrupted(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := repos.Runs.ListByMontage(ctx, m.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, open.ID, runs[0].ID)
	assert.Equal(t, models.RunOutcomeInterrupted, runs[0].Outcome)
	assert.Equal(t, models.RunOutcomeCompleted, runs[1].Outcome)
	assert.Equal(t, 12.5, runs[1].Elapsed)
	require.NotNil(t, runs[1].EndedAt)
}
