package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/montage/internal/models"
)

// PlaybackRunRepository handles database operations for playback history
type PlaybackRunRepository struct {
	db *DB
}

// NewPlaybackRunRepository creates a new playback run repository
func NewPlaybackRunRepository(db *DB) *PlaybackRunRepository {
	return &PlaybackRunRepository{db: db}
}

// Create inserts a new playback run
func (r *PlaybackRunRepository) Create(ctx context.Context, run *models.PlaybackRun) error {
	result := r.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		return fmt.Errorf("failed to create playback run: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a playback run by its UUID
func (r *PlaybackRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PlaybackRun, error) {
	var run models.PlaybackRun
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&run)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &run, nil
}

// Update persists the outcome columns of a run
func (r *PlaybackRunRepository) Update(ctx context.Context, run *models.PlaybackRun) error {
	result := r.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"outcome":  run.Outcome,
		"elapsed":  run.Elapsed,
		"error":    run.Error,
		"ended_at": run.EndedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update playback run: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByMontage retrieves the most recent runs of a montage, newest first
func (r *PlaybackRunRepository) ListByMontage(ctx context.Context, montageID uuid.UUID, limit int) ([]*models.PlaybackRun, error) {
	var runs []*models.PlaybackRun
	query := r.db.WithContext(ctx).
		Where("montage_id = ?", montageID.String()).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list playback runs: %w", MapGormError(result.Error))
	}
	return runs, nil
}

// MarkInterrupted closes every run still marked playing. Called at startup,
// since no session survives a restart.
func (r *PlaybackRunRepository) MarkInterrupted(ctx context.Context, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PlaybackRun{}).
		Where("outcome = ?", models.RunOutcomePlaying).
		Updates(map[string]interface{}{
			"outcome":  models.RunOutcomeInterrupted,
			"ended_at": at.UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}
