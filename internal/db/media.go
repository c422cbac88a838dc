package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/models"
)

// MediaRepository handles database operations for media assets
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media asset into the database
func (r *MediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	result := r.db.WithContext(ctx).Create(asset)
	if result.Error != nil {
		return fmt.Errorf("failed to create media: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a media asset by its UUID
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&asset)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &asset, nil
}

// GetByURI retrieves a media asset by its URI (for duplicate checking)
func (r *MediaRepository) GetByURI(ctx context.Context, uri string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	result := r.db.WithContext(ctx).Where("uri = ?", uri).First(&asset)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &asset, nil
}

// GetByIDs retrieves the assets with the given ids, keyed by id. Missing ids
// are simply absent from the result.
func (r *MediaRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.MediaAsset, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*models.MediaAsset{}, nil
	}

	keys := lo.Uniq(lo.Map(ids, func(id uuid.UUID, _ int) string { return id.String() }))

	var assets []*models.MediaAsset
	result := r.db.WithContext(ctx).Where("id IN ?", keys).Find(&assets)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get media: %w", MapGormError(result.Error))
	}

	return lo.KeyBy(assets, func(a *models.MediaAsset) uuid.UUID { return a.ID }), nil
}

// List retrieves media assets with pagination, optionally filtered by kind
func (r *MediaRepository) List(ctx context.Context, kind string, limit, offset int) ([]*models.MediaAsset, error) {
	var assets []*models.MediaAsset
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&assets)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media: %w", MapGormError(result.Error))
	}
	return assets, nil
}

// Count returns the number of media assets, optionally filtered by kind
func (r *MediaRepository) Count(ctx context.Context, kind string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.MediaAsset{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	result := query.Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count media: %w", MapGormError(result.Error))
	}
	return count, nil
}

// Update modifies an existing media asset
func (r *MediaRepository) Update(ctx context.Context, asset *models.MediaAsset) error {
	result := r.db.WithContext(ctx).Model(asset).Updates(map[string]interface{}{
		"uri":       asset.URI,
		"title":     asset.Title,
		"kind":      asset.Kind,
		"duration":  asset.Duration,
		"codec":     asset.Codec,
		"file_size": asset.FileSize,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a media asset. Assets still referenced by a montage fail
// with ErrForeignKey.
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MediaAsset{}, "id = ?", id.String())
	if result.Error != nil {
		return fmt.Errorf("failed to delete media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
