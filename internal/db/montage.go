package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stwalsh4118/montage/internal/models"
)

// MontageRepository handles database operations for montages and their
// clips and phases
type MontageRepository struct {
	db *DB
}

// NewMontageRepository creates a new montage repository
func NewMontageRepository(db *DB) *MontageRepository {
	return &MontageRepository{db: db}
}

// Create inserts a montage together with its clips and phases atomically
func (r *MontageRepository) Create(ctx context.Context, montage *models.Montage, clips []*models.MontageClip, phases []*models.MontagePhase) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(montage).Error; err != nil {
			return fmt.Errorf("failed to create montage: %w", MapGormError(err))
		}
		if len(clips) > 0 {
			if err := tx.Omit(clause.Associations).Create(&clips).Error; err != nil {
				return fmt.Errorf("failed to create montage clips: %w", MapGormError(err))
			}
		}
		if len(phases) > 0 {
			if err := tx.Create(&phases).Error; err != nil {
				return fmt.Errorf("failed to create montage phases: %w", MapGormError(err))
			}
		}
		return nil
	})
}

// GetByID retrieves a montage row without its associations
func (r *MontageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Montage, error) {
	var montage models.Montage
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&montage)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &montage, nil
}

// GetDefinition retrieves a montage with its audio asset, clips in position
// order (each with its media asset) and phases in start order
func (r *MontageRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*models.Montage, error) {
	var montage models.Montage
	result := r.db.WithContext(ctx).
		Preload("Audio").
		Preload("Clips", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Clips.Media").
		Preload("Phases", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_seconds ASC")
		}).
		Where("id = ?", id.String()).
		First(&montage)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &montage, nil
}

// List retrieves montages ordered by name
func (r *MontageRepository) List(ctx context.Context, limit, offset int) ([]*models.Montage, error) {
	var montages []*models.Montage
	query := r.db.WithContext(ctx).Order("name ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&montages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list montages: %w", MapGormError(result.Error))
	}
	return montages, nil
}

// ExistsByName checks whether a montage with the given name exists
func (r *MontageRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Montage{}).Where("name = ?", name).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check montage name: %w", MapGormError(result.Error))
	}
	return count > 0, nil
}

// Delete removes a montage. Clips, phases and runs cascade.
func (r *MontageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Montage{}, "id = ?", id.String())
	if result.Error != nil {
		return fmt.Errorf("failed to delete montage: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
