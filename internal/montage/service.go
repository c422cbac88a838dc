// Package montage manages montage definitions and the playback sessions that
// run them.
package montage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// ClipInput is one clip of a montage being created, in play order
type ClipInput struct {
	MediaID  uuid.UUID
	Duration float64
}

// PhaseInput is one phase breakpoint of a montage being created
type PhaseInput struct {
	Phase        int
	StartSeconds float64
}

// CreateInput describes a new montage
type CreateInput struct {
	Name              string
	AudioMediaID      uuid.UUID
	MontageStartPhase int
	Clips             []ClipInput
	Phases            []PhaseInput
}

// Service handles business logic for montage definitions
type Service struct {
	repos *db.Repositories
}

// NewService creates a new montage service instance
func NewService(repos *db.Repositories) *Service {
	return &Service{
		repos: repos,
	}
}

// CreateMontage validates and stores a montage. The clips and phases must
// form a valid timeline; nothing is written otherwise.
func (s *Service) CreateMontage(ctx context.Context, in CreateInput) (*models.Montage, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("failed to create montage: %w", ErrInvalidName)
	}

	exists, err := s.repos.Montages.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create montage: %w", err)
	}
	if exists {
		logger.Log.Warn().
			Str("name", name).
			Msg("Montage creation failed: duplicate name")
		return nil, fmt.Errorf("failed to create montage: %w", ErrDuplicateMontageName)
	}

	m := models.NewMontage(name, in.AudioMediaID, in.MontageStartPhase)
	m.Clips = lo.Map(in.Clips, func(c ClipInput, i int) *models.MontageClip {
		return models.NewMontageClip(m.ID, c.MediaID, i, c.Duration)
	})
	m.Phases = lo.Map(in.Phases, func(p PhaseInput, _ int) *models.MontagePhase {
		return models.NewMontagePhase(m.ID, p.Phase, p.StartSeconds)
	})

	if err := s.attachAssets(ctx, m); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("name", name).
			Msg("Montage creation failed: invalid media")
		return nil, fmt.Errorf("failed to create montage: %w", err)
	}

	// Reject anything the engine could not play
	if _, err := timeline.Build(m); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("name", name).
			Int("clips", len(m.Clips)).
			Msg("Montage creation failed: invalid timeline")
		return nil, fmt.Errorf("failed to create montage: %w", err)
	}

	if err := s.repos.Montages.Create(ctx, m, m.Clips, m.Phases); err != nil {
		if db.IsDuplicate(err) {
			return nil, fmt.Errorf("failed to create montage: %w", ErrDuplicateMontageName)
		}
		logger.Log.Error().
			Err(err).
			Str("name", name).
			Msg("Failed to create montage in database")
		return nil, fmt.Errorf("failed to create montage: %w", err)
	}

	logger.Log.Info().
		Str("montage_id", m.ID.String()).
		Str("name", m.Name).
		Int("clips", len(m.Clips)).
		Int("phases", len(m.Phases)).
		Msg("Montage created successfully")

	return m, nil
}

// attachAssets loads the audio and clip assets and checks their kinds
func (s *Service) attachAssets(ctx context.Context, m *models.Montage) error {
	ids := append([]uuid.UUID{m.AudioMediaID}, lo.Map(m.Clips, func(c *models.MontageClip, _ int) uuid.UUID {
		return c.MediaID
	})...)

	assets, err := s.repos.Media.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	audio, ok := assets[m.AudioMediaID]
	if !ok {
		return fmt.Errorf("audio %s: %w", m.AudioMediaID, ErrMediaNotFound)
	}
	if !audio.IsAudio() {
		return fmt.Errorf("audio %s: %w", m.AudioMediaID, ErrNotAudio)
	}
	m.Audio = audio

	for _, clip := range m.Clips {
		asset, ok := assets[clip.MediaID]
		if !ok {
			return fmt.Errorf("clip %d: %w", clip.Position, ErrMediaNotFound)
		}
		if asset.Kind != models.MediaKindVideo {
			return fmt.Errorf("clip %d: %w", clip.Position, ErrNotVideo)
		}
		clip.Media = asset
	}
	return nil
}

// GetByID retrieves a montage with its audio, clips and phases
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Montage, error) {
	m, err := s.repos.Montages.GetDefinition(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrMontageNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("montage_id", id.String()).
			Msg("Failed to get montage by ID")
		return nil, fmt.Errorf("failed to get montage: %w", err)
	}
	return m, nil
}

// List retrieves montages ordered by name
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Montage, error) {
	montages, err := s.repos.Montages.List(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list montages")
		return nil, fmt.Errorf("failed to list montages: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(montages)).
		Msg("Listed montages")

	return montages, nil
}

// Delete removes a montage and its clips, phases and run history
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Montages.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrMontageNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("montage_id", id.String()).
			Msg("Failed to delete montage")
		return fmt.Errorf("failed to delete montage: %w", err)
	}

	logger.Log.Info().
		Str("montage_id", id.String()).
		Msg("Montage deleted successfully")

	return nil
}
