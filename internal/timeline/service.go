// Package timeline provides the montage timeline model and loads playable
// timelines from stored montage definitions.
package timeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/models"
)

// Definition is a stored montage resolved into a playable timeline
type Definition struct {
	Montage           *models.Montage
	Timeline          *Timeline
	MontageStartPhase int
	// AudioMediaID is the media id of the master clock track
	AudioMediaID string
	// Assets maps every media id the definition references to its asset
	Assets map[string]*models.MediaAsset
}

// Build turns a montage with its clips, phases and assets loaded into a
// validated Definition. Segment media ids are the asset UUID strings.
func Build(m *models.Montage) (*Definition, error) {
	clips := lo.Map(m.Clips, func(c *models.MontageClip, _ int) Clip {
		return Clip{MediaID: c.MediaID.String(), Duration: c.Duration}
	})
	phases := lo.Map(m.Phases, func(p *models.MontagePhase, _ int) PhaseBreakpoint {
		return PhaseBreakpoint{Phase: p.Phase, Start: p.StartSeconds}
	})

	tl, err := FromClips(clips, phases)
	if err != nil {
		return nil, err
	}

	assets := make(map[string]*models.MediaAsset, len(m.Clips)+1)
	if m.Audio != nil {
		assets[m.AudioMediaID.String()] = m.Audio
	}
	for _, c := range m.Clips {
		if c.Media != nil {
			assets[c.MediaID.String()] = c.Media
		}
	}

	return &Definition{
		Montage:           m,
		Timeline:          tl,
		MontageStartPhase: m.MontageStartPhase,
		AudioMediaID:      m.AudioMediaID.String(),
		Assets:            assets,
	}, nil
}

// AssetDuration returns the probed duration of mediaID, or zero when unknown
func (d *Definition) AssetDuration(mediaID string) float64 {
	if a, ok := d.Assets[mediaID]; ok {
		return a.Duration
	}
	return 0
}

// Service loads montage definitions from the database
type Service struct {
	repos *db.Repositories
}

// NewService creates a new timeline service instance
func NewService(repos *db.Repositories) *Service {
	return &Service{
		repos: repos,
	}
}

// Load fetches a montage with its clips and phases and builds its timeline.
//
// Returns:
//   - Definition: the validated timeline plus the assets it references
//   - error: ErrMontageNotFound, a timeline validation error (ErrEmptyTimeline,
//     ErrInvalidSegment, ErrUnsortedBreakpoints), or wrapped database errors
func (s *Service) Load(ctx context.Context, montageID uuid.UUID) (*Definition, error) {
	logger.Log.Debug().
		Str("montage_id", montageID.String()).
		Msg("Loading montage timeline")

	m, err := s.repos.Montages.GetDefinition(ctx, montageID)
	if err != nil {
		if db.IsNotFound(err) {
			logger.Log.Warn().
				Str("montage_id", montageID.String()).
				Msg("Timeline load failed: montage not found")
			return nil, ErrMontageNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("montage_id", montageID.String()).
			Msg("Failed to fetch montage from database")
		return nil, fmt.Errorf("failed to get montage: %w", err)
	}

	def, err := Build(m)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("montage_id", montageID.String()).
			Int("clips", len(m.Clips)).
			Int("phases", len(m.Phases)).
			Msg("Stored montage does not form a valid timeline")
		return nil, err
	}

	logger.Log.Info().
		Str("montage_id", montageID.String()).
		Int("segments", def.Timeline.Len()).
		Float64("total_duration", def.Timeline.TotalDuration()).
		Msg("Montage timeline loaded")

	return def, nil
}
