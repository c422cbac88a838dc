package montage

import (
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/playback"
)

// Metrics receives engine and manager events for instrumentation
type Metrics interface {
	playback.Observer
	RunFinished(outcome models.RunOutcome)
	CircuitOpened()
}

// NopMetrics ignores every event
type NopMetrics struct {
	playback.NopObserver
}

func (NopMetrics) RunFinished(models.RunOutcome) {}
func (NopMetrics) CircuitOpened()                {}
