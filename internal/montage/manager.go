package montage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stwalsh4118/montage/internal/clock"
	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/models"
	"github.com/stwalsh4118/montage/internal/playback"
	"github.com/stwalsh4118/montage/internal/scheduler"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// Status is a montage's playback snapshot plus manager bookkeeping
type Status struct {
	playback.Snapshot
	MontageID    uuid.UUID `json:"montage_id"`
	CircuitState string    `json:"circuit_state"`
	Backend      string    `json:"backend"`
}

// DefinitionLoader loads a montage's playable definition
type DefinitionLoader interface {
	Load(ctx context.Context, montageID uuid.UUID) (*timeline.Definition, error)
}

// ManagerOptions configure a Manager
type ManagerOptions struct {
	Repos     *db.Repositories
	Timelines DefinitionLoader
	Backend   Backend
	Scheduler scheduler.Scheduler
	Config    config.PlaybackConfig
	Metrics   Metrics
	// Now stamps runs and idle times; defaults to the scheduler's clock
	Now func() time.Time
}

// entry is one montage's live session
type entry struct {
	montageID uuid.UUID
	session   *playback.Session
	starting  atomic.Bool

	mu         sync.Mutex
	run        *models.PlaybackRun
	elapsed    float64
	lastActive time.Time
}

// Manager owns one playback session per montage, records every run and
// guards restarts with a per-montage circuit breaker
type Manager struct {
	repos     *db.Repositories
	timelines DefinitionLoader
	backend   Backend
	sched     scheduler.Scheduler
	cfg       config.PlaybackConfig
	metrics   Metrics
	now       func() time.Time
	log       zerolog.Logger

	mu       sync.RWMutex
	entries  map[uuid.UUID]*entry
	breakers map[uuid.UUID]*CircuitBreaker
	stopped  bool

	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
}

// NewManager creates a new playback manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = opts.Scheduler.Now
	}
	return &Manager{
		repos:       opts.Repos,
		timelines:   opts.Timelines,
		backend:     opts.Backend,
		sched:       opts.Scheduler,
		cfg:         opts.Config,
		metrics:     opts.Metrics,
		now:         opts.Now,
		log:         logger.With("manager"),
		entries:     make(map[uuid.UUID]*entry),
		breakers:    make(map[uuid.UUID]*CircuitBreaker),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Start launches the idle-session cleanup loop
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.cleanupTicker != nil {
		return nil
	}

	m.cleanupTicker = time.NewTicker(m.cfg.CleanupInterval)
	go m.runCleanupLoop()

	m.log.Info().
		Dur("cleanup_interval", m.cfg.CleanupInterval).
		Dur("grace_period", m.cfg.SessionGracePeriod).
		Str("backend", m.backend.Name()).
		Msg("Playback manager started")

	return nil
}

// Stop shuts the manager down, closing every session. Open runs end as
// stopped. It is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	ticker := m.cleanupTicker
	m.mu.Unlock()

	m.log.Info().Msg("Stopping playback manager...")

	close(m.stopChan)
	if ticker != nil {
		<-m.cleanupDone
		ticker.Stop()
	}

	for _, id := range m.montageIDs() {
		m.closeSession(id)
	}

	m.log.Info().Msg("Playback manager stopped")
}

// PlayMontage starts playback of a montage, creating its session on first
// use. A montage already playing returns its status unchanged. When the host
// refuses autoplay the error matches playback.IsAutoplayBlocked and the call
// may be retried after a user gesture.
func (m *Manager) PlayMontage(ctx context.Context, montageID uuid.UUID) (*Status, error) {
	if m.isStopped() {
		return nil, ErrManagerStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	breaker := m.breakerFor(montageID)
	if !breaker.CanAttempt() {
		m.log.Warn().
			Str("montage_id", montageID.String()).
			Msg("Playback refused: circuit breaker open")
		return nil, ErrCircuitOpen
	}

	e, err := m.entryFor(ctx, montageID)
	if err != nil {
		return nil, err
	}

	if !e.starting.CompareAndSwap(false, true) {
		return nil, playback.ErrStartInFlight
	}
	defer e.starting.Store(false)

	if e.session.State() == playback.StatePlaying {
		return m.statusOf(e), nil
	}

	run := models.NewPlaybackRun(montageID, e.session.ID(), m.now())
	if err := m.repos.Runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record playback run: %w", err)
	}
	e.mu.Lock()
	e.run = run
	e.elapsed = 0
	e.lastActive = m.now()
	e.mu.Unlock()

	err = e.session.Start(ctx)
	switch {
	case err == nil:
		breaker.RecordSuccess()
		m.log.Info().
			Str("montage_id", montageID.String()).
			Str("session_id", e.session.ID()).
			Str("run_id", run.ID.String()).
			Msg("Montage playback started")
		return m.statusOf(e), nil
	case playback.IsAutoplayBlocked(err):
		m.finishRun(e, models.RunOutcomeInteractionRequired, err)
		return m.statusOf(e), err
	case errors.Is(err, playback.ErrStartAborted):
		m.finishRun(e, models.RunOutcomeStopped, nil)
		return nil, err
	default:
		// Clock failures already went through the error hook
		m.finishRun(e, models.RunOutcomeFailed, err)
		return nil, err
	}
}

// StopMontage stops a montage's playback, keeping its session for reuse
func (m *Manager) StopMontage(_ context.Context, montageID uuid.UUID) (*Status, error) {
	e, ok := m.lookup(montageID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	elapsed := m.elapsedOf(e)
	e.session.Stop()
	m.finishRunAt(e, models.RunOutcomeStopped, elapsed, nil)
	m.touch(e)

	m.log.Info().
		Str("montage_id", montageID.String()).
		Msg("Montage playback stopped")

	return m.statusOf(e), nil
}

// GetStatus returns the montage's current playback status
func (m *Manager) GetStatus(montageID uuid.UUID) (*Status, error) {
	e, ok := m.lookup(montageID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.statusOf(e), nil
}

// IdleStatus describes a montage that has no live session
func (m *Manager) IdleStatus(montageID uuid.UUID) *Status {
	return &Status{
		Snapshot:     playback.Snapshot{State: playback.StateIdle},
		MontageID:    montageID,
		CircuitState: m.breakerFor(montageID).GetState().String(),
		Backend:      m.backend.Name(),
	}
}

// Runs returns the most recent playback runs of a montage
func (m *Manager) Runs(ctx context.Context, montageID uuid.UUID, limit int) ([]*models.PlaybackRun, error) {
	if _, err := m.repos.Montages.GetByID(ctx, montageID); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrMontageNotFound
		}
		return nil, fmt.Errorf("failed to get montage: %w", err)
	}

	runs, err := m.repos.Runs.ListByMontage(ctx, montageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Remove closes and forgets a montage's session and circuit breaker. Called
// when the montage itself is deleted.
func (m *Manager) Remove(montageID uuid.UUID) {
	m.mu.Lock()
	delete(m.breakers, montageID)
	m.mu.Unlock()

	m.closeSession(montageID)
}

// closeSession closes a montage's session; its circuit breaker survives
func (m *Manager) closeSession(montageID uuid.UUID) {
	m.mu.Lock()
	e, ok := m.entries[montageID]
	delete(m.entries, montageID)
	m.mu.Unlock()

	if !ok {
		return
	}

	m.finishRunAt(e, models.RunOutcomeStopped, m.elapsedOf(e), nil)

	if err := e.session.Close(); err != nil {
		m.log.Warn().
			Err(err).
			Str("montage_id", montageID.String()).
			Msg("Failed to close session")
	}

	m.log.Debug().
		Str("montage_id", montageID.String()).
		Msg("Session removed")
}

// ActiveSessions returns how many montages are currently playing
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries {
		if e.session.State() == playback.StatePlaying {
			count++
		}
	}
	return count
}

func (m *Manager) isStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

func (m *Manager) lookup(montageID uuid.UUID) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[montageID]
	return e, ok
}

func (m *Manager) montageIDs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) breakerFor(montageID uuid.UUID) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[montageID]; ok {
		return cb
	}
	cb := newCircuitBreaker(m.cfg.CircuitThreshold, m.cfg.CircuitResetTimeout, m.now)
	m.breakers[montageID] = cb
	return cb
}

// entryFor returns the montage's session, loading its definition and
// building a session the first time. The definition is loaded without the
// manager lock; when two callers race, the first to register wins and the
// other's session is released.
func (m *Manager) entryFor(ctx context.Context, montageID uuid.UUID) (*entry, error) {
	m.mu.RLock()
	e, ok := m.entries[montageID]
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, ErrManagerStopped
	}
	if ok {
		return e, nil
	}

	def, err := m.timelines.Load(ctx, montageID)
	if err != nil {
		return nil, err
	}

	master, clips, err := m.backend.Open(def)
	if err != nil {
		return nil, err
	}

	e = &entry{montageID: montageID, lastActive: m.now()}
	session, err := playback.NewSession(playback.Options{
		Timeline:              def.Timeline,
		MontageStartPhase:     def.MontageStartPhase,
		Clock:                 clock.New(master),
		Resolver:              clips,
		Scheduler:             m.sched,
		WatchdogInterval:      m.cfg.WatchdogInterval,
		StallRecoveryDelay:    m.cfg.StallRecoveryDelay,
		FallbackAssetDuration: m.cfg.FallbackAssetDuration,
		Hooks:                 m.hooksFor(e),
		Observer:              m.metrics,
	})
	if err != nil {
		_ = master.Close()
		closeResolver(clips)
		return nil, err
	}
	e.session = session

	m.mu.Lock()
	existing, raced := m.entries[montageID]
	stopped = m.stopped
	if !raced && !stopped {
		m.entries[montageID] = e
	}
	m.mu.Unlock()

	if raced || stopped {
		_ = session.Close()
		closeResolver(clips)
		if stopped {
			return nil, ErrManagerStopped
		}
		return existing, nil
	}

	m.log.Debug().
		Str("montage_id", montageID.String()).
		Str("session_id", session.ID()).
		Int("segments", def.Timeline.Len()).
		Msg("Session created")

	return e, nil
}

// closeResolver releases a clip resolver that owns resources
func closeResolver(r media.Resolver) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

func (m *Manager) hooksFor(e *entry) playback.Hooks {
	track := func(snap playback.Snapshot) {
		e.mu.Lock()
		e.elapsed = snap.Elapsed
		e.lastActive = m.now()
		e.mu.Unlock()
	}

	return playback.Hooks{
		OnSegmentChange: track,
		OnPhaseChange:   track,
		OnComplete: func(snap playback.Snapshot) {
			track(snap)
			m.finishRun(e, models.RunOutcomeCompleted, nil)
		},
		OnError: func(err error) {
			if m.breakerFor(e.montageID).RecordFailure() {
				m.metrics.CircuitOpened()
				m.log.Warn().
					Str("montage_id", e.montageID.String()).
					Dur("reset_timeout", m.cfg.CircuitResetTimeout).
					Msg("Circuit breaker opened")
			}
			m.finishRun(e, models.RunOutcomeFailed, err)
		},
		OnInteractionRequired: func() {
			m.log.Info().
				Str("montage_id", e.montageID.String()).
				Msg("Playback needs user interaction")
		},
		OnStateChange: func(from, to playback.State) {
			m.touch(e)
			m.log.Debug().
				Str("montage_id", e.montageID.String()).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Session state changed")
		},
	}
}

// elapsedOf returns the live position while playing, else the last one seen
func (m *Manager) elapsedOf(e *entry) float64 {
	if snap := e.session.Snapshot(); snap.IsPlaying {
		return snap.Elapsed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

func (m *Manager) touch(e *entry) {
	e.mu.Lock()
	e.lastActive = m.now()
	e.mu.Unlock()
}

func (m *Manager) finishRun(e *entry, outcome models.RunOutcome, cause error) {
	e.mu.Lock()
	elapsed := e.elapsed
	e.mu.Unlock()
	m.finishRunAt(e, outcome, elapsed, cause)
}

// finishRunAt closes the entry's open run once; later calls are no-ops
func (m *Manager) finishRunAt(e *entry, outcome models.RunOutcome, elapsed float64, cause error) {
	e.mu.Lock()
	run := e.run
	if run == nil || !run.Finish(outcome, elapsed, cause, m.now()) {
		e.mu.Unlock()
		return
	}
	e.run = nil
	e.mu.Unlock()

	if err := m.repos.Runs.Update(context.Background(), run); err != nil {
		m.log.Error().
			Err(err).
			Str("run_id", run.ID.String()).
			Msg("Failed to record run outcome")
	}
	m.metrics.RunFinished(outcome)

	m.log.Info().
		Str("montage_id", e.montageID.String()).
		Str("run_id", run.ID.String()).
		Str("outcome", outcome.String()).
		Float64("elapsed", elapsed).
		Msg("Playback run finished")
}

func (m *Manager) statusOf(e *entry) *Status {
	return &Status{
		Snapshot:     e.session.Snapshot(),
		MontageID:    e.montageID,
		CircuitState: m.breakerFor(e.montageID).GetState().String(),
		Backend:      m.backend.Name(),
	}
}

// runCleanupLoop periodically closes idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	m.log.Debug().Msg("Cleanup loop started")

	for {
		select {
		case <-m.stopChan:
			m.log.Debug().Msg("Cleanup loop stopping")
			return
		case <-m.cleanupTicker.C:
			m.performCleanup()
		}
	}
}

// performCleanup closes sessions that have not played for the grace period
func (m *Manager) performCleanup() {
	m.mu.RLock()
	var idle []uuid.UUID
	for id, e := range m.entries {
		if e.starting.Load() || e.session.State() == playback.StatePlaying {
			continue
		}
		e.mu.Lock()
		since := m.now().Sub(e.lastActive)
		e.mu.Unlock()
		if since >= m.cfg.SessionGracePeriod {
			idle = append(idle, id)
		}
	}
	total := len(m.entries)
	m.mu.RUnlock()

	for _, id := range idle {
		m.log.Info().
			Str("montage_id", id.String()).
			Msg("Cleaning up idle session")
		m.closeSession(id)
	}

	if len(idle) > 0 {
		m.log.Info().
			Int("removed_count", len(idle)).
			Int("remaining_count", total-len(idle)).
			Msg("Cleanup cycle completed")
	}
}
