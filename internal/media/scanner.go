package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/models"
)

var (
	audioExtensions = []string{".mp3", ".wav"}
	videoExtensions = []string{".mp4", ".mkv", ".mov", ".webm"}
)

const (
	scanRetention = time.Hour
	sweepInterval = 15 * time.Minute
)

// ScanStatus is the lifecycle of a library scan
type ScanStatus string

// Scan statuses
const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
	ScanStatusFailed    ScanStatus = "failed"
)

// Scanner errors
var (
	ErrScanNotFound       = errors.New("scan not found")
	ErrScanAlreadyRunning = errors.New("a scan is already running")
	ErrScanNotRunning     = errors.New("scan is not running")
	ErrInvalidDirectory   = errors.New("invalid directory path")
)

// ProbeFunc extracts duration and kind from a media file
type ProbeFunc func(ctx context.Context, filePath string) (*ProbeResult, error)

// ScanProgress is the live state of one scan. Counters only move through
// its methods.
type ScanProgress struct {
	ScanID         string     `json:"scan_id"`
	Status         ScanStatus `json:"status"`
	TotalFiles     int        `json:"total_files"`
	ProcessedFiles int        `json:"processed_files"`
	SuccessCount   int        `json:"success_count"`
	FailedCount    int        `json:"failed_count"`
	CurrentFile    string     `json:"current_file"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Errors         []string   `json:"errors,omitempty"`

	mu     sync.RWMutex
	cancel context.CancelFunc
}

func (p *ScanProgress) update(fn func(p *ScanProgress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

// clone returns a detached snapshot safe to hand to callers
func (p *ScanProgress) clone() *ScanProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ScanProgress{
		ScanID:         p.ScanID,
		Status:         p.Status,
		TotalFiles:     p.TotalFiles,
		ProcessedFiles: p.ProcessedFiles,
		SuccessCount:   p.SuccessCount,
		FailedCount:    p.FailedCount,
		CurrentFile:    p.CurrentFile,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		Errors:         append([]string{}, p.Errors...),
	}
}

func (p *ScanProgress) finishedBefore(cutoff time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status != ScanStatusRunning && p.EndTime != nil && p.EndTime.Before(cutoff)
}

func (p *ScanProgress) noteError(msg string) {
	p.update(func(p *ScanProgress) { p.Errors = append(p.Errors, msg) })
}

// Scanner walks a library directory and registers every audio track and
// video clip it can probe as a media asset. One scan runs at a time.
type Scanner struct {
	repos *db.Repositories
	probe ProbeFunc
	log   zerolog.Logger

	mu      sync.RWMutex
	scans   map[string]*ScanProgress
	running string

	quit     chan struct{}
	swept    chan struct{}
	stopOnce sync.Once
}

// NewScanner creates a scanner that inspects files with ffprobe
func NewScanner(repos *db.Repositories) *Scanner {
	return NewScannerWithProbe(repos, ProbeFile)
}

// NewScannerWithProbe creates a scanner that inspects files with probe
func NewScannerWithProbe(repos *db.Repositories, probe ProbeFunc) *Scanner {
	s := &Scanner{
		repos: repos,
		probe: probe,
		log:   logger.With("scanner"),
		scans: make(map[string]*ScanProgress),
		quit:  make(chan struct{}),
		swept: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// StartScan validates dirPath and scans it in the background, returning the
// scan id. The scan is not bound to ctx's cancellation; use CancelScan.
func (s *Scanner) StartScan(ctx context.Context, dirPath string) (string, error) {
	info, err := os.Stat(dirPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: directory does not exist", ErrInvalidDirectory)
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: path is not a directory", ErrInvalidDirectory)
	}

	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	progress := &ScanProgress{
		ScanID:    uuid.New().String(),
		Status:    ScanStatusRunning,
		StartTime: time.Now().UTC(),
		Errors:    []string{},
		cancel:    cancel,
	}

	s.mu.Lock()
	if s.running != "" {
		s.mu.Unlock()
		cancel()
		return "", ErrScanAlreadyRunning
	}
	s.running = progress.ScanID
	s.scans[progress.ScanID] = progress
	s.mu.Unlock()

	s.log.Info().Str("scan_id", progress.ScanID).Str("directory", dirPath).Msg("Media scan started")
	go s.run(scanCtx, progress, dirPath)

	return progress.ScanID, nil
}

// GetScanProgress returns a copy of the scan's progress
func (s *Scanner) GetScanProgress(scanID string) (*ScanProgress, error) {
	progress, ok := s.lookup(scanID)
	if !ok {
		return nil, ErrScanNotFound
	}
	return progress.clone(), nil
}

// CancelScan stops a running scan. Files already registered stay registered.
func (s *Scanner) CancelScan(scanID string) error {
	progress, ok := s.lookup(scanID)
	if !ok {
		return ErrScanNotFound
	}

	var err error
	progress.update(func(p *ScanProgress) {
		if p.Status != ScanStatusRunning {
			err = fmt.Errorf("%w (status: %s)", ErrScanNotRunning, p.Status)
			return
		}
		p.cancel()
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("scan_id", scanID).Msg("Media scan cancellation requested")
	return nil
}

func (s *Scanner) lookup(scanID string) (*ScanProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.scans[scanID]
	return progress, ok
}

func (s *Scanner) run(ctx context.Context, progress *ScanProgress, dirPath string) {
	files := s.findMediaFiles(ctx, dirPath, progress)
	progress.update(func(p *ScanProgress) { p.TotalFiles = len(files) })
	s.log.Debug().Str("scan_id", progress.ScanID).Int("files", len(files)).Msg("Media files found")

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		s.register(ctx, path, progress)
	}

	status := ScanStatusCompleted
	if ctx.Err() != nil {
		status = ScanStatusCancelled
	}
	s.finish(progress, status)
}

// findMediaFiles lists every file under dirPath with an audio or video
// extension. Unreadable entries are noted on progress and skipped.
func (s *Scanner) findMediaFiles(ctx context.Context, dirPath string, progress *ScanProgress) []string {
	var files []string

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			progress.noteError(fmt.Sprintf("error accessing path %s: %v", path, err))
			return nil
		}
		if !d.IsDir() && extensionKind(path) != "" {
			files = append(files, path)
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Str("directory", dirPath).Msg("Directory walk failed")
		progress.noteError(fmt.Sprintf("directory walk failed: %v", err))
	}
	return files
}

// register probes one file and upserts it as a media asset
func (s *Scanner) register(ctx context.Context, path string, progress *ScanProgress) {
	progress.update(func(p *ScanProgress) { p.CurrentFile = path })

	asset, err := s.assetFor(ctx, path)
	if err == nil {
		err = s.upsertMedia(ctx, asset)
	}

	progress.update(func(p *ScanProgress) {
		p.ProcessedFiles++
		if err != nil {
			p.FailedCount++
			p.Errors = append(p.Errors, fmt.Sprintf("%s: %v", path, err))
			return
		}
		p.SuccessCount++
	})

	if err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("Failed to register media file")
		return
	}
	s.log.Debug().
		Str("file", path).
		Str("kind", asset.Kind).
		Float64("duration", asset.Duration).
		Msg("Registered media file")
}

func (s *Scanner) assetFor(ctx context.Context, path string) (*models.MediaAsset, error) {
	if v := ValidateFile(path); !v.Readable {
		return nil, fmt.Errorf("file not readable: %s", strings.Join(v.Reasons, ", "))
	}

	probed, err := s.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}

	asset := models.NewMediaAsset(path, titleFromPath(path), string(probed.Kind), probed.Duration)
	if probed.Codec != "" {
		asset.Codec = &probed.Codec
	}
	if info, err := os.Stat(path); err == nil {
		size := info.Size()
		asset.FileSize = &size
	}
	return asset, nil
}

// upsertMedia inserts the asset, or on a URI conflict rewrites the existing
// row in place. Montages point at asset ids, so a rescan keeps the id.
func (s *Scanner) upsertMedia(ctx context.Context, asset *models.MediaAsset) error {
	err := s.repos.Media.Create(ctx, asset)
	if err == nil || !db.IsDuplicate(err) {
		return err
	}

	existing, err := s.repos.Media.GetByURI(ctx, asset.URI)
	if err != nil {
		return fmt.Errorf("failed to load media %s after conflict: %w", asset.URI, err)
	}
	asset.ID = existing.ID
	asset.CreatedAt = existing.CreatedAt
	return s.repos.Media.Update(ctx, asset)
}

func (s *Scanner) finish(progress *ScanProgress, status ScanStatus) {
	end := time.Now().UTC()
	var summary ScanProgress
	progress.update(func(p *ScanProgress) {
		p.Status = status
		p.EndTime = &end
		p.CurrentFile = ""
		summary.TotalFiles, summary.SuccessCount, summary.FailedCount = p.TotalFiles, p.SuccessCount, p.FailedCount
	})
	progress.cancel()

	s.mu.Lock()
	if s.running == progress.ScanID {
		s.running = ""
	}
	s.mu.Unlock()

	s.log.Info().
		Str("scan_id", progress.ScanID).
		Str("status", string(status)).
		Int("total_files", summary.TotalFiles).
		Int("registered", summary.SuccessCount).
		Int("failed", summary.FailedCount).
		Dur("duration", end.Sub(progress.StartTime)).
		Msg("Media scan finished")
}

// extensionKind maps a file extension to a media kind, "" when unsupported
func extensionKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case lo.Contains(audioExtensions, ext):
		return KindAudio
	case lo.Contains(videoExtensions, ext):
		return KindVideo
	}
	return ""
}

// titleFromPath turns "/media/Opening Theme.mp3" into "Opening Theme"
func titleFromPath(path string) string {
	base := filepath.Base(path)
	if title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base))); title != "" {
		return title
	}
	return base
}

// Stop ends the sweeper goroutine. It may be called more than once.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		<-s.swept
	})
}

func (s *Scanner) sweepLoop() {
	defer close(s.swept)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.CleanupOldScans(scanRetention)
		}
	}
}

// CleanupOldScans forgets finished scans that ended more than olderThan ago.
// Running scans are never removed.
func (s *Scanner) CleanupOldScans(olderThan time.Duration) {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	before := len(s.scans)
	maps.DeleteFunc(s.scans, func(_ string, p *ScanProgress) bool {
		return p.finishedBefore(cutoff)
	})
	removed, remaining := before-len(s.scans), len(s.scans)
	s.mu.Unlock()

	if removed > 0 {
		s.log.Debug().Int("removed", removed).Int("remaining", remaining).Msg("Old scans removed")
	}
}
