package seasonality

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/cardplanner/internal/domain"
	"github.com/fsnotify/fsnotify"
)

// Service serves seasonality factors from a calendar file. The calendar is
// loaded once and kept until Invalidate is called or the file changes while
// Watch is running.
type Service struct {
	path string

	mu     sync.Mutex
	cfg    *domain.SeasonalityConfig
	loads  int
	loader func(path string) (domain.SeasonalityConfig, error)
}

// NewService creates a Service for a calendar file. An empty path yields an
// empty calendar, so every factor is 1.0.
func NewService(path string) *Service {
	return &Service{path: path, loader: LoadFile}
}

// NewStaticService serves a fixed calendar that is never reloaded.
func NewStaticService(cfg domain.SeasonalityConfig) *Service {
	s := &Service{loader: func(string) (domain.SeasonalityConfig, error) { return cfg, nil }}
	s.cfg = &cfg
	return s
}

// Config returns the memoized calendar, loading it on first use.
func (s *Service) Config() (domain.SeasonalityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return *s.cfg, nil
	}
	if s.path == "" {
		s.cfg = &domain.SeasonalityConfig{}
		return *s.cfg, nil
	}
	cfg, err := s.loader(s.path)
	if err != nil {
		return domain.SeasonalityConfig{}, fmt.Errorf("seasonality.Config: %w", err)
	}
	s.loads++
	s.cfg = &cfg
	slog.Debug("seasonality: calendar loaded",
		"path", s.path,
		"events", len(cfg.Events),
		"reprints", len(cfg.Reprints),
	)
	return cfg, nil
}

// Invalidate drops the memoized calendar; the next call reloads it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return
	}
	s.cfg = nil
}

// Factor returns the multiplier for a card on a date.
func (s *Service) Factor(card Card, date time.Time) (float64, error) {
	cfg, err := s.Config()
	if err != nil {
		return 1.0, err
	}
	return Factor(card, date, cfg), nil
}

// Breakdown returns the sub-factors for a card on a date.
func (s *Service) Breakdown(card Card, date time.Time) (FactorBreakdown, error) {
	cfg, err := s.Config()
	if err != nil {
		return FactorBreakdown{}, err
	}
	return Breakdown(card, date, cfg), nil
}

// Watch invalidates the calendar whenever its file is written, created or
// renamed. It blocks until ctx is cancelled. The parent directory is watched
// so editors that replace the file atomically are still seen.
func (s *Service) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("seasonality.Watch: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("seasonality.Watch: watch %q: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.Invalidate()
				slog.Info("seasonality: calendar changed, cache invalidated", "path", s.path, "op", event.Op.String())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("seasonality: watcher error", "err", err)
		}
	}
}

// loadCount reports how many times the calendar was read from disk.
func (s *Service) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
