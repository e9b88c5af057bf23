// Package sweeper periodically removes workspace entries older than a retention window.
package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeexec/internal/executor/observer"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInterval  = time.Hour
	DefaultRetention = time.Hour
)

// Config controls the sweeper.
type Config struct {
	Root      string        `yaml:"root"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

// Sweeper deletes stale entries under Root. Its loop is started and stopped
// explicitly by the owner; nothing runs at package load.
type Sweeper struct {
	cfg     Config
	metrics observer.MetricsRecorder
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper. A nil recorder disables metrics.
func New(cfg Config, metrics observer.MetricsRecorder) (*Sweeper, error) {
	if cfg.Root == "" {
		return nil, appErr.ValidationError("sweeper.root", "required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Sweeper{cfg: cfg, metrics: metrics, now: time.Now}, nil
}

// Start launches the background loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	logger.Info(ctx, "workspace sweeper started",
		zap.String("root", s.cfg.Root),
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("retention", s.cfg.Retention),
	)
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx, s.now())
			if err != nil {
				logger.Warn(ctx, "workspace sweep incomplete", zap.Int("removed", removed), zap.Error(err))
			} else if removed > 0 {
				logger.Info(ctx, "workspace sweep removed stale entries", zap.Int("removed", removed))
			}
		}
	}
}

// Sweep removes job directories under Root last modified more than Retention
// before now. Only directories named by a job id are touched, so a root shared
// with other files loses nothing else. Entries that vanish concurrently are not errors.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			s.metrics.ObserveSweep(ctx, 0, nil)
			return 0, nil
		}
		err = appErr.Wrapf(err, appErr.CleanupFailed, "read workspace root failed")
		s.metrics.ObserveSweep(ctx, 0, err)
		return 0, err
	}

	cutoff := now.Add(-s.cfg.Retention)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.Root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}

	var sweepErr error
	if len(errs) > 0 {
		sweepErr = appErr.Wrapf(errors.Join(errs...), appErr.CleanupFailed, "remove stale workspace entries failed")
	}
	s.metrics.ObserveSweep(ctx, removed, sweepErr)
	return removed, sweepErr
}
