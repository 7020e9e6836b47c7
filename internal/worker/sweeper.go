package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the pending notification sweep.
type SweeperConfig struct {
	// PollInterval is how often to look for pending notifications (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of notifications per sweep (default: 50)
	BatchSize int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
	}
}

type pendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Sweeper periodically delivers notifications that were never announced on
// the queue or whose message was lost.
type Sweeper struct {
	processor pendingProcessor
	config    SweeperConfig

	mu      sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewSweeper(processor pendingProcessor, config SweeperConfig) *Sweeper {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSweeperConfig().PollInterval
	}
	return &Sweeper{processor: processor, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.stopOnce = new(sync.Once)
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Notification sweeper started", "poll_interval", s.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := s.stopCh, s.doneCh, s.stopOnce
	s.mu.Unlock()

	// A Stop that timed out leaves the runner marked running; a later Stop
	// waits on the same loop again.
	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Notification sweeper stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Notification sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sent, err := s.processor.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Notification sweep failed", "error", err)
		return
	}
	if sent > 0 {
		slog.DebugContext(ctx, "Notification sweep completed", "sent", sent)
	}
}
