package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
)

// DefaultSweepInterval is how often every session's timers are evaluated
const DefaultSweepInterval = 5 * time.Second

// Ticker evaluates the timed transitions of one session
type Ticker interface {
	Tick(ctx context.Context, code model.SessionCode) error
}

// Sweeper periodically ticks every stored session, so timed transitions
// happen even when no client is polling
type Sweeper struct {
	storage  storage.Storage
	target   Ticker
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	after    []func()
}

// NewSweeper creates a Sweeper. Hooks in after run at the end of every sweep.
func NewSweeper(storage storage.Storage, target Ticker, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, after ...func()) *Sweeper {
	return &Sweeper{
		storage:  storage,
		target:   target,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
		after:    after,
	}
}

// Run sweeps on every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep ticks every session once. Failures are logged and do not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	codes, err := s.storage.ListSessionCodes(ctx)
	if err != nil {
		s.logger.Error("failed to list sessions", slog.String("error", err.Error()))
		return
	}
	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}
		if err := s.target.Tick(ctx, code); err != nil {
			s.logger.Error("failed to tick session",
				slog.String("session_code", string(code)),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, fn := range s.after {
		fn()
	}
}
