// Package sweeper provides the retry safety net for outbox publication: a
// periodic worker running PublishOutstanding so commits whose immediate
// publish attempt failed or crashed are eventually delivered.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/getcask/ledgerbox/ledger"
	"github.com/getcask/ledgerbox/ledger/store"
)

// Publisher is the slice of the store the sweeper needs.
type Publisher interface {
	PublishOutstanding(ctx context.Context, fn ledger.PublishFunc, opts store.SweepOptions) error
}

// Config configures a sweeper.
type Config struct {
	// Interval is the time between sweep passes
	Interval time.Duration

	// MinAge is the minimum age of outbox entries considered by a pass.
	// Entries younger than this are left for the fast path.
	MinAge time.Duration

	// Limit caps the number of outbox entries claimed per pass
	Limit int

	// Workers is the number of concurrent sweep loops. Parallel sweepers
	// are safe: discovery skips rows already locked by another sweeper.
	Workers int

	// Logger receives operational logging; defaults to a no-op zap logger
	Logger *zap.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	opts := store.DefaultSweepOptions()
	return Config{
		Interval: 5 * time.Second,
		MinAge:   opts.MinAge,
		Limit:    opts.Limit,
		Workers:  1,
		Logger:   zap.NewNop(),
	}
}

// Sweeper periodically publishes outstanding outbox entries.
type Sweeper struct {
	publisher Publisher
	fn        ledger.PublishFunc
	config    Config
}

// New creates a sweeper that delivers outstanding commits through fn.
func New(publisher Publisher, fn ledger.PublishFunc, config Config) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Limit <= 0 {
		config.Limit = DefaultConfig().Limit
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Sweeper{
		publisher: publisher,
		fn:        fn,
		config:    config,
	}
}

// Run sweeps until the context is canceled, then returns the context's
// error. A failed pass is logged and left for the next tick: the sweep
// transaction already rolled back, so the entries it claimed are simply
// retried later.
func (s *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		worker := i
		g.Go(func() error {
			return s.runWorker(ctx, worker)
		})
	}
	return g.Wait()
}

func (s *Sweeper) runWorker(ctx context.Context, worker int) error {
	logger := s.config.Logger.With(zap.Int("worker", worker))
	logger.Info("sweeper worker starting",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("min_age", s.config.MinAge),
		zap.Int("limit", s.config.Limit))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper worker stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			opts := store.SweepOptions{
				MinAge: s.config.MinAge,
				Limit:  s.config.Limit,
			}
			if err := s.publisher.PublishOutstanding(ctx, s.fn, opts); err != nil {
				logger.Error("sweep pass failed", zap.Error(err))
			}
		}
	}
}
