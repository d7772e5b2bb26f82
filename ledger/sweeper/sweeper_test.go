package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/getcask/ledgerbox/ledger"
	"github.com/getcask/ledgerbox/ledger/store"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	opts  store.SweepOptions
	err   error
}

func (f *fakePublisher) PublishOutstanding(_ context.Context, _ ledger.PublishFunc, opts store.SweepOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = opts
	return f.err
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func noopPublish(_ context.Context, _ []ledger.Event) error { return nil }

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 5*time.Second, config.Interval)
	assert.Equal(t, 30*time.Second, config.MinAge)
	assert.Equal(t, 100, config.Limit)
	assert.Equal(t, 1, config.Workers)
	assert.NotNil(t, config.Logger)
}

func TestNew_NormalizesConfig(t *testing.T) {
	s := New(&fakePublisher{}, noopPublish, Config{})

	assert.Equal(t, 5*time.Second, s.config.Interval)
	assert.Equal(t, 100, s.config.Limit)
	assert.Equal(t, 1, s.config.Workers)
	assert.NotNil(t, s.config.Logger)
}

func TestRun_SweepsUntilCanceled(t *testing.T) {
	publisher := &fakePublisher{}
	s := New(publisher, noopPublish, Config{
		Interval: 5 * time.Millisecond,
		MinAge:   time.Second,
		Limit:    7,
		Logger:   zap.NewNop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.GreaterOrEqual(t, publisher.callCount(), 1)
	assert.Equal(t, time.Second, publisher.opts.MinAge)
	assert.Equal(t, 7, publisher.opts.Limit)
}

func TestRun_ContinuesAfterSweepFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("publish callback: broker down")}
	s := New(publisher, noopPublish, Config{
		Interval: 5 * time.Millisecond,
		Logger:   zap.NewNop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A failed pass is retried on later ticks, not fatal.
	assert.GreaterOrEqual(t, publisher.callCount(), 2)
}

func TestRun_MultipleWorkers(t *testing.T) {
	publisher := &fakePublisher{}
	s := New(publisher, noopPublish, Config{
		Interval: 5 * time.Millisecond,
		Workers:  3,
		Logger:   zap.NewNop(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.GreaterOrEqual(t, publisher.callCount(), 3)
}
