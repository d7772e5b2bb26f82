// Package store provides the storage abstraction and error taxonomy for the
// event log and outbox.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/getcask/ledgerbox/ledger"
)

var (
	// ErrConflict indicates a unique-constraint violation on an event index
	// or a commit version. The caller must reload current stream state and
	// retry the commit with fresh values. Never retried internally.
	ErrConflict = errors.New("commit conflict")

	// ErrEmptyCommit indicates an attempt to save a commit with no events.
	ErrEmptyCommit = errors.New("commit has no events")
)

// SweepOptions bounds one PublishOutstanding pass.
type SweepOptions struct {
	// MinAge is the minimum age of outbox entries considered by the sweep.
	// The fast path publishes immediately after Save; the sweep is a safety
	// net for crashed or failed attempts and deliberately ignores very
	// recent entries to avoid racing the fast path.
	MinAge time.Duration

	// Limit caps the number of outbox entries claimed in one pass
	Limit int
}

// DefaultSweepOptions returns the default sweep bounds.
func DefaultSweepOptions() SweepOptions {
	return SweepOptions{
		MinAge: 30 * time.Second,
		Limit:  100,
	}
}

// StreamHead reports the highest observed positions of a stream.
// It is advisory: the store never allocates indexes or commit versions, and
// a head read outside the commit transaction can be stale by the time the
// caller uses it. The outbox primary key remains the arbiter.
type StreamHead struct {
	// LastIndex is the highest event index in the stream
	LastIndex int64

	// LastCommitVersion is the highest commit version in the stream
	LastCommitVersion int64

	// Exists reports whether the stream has any events at all
	Exists bool
}

// Store defines the commit, replay and publication operations of the engine.
type Store interface {
	// Save atomically appends the commit's events and registers its outbox
	// entry within one transaction. All rows become visible atomically or
	// none do. Returns ErrConflict on a duplicate index or duplicate commit
	// version, ErrEmptyCommit when the commit carries no events.
	Save(ctx context.Context, commit ledger.Commit) error

	// Load replays the stream's events with commit version strictly greater
	// than from.CommitVersion, ordered by index, invoking onEvent for each.
	// Returns the last observed commit and event locations, or an empty
	// result if nothing was found past the resume point.
	Load(ctx context.Context, from ledger.StreamLocation, onEvent ledger.EventHandler) (ledger.LoadResult, error)

	// Publish locks all pending outbox entries for the stream with commit
	// version up to and including to.CommitVersion, delivers their events
	// through fn as one ordered batch, and deletes the entries only if fn
	// succeeds. A no-op when nothing is pending.
	Publish(ctx context.Context, to ledger.StreamLocation, fn ledger.PublishFunc) error

	// PublishOutstanding discovers up to opts.Limit outbox entries older
	// than opts.MinAge across all streams, skipping entries claimed by
	// concurrent sweepers, and publishes each in sequence within one
	// transaction. Any failure aborts the entire sweep.
	PublishOutstanding(ctx context.Context, fn ledger.PublishFunc, opts SweepOptions) error

	// Head reports the stream's highest event index and commit version.
	Head(ctx context.Context, streamID, aggregate string) (StreamHead, error)
}
