// Package postgres provides the PostgreSQL implementation of the event log
// and outbox, built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/getcask/ledgerbox/ledger"
	"github.com/getcask/ledgerbox/ledger/store"
)

// StoreConfig contains configuration for the Postgres store.
// Configuration is immutable after construction.
type StoreConfig struct {
	// EventsTable is the name of the partitioned events table
	EventsTable string

	// OutboxTable is the name of the outbox table
	OutboxTable string

	// LoadBatchSize is the page size used by Load
	LoadBatchSize int

	// Logger receives operational logging; defaults to ledger.NoOpLogger
	Logger ledger.Logger
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		EventsTable:   "events",
		OutboxTable:   "outbox",
		LoadBatchSize: 100,
		Logger:        ledger.NoOpLogger{},
	}
}

// Store is the PostgreSQL-backed implementation of store.Store.
//
// Every operation acquires one connection from the pool for the lifetime of
// one transaction and releases it on every exit path. Correctness relies on
// primary-key constraints and row locks, not snapshot isolation, so all
// transactions run at READ COMMITTED.
type Store struct {
	pool   *pgxpool.Pool
	config StoreConfig
}

// Ensure Store satisfies the storage abstraction
var _ store.Store = (*Store)(nil)

// NewStore creates a new Postgres store backed by the given pool.
func NewStore(pool *pgxpool.Pool, config StoreConfig) *Store {
	if config.EventsTable == "" {
		config.EventsTable = "events"
	}
	if config.OutboxTable == "" {
		config.OutboxTable = "outbox"
	}
	if config.LoadBatchSize <= 0 {
		config.LoadBatchSize = 100
	}
	if config.Logger == nil {
		config.Logger = ledger.NoOpLogger{}
	}
	return &Store{
		pool:   pool,
		config: config,
	}
}

// Save implements store.Store.
//
// Within one transaction it inserts one row per event, then exactly one
// outbox row for the commit. All rows share one committed_at timestamp. A
// primary-key violation on (stream_id, stream_index) or on the outbox key
// (stream_id, aggregate, commit_version) aborts the whole transaction and
// surfaces as store.ErrConflict: the signal to reload stream state and retry
// with a fresh version. Save never publishes synchronously.
func (s *Store) Save(ctx context.Context, commit ledger.Commit) error {
	if len(commit.Events) == 0 {
		return store.ErrEmptyCommit
	}
	for i := range commit.Events {
		e := &commit.Events[i]
		if e.StreamID != commit.StreamID {
			return fmt.Errorf("event %d: stream ID mismatch", i)
		}
		if e.Aggregate != commit.Aggregate {
			return fmt.Errorf("event %d: aggregate mismatch", i)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	committedAt := time.Now().UTC()

	insertEvent := fmt.Sprintf(`
		INSERT INTO %s (
			stream_id, stream_index, aggregate, commit_version,
			event_id, event_type, payload, committed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.config.EventsTable)

	for i := range commit.Events {
		e := &commit.Events[i]
		_, err := tx.Exec(ctx, insertEvent,
			commit.StreamID,
			e.Index,
			commit.Aggregate,
			commit.Version,
			e.EventID,
			e.EventType,
			e.Payload,
			committedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("event %d (index %d): %w", i, e.Index, store.ErrConflict)
			}
			return fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	insertOutbox := fmt.Sprintf(`
		INSERT INTO %s (stream_id, aggregate, commit_version, committed_at)
		VALUES ($1, $2, $3, $4)
	`, s.config.OutboxTable)

	_, err = tx.Exec(ctx, insertOutbox,
		commit.StreamID,
		commit.Aggregate,
		commit.Version,
		committedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("commit version %d: %w", commit.Version, store.ErrConflict)
		}
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.config.Logger.Debug(ctx, "commit saved",
		"stream_id", commit.StreamID,
		"commit_version", commit.Version,
		"events", len(commit.Events))
	return nil
}

// Load implements store.Store.
//
// The resume filter is by commit version, not by index: callers resume from
// all commits after from.CommitVersion, and events are then delivered
// ordered by their log position. Paging bounds memory; the floor advances to
// the last delivered row's commit version after each full batch, so a single
// commit must not carry more events than the batch size. Concurrent commits
// to the stream may or may not become visible to a long-running load under
// READ COMMITTED visibility rules.
func (s *Store) Load(ctx context.Context, from ledger.StreamLocation, onEvent ledger.EventHandler) (ledger.LoadResult, error) {
	var result ledger.LoadResult

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	floor := from.CommitVersion
	for {
		batch, err := s.readEvents(ctx, tx, from.StreamID, from.Aggregate, floor, s.config.LoadBatchSize)
		if err != nil {
			return result, err
		}

		for i := range batch {
			e := batch[i]
			if err := onEvent(ctx, e); err != nil {
				return result, fmt.Errorf("event handler at index %d: %w", e.Index, err)
			}
			loc := e.Location()
			result.LastEvent = &loc
			result.LastCommit = &ledger.StreamLocation{
				StreamID:      e.StreamID,
				Aggregate:     e.Aggregate,
				CommitVersion: e.CommitVersion,
			}
		}

		if len(batch) > 0 {
			floor = batch[len(batch)-1].CommitVersion
		}
		if len(batch) < s.config.LoadBatchSize {
			break
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("failed to commit: %w", err)
	}
	return result, nil
}

// Publish implements store.Store.
//
// It takes exclusive blocking locks, so two publishers targeting overlapping
// commit-version ranges on the same stream serialize. A failure in fn rolls
// the whole transaction back: locks release, outbox rows stay untouched, and
// the error propagates wrapped.
func (s *Store) Publish(ctx context.Context, to ledger.StreamLocation, fn ledger.PublishFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.publishLocked(ctx, tx, to, fn); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// publishLocked runs the publish protocol against an already-open
// transaction: lock pending outbox rows up to the ceiling, deliver the
// events of the locked [min,max] version range as one ordered batch, delete
// the range only if delivery succeeded.
//
// The store does not require commit versions to be contiguous. The locked
// set's min/max is treated as the safe republish bound; if gaps exist, some
// already-published events may be refetched and redelivered. Acceptable:
// delivery is at-least-once.
func (s *Store) publishLocked(ctx context.Context, tx pgx.Tx, to ledger.StreamLocation, fn ledger.PublishFunc) error {
	lockQuery := fmt.Sprintf(`
		SELECT commit_version
		FROM %s
		WHERE stream_id = $1 AND aggregate = $2 AND commit_version <= $3
		ORDER BY commit_version
		FOR UPDATE
	`, s.config.OutboxTable)

	rows, err := tx.Query(ctx, lockQuery, to.StreamID, to.Aggregate, to.CommitVersion)
	if err != nil {
		return fmt.Errorf("failed to lock outbox entries: %w", err)
	}

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		versions = append(versions, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("outbox rows error: %w", err)
	}

	// Nothing pending: already published, or nothing committed yet.
	if len(versions) == 0 {
		return nil
	}

	first := versions[0]
	last := versions[len(versions)-1]

	events, err := s.readRange(ctx, tx, to.StreamID, to.Aggregate, first, last)
	if err != nil {
		return err
	}

	if err := fn(ctx, events); err != nil {
		return fmt.Errorf("publish callback: %w", err)
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %s
		WHERE stream_id = $1 AND aggregate = $2 AND commit_version BETWEEN $3 AND $4
	`, s.config.OutboxTable)

	if _, err := tx.Exec(ctx, deleteQuery, to.StreamID, to.Aggregate, first, last); err != nil {
		return fmt.Errorf("failed to delete outbox entries: %w", err)
	}

	s.config.Logger.Debug(ctx, "commits published",
		"stream_id", to.StreamID,
		"first_version", first,
		"last_version", last,
		"events", len(events))
	return nil
}

// PublishOutstanding implements store.Store.
//
// Discovery uses a non-blocking share lock that skips rows already
// exclusively locked by a concurrent publisher, so sweepers never wait on
// in-flight publishes. Share locks are mutually compatible, though: two
// sweepers can claim overlapping rows and then deadlock upgrading to
// exclusive locks in the publish step, in which case Postgres aborts one of
// the transactions and that sweep is simply retried on a later pass. Each
// discovered location runs the full publish protocol in sequence inside the
// same outer transaction; any individual failure aborts the entire sweep and
// every deletion in it rolls back, leaving the entries for a future sweep.
func (s *Store) PublishOutstanding(ctx context.Context, fn ledger.PublishFunc, opts store.SweepOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = store.DefaultSweepOptions().Limit
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	scanQuery := fmt.Sprintf(`
		SELECT stream_id, aggregate, commit_version
		FROM %s
		WHERE committed_at <= $1
		ORDER BY committed_at
		LIMIT $2
		FOR SHARE SKIP LOCKED
	`, s.config.OutboxTable)

	cutoff := time.Now().UTC().Add(-opts.MinAge)
	rows, err := tx.Query(ctx, scanQuery, cutoff, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to scan outstanding entries: %w", err)
	}

	var pending []ledger.StreamLocation
	for rows.Next() {
		var loc ledger.StreamLocation
		if err := rows.Scan(&loc.StreamID, &loc.Aggregate, &loc.CommitVersion); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan outstanding entry: %w", err)
		}
		pending = append(pending, loc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("outstanding rows error: %w", err)
	}

	if len(pending) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	}

	s.config.Logger.Info(ctx, "publishing outstanding commits",
		"count", len(pending),
		"min_age", opts.MinAge)

	for _, loc := range pending {
		if err := s.publishLocked(ctx, tx, loc, fn); err != nil {
			return fmt.Errorf("stream %s version %d: %w", loc.StreamID, loc.CommitVersion, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Head implements store.Store.
func (s *Store) Head(ctx context.Context, streamID, aggregate string) (store.StreamHead, error) {
	query := fmt.Sprintf(`
		SELECT MAX(stream_index), MAX(commit_version)
		FROM %s
		WHERE stream_id = $1 AND aggregate = $2
	`, s.config.EventsTable)

	var lastIndex, lastVersion *int64
	err := s.pool.QueryRow(ctx, query, streamID, aggregate).Scan(&lastIndex, &lastVersion)
	if err != nil {
		return store.StreamHead{}, fmt.Errorf("failed to read stream head: %w", err)
	}

	if lastIndex == nil || lastVersion == nil {
		return store.StreamHead{}, nil
	}
	return store.StreamHead{
		LastIndex:         *lastIndex,
		LastCommitVersion: *lastVersion,
		Exists:            true,
	}, nil
}

// readEvents fetches one page of the stream's events with commit version
// strictly greater than floor, ordered by index.
func (s *Store) readEvents(ctx context.Context, q ledger.Querier, streamID, aggregate string, floor int64, limit int) ([]ledger.Event, error) {
	query := fmt.Sprintf(`
		SELECT event_id, event_type, payload,
			stream_id, aggregate, commit_version, stream_index, committed_at
		FROM %s
		WHERE stream_id = $1 AND aggregate = $2 AND commit_version > $3
		ORDER BY stream_index ASC
		LIMIT $4
	`, s.config.EventsTable)

	rows, err := q.Query(ctx, query, streamID, aggregate, floor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// readRange fetches all of the stream's events with commit version in
// [first, last], ordered by index. There is no internal cap on the range's
// size: a very large single commit is published as one in-memory batch.
func (s *Store) readRange(ctx context.Context, q ledger.Querier, streamID, aggregate string, first, last int64) ([]ledger.Event, error) {
	query := fmt.Sprintf(`
		SELECT event_id, event_type, payload,
			stream_id, aggregate, commit_version, stream_index, committed_at
		FROM %s
		WHERE stream_id = $1 AND aggregate = $2 AND commit_version BETWEEN $3 AND $4
		ORDER BY stream_index ASC
	`, s.config.EventsTable)

	rows, err := q.Query(ctx, query, streamID, aggregate, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]ledger.Event, error) {
	var events []ledger.Event
	for rows.Next() {
		var e ledger.Event
		err := rows.Scan(
			&e.EventID,
			&e.EventType,
			&e.Payload,
			&e.StreamID,
			&e.Aggregate,
			&e.CommitVersion,
			&e.Index,
			&e.CommittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// rollback releases the transaction on every exit path. On the success path
// the transaction is already committed and pgx reports ErrTxClosed, which is
// expected and ignored.
func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	ctx = context.WithoutCancel(ctx)
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.config.Logger.Error(ctx, "failed to rollback transaction", "error", err)
	}
}

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation. Exported for testing purposes.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
