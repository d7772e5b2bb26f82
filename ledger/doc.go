// Package ledger provides the core types for an event-sourcing storage
// engine with a transactional outbox.
//
// # Overview
//
// The engine is an append-only, hash-partitioned event log plus a small
// outbox table recording one row per committed batch pending publication.
// Applications persist domain events per logical stream and later replay or
// broadcast them without losing or duplicating commits under concurrent
// writers and multiple publisher processes.
//
// Core types:
//   - Event: an immutable fact with an opaque JSON payload
//   - Commit: a unit of atomic append, registered in the outbox
//   - StreamLocation / EventLocation: positions within a stream
//   - PublishFunc / EventHandler: caller-supplied delivery callbacks
//
// # Design Philosophy
//
// All coordination is delegated to the database's transactional and
// row-locking primitives. No in-process locks are used for correctness,
// because the engine must be safe across independent processes, not merely
// goroutines: production deployments run several publisher workers
// concurrently against the same tables.
//
// The caller assigns event indexes and commit versions; the store enforces
// their uniqueness via primary keys but never allocates them. A duplicate
// commit version is the optimistic-concurrency signal: exactly one of two
// racing writers succeeds, the other receives store.ErrConflict and must
// reload stream state before retrying.
//
// # Quick Start
//
// 1. Generate database migrations:
//
//	go run github.com/getcask/ledgerbox/cmd/migrate-gen -output migrations
//
// 2. Apply migrations to your database
//
// 3. Create a store:
//
//	import (
//	    "github.com/getcask/ledgerbox/ledger"
//	    "github.com/getcask/ledgerbox/ledger/adapters/postgres"
//	)
//
//	pool, _ := pgxpool.New(ctx, databaseURL)
//	st := postgres.NewStore(pool, postgres.DefaultStoreConfig())
//
// 4. Save a commit:
//
//	err := st.Save(ctx, ledger.Commit{
//	    StreamID: companyID,
//	    Version:  1,
//	    Events: []ledger.Event{
//	        {
//	            EventID:   uuid.New(),
//	            EventType: "Registered",
//	            Payload:   []byte(`{"name":"Acme"}`),
//	            StreamID:  companyID,
//	            Index:     1,
//	        },
//	    },
//	})
//
// 5. Publish the commit to an external consumer:
//
//	err = st.Publish(ctx, ledger.StreamLocation{StreamID: companyID, CommitVersion: 1},
//	    func(ctx context.Context, events []ledger.Event) error {
//	        return broker.Send(ctx, events)
//	    })
//
// A sweeper process (see the sweeper package) periodically retries commits
// whose immediate publish attempt failed or crashed.
//
// # Delivery Semantics
//
// Publication is at-least-once. A publish callback failure rolls back the
// whole transaction: locks are released, outbox rows are untouched, and a
// later sweep redelivers the same batch. Downstream consumers must be
// idempotent.
//
// # Database Schema
//
// Events live in a table hash-partitioned by stream_id across a fixed
// number of partitions, with primary key (stream_id, stream_index).
// Partitioning is purely a write/read scalability measure and is invisible
// to every logical operation. The outbox table's primary key
// (stream_id, aggregate, commit_version) is the engine's only
// concurrency-conflict detector.
package ledger
