// Package ledger provides core types for the partitioned event log and outbox.
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StreamLocation addresses a stream at a commit version. The same type serves
// as a resume point for Load (version is the exclusive floor) and as a target
// for Publish (version is the inclusive ceiling).
type StreamLocation struct {
	// StreamID identifies the stream
	StreamID string

	// Aggregate is the optional aggregate discriminant. It prevents a stream
	// identifier from being reinterpreted under a different aggregate type
	// than the one it was written for. Empty string means no discriminant.
	Aggregate string

	// CommitVersion is the caller-assigned version of a commit within the
	// stream. It doubles as the optimistic-concurrency token: the outbox
	// primary key rejects a second commit reusing the same version.
	CommitVersion int64
}

// EventLocation addresses a single event within a stream's log.
type EventLocation struct {
	// StreamID identifies the stream
	StreamID string

	// Aggregate is the optional aggregate discriminant
	Aggregate string

	// Index is the caller-assigned, strictly increasing position of the
	// event within its stream
	Index int64
}

// Event represents an immutable fact appended to a stream.
// The store never updates or deletes event rows.
type Event struct {
	// CommittedAt is assigned by the store; all events of one commit and
	// the commit's outbox row share the same timestamp
	CommittedAt time.Time

	// EventType identifies the type of event and is the interpretation
	// discriminant for the payload
	EventType string

	// Payload is an opaque structured document, typically JSON.
	// Schema validation is the caller's responsibility.
	Payload json.RawMessage

	// StreamID identifies the stream this event belongs to
	StreamID string

	// Aggregate is the optional aggregate discriminant
	Aggregate string

	// Index is the caller-assigned position within the stream.
	// Must be strictly increasing and unique per stream.
	Index int64

	// CommitVersion is the version of the commit that appended this event.
	// Set by the caller on a Commit's events before Save; populated by the
	// store on load.
	CommitVersion int64

	// EventID is a unique identifier for this event
	EventID uuid.UUID
}

// Location returns the event's position within its stream.
func (e Event) Location() EventLocation {
	return EventLocation{
		StreamID:  e.StreamID,
		Aggregate: e.Aggregate,
		Index:     e.Index,
	}
}

// Commit is a unit of atomic append: an ordered list of events plus the
// caller-assigned commit version registering the batch in the outbox.
type Commit struct {
	// StreamID identifies the stream
	StreamID string

	// Aggregate is the optional aggregate discriminant
	Aggregate string

	// Version is the caller-assigned commit version ("slot"). Unique per
	// stream; enforced via the outbox primary key.
	Version int64

	// Events is the ordered, non-empty list of events in this commit
	Events []Event
}

// Location returns the commit's stream location.
func (c Commit) Location() StreamLocation {
	return StreamLocation{
		StreamID:      c.StreamID,
		Aggregate:     c.Aggregate,
		CommitVersion: c.Version,
	}
}

// LoadResult reports where a Load stopped.
// Both fields are nil when no events were found past the resume point.
type LoadResult struct {
	// LastCommit is the location of the last observed commit
	LastCommit *StreamLocation

	// LastEvent is the location of the last observed event
	LastEvent *EventLocation
}

// EventHandler consumes one event during Load. Returning an error aborts the
// in-flight load transaction.
type EventHandler func(ctx context.Context, event Event) error

// PublishFunc delivers an ordered batch of events to an external consumer.
// Returning an error rolls back the publish transaction and leaves the
// outbox untouched, so implementations must be idempotent: delivery is
// at-least-once, never at-most-once.
type PublishFunc func(ctx context.Context, events []Event) error
