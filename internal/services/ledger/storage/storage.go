// Package storage defines persistence contracts for the commitment ledger.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
)

var (
	// ErrNotFound indicates a requested commitment record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates the entity hash already has a record.
	ErrAlreadyExists = errors.New("record already exists")
)

// Record is one commitment and, once fulfilled, its randomness.
type Record struct {
	RequestID   int64
	EntityHash  hashing.Digest
	SaltDigest  hashing.Digest
	Requester   string
	Randomness  uint256.Int
	Fulfilled   bool
	RequestedAt time.Time
	FulfilledAt time.Time
}

// EventType names a ledger audit event.
type EventType string

const (
	EventRequested EventType = "randomness.requested"
	EventFulfilled EventType = "randomness.fulfilled"
	EventCancelled EventType = "randomness.cancelled"
)

// Event is one append-only audit entry. Events are written in the same
// transaction as the record change they describe.
type Event struct {
	Seq        int64
	Type       EventType
	RequestID  int64
	EntityHash hashing.Digest
	SaltDigest hashing.Digest
	Requester  string
	Randomness uint256.Int
	OccurredAt time.Time
}

// EventQuery selects a page of events ordered by sequence.
type EventQuery struct {
	// Clause is an optional SQL condition over the event columns, with
	// positional Params.
	Clause   string
	Params   []any
	AfterSeq int64
	Limit    int
}

// FulfillResult reports what FulfillRecord did.
type FulfillResult struct {
	Record Record
	// Applied is false when the record was already fulfilled and left as is.
	Applied bool
}

// RecordStore persists commitment records.
type RecordStore interface {
	// CreateRecord allocates a request id and stores a pending record.
	// Returns ErrAlreadyExists when the entity hash is taken.
	CreateRecord(ctx context.Context, record Record) (Record, error)
	// FulfillRecord writes randomness once. Returns ErrNotFound for unknown ids.
	FulfillRecord(ctx context.Context, requestID int64, value *uint256.Int, at time.Time) (FulfillResult, error)
	GetRecordByEntityHash(ctx context.Context, entityHash hashing.Digest) (Record, error)
	GetRecordByRequestID(ctx context.Context, requestID int64) (Record, error)
	RecordExists(ctx context.Context, entityHash hashing.Digest) (bool, error)
	// DeletePendingRecord removes a pending record. It reports false when
	// the record is missing or already fulfilled.
	DeletePendingRecord(ctx context.Context, requestID int64, at time.Time) (Record, bool, error)
	// ListPendingRecords returns pending records requested at or before
	// requestedBefore, oldest first.
	ListPendingRecords(ctx context.Context, requestedBefore time.Time, limit int) ([]Record, error)
}

// EventStore reads the audit trail.
type EventStore interface {
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
}

// Store is the full ledger persistence surface.
type Store interface {
	RecordStore
	EventStore
	Close() error
}
