// Package ledger is the commitment ledger: it binds each entity hash to at
// most one request and at most one randomness value, and keeps an audit trail
// of every change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/platform/otel"
	"github.com/jimrubenstein/randomproof/internal/platform/pagination"
	"github.com/jimrubenstein/randomproof/internal/services/ledger/filter"
	"github.com/jimrubenstein/randomproof/internal/services/ledger/storage"
)

// Record and Event are re-exported so callers need not import storage.
type (
	Record = storage.Record
	Event  = storage.Event
)

var eventPageSize = pagination.PageSizeConfig{Default: 50, Max: 500}

// Ledger enforces one-hash-one-result over a Store.
type Ledger struct {
	store  storage.Store
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for request and fulfillment times.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New wraps store.
func New(store storage.Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	l := &Ledger{store: store, now: time.Now, tracer: otel.Tracer("ledger")}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Submit records a pending commitment for entityHash and returns its request
// id. A hash that already has a record, pending or fulfilled, is rejected
// with DUPLICATE_ENTITY.
func (l *Ledger) Submit(ctx context.Context, entityHash, saltDigest hashing.Digest, requester string) (int64, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.submit", trace.WithAttributes(
		attribute.String("entity_hash", entityHash.Hex()),
	))
	defer span.End()

	if entityHash.IsZero() {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidInput, "submit zero entity hash",
			map[string]string{"Reason": "entity hash must not be zero"})
	}
	record, err := l.store.CreateRecord(ctx, storage.Record{
		EntityHash:  entityHash,
		SaltDigest:  saltDigest,
		Requester:   requester,
		RequestedAt: l.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return 0, apperrors.WrapWithMetadata(apperrors.CodeDuplicateEntity,
				"entity hash already committed: "+entityHash.Hex(),
				map[string]string{"EntityHash": entityHash.Hex()}, err)
		}
		span.RecordError(err)
		return 0, fmt.Errorf("submit commitment: %w", err)
	}
	span.SetAttributes(attribute.Int64("request_id", record.RequestID))
	return record.RequestID, nil
}

// Fulfill delivers randomness for requestID. The first fulfillment wins;
// later ones return the stored record unchanged.
func (l *Ledger) Fulfill(ctx context.Context, requestID int64, value *uint256.Int) (Record, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.fulfill", trace.WithAttributes(
		attribute.Int64("request_id", requestID),
	))
	defer span.End()

	if value == nil || value.IsZero() {
		return Record{}, apperrors.WithMetadata(apperrors.CodeInvalidInput, "fulfill with zero randomness",
			map[string]string{"Reason": "randomness must be non-zero"})
	}
	result, err := l.store.FulfillRecord(ctx, requestID, value, l.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("ledger integrity: randomness delivered for unknown request %d", requestID)
			id := strconv.FormatInt(requestID, 10)
			return Record{}, apperrors.WrapWithMetadata(apperrors.CodeRequestNotFound,
				"fulfill unknown request "+id, map[string]string{"RequestID": id}, err)
		}
		span.RecordError(err)
		return Record{}, fmt.Errorf("fulfill request %d: %w", requestID, err)
	}
	if !result.Applied {
		log.Printf("ledger: ignoring repeat fulfillment for request %d", requestID)
	}
	return result.Record, nil
}

// GetByEntityHash returns the record for entityHash or a NOT_FOUND error.
func (l *Ledger) GetByEntityHash(ctx context.Context, entityHash hashing.Digest) (Record, error) {
	record, err := l.store.GetRecordByEntityHash(ctx, entityHash)
	if err != nil {
		return Record{}, notFound(entityHash.Hex(), err)
	}
	return record, nil
}

// GetByRequestID returns the record for requestID or a NOT_FOUND error.
func (l *Ledger) GetByRequestID(ctx context.Context, requestID int64) (Record, error) {
	record, err := l.store.GetRecordByRequestID(ctx, requestID)
	if err != nil {
		return Record{}, notFound(strconv.FormatInt(requestID, 10), err)
	}
	return record, nil
}

// Lookup resolves key as a request id when it is a decimal integer and as an
// entity hash otherwise.
func (l *Ledger) Lookup(ctx context.Context, key string) (Record, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return l.GetByRequestID(ctx, id)
	}
	entityHash, err := hashing.ParseDigest(key)
	if err != nil {
		return Record{}, err
	}
	return l.GetByEntityHash(ctx, entityHash)
}

// IsCommitted reports whether entityHash already has a record.
func (l *Ledger) IsCommitted(ctx context.Context, entityHash hashing.Digest) (bool, error) {
	ok, err := l.store.RecordExists(ctx, entityHash)
	if err != nil {
		return false, fmt.Errorf("check commitment: %w", err)
	}
	return ok, nil
}

// Cancel withdraws a pending request. It reports false when the request is
// unknown or already fulfilled.
func (l *Ledger) Cancel(ctx context.Context, requestID int64) (bool, error) {
	_, ok, err := l.store.DeletePendingRecord(ctx, requestID, l.now())
	if err != nil {
		return false, fmt.Errorf("cancel request %d: %w", requestID, err)
	}
	return ok, nil
}

// ListPending returns up to limit pending records requested at least minAge
// ago, oldest first.
func (l *Ledger) ListPending(ctx context.Context, minAge time.Duration, limit int) ([]Record, error) {
	records, err := l.store.ListPendingRecords(ctx, l.now().Add(-minAge), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return records, nil
}

// EventQuery selects audit events.
type EventQuery struct {
	// Filter is an AIP-160 expression over type, request_id, entity_hash,
	// requester and ts.
	Filter   string
	AfterSeq int64
	PageSize int
}

// EventPage is one page of audit events.
type EventPage struct {
	Events     []Event
	NextCursor string
}

// ListEvents returns audit events in sequence order.
func (l *Ledger) ListEvents(ctx context.Context, query EventQuery) (EventPage, error) {
	cond, err := filter.ParseEventFilter(query.Filter)
	if err != nil {
		return EventPage{}, apperrors.WrapWithMetadata(apperrors.CodeInvalidInput, "invalid event filter",
			map[string]string{"Reason": err.Error()}, err)
	}
	pageSize := pagination.ClampPageSize(query.PageSize, eventPageSize)
	events, err := l.store.ListEvents(ctx, storage.EventQuery{
		Clause:   cond.Clause,
		Params:   cond.Params,
		AfterSeq: query.AfterSeq,
		Limit:    pageSize,
	})
	if err != nil {
		return EventPage{}, fmt.Errorf("list events: %w", err)
	}
	page := EventPage{Events: events}
	if len(events) > 0 {
		page.NextCursor = pagination.NextCursor(uint64(events[len(events)-1].Seq), len(events), pageSize)
	}
	return page, nil
}

func notFound(key string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WrapWithMetadata(apperrors.CodeNotFound, "commitment not found: "+key,
			map[string]string{"Key": key}, err)
	}
	return fmt.Errorf("get commitment %s: %w", key, err)
}
