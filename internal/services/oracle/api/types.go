package api

import (
	"time"

	"github.com/jimrubenstein/randomproof/internal/services/ledger"
)

// SubmitRequest is the body of POST /v1/requests.
type SubmitRequest struct {
	EntityHash string `json:"entity_hash"`
	SaltDigest string `json:"salt_digest,omitempty"`
}

// SubmitResponse acknowledges a new commitment.
type SubmitResponse struct {
	RequestID  int64  `json:"request_id"`
	TrackingID string `json:"tracking_id"`
	EntityHash string `json:"entity_hash"`
}

// RandomnessResponse reports the randomness for one entity hash. Randomness
// is a decimal string and "0" while unknown or pending.
type RandomnessResponse struct {
	EntityHash string `json:"entity_hash"`
	Status     string `json:"status"`
	Randomness string `json:"randomness"`
}

// RecordResponse is a full commitment record.
type RecordResponse struct {
	RequestID   int64      `json:"request_id"`
	EntityHash  string     `json:"entity_hash"`
	SaltDigest  string     `json:"salt_digest"`
	Requester   string     `json:"requester"`
	Randomness  string     `json:"randomness"`
	Fulfilled   bool       `json:"fulfilled"`
	RequestedAt time.Time  `json:"requested_at"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
}

// CancelResponse reports whether a pending request was withdrawn.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// EventResponse is one audit event.
type EventResponse struct {
	Seq        int64     `json:"seq"`
	Type       string    `json:"type"`
	RequestID  int64     `json:"request_id"`
	EntityHash string    `json:"entity_hash"`
	SaltDigest string    `json:"salt_digest"`
	Requester  string    `json:"requester"`
	Randomness string    `json:"randomness"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventsResponse is one page of audit events.
type EventsResponse struct {
	Events     []EventResponse `json:"events"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// ErrorResponse carries a machine code and a user-facing message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRecordResponse renders a ledger record for the wire.
func NewRecordResponse(record ledger.Record) RecordResponse {
	resp := RecordResponse{
		RequestID:   record.RequestID,
		EntityHash:  record.EntityHash.String(),
		SaltDigest:  record.SaltDigest.String(),
		Requester:   record.Requester,
		Randomness:  record.Randomness.Dec(),
		Fulfilled:   record.Fulfilled,
		RequestedAt: record.RequestedAt.UTC(),
	}
	if record.Fulfilled && !record.FulfilledAt.IsZero() {
		at := record.FulfilledAt.UTC()
		resp.FulfilledAt = &at
	}
	return resp
}

// NewEventResponse renders a ledger event for the wire.
func NewEventResponse(event ledger.Event) EventResponse {
	return EventResponse{
		Seq:        event.Seq,
		Type:       string(event.Type),
		RequestID:  event.RequestID,
		EntityHash: event.EntityHash.String(),
		SaltDigest: event.SaltDigest.String(),
		Requester:  event.Requester,
		Randomness: event.Randomness.Dec(),
		OccurredAt: event.OccurredAt.UTC(),
	}
}
