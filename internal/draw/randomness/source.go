// Package randomness defines the contract between a draw and whatever
// delivers its random value.
//
// A Source accepts one request per entity hash and later answers fetches for
// it. A zero value from FetchRandomness means "not yet": unknown and pending
// hashes both read as zero, and transient failures that cannot be told apart
// from pending are logged and absorbed. Once a fetch returns a positive value
// the source must return that same value for the hash forever.
package randomness

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

// TrackingID is a driver-specific handle for a submitted request.
type TrackingID string

// Value is a 256-bit randomness value. Zero means pending or unknown.
type Value struct {
	v uint256.Int
}

// NewValue copies v into a Value. A nil v is zero.
func NewValue(v *uint256.Int) Value {
	var out Value
	if v != nil {
		out.v.Set(v)
	}
	return out
}

// ValueFromUint64 builds a Value from a small integer.
func ValueFromUint64(n uint64) Value {
	var out Value
	out.v.SetUint64(n)
	return out
}

// ParseValue parses a decimal or 0x-prefixed hex string.
func ParseValue(s string) (Value, error) {
	var out Value
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		if err := out.v.SetFromHex(s); err != nil {
			return Value{}, fmt.Errorf("parse randomness %q: %w", s, err)
		}
		return out, nil
	}
	if err := out.v.SetFromDecimal(s); err != nil {
		return Value{}, fmt.Errorf("parse randomness %q: %w", s, err)
	}
	return out, nil
}

// IsZero reports whether the value is the pending sentinel.
func (v Value) IsZero() bool { return v.v.IsZero() }

// Int returns a copy of the value as a uint256.
func (v Value) Int() *uint256.Int { return new(uint256.Int).Set(&v.v) }

// Dec renders the value in base 10.
func (v Value) Dec() string { return v.v.Dec() }

// String implements fmt.Stringer.
func (v Value) String() string { return v.v.Dec() }

// Equal reports whether two values are the same integer.
func (v Value) Equal(o Value) bool { return v.v.Eq(&o.v) }

// Source is implemented by every randomness driver.
type Source interface {
	// RequestRandomness commits entityHash with its salt digest and asks for
	// a random value. A hash can be requested exactly once.
	RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (TrackingID, error)
	// FetchRandomness returns the value for entityHash, or zero while it is
	// unknown or pending.
	FetchRandomness(ctx context.Context, entityHash hashing.Digest) (Value, error)
}

// Status is the strict three-state view of a commitment.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusFulfilled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire names back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "pending":
		return StatusPending
	case "fulfilled":
		return StatusFulfilled
	default:
		return StatusUnknown
	}
}

// StatusReporter is implemented by sources that can tell unknown hashes from
// pending ones.
type StatusReporter interface {
	Status(ctx context.Context, entityHash hashing.Digest) (Status, error)
}

// Canceler is implemented by sources that can withdraw a pending request.
type Canceler interface {
	// Cancel reports false when the request is unknown or already fulfilled.
	Cancel(ctx context.Context, id TrackingID) (bool, error)
}

// StatusOf asks src for the strict status of entityHash. Sources without a
// StatusReporter are approximated from FetchRandomness, which cannot tell
// unknown from pending and reports both as pending.
func StatusOf(ctx context.Context, src Source, entityHash hashing.Digest) (Status, error) {
	if reporter, ok := src.(StatusReporter); ok {
		return reporter.Status(ctx, entityHash)
	}
	value, err := src.FetchRandomness(ctx, entityHash)
	if err != nil {
		return StatusUnknown, err
	}
	if value.IsZero() {
		return StatusPending, nil
	}
	return StatusFulfilled, nil
}

// ErrAlreadyProcessed builds the error every driver returns for a hash that
// was already requested.
func ErrAlreadyProcessed(entityHash hashing.Digest, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeAlreadyProcessed,
		"entity hash already processed: "+entityHash.Hex(),
		map[string]string{"EntityHash": entityHash.Hex()}, cause)
}

// ErrUnavailable wraps a transient failure.
func ErrUnavailable(op string, cause error) error {
	return apperrors.Wrap(apperrors.CodeUnavailable, op+": source unavailable", cause)
}

// ErrUnauthorized wraps a credential failure.
func ErrUnauthorized(op string, cause error) error {
	return apperrors.Wrap(apperrors.CodeUnauthorized, op+": unauthorized", cause)
}

// ErrInvalidInput reports a request the source rejected as malformed.
func ErrInvalidInput(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidInput, "invalid randomness request: "+reason,
		map[string]string{"Reason": reason})
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return apperrors.IsRetryable(err)
}

// IsAlreadyProcessed reports whether err rejects a duplicate hash.
func IsAlreadyProcessed(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeAlreadyProcessed) ||
		apperrors.HasCode(err, apperrors.CodeDuplicateEntity)
}
