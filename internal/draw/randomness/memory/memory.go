// Package memory is an in-process randomness source for tests and dry runs.
package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

type entry struct {
	id          randomness.TrackingID
	saltDigest  hashing.Digest
	value       uint256.Int
	requestedAt time.Time
}

// Source keeps commitments in a map. Values arrive through Fulfill, or on the
// first fetch when auto-fulfillment is enabled.
type Source struct {
	mu      sync.Mutex
	entries map[hashing.Digest]*entry
	byID    map[randomness.TrackingID]hashing.Digest
	auto    *rand.Rand
	now     func() time.Time
}

var (
	_ randomness.Source         = (*Source)(nil)
	_ randomness.StatusReporter = (*Source)(nil)
	_ randomness.Canceler       = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithAutoFulfill fulfills each requested hash on its first fetch with a
// value drawn from a math/rand stream seeded with seed. Unrequested hashes
// stay unknown.
func WithAutoFulfill(seed int64) Option {
	return func(s *Source) {
		s.auto = rand.New(rand.NewSource(seed))
	}
}

// WithClock overrides the request timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Source.
func New(opts ...Option) *Source {
	s := &Source{
		entries: make(map[hashing.Digest]*entry),
		byID:    make(map[randomness.TrackingID]hashing.Digest),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestRandomness records a pending commitment.
func (s *Source) RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (randomness.TrackingID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if entityHash.IsZero() {
		return "", randomness.ErrInvalidInput("entity hash is zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entityHash]; ok {
		return "", randomness.ErrAlreadyProcessed(entityHash, nil)
	}
	id := randomness.TrackingID(uuid.NewString())
	s.entries[entityHash] = &entry{id: id, saltDigest: saltDigest, requestedAt: s.now().UTC()}
	s.byID[id] = entityHash
	return id, nil
}

// FetchRandomness returns the value for entityHash or zero.
func (s *Source) FetchRandomness(ctx context.Context, entityHash hashing.Digest) (randomness.Value, error) {
	if err := ctx.Err(); err != nil {
		return randomness.Value{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entityHash]
	if !ok {
		return randomness.Value{}, nil
	}
	if e.value.IsZero() && s.auto != nil {
		e.value = s.nextValue()
	}
	return randomness.NewValue(&e.value), nil
}

// Fulfill delivers value for a requested hash. Later fulfillments of the same
// hash are accepted and ignored.
func (s *Source) Fulfill(entityHash hashing.Digest, value *uint256.Int) error {
	if value == nil || value.IsZero() {
		return apperrors.WithMetadata(apperrors.CodeInvalidInput, "fulfill with zero randomness",
			map[string]string{"Reason": "randomness must be non-zero"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entityHash]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "fulfill unknown hash "+entityHash.Hex(),
			map[string]string{"Key": entityHash.Hex()})
	}
	if !e.value.IsZero() {
		return nil
	}
	e.value.Set(value)
	return nil
}

// Status reports unknown, pending or fulfilled.
func (s *Source) Status(ctx context.Context, entityHash hashing.Digest) (randomness.Status, error) {
	if err := ctx.Err(); err != nil {
		return randomness.StatusUnknown, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entityHash]
	switch {
	case !ok:
		return randomness.StatusUnknown, nil
	case e.value.IsZero():
		return randomness.StatusPending, nil
	default:
		return randomness.StatusFulfilled, nil
	}
}

// Cancel drops a pending request so its hash can be requested again.
func (s *Source) Cancel(ctx context.Context, id randomness.TrackingID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entityHash, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if e := s.entries[entityHash]; !e.value.IsZero() {
		return false, nil
	}
	delete(s.entries, entityHash)
	delete(s.byID, id)
	return true, nil
}

// Pending lists hashes still waiting for a value.
func (s *Source) Pending() []hashing.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []hashing.Digest
	for h, e := range s.entries {
		if e.value.IsZero() {
			out = append(out, h)
		}
	}
	return out
}

// nextValue must be called with mu held.
func (s *Source) nextValue() uint256.Int {
	for {
		v := uint256.Int{s.auto.Uint64(), s.auto.Uint64(), s.auto.Uint64(), s.auto.Uint64()}
		if !v.IsZero() {
			return v
		}
	}
}
