// Package local serves randomness straight from a commitment ledger in the
// same process.
package local

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
)

// Source submits to and reads from a ledger.
type Source struct {
	ledger    *ledger.Ledger
	requester string
}

var (
	_ randomness.Source         = (*Source)(nil)
	_ randomness.StatusReporter = (*Source)(nil)
	_ randomness.Canceler       = (*Source)(nil)
)

// New returns a Source that submits as requester.
func New(l *ledger.Ledger, requester string) (*Source, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	return &Source{ledger: l, requester: requester}, nil
}

// RequestRandomness submits entityHash to the ledger. The tracking id is the
// ledger request id.
func (s *Source) RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (randomness.TrackingID, error) {
	id, err := s.ledger.Submit(ctx, entityHash, saltDigest, s.requester)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeDuplicateEntity) {
			return "", randomness.ErrAlreadyProcessed(entityHash, err)
		}
		if apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			return "", err
		}
		return "", randomness.ErrUnavailable("request randomness", err)
	}
	return randomness.TrackingID(strconv.FormatInt(id, 10)), nil
}

// FetchRandomness returns the stored value, or zero when unknown or pending.
func (s *Source) FetchRandomness(ctx context.Context, entityHash hashing.Digest) (randomness.Value, error) {
	record, err := s.ledger.GetByEntityHash(ctx, entityHash)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return randomness.Value{}, ctxErr
		}
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			log.Printf("local source: fetch %s: %v", entityHash.Hex(), err)
		}
		return randomness.Value{}, nil
	}
	if !record.Fulfilled {
		return randomness.Value{}, nil
	}
	return randomness.NewValue(&record.Randomness), nil
}

// Status distinguishes unknown hashes from pending ones.
func (s *Source) Status(ctx context.Context, entityHash hashing.Digest) (randomness.Status, error) {
	record, err := s.ledger.GetByEntityHash(ctx, entityHash)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return randomness.StatusUnknown, nil
		}
		return randomness.StatusUnknown, err
	}
	if record.Fulfilled {
		return randomness.StatusFulfilled, nil
	}
	return randomness.StatusPending, nil
}

// Cancel withdraws a pending request by its ledger request id.
func (s *Source) Cancel(ctx context.Context, id randomness.TrackingID) (bool, error) {
	requestID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse tracking id %q: %w", id, err)
	}
	return s.ledger.Cancel(ctx, requestID)
}
