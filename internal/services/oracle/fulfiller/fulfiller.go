// Package fulfiller delivers randomness to pending ledger requests.
package fulfiller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/holiman/uint256"

	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/random"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 32
)

// Config controls the fulfillment loop.
type Config struct {
	PollInterval time.Duration
	// FulfillDelay is the minimum age of a request before it is fulfilled.
	FulfillDelay time.Duration
	BatchSize    int
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.FulfillDelay < 0 {
		c.FulfillDelay = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// ValueFunc produces one non-zero randomness value.
type ValueFunc func() (*uint256.Int, error)

// Loop polls the ledger for pending requests and fulfills them.
type Loop struct {
	ledger   *ledger.Ledger
	cfg      Config
	newValue ValueFunc
}

// New creates a Loop. A nil newValue draws from crypto/rand.
func New(l *ledger.Ledger, cfg Config, newValue ValueFunc) *Loop {
	if newValue == nil {
		newValue = random.NewValue
	}
	return &Loop{ledger: l, cfg: cfg.normalized(), newValue: newValue}
}

// Run fulfills pending requests until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil || l.ledger == nil {
		return errors.New("fulfiller ledger is required")
	}
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := l.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("fulfiller: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce fulfills one batch and returns how many records were fulfilled.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	pending, err := l.ledger.ListPending(ctx, l.cfg.FulfillDelay, l.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	fulfilled := 0
	for _, record := range pending {
		value, err := l.newValue()
		if err != nil {
			return fulfilled, fmt.Errorf("generate randomness: %w", err)
		}
		if _, err := l.ledger.Fulfill(ctx, record.RequestID, value); err != nil {
			// Cancelled between listing and fulfilling.
			if apperrors.HasCode(err, apperrors.CodeRequestNotFound) {
				continue
			}
			return fulfilled, err
		}
		fulfilled++
	}
	return fulfilled, nil
}
