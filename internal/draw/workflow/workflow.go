// Package workflow sequences one draw: compose the inputs, commit the entity
// hash to a randomness source, poll for the value, then reveal the winners.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jimrubenstein/randomproof/internal/draw/dataset"
	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	"github.com/jimrubenstein/randomproof/internal/draw/shuffle"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/platform/errors/i18n"
	"github.com/jimrubenstein/randomproof/internal/platform/otel"
)

const (
	minPollInterval       = 50 * time.Millisecond
	defaultPollInterval   = 2 * time.Second
	defaultSubmitAttempts = 5
	defaultSubmitBackoff  = 500 * time.Millisecond
	defaultSubmitMaxDelay = 10 * time.Second
)

// State is a draw's position in the workflow. Transitions only move forward.
type State int

const (
	StateComposing State = iota
	StateCommitted
	StatePolling
	StateRevealed
)

func (s State) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateCommitted:
		return "committed"
	case StatePolling:
		return "polling"
	case StateRevealed:
		return "revealed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Draft is what the user assembles before committing.
type Draft struct {
	Data    string
	Salt    string
	PreSort bool
	Winners int
}

// Draw is one workflow instance.
type Draw struct {
	Draft         Draft
	State         State
	ProcessedData string
	Entries       []string
	EntityHash    hashing.Digest
	SaltDigest    hashing.Digest
	TrackingID    randomness.TrackingID
	Randomness    randomness.Value
	Result        shuffle.Result
}

// Message renders the user-facing progress line for the draw.
func (d *Draw) Message(locale string) string {
	key := i18n.KeyDrawPending
	if d.State == StateRevealed {
		key = i18n.KeyDrawRevealed
	}
	return i18n.GetCatalog(locale).Format(key, map[string]string{"EntityHash": d.EntityHash.String()})
}

// Config tunes submission retries and polling.
type Config struct {
	// PollInterval is clamped to at least 50ms.
	PollInterval   time.Duration
	SubmitAttempts int
	SubmitBackoff  time.Duration
	SubmitMaxDelay time.Duration
	// Hasher defaults to hashing.NewHasher.
	Hasher *hashing.Hasher
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PollInterval < minPollInterval {
		c.PollInterval = minPollInterval
	}
	if c.SubmitAttempts <= 0 {
		c.SubmitAttempts = defaultSubmitAttempts
	}
	if c.SubmitBackoff <= 0 {
		c.SubmitBackoff = defaultSubmitBackoff
	}
	if c.SubmitMaxDelay <= 0 {
		c.SubmitMaxDelay = defaultSubmitMaxDelay
	}
	if c.SubmitMaxDelay < c.SubmitBackoff {
		c.SubmitMaxDelay = c.SubmitBackoff
	}
	if c.Hasher == nil {
		c.Hasher = hashing.NewHasher()
	}
	return c
}

// Runner drives draws against one randomness source.
type Runner struct {
	source randomness.Source
	cfg    Config
	tracer trace.Tracer
}

// NewRunner returns a Runner using source.
func NewRunner(source randomness.Source, cfg Config) (*Runner, error) {
	if source == nil {
		return nil, errors.New("randomness source is required")
	}
	return &Runner{source: source, cfg: cfg.normalized(), tracer: otel.Tracer("workflow")}, nil
}

// PollInterval reports the effective poll interval.
func (r *Runner) PollInterval() time.Duration {
	return r.cfg.PollInterval
}

// Compose processes the draft data and computes both digests. Nothing is
// submitted.
func (r *Runner) Compose(draft Draft) *Draw {
	processed, entries := dataset.Process(draft.Data, draft.PreSort)
	return &Draw{
		Draft:         draft,
		State:         StateComposing,
		ProcessedData: processed,
		Entries:       entries,
		EntityHash:    r.cfg.Hasher.ComputeEntityHash(processed, draft.Salt),
		SaltDigest:    r.cfg.Hasher.ComputeSaltDigest(draft.Salt),
	}
}

// Commit composes draft and submits its entity hash. UNAVAILABLE failures
// are retried with exponential backoff; any other failure aborts and the
// returned draw stays in StateComposing.
func (r *Runner) Commit(ctx context.Context, draft Draft) (*Draw, error) {
	d := r.Compose(draft)
	ctx, span := r.tracer.Start(ctx, "workflow.commit", trace.WithAttributes(
		attribute.String("entity_hash", d.EntityHash.Hex()),
		attribute.Int("entries", len(d.Entries)),
	))
	defer span.End()

	if len(d.Entries) == 0 {
		return d, apperrors.WithMetadata(apperrors.CodeInvalidInput, "draw has no entries",
			map[string]string{"Reason": "the data has no entries"})
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.SubmitBackoff
	policy.MaxInterval = r.cfg.SubmitMaxDelay

	attempt := 0
	id, err := backoff.Retry(ctx, func() (randomness.TrackingID, error) {
		attempt++
		id, err := r.source.RequestRandomness(ctx, d.EntityHash, d.SaltDigest)
		if err != nil && !randomness.IsRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return id, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.cfg.SubmitAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Printf("workflow: submit %s attempt %d failed, retrying in %v: %v", d.EntityHash.Hex(), attempt, wait, err)
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		span.RecordError(err)
		return d, fmt.Errorf("submit commitment %s: %w", d.EntityHash.Hex(), err)
	}
	d.TrackingID = id
	d.State = StateCommitted
	return d, nil
}

// Poll fetches randomness immediately and then on every tick until a value
// arrives or ctx ends. Cancelling ctx leaves the draw in StatePolling and
// does not touch the source.
func (r *Runner) Poll(ctx context.Context, d *Draw) error {
	if d == nil {
		return errors.New("draw is required")
	}
	switch d.State {
	case StateRevealed:
		return nil
	case StateCommitted, StatePolling:
	default:
		return fmt.Errorf("poll draw in state %s", d.State)
	}
	d.State = StatePolling

	ctx, span := r.tracer.Start(ctx, "workflow.poll", trace.WithAttributes(
		attribute.String("entity_hash", d.EntityHash.Hex()),
	))
	defer span.End()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		value, err := r.source.FetchRandomness(ctx, d.EntityHash)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("fetch randomness %s: %w", d.EntityHash.Hex(), err)
		}
		if !value.IsZero() {
			span.SetAttributes(attribute.Int("polls", polls))
			d.Randomness = value
			d.Result = Reveal(d.Entries, value, d.Draft.Winners)
			d.State = StateRevealed
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run commits draft and polls until it is revealed.
func (r *Runner) Run(ctx context.Context, draft Draft) (*Draw, error) {
	d, err := r.Commit(ctx, draft)
	if err != nil {
		return d, err
	}
	return d, r.Poll(ctx, d)
}

// Reveal shuffles entries with value and selects n winners.
func Reveal(entries []string, value randomness.Value, n int) shuffle.Result {
	return shuffle.DrawWithRandomness(entries, value.Int(), n)
}
