package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness/memory"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

var fourNames = Draft{Data: "Alice\nBob\nCharlie\nDavid", Salt: "s1", Winners: 2}

// scriptedSource fails RequestRandomness with the queued errors before
// delegating to a memory source.
type scriptedSource struct {
	*memory.Source
	mu        sync.Mutex
	failures  []error
	requests  int
	fetchErrs []error
}

func (s *scriptedSource) RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (randomness.TrackingID, error) {
	s.mu.Lock()
	s.requests++
	var err error
	if len(s.failures) > 0 {
		err, s.failures = s.failures[0], s.failures[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Source.RequestRandomness(ctx, entityHash, saltDigest)
}

func (s *scriptedSource) FetchRandomness(ctx context.Context, entityHash hashing.Digest) (randomness.Value, error) {
	s.mu.Lock()
	var err error
	if len(s.fetchErrs) > 0 {
		err, s.fetchErrs = s.fetchErrs[0], s.fetchErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return randomness.Value{}, err
	}
	return s.Source.FetchRandomness(ctx, entityHash)
}

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, SubmitAttempts: 3, SubmitBackoff: time.Millisecond, SubmitMaxDelay: 2 * time.Millisecond}
}

func newRunner(t *testing.T, src randomness.Source) *Runner {
	t.Helper()
	r, err := NewRunner(src, fastConfig())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestNewRunnerRequiresSource(t *testing.T) {
	if _, err := NewRunner(nil, Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{PollInterval: time.Millisecond}.normalized()
	if cfg.PollInterval != minPollInterval {
		t.Fatalf("poll interval = %v, want %v", cfg.PollInterval, minPollInterval)
	}
	cfg = Config{}.normalized()
	if cfg.PollInterval != defaultPollInterval || cfg.SubmitAttempts != defaultSubmitAttempts {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Hasher == nil {
		t.Fatal("expected default hasher")
	}
}

func TestComposeComputesDigests(t *testing.T) {
	d := newRunner(t, memory.New()).Compose(Draft{Data: "Charlie\n Alice \n\nBob", Salt: " s1 ", PreSort: true})
	if d.State != StateComposing {
		t.Fatalf("state = %s, want composing", d.State)
	}
	if d.ProcessedData != "Alice\nBob\nCharlie" {
		t.Fatalf("processed = %q", d.ProcessedData)
	}
	if d.EntityHash != hashing.ComputeEntityHash("Alice\nBob\nCharlie", " s1 ") {
		t.Fatal("entity hash must cover the untrimmed salt")
	}
	if d.SaltDigest != hashing.ComputeSaltDigest("s1") {
		t.Fatal("salt digest must cover the trimmed salt")
	}
}

func TestRunRevealsPinnedWinners(t *testing.T) {
	src := memory.New()
	r := newRunner(t, src)
	ctx := context.Background()

	d, err := r.Commit(ctx, fourNames)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if d.State != StateCommitted || d.TrackingID == "" {
		t.Fatalf("draw = %+v", d)
	}
	if err := src.Fulfill(d.EntityHash, uint256.NewInt(42)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if err := r.Poll(ctx, d); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if d.State != StateRevealed {
		t.Fatalf("state = %s, want revealed", d.State)
	}
	wantOrder := []string{"David", "Alice", "Charlie", "Bob"}
	if !slices.Equal(d.Result.Order, wantOrder) {
		t.Fatalf("order = %v, want %v", d.Result.Order, wantOrder)
	}
	if !slices.Equal(d.Result.Winners, wantOrder[:2]) {
		t.Fatalf("winners = %v, want %v", d.Result.Winners, wantOrder[:2])
	}
	if d.Randomness.Dec() != "42" {
		t.Fatalf("randomness = %s, want 42", d.Randomness)
	}
	if err := r.Poll(ctx, d); err != nil {
		t.Fatalf("poll revealed draw: %v", err)
	}
}

func TestRunWaitsForFulfillment(t *testing.T) {
	src := memory.New()
	r := newRunner(t, src)
	entityHash := r.Compose(fourNames).EntityHash

	go func() {
		for {
			if err := src.Fulfill(entityHash, uint256.NewInt(7)); err == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := r.Run(ctx, fourNames)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.State != StateRevealed || len(d.Result.Winners) != 2 {
		t.Fatalf("draw = %+v", d)
	}
}

func TestCommitRetriesUnavailable(t *testing.T) {
	src := &scriptedSource{
		Source: memory.New(),
		failures: []error{
			randomness.ErrUnavailable("request randomness", errors.New("503")),
			randomness.ErrUnavailable("request randomness", errors.New("timeout")),
		},
	}
	d, err := newRunner(t, src).Commit(context.Background(), fourNames)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if src.requests != 3 {
		t.Fatalf("requests = %d, want 3", src.requests)
	}
	if d.State != StateCommitted {
		t.Fatalf("state = %s, want committed", d.State)
	}
}

func TestCommitGivesUpAfterAttempts(t *testing.T) {
	unavailable := randomness.ErrUnavailable("request randomness", errors.New("503"))
	src := &scriptedSource{
		Source:   memory.New(),
		failures: []error{unavailable, unavailable, unavailable, unavailable},
	}
	d, err := newRunner(t, src).Commit(context.Background(), fourNames)
	if !randomness.IsRetryable(err) {
		t.Fatalf("err = %v, want UNAVAILABLE", err)
	}
	if src.requests != 3 {
		t.Fatalf("requests = %d, want 3", src.requests)
	}
	if d.State != StateComposing {
		t.Fatalf("state = %s, want composing", d.State)
	}
}

func TestCommitAbortsOnDuplicate(t *testing.T) {
	src := &scriptedSource{Source: memory.New()}
	r := newRunner(t, src)
	ctx := context.Background()
	if _, err := r.Commit(ctx, fourNames); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	d, err := r.Commit(ctx, fourNames)
	if !randomness.IsAlreadyProcessed(err) {
		t.Fatalf("err = %v, want ALREADY_PROCESSED", err)
	}
	if src.requests != 2 {
		t.Fatalf("requests = %d, want 2", src.requests)
	}
	if d.State != StateComposing {
		t.Fatalf("state = %s, want composing", d.State)
	}
	want := "You already ran this exact draw. Choose a new salt to run it again."
	if got := apperrors.UserMessage(err, "en-US"); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}

	changed := fourNames
	changed.Salt = "s2"
	if _, err := r.Commit(ctx, changed); err != nil {
		t.Fatalf("commit with new salt: %v", err)
	}
}

func TestCommitAbortsOnUnauthorized(t *testing.T) {
	src := &scriptedSource{
		Source:   memory.New(),
		failures: []error{randomness.ErrUnauthorized("request randomness", errors.New("401"))},
	}
	_, err := newRunner(t, src).Commit(context.Background(), fourNames)
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
	if src.requests != 1 {
		t.Fatalf("requests = %d, want 1", src.requests)
	}
}

func TestCommitRejectsEmptyData(t *testing.T) {
	d, err := newRunner(t, memory.New()).Commit(context.Background(), Draft{Data: "\n \n", Salt: "s"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
	if d.State != StateComposing {
		t.Fatalf("state = %s, want composing", d.State)
	}
}

func TestPollCancellationLeavesRequestPending(t *testing.T) {
	src := memory.New()
	r := newRunner(t, src)
	d, err := r.Commit(context.Background(), fourNames)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err = r.Poll(ctx, d)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if d.State != StatePolling {
		t.Fatalf("state = %s, want polling", d.State)
	}
	status, err := src.Status(context.Background(), d.EntityHash)
	if err != nil || status != randomness.StatusPending {
		t.Fatalf("status = %v, %v; want pending", status, err)
	}
}

func TestPollStopsOnUnambiguousFetchError(t *testing.T) {
	src := &scriptedSource{
		Source:    memory.New(),
		fetchErrs: []error{randomness.ErrUnauthorized("fetch randomness", errors.New("401"))},
	}
	r := newRunner(t, src)
	d, err := r.Commit(context.Background(), fourNames)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := r.Poll(context.Background(), d); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestPollRejectsUncommittedDraw(t *testing.T) {
	r := newRunner(t, memory.New())
	if err := r.Poll(context.Background(), r.Compose(fourNames)); err == nil {
		t.Fatal("expected error for composing draw")
	}
	if err := r.Poll(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil draw")
	}
}

func TestDrawMessage(t *testing.T) {
	r := newRunner(t, memory.New())
	d := r.Compose(fourNames)
	d.State = StatePolling
	want := "Waiting for randomness for commitment " + d.EntityHash.String()
	if got := d.Message("en-US"); got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
	d.State = StateRevealed
	if got := d.Message("en-US"); got == want {
		t.Fatal("revealed message must differ from pending")
	}
}

func TestStateString(t *testing.T) {
	if StateRevealed.String() != "revealed" || State(9).String() != "State(9)" {
		t.Fatal("unexpected state names")
	}
}
