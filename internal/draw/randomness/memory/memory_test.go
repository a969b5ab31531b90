package memory

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

var (
	h1 = hashing.ComputeEntityHash("Alice\nBob\nCharlie", "s1")
	h2 = hashing.ComputeEntityHash("Alice\nBob\nCharlie", "s2")
	s1 = hashing.ComputeSaltDigest("s1")
)

func TestRequestIsOneShot(t *testing.T) {
	ctx := context.Background()
	src := New()

	id, err := src.RequestRandomness(ctx, h1, s1)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if id == "" {
		t.Fatal("expected tracking id")
	}
	_, err = src.RequestRandomness(ctx, h1, s1)
	if !randomness.IsAlreadyProcessed(err) {
		t.Fatalf("second request err = %v, want ALREADY_PROCESSED", err)
	}
	if _, err := src.RequestRandomness(ctx, h2, hashing.ZeroDigest); err != nil {
		t.Fatalf("request h2: %v", err)
	}
}

func TestRequestRejectsZeroHash(t *testing.T) {
	_, err := New().RequestRandomness(context.Background(), hashing.ZeroDigest, s1)
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestFetchPendingAndFulfilled(t *testing.T) {
	ctx := context.Background()
	src := New()

	v, err := src.FetchRandomness(ctx, h1)
	if err != nil || !v.IsZero() {
		t.Fatalf("fetch unknown = %s, %v; want 0", v, err)
	}
	if _, err := src.RequestRandomness(ctx, h1, s1); err != nil {
		t.Fatalf("request: %v", err)
	}
	if v, _ := src.FetchRandomness(ctx, h1); !v.IsZero() {
		t.Fatalf("fetch pending = %s, want 0", v)
	}

	if err := src.Fulfill(h1, uint256.NewInt(42)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if err := src.Fulfill(h1, uint256.NewInt(99)); err != nil {
		t.Fatalf("second fulfill: %v", err)
	}
	v, _ = src.FetchRandomness(ctx, h1)
	if v.Dec() != "42" {
		t.Fatalf("fetch fulfilled = %s, want 42", v)
	}
}

func TestFulfillErrors(t *testing.T) {
	src := New()
	err := src.Fulfill(h1, uint256.NewInt(1))
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("fulfill unknown err = %v, want NOT_FOUND", err)
	}
	if got, want := apperrors.UserMessage(err, "en-US"), "No commitment was found for "+h1.Hex(); got != want {
		t.Fatalf("user message = %q, want %q", got, want)
	}
	if err := src.Fulfill(h1, new(uint256.Int)); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("fulfill zero err = %v, want INVALID_INPUT", err)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	src := New()
	if st, _ := src.Status(ctx, h1); st != randomness.StatusUnknown {
		t.Fatalf("status = %s, want unknown", st)
	}
	src.RequestRandomness(ctx, h1, s1)
	if st, _ := src.Status(ctx, h1); st != randomness.StatusPending {
		t.Fatalf("status = %s, want pending", st)
	}
	src.Fulfill(h1, uint256.NewInt(5))
	if st, _ := src.Status(ctx, h1); st != randomness.StatusFulfilled {
		t.Fatalf("status = %s, want fulfilled", st)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	src := New()
	id, _ := src.RequestRandomness(ctx, h1, s1)

	ok, err := src.Cancel(ctx, id)
	if err != nil || !ok {
		t.Fatalf("cancel = %v, %v; want true", ok, err)
	}
	if _, err := src.RequestRandomness(ctx, h1, s1); err != nil {
		t.Fatalf("request after cancel: %v", err)
	}
	if ok, _ := src.Cancel(ctx, "missing"); ok {
		t.Fatal("expected cancel of unknown id to report false")
	}
}

func TestCancelFulfilledIsRefused(t *testing.T) {
	ctx := context.Background()
	src := New()
	id, _ := src.RequestRandomness(ctx, h1, s1)
	src.Fulfill(h1, uint256.NewInt(3))
	if ok, _ := src.Cancel(ctx, id); ok {
		t.Fatal("expected cancel of fulfilled request to report false")
	}
	if v, _ := src.FetchRandomness(ctx, h1); v.Dec() != "3" {
		t.Fatalf("value after refused cancel = %s", v)
	}
}

func TestAutoFulfillIsReproducible(t *testing.T) {
	ctx := context.Background()
	a := New(WithAutoFulfill(7))
	b := New(WithAutoFulfill(7))
	a.RequestRandomness(ctx, h1, s1)
	b.RequestRandomness(ctx, h1, s1)

	va, _ := a.FetchRandomness(ctx, h1)
	vb, _ := b.FetchRandomness(ctx, h1)
	if va.IsZero() || !va.Equal(vb) {
		t.Fatalf("auto values = %s / %s, want equal and non-zero", va, vb)
	}
	again, _ := a.FetchRandomness(ctx, h1)
	if !again.Equal(va) {
		t.Fatalf("value changed from %s to %s", va, again)
	}
	if v, _ := a.FetchRandomness(ctx, h2); !v.IsZero() {
		t.Fatalf("auto-fulfilled unrequested hash: %s", v)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().FetchRandomness(ctx, h1); err == nil {
		t.Fatal("expected context error")
	}
}
