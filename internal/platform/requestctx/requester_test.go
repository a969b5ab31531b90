package requestctx

import (
	"context"
	"testing"
)

func TestRequesterFromContextRoundTrip(t *testing.T) {
	ctx := WithRequester(context.Background(), "alice")
	if got := RequesterFromContext(ctx); got != "alice" {
		t.Fatalf("RequesterFromContext = %q, want %q", got, "alice")
	}
}

func TestRequesterFromContextEmpty(t *testing.T) {
	if got := RequesterFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestRequesterNilContext(t *testing.T) {
	ctx := WithRequester(nil, "bob")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if got := RequesterFromContext(nil); got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
	if got := RequesterFromContext(ctx); got != "bob" {
		t.Fatalf("RequesterFromContext = %q, want %q", got, "bob")
	}
}
