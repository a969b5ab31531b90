package random

import (
	"bytes"
	"testing"
)

func TestNewSeedVaries(t *testing.T) {
	a, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	b, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct seeds, got %d twice", a)
	}
}

func TestNewValueFromSkipsZero(t *testing.T) {
	src := make([]byte, 64)
	src[63] = 7
	v, err := NewValueFrom(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("new value: %v", err)
	}
	if v.Uint64() != 7 {
		t.Fatalf("value = %s, want 7", v.Dec())
	}
}

func TestNewValueFromShortReader(t *testing.T) {
	if _, err := NewValueFrom(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Fatal("expected error for short reader")
	}
}

func TestNewValueNonZero(t *testing.T) {
	v, err := NewValue()
	if err != nil {
		t.Fatalf("new value: %v", err)
	}
	if v.IsZero() {
		t.Fatal("expected non-zero value")
	}
}

func TestNewSalt(t *testing.T) {
	salt, err := NewSalt(16)
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	if len(salt) != 32 {
		t.Fatalf("salt length = %d, want 32", len(salt))
	}
	if _, err := NewSalt(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
