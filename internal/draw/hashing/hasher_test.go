package hashing

import (
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

const (
	alphaH1 = "8abf15cc4b8fb7d1ff68add19aeee17309cdaf2c54416b836f710e6c76cc7d40"
	alphaH2 = "71cf8acff09aced72692b49bb56c96329218160959537ceaff31ee42769816a4"
)

func TestComputeEntityHashKnownValues(t *testing.T) {
	h1 := ComputeEntityHash("Alice\nBob\nCharlie", "s1")
	h2 := ComputeEntityHash("Alice\nBob\nCharlie", "s2")
	if h1.Hex() != alphaH1 {
		t.Fatalf("H1 = %s, want %s", h1.Hex(), alphaH1)
	}
	if h2.Hex() != alphaH2 {
		t.Fatalf("H2 = %s, want %s", h2.Hex(), alphaH2)
	}
	if h1 == h2 {
		t.Fatal("expected different salts to produce different hashes")
	}
}

func TestComputeEntityHashHasNoSeparator(t *testing.T) {
	if ComputeEntityHash("ab", "c") != ComputeEntityHash("a", "bc") {
		t.Fatal("expected data and salt to be concatenated without a separator")
	}
	if got := ComputeEntityHash("", "").Hex(); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("empty entity hash = %s", got)
	}
}

func TestComputeSaltDigestMatchesKeccak(t *testing.T) {
	got := ComputeSaltDigest("abc")
	if got.Hex() != "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45" {
		t.Fatalf("salt digest = %s", got.Hex())
	}
	want := crypto.Keccak256Hash([]byte("pepper"))
	if ComputeSaltDigest("  pepper\n") != Digest(want) {
		t.Fatalf("salt digest of trimmed salt = %s, want %s", ComputeSaltDigest("  pepper\n").Hex(), want.Hex())
	}
}

func TestComputeSaltDigestSentinel(t *testing.T) {
	for _, salt := range []string{"", "   ", "\t\n"} {
		if got := ComputeSaltDigest(salt); !got.IsZero() {
			t.Fatalf("ComputeSaltDigest(%q) = %s, want zero", salt, got.Hex())
		}
	}
	if !ComputeSaltDigestPtr(nil).IsZero() {
		t.Fatal("expected nil salt to yield zero digest")
	}
	salt := "s1"
	if ComputeSaltDigestPtr(&salt) != ComputeSaltDigest("s1") {
		t.Fatal("expected pointer form to match value form")
	}
}

func TestHasherAlgorithms(t *testing.T) {
	std := NewHasher()
	if std.EntityAlgorithm() != AlgorithmSHA256 || std.SaltAlgorithm() != AlgorithmKeccak {
		t.Fatalf("algorithms = %s/%s", std.EntityAlgorithm(), std.SaltAlgorithm())
	}

	fallback := NewHasherWith(nil, nil)
	if fallback.EntityAlgorithm() != AlgorithmFallback || fallback.SaltAlgorithm() != AlgorithmFallback {
		t.Fatalf("fallback algorithms = %s/%s", fallback.EntityAlgorithm(), fallback.SaltAlgorithm())
	}
	if fallback.ComputeEntityHash("a", "b") != fallback.ComputeEntityHash("a", "b") {
		t.Fatal("expected fallback to be deterministic")
	}
	if fallback.ComputeEntityHash("a", "b") == fallback.ComputeEntityHash("a", "c") {
		t.Fatal("expected fallback to depend on salt")
	}
	if !fallback.ComputeSaltDigest(" ").IsZero() {
		t.Fatal("expected fallback salt digest to keep the zero sentinel")
	}
}

func TestHasherWithLongerPrimitiveTruncates(t *testing.T) {
	h := NewHasherWith(func() hash.Hash { return sha512.New() }, nil)
	full := sha512.Sum512([]byte("datasalt"))
	got := h.ComputeEntityHash("data", "salt")
	var want Digest
	copy(want[:], full[:Size])
	if got != want {
		t.Fatalf("entity hash = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestFallbackLaneLayout(t *testing.T) {
	f := NewFallback()
	f.Write([]byte("entries"))
	out := f.Sum(nil)
	if len(out) != Size {
		t.Fatalf("sum length = %d, want %d", len(out), Size)
	}
	for lane := 0; lane < fallbackLanes; lane++ {
		want := xxhash.Sum64(append([]byte{byte(lane)}, "entries"...))
		if got := binary.BigEndian.Uint64(out[lane*8:]); got != want {
			t.Fatalf("lane %d = %x, want %x", lane, got, want)
		}
	}

	f.Reset()
	f.Write([]byte("entries"))
	if string(f.Sum(nil)) != string(out) {
		t.Fatal("expected reset digest to reproduce the same sum")
	}
}

func TestParseDigest(t *testing.T) {
	d, err := ParseDigest("0x" + alphaH1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Hex() != alphaH1 {
		t.Fatalf("parsed = %s", d.Hex())
	}
	upper, err := ParseDigest("8ABF15CC4B8FB7D1FF68ADD19AEEE17309CDAF2C54416B836F710E6C76CC7D40")
	if err != nil || upper != d {
		t.Fatalf("parse upper = %v, %v", upper, err)
	}
	if d.String() != "0x"+alphaH1 {
		t.Fatalf("String() = %s", d.String())
	}

	for _, bad := range []string{"", "0x", "abc", alphaH1 + "00", "zz" + alphaH1[2:]} {
		_, err := ParseDigest(bad)
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Fatalf("ParseDigest(%q) err = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestDigestText(t *testing.T) {
	d := ComputeEntityHash("Alice\nBob\nCharlie", "s1")
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Digest
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != d {
		t.Fatalf("round trip = %s, want %s", back.Hex(), d.Hex())
	}
	if _, err := DigestFromBytes([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short slice")
	}
}
