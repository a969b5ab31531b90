// Package hashing computes the commitment digests a draw is bound to: the
// entity hash over the processed data and salt, and the salt digest that is
// published alongside it.
package hashing

import (
	"encoding/hex"
	"strings"

	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

// Size is the byte length of every digest.
const Size = 32

// Digest is a 32-byte commitment digest.
type Digest [Size]byte

// ZeroDigest is the all-zero sentinel used for an absent salt.
var ZeroDigest Digest

// Hex renders the digest as 64 lowercase hex characters.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String renders the digest with a 0x prefix.
func (d Digest) String() string {
	return "0x" + d.Hex()
}

// IsZero reports whether d is the zero sentinel.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// Bytes returns a copy of the digest bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// ParseDigest parses 64 hex characters with an optional 0x prefix.
func ParseDigest(s string) (Digest, error) {
	raw := strings.TrimSpace(s)
	if len(raw) >= 2 && (raw[:2] == "0x" || raw[:2] == "0X") {
		raw = raw[2:]
	}
	if len(raw) != 2*Size {
		return Digest{}, invalidDigest(s, "expected 64 hex characters")
	}
	var d Digest
	if _, err := hex.Decode(d[:], []byte(raw)); err != nil {
		return Digest{}, invalidDigest(s, "not hexadecimal")
	}
	return d, nil
}

// DigestFromBytes copies a 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, invalidDigest(hex.EncodeToString(b), "expected 32 bytes")
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func invalidDigest(input, reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidInput,
		"parse digest "+input+": "+reason,
		map[string]string{"Reason": "digest " + reason})
}
