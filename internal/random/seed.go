// Package random produces cryptographic randomness for the oracle fulfiller
// and for salts.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/holiman/uint256"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewValue returns a uniformly random non-zero 256-bit value. Zero means
// "pending" to every randomness consumer, so it is redrawn.
func NewValue() (*uint256.Int, error) {
	return NewValueFrom(crand.Reader)
}

// NewValueFrom draws a non-zero 256-bit value from r.
func NewValueFrom(r io.Reader) (*uint256.Int, error) {
	if r == nil {
		r = crand.Reader
	}
	var b [32]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, fmt.Errorf("read random value: %w", err)
		}
		v := new(uint256.Int).SetBytes32(b[:])
		if !v.IsZero() {
			return v, nil
		}
	}
}

// NewSalt returns a random salt of n bytes, hex encoded.
func NewSalt(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("salt length must be positive")
	}
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		return "", fmt.Errorf("read random salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
