package hashing

import (
	"encoding/binary"
	"hash"

	"github.com/cespare/xxhash/v2"
)

const fallbackLanes = 4

// FallbackDigest is a 256-bit digest made of four domain-separated xxhash64
// lanes. Lane i is seeded by writing the byte i before any data.
type FallbackDigest struct {
	lanes [fallbackLanes]*xxhash.Digest
}

var _ hash.Hash = (*FallbackDigest)(nil)

// NewFallback returns a reset FallbackDigest.
func NewFallback() hash.Hash {
	f := &FallbackDigest{}
	for i := range f.lanes {
		f.lanes[i] = xxhash.New()
	}
	f.Reset()
	return f
}

// Write feeds p to every lane.
func (f *FallbackDigest) Write(p []byte) (int, error) {
	for _, lane := range f.lanes {
		_, _ = lane.Write(p)
	}
	return len(p), nil
}

// Sum appends the big-endian lane sums to b.
func (f *FallbackDigest) Sum(b []byte) []byte {
	var out [Size]byte
	for i, lane := range f.lanes {
		binary.BigEndian.PutUint64(out[i*8:], lane.Sum64())
	}
	return append(b, out[:]...)
}

// Reset clears every lane and re-applies its domain byte.
func (f *FallbackDigest) Reset() {
	for i, lane := range f.lanes {
		lane.Reset()
		_, _ = lane.Write([]byte{byte(i)})
	}
}

// Size returns 32.
func (f *FallbackDigest) Size() int { return Size }

// BlockSize returns the xxhash block size.
func (f *FallbackDigest) BlockSize() int { return 32 }
