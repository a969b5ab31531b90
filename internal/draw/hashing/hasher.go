package hashing

import (
	"hash"
	"strings"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// Algorithm labels reported by Hasher.
const (
	AlgorithmSHA256   = "sha256"
	AlgorithmKeccak   = "keccak256"
	AlgorithmFallback = "xxhash256-insecure"
	algorithmCustom   = "custom"
)

// Hasher computes entity hashes and salt digests with injectable primitives.
type Hasher struct {
	entity     func() hash.Hash
	salt       func() hash.Hash
	entityName string
	saltName   string
}

// NewHasher returns the standard hasher: SHA-256 for the entity hash and
// legacy Keccak-256 for the salt digest.
func NewHasher() *Hasher {
	return &Hasher{
		entity:     sha256.New,
		salt:       sha3.NewLegacyKeccak256,
		entityName: AlgorithmSHA256,
		saltName:   AlgorithmKeccak,
	}
}

// NewHasherWith builds a hasher from caller-supplied primitives. A nil
// primitive falls back to the xxhash-based digest, which is deterministic
// but offers no collision resistance.
func NewHasherWith(entity, salt func() hash.Hash) *Hasher {
	h := &Hasher{entity: entity, salt: salt, entityName: algorithmCustom, saltName: algorithmCustom}
	if h.entity == nil {
		h.entity = NewFallback
		h.entityName = AlgorithmFallback
	}
	if h.salt == nil {
		h.salt = NewFallback
		h.saltName = AlgorithmFallback
	}
	return h
}

// EntityAlgorithm names the entity hash primitive.
func (h *Hasher) EntityAlgorithm() string { return h.entityName }

// SaltAlgorithm names the salt digest primitive.
func (h *Hasher) SaltAlgorithm() string { return h.saltName }

// ComputeEntityHash hashes processedData immediately followed by salt.
func (h *Hasher) ComputeEntityHash(processedData, salt string) Digest {
	hh := h.entity()
	hh.Write([]byte(processedData))
	hh.Write([]byte(salt))
	return sum(hh)
}

// ComputeSaltDigest hashes the trimmed salt. An empty or whitespace-only salt
// yields ZeroDigest.
func (h *Hasher) ComputeSaltDigest(salt string) Digest {
	trimmed := strings.TrimSpace(salt)
	if trimmed == "" {
		return ZeroDigest
	}
	hh := h.salt()
	hh.Write([]byte(trimmed))
	return sum(hh)
}

// sum folds digests shorter than 32 bytes into the low bytes and truncates
// longer ones.
func sum(hh hash.Hash) Digest {
	var d Digest
	out := hh.Sum(nil)
	if len(out) >= Size {
		copy(d[:], out[:Size])
		return d
	}
	copy(d[Size-len(out):], out)
	return d
}

var defaultHasher = NewHasher()

// ComputeEntityHash hashes processedData+salt with the standard hasher.
func ComputeEntityHash(processedData, salt string) Digest {
	return defaultHasher.ComputeEntityHash(processedData, salt)
}

// ComputeSaltDigest digests the trimmed salt with the standard hasher.
func ComputeSaltDigest(salt string) Digest {
	return defaultHasher.ComputeSaltDigest(salt)
}

// ComputeSaltDigestPtr is ComputeSaltDigest for an optional salt; nil yields
// ZeroDigest.
func ComputeSaltDigestPtr(salt *string) Digest {
	if salt == nil {
		return ZeroDigest
	}
	return ComputeSaltDigest(*salt)
}
