package workflow

import (
	"slices"
	"strings"

	"github.com/jimrubenstein/randomproof/internal/draw/dataset"
	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	"github.com/jimrubenstein/randomproof/internal/draw/shuffle"
	"github.com/jimrubenstein/randomproof/internal/platform/errors/i18n"
)

// VerifyStatus is the outcome of checking a published draw.
type VerifyStatus int

const (
	// VerifyValid means every supplied value matched.
	VerifyValid VerifyStatus = iota
	// VerifyInvalid means a published value differs from the recomputed one.
	VerifyInvalid
	// VerifyUnverifiable means a value needed for the comparison is missing.
	VerifyUnverifiable
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyValid:
		return "valid"
	case VerifyInvalid:
		return "invalid"
	case VerifyUnverifiable:
		return "unverifiable"
	}
	return "unknown"
}

// VerifyInput holds a draw's public inputs and published outputs. Empty
// published fields are treated as missing.
type VerifyInput struct {
	Data    string
	Salt    string
	PreSort bool
	Winners int

	EntityHash       string
	SaltDigest       string
	Randomness       string
	PublishedWinners []string

	// Hasher defaults to hashing.NewHasher.
	Hasher *hashing.Hasher
}

// Verification reports what Verify recomputed and how it compared.
type Verification struct {
	Status     VerifyStatus
	EntityHash hashing.Digest
	SaltDigest hashing.Digest
	// Result is set when a randomness value was supplied.
	Result *shuffle.Result
	// Field names the first mismatching value for VerifyInvalid.
	Field string
	// Missing names the absent value for VerifyUnverifiable.
	Missing string
}

// Message renders the user-facing verdict.
func (v Verification) Message(locale string) string {
	cat := i18n.GetCatalog(locale)
	switch v.Status {
	case VerifyInvalid:
		return cat.Format(i18n.CodeVerificationMismatch, map[string]string{"Field": v.Field})
	case VerifyUnverifiable:
		return cat.Format(i18n.KeyDrawUnverifiable, map[string]string{"Missing": v.Missing})
	}
	return cat.Format(i18n.KeyDrawValid, nil)
}

// Verify recomputes the commitment from public inputs and, when the
// randomness is known, the winners. A mismatch is VerifyInvalid; absent
// comparison data is VerifyUnverifiable.
func Verify(in VerifyInput) Verification {
	hasher := in.Hasher
	if hasher == nil {
		hasher = hashing.NewHasher()
	}
	processed, entries := dataset.Process(in.Data, in.PreSort)
	v := Verification{
		EntityHash: hasher.ComputeEntityHash(processed, in.Salt),
		SaltDigest: hasher.ComputeSaltDigest(in.Salt),
	}

	if strings.TrimSpace(in.EntityHash) == "" {
		return v.unverifiable("the published entity hash")
	}
	published, err := hashing.ParseDigest(in.EntityHash)
	if err != nil || published != v.EntityHash {
		return v.invalid("entity hash")
	}
	if strings.TrimSpace(in.SaltDigest) != "" {
		publishedSalt, err := hashing.ParseDigest(in.SaltDigest)
		if err != nil || publishedSalt != v.SaltDigest {
			return v.invalid("salt digest")
		}
	}

	if strings.TrimSpace(in.Randomness) == "" {
		if in.PublishedWinners != nil {
			return v.unverifiable("the randomness value")
		}
		return v
	}
	value, err := randomness.ParseValue(strings.TrimSpace(in.Randomness))
	if err != nil {
		return v.invalid("randomness value")
	}
	if value.IsZero() {
		return v.unverifiable("the randomness value")
	}
	result := Reveal(entries, value, in.Winners)
	v.Result = &result
	if in.PublishedWinners != nil && !slices.Equal(in.PublishedWinners, result.Winners) {
		return v.invalid("winners")
	}
	return v
}

func (v Verification) invalid(field string) Verification {
	v.Status = VerifyInvalid
	v.Field = field
	return v
}

func (v Verification) unverifiable(missing string) Verification {
	v.Status = VerifyUnverifiable
	v.Missing = missing
	return v
}
