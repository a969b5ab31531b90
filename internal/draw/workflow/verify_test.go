package workflow

import (
	"slices"
	"testing"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
)

func published() VerifyInput {
	return VerifyInput{
		Data:             "Alice\nBob\nCharlie\nDavid",
		Salt:             "s1",
		Winners:          2,
		EntityHash:       hashing.ComputeEntityHash("Alice\nBob\nCharlie\nDavid", "s1").String(),
		SaltDigest:       hashing.ComputeSaltDigest("s1").Hex(),
		Randomness:       "42",
		PublishedWinners: []string{"David", "Alice"},
	}
}

func TestVerifyValidDraw(t *testing.T) {
	v := Verify(published())
	if v.Status != VerifyValid {
		t.Fatalf("status = %s, want valid (field %q, missing %q)", v.Status, v.Field, v.Missing)
	}
	if v.Result == nil || !slices.Equal(v.Result.Winners, []string{"David", "Alice"}) {
		t.Fatalf("result = %+v", v.Result)
	}
	if v.Message("en-US") != "Valid: the commitment and winners match the published inputs" {
		t.Fatalf("message = %q", v.Message("en-US"))
	}
}

func TestVerifyAcceptsHexRandomness(t *testing.T) {
	in := published()
	in.Randomness = "0x2a"
	if v := Verify(in); v.Status != VerifyValid {
		t.Fatalf("status = %s, want valid", v.Status)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*VerifyInput)
		field  string
	}{
		{"data changed", func(in *VerifyInput) { in.Data = "Alice\nBob\nCharlie\nEve" }, "entity hash"},
		{"salt changed", func(in *VerifyInput) { in.Salt = "s2" }, "entity hash"},
		{"malformed hash", func(in *VerifyInput) { in.EntityHash = "0x1234" }, "entity hash"},
		{"salt digest changed", func(in *VerifyInput) { in.SaltDigest = hashing.ComputeSaltDigest("s2").Hex() }, "salt digest"},
		{"winners changed", func(in *VerifyInput) { in.PublishedWinners = []string{"Alice", "David"} }, "winners"},
		{"randomness changed", func(in *VerifyInput) { in.Randomness = "43" }, "winners"},
		{"malformed randomness", func(in *VerifyInput) { in.Randomness = "forty-two" }, "randomness value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := published()
			tc.mutate(&in)
			v := Verify(in)
			if v.Status != VerifyInvalid {
				t.Fatalf("status = %s, want invalid", v.Status)
			}
			if v.Field != tc.field {
				t.Fatalf("field = %q, want %q", v.Field, tc.field)
			}
		})
	}
}

func TestVerifyReportsMissingData(t *testing.T) {
	in := published()
	in.EntityHash = ""
	v := Verify(in)
	if v.Status != VerifyUnverifiable || v.Missing != "the published entity hash" {
		t.Fatalf("verification = %+v", v)
	}

	in = published()
	in.Randomness = ""
	v = Verify(in)
	if v.Status != VerifyUnverifiable || v.Missing != "the randomness value" {
		t.Fatalf("verification = %+v", v)
	}

	in = published()
	in.Randomness = "0"
	if v := Verify(in); v.Status != VerifyUnverifiable {
		t.Fatalf("zero randomness status = %s, want unverifiable", v.Status)
	}
}

func TestVerifyCommitmentOnly(t *testing.T) {
	in := published()
	in.Randomness = ""
	in.PublishedWinners = nil
	v := Verify(in)
	if v.Status != VerifyValid {
		t.Fatalf("status = %s, want valid", v.Status)
	}
	if v.Result != nil {
		t.Fatal("expected no result without randomness")
	}
}

func TestVerifyRandomnessWithoutPublishedWinners(t *testing.T) {
	in := published()
	in.PublishedWinners = nil
	v := Verify(in)
	if v.Status != VerifyValid || v.Result == nil {
		t.Fatalf("verification = %+v", v)
	}
}

func TestInvalidAndUnverifiableMessagesDiffer(t *testing.T) {
	tampered := published()
	tampered.Data = "Mallory"
	missing := published()
	missing.EntityHash = ""

	invalidMsg := Verify(tampered).Message("en-US")
	unverifiableMsg := Verify(missing).Message("en-US")
	if invalidMsg == unverifiableMsg {
		t.Fatalf("messages must differ: %q", invalidMsg)
	}
	if unverifiableMsg != "Unable to verify: the published entity hash is missing" {
		t.Fatalf("unverifiable message = %q", unverifiableMsg)
	}
}
