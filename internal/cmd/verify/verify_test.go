package verify

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	ledgersqlite "github.com/jimrubenstein/randomproof/internal/services/ledger/storage/sqlite"
)

const fourNames = "Alice,Bob,Charlie,David"

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Winners != 1 {
		t.Fatalf("winners = %d, want 1", cfg.Winners)
	}
	if cfg.Key != "" || cfg.Randomness != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("RANDOMPROOF_VERIFY_ORACLE_URL", "http://oracle")
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-entries", fourNames, "-randomness", "42", "-winners", "2"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.OracleURL != "http://oracle" {
		t.Fatalf("oracle url = %q", cfg.OracleURL)
	}
	if cfg.Entries != fourNames || cfg.Randomness != "42" || cfg.Winners != 2 {
		t.Fatalf("flag overrides = %+v", cfg)
	}
}

func TestRunValidDraw(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), Config{
		Entries:          fourNames,
		Salt:             "s1",
		Winners:          2,
		EntityHash:       hashing.ComputeEntityHash("Alice\nBob\nCharlie\nDavid", "s1").String(),
		Randomness:       "42",
		PublishedWinners: "David, Alice",
	}, &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	for _, want := range []string{"winner 1: David", "winner 2: Alice", "status: valid"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunTamperedWinners(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), Config{
		Entries:          fourNames,
		Salt:             "s1",
		Winners:          2,
		EntityHash:       hashing.ComputeEntityHash("Alice\nBob\nCharlie\nDavid", "s1").String(),
		Randomness:       "42",
		PublishedWinners: "Bob,Alice",
	}, &out)
	if !errors.Is(err, ErrNotValid) {
		t.Fatalf("err = %v, want ErrNotValid", err)
	}
	if !strings.Contains(out.String(), "status: invalid") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRunWithoutHashIsUnverifiable(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), Config{Entries: fourNames, Salt: "s1"}, &out)
	if !errors.Is(err, ErrNotValid) {
		t.Fatalf("err = %v, want ErrNotValid", err)
	}
	if !strings.Contains(out.String(), "status: unverifiable") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRunReadsLedgerRecord(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.db")
	store, err := ledgersqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	l, err := ledger.New(store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	ctx := context.Background()
	id, err := l.Submit(ctx, hashing.ComputeEntityHash("Alice\nBob\nCharlie\nDavid", "s1"), hashing.ComputeSaltDigest("s1"), "test")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := l.Fulfill(ctx, id, uint256.NewInt(42)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	data := filepath.Join(dir, "data")
	if err := os.Mkdir(data, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(data, "names.txt"), []byte("David\nCharlie\nBob\nAlice\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(filepath.Join(data, ".salt"), []byte("s1\n"), 0o644); err != nil {
		t.Fatalf("write salt: %v", err)
	}

	var out bytes.Buffer
	err = run(ctx, Config{Dir: data, Winners: 1, Key: "1", DBPath: dbPath, PublishedWinners: "David"}, &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	out.Reset()
	err = run(ctx, Config{Dir: data, Winners: 1, Key: "2", DBPath: dbPath}, &out)
	if !errors.Is(err, ErrNotValid) || !strings.Contains(out.String(), "status: unverifiable") {
		t.Fatalf("unknown key: err = %v, output = %s", err, out.String())
	}
}

func TestBuildInputFromEntryFlags(t *testing.T) {
	in, err := buildInput(context.Background(), Config{Entry: []string{"Smith, Jane", "Bob"}, Salt: "s1"})
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	if in.Data != "Smith, Jane\nBob" {
		t.Fatalf("data = %q", in.Data)
	}
}

func TestRunRequiresEntries(t *testing.T) {
	if err := run(context.Background(), Config{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
}
