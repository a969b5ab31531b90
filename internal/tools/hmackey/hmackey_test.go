package hmackey

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 {
		t.Fatalf("expected default bytes 32, got %d", cfg.Bytes)
	}
	if cfg.Subject != "" || cfg.TTL != auth.DefaultTTL {
		t.Fatalf("expected key mode with default ttl, got %+v", cfg)
	}
}

func TestParseConfigOverride(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-bytes", "16", "-token", "alice", "-ttl", "5m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 16 {
		t.Fatalf("expected bytes 16, got %d", cfg.Bytes)
	}
	if cfg.Subject != "alice" || cfg.TTL != 5*time.Minute {
		t.Fatalf("expected token overrides, got %+v", cfg)
	}
}

func TestRunRejectsInvalidBytes(t *testing.T) {
	for _, n := range []int{0, 8} {
		if err := Run(Config{Bytes: n}, &bytes.Buffer{}, bytes.NewReader(nil)); err == nil {
			t.Fatalf("expected error for %d bytes", n)
		}
	}
}

func TestRunWritesHex(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 4))
	if err := Run(Config{Bytes: 16}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "RANDOMPROOF_ORACLE_HMAC_KEY="+strings.Repeat("01020304", 4) {
		t.Fatalf("expected env output, got %q", got)
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Bytes: 16}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

func TestRunDefaultReader(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 16}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	const prefix = "RANDOMPROOF_ORACLE_HMAC_KEY="
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("expected env prefix, got %q", got)
	}
	if len(strings.TrimPrefix(got, prefix)) != 32 {
		t.Fatalf("expected 32 hex chars, got %d: %q", len(strings.TrimPrefix(got, prefix)), got)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestRunReaderError(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 16}, buf, errReader{}); err == nil {
		t.Fatal("expected error from failing reader")
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestRunTokenVerifies(t *testing.T) {
	authCfg := auth.Config{
		Issuer:   "randomproof-oracle",
		Audience: "randomproof",
		Key:      []byte("0123456789abcdef"),
	}
	buf := &bytes.Buffer{}
	if err := RunToken(Config{Subject: "alice", TTL: time.Minute}, authCfg, buf); err != nil {
		t.Fatalf("run token: %v", err)
	}
	claims, err := auth.Verify(authCfg, strings.TrimSpace(buf.String()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("subject = %q, want alice", claims.Subject)
	}
}

func TestRunTokenRequiresKey(t *testing.T) {
	if err := RunToken(Config{Subject: "alice"}, auth.Config{Issuer: "i", Audience: "a"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without key")
	}
}
