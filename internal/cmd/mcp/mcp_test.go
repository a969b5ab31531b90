package mcp

import (
	"context"
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.OracleURL != "http://localhost:8091" {
		t.Fatalf("expected default oracle url, got %q", cfg.OracleURL)
	}
	if cfg.HTTPAddr != "localhost:8092" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("RANDOMPROOF_MCP_DB_PATH", "/var/lib/ledger.db")

	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	args := []string{"-http-addr", "flag-http", "-transport", "http"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/var/lib/ledger.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != TransportHTTP {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	err := Run(context.Background(), Config{OracleURL: "http://localhost:1", Transport: "smoke-signal"})
	if err == nil {
		t.Fatal("expected error")
	}
}
