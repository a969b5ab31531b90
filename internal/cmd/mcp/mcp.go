// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"net"

	"github.com/jimrubenstein/randomproof/internal/platform/cmd"
	"github.com/jimrubenstein/randomproof/internal/services/audit"
)

// Supported transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath    string `env:"RANDOMPROOF_MCP_DB_PATH"`
	OracleURL string `env:"RANDOMPROOF_MCP_ORACLE_URL" envDefault:"http://localhost:8091"`
	HTTPAddr  string `env:"RANDOMPROOF_MCP_HTTP_ADDR"  envDefault:"localhost:8092"`
	Transport string `env:"RANDOMPROOF_MCP_TRANSPORT"  envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Ledger SQLite database (takes precedence over -oracle-url)")
	fs.StringVar(&cfg.OracleURL, "oracle-url", cfg.OracleURL, "Oracle HTTP API base URL")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the audit MCP server.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceMCP, func(ctx context.Context) error {
		backend, release, err := audit.OpenBackend(audit.BackendConfig{DBPath: cfg.DBPath, OracleURL: cfg.OracleURL})
		if err != nil {
			return err
		}
		defer release()
		server, err := audit.NewServer(backend, backend)
		if err != nil {
			return err
		}

		switch cfg.Transport {
		case TransportStdio:
			return audit.ServeStdio(ctx, server)
		case TransportHTTP:
			listener, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
			}
			return audit.ServeHTTP(ctx, server, listener)
		default:
			return fmt.Errorf("transport %q is not supported", cfg.Transport)
		}
	})
}
