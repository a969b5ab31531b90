// Package inspect prints a commitment record looked up by hash or id.
package inspect

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jimrubenstein/randomproof/internal/platform/cmd"
	"github.com/jimrubenstein/randomproof/internal/services/audit"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/api"
)

// Config holds inspect command configuration.
type Config struct {
	DBPath    string `env:"RANDOMPROOF_INSPECT_DB_PATH" envDefault:"data/ledger.db"`
	OracleURL string `env:"RANDOMPROOF_INSPECT_ORACLE_URL"`
	// Events also lists the audit trail for the record.
	Events bool
	Key    string
}

// ParseConfig parses environment and flags into a Config. The first
// positional argument is the entity hash or request id.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Ledger SQLite database")
	fs.StringVar(&cfg.OracleURL, "oracle-url", cfg.OracleURL, "Oracle HTTP API base URL (used instead of -db)")
	fs.BoolVar(&cfg.Events, "events", cfg.Events, "Also print the record's audit events")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Key = strings.TrimSpace(fs.Arg(0))
	if cfg.Key == "" {
		return Config{}, errors.New("usage: inspect [flags] <entity-hash-or-request-id>")
	}
	return cfg, nil
}

// Run looks up the record and prints it to stdout.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceInspect, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	backendCfg := audit.BackendConfig{DBPath: cfg.DBPath, OracleURL: cfg.OracleURL}
	if strings.TrimSpace(cfg.OracleURL) != "" {
		backendCfg.DBPath = ""
	}
	backend, release, err := audit.OpenBackend(backendCfg)
	if err != nil {
		return err
	}
	defer release()

	record, err := backend.Record(ctx, cfg.Key)
	if err != nil {
		return err
	}
	printRecord(out, record)
	if !cfg.Events {
		return nil
	}

	filter := fmt.Sprintf("request_id = %d", record.RequestID)
	var after int64
	for {
		page, err := backend.Events(ctx, filter, after, 0)
		if err != nil {
			return err
		}
		for _, event := range page.Events {
			fmt.Fprintf(out, "event %d: %s at %s\n", event.Seq, event.Type, event.OccurredAt.UTC().Format(time.RFC3339))
			after = event.Seq
		}
		if page.NextCursor == "" || len(page.Events) == 0 {
			return nil
		}
	}
}

func printRecord(out io.Writer, record api.RecordResponse) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "request id:\t%d\n", record.RequestID)
	fmt.Fprintf(w, "entity hash:\t%s\n", record.EntityHash)
	fmt.Fprintf(w, "salt digest:\t%s\n", record.SaltDigest)
	fmt.Fprintf(w, "requester:\t%s\n", record.Requester)
	fmt.Fprintf(w, "fulfilled:\t%t\n", record.Fulfilled)
	fmt.Fprintf(w, "randomness:\t%s\n", record.Randomness)
	fmt.Fprintf(w, "requested at:\t%s\n", record.RequestedAt.UTC().Format(time.RFC3339))
	if record.FulfilledAt != nil {
		fmt.Fprintf(w, "fulfilled at:\t%s\n", record.FulfilledAt.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
}
