// Package verify parses verify command flags and checks a published draw.
package verify

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jimrubenstein/randomproof/internal/draw/dataset"
	"github.com/jimrubenstein/randomproof/internal/draw/workflow"
	"github.com/jimrubenstein/randomproof/internal/platform/cmd"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
	"github.com/jimrubenstein/randomproof/internal/services/audit"
)

// Config holds verify command configuration.
type Config struct {
	Dir     string
	Entries string
	Entry   cmd.StringList
	Salt    string
	NoSort  bool
	Winners int

	EntityHash string
	SaltDigest string
	Randomness string
	// PublishedWinners is comma separated.
	PublishedWinners string

	// Key reads the published hash and randomness from a ledger record.
	Key       string
	DBPath    string `env:"RANDOMPROOF_VERIFY_DB_PATH"`
	OracleURL string `env:"RANDOMPROOF_VERIFY_ORACLE_URL"`

	Locale string `env:"LANG"`
}

// ErrNotValid is returned when the draw does not verify.
var ErrNotValid = errors.New("draw did not verify")

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Winners: 1}
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Dataset directory that was drawn from")
	fs.StringVar(&cfg.Entries, "entries", cfg.Entries, "Comma separated entries, used when -dir and -entry are empty; every comma splits an entry")
	fs.Var(&cfg.Entry, "entry", "One entry taken as given, commas included; repeat for each entry")
	fs.StringVar(&cfg.Salt, "salt", cfg.Salt, "Revealed salt (default: the .salt file)")
	fs.BoolVar(&cfg.NoSort, "no-sort", cfg.NoSort, "Entries were not sorted before hashing")
	fs.IntVar(&cfg.Winners, "winners", cfg.Winners, "Number of winners drawn")
	fs.StringVar(&cfg.EntityHash, "entity-hash", cfg.EntityHash, "Published entity hash")
	fs.StringVar(&cfg.SaltDigest, "salt-digest", cfg.SaltDigest, "Published salt digest")
	fs.StringVar(&cfg.Randomness, "randomness", cfg.Randomness, "Published randomness, decimal or 0x hex")
	fs.StringVar(&cfg.PublishedWinners, "published-winners", cfg.PublishedWinners, "Comma separated published winners")
	fs.StringVar(&cfg.Key, "key", cfg.Key, "Entity hash or request id to read from the ledger")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Ledger SQLite database used with -key")
	fs.StringVar(&cfg.OracleURL, "oracle-url", cfg.OracleURL, "Oracle HTTP API used with -key")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run verifies the draw and prints the verdict to stdout.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceVerify, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	in, err := buildInput(ctx, cfg)
	if err != nil {
		return err
	}
	v := workflow.Verify(in)
	fmt.Fprintf(out, "entity hash: %s\n", v.EntityHash)
	fmt.Fprintf(out, "salt digest: %s\n", v.SaltDigest)
	if v.Result != nil {
		for i, winner := range v.Result.Winners {
			fmt.Fprintf(out, "winner %d: %s\n", i+1, winner)
		}
	}
	fmt.Fprintf(out, "status: %s\n", v.Status)
	fmt.Fprintln(out, v.Message(cfg.Locale))
	if v.Status != workflow.VerifyValid {
		return fmt.Errorf("%w: %s", ErrNotValid, v.Status)
	}
	return nil
}

func buildInput(ctx context.Context, cfg Config) (workflow.VerifyInput, error) {
	in := workflow.VerifyInput{
		Salt:       cfg.Salt,
		PreSort:    !cfg.NoSort,
		Winners:    cfg.Winners,
		EntityHash: cfg.EntityHash,
		SaltDigest: cfg.SaltDigest,
		Randomness: cfg.Randomness,
	}
	if published := strings.TrimSpace(cfg.PublishedWinners); published != "" {
		for _, winner := range strings.Split(published, ",") {
			in.PublishedWinners = append(in.PublishedWinners, strings.TrimSpace(winner))
		}
	}

	switch {
	case strings.TrimSpace(cfg.Dir) != "":
		src, err := dataset.Load(os.DirFS(cfg.Dir))
		if err != nil {
			return workflow.VerifyInput{}, err
		}
		in.Data = src.Raw
		in.PreSort = src.PreSort && !cfg.NoSort
		if cfg.Salt == "" && src.HasSalt {
			in.Salt = src.Salt
		}
	case len(cfg.Entry) > 0:
		in.Data = strings.Join(cfg.Entry, "\n")
	case strings.TrimSpace(cfg.Entries) != "":
		in.Data = strings.ReplaceAll(cfg.Entries, ",", "\n")
	default:
		return workflow.VerifyInput{}, errors.New("one of -dir, -entry or -entries is required")
	}

	if strings.TrimSpace(cfg.Key) == "" {
		return in, nil
	}
	backend, release, err := audit.OpenBackend(audit.BackendConfig{DBPath: cfg.DBPath, OracleURL: cfg.OracleURL})
	if err != nil {
		return workflow.VerifyInput{}, err
	}
	defer release()
	record, err := backend.Record(ctx, cfg.Key)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			in.EntityHash = ""
			return in, nil
		}
		return workflow.VerifyInput{}, fmt.Errorf("read commitment %s: %w", cfg.Key, err)
	}
	in.EntityHash = record.EntityHash
	in.SaltDigest = record.SaltDigest
	in.Randomness = ""
	if record.Fulfilled {
		in.Randomness = record.Randomness
	}
	return in, nil
}
