// Package draw parses draw command flags and runs one commit-reveal draw.
package draw

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jimrubenstein/randomproof/internal/draw/dataset"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness/chain"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness/httporacle"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness/local"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness/memory"
	"github.com/jimrubenstein/randomproof/internal/draw/workflow"
	"github.com/jimrubenstein/randomproof/internal/platform/cmd"
	platformgrpc "github.com/jimrubenstein/randomproof/internal/platform/grpc"
	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
	"github.com/jimrubenstein/randomproof/internal/random"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	ledgersqlite "github.com/jimrubenstein/randomproof/internal/services/ledger/storage/sqlite"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/app"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/fulfiller"
)

// Randomness drivers selectable with -driver.
const (
	DriverMemory = "memory"
	DriverLocal  = "local"
	DriverHTTP   = "http"
	DriverChain  = "chain"
)

const generatedSaltBytes = 16

// Config holds draw command configuration.
type Config struct {
	Dir     string `env:"RANDOMPROOF_DRAW_DIR"`
	Entries string
	Entry   cmd.StringList
	Salt    string
	NoSort  bool
	Winners int

	Driver       string        `env:"RANDOMPROOF_DRAW_DRIVER"        envDefault:"local"`
	Requester    string        `env:"RANDOMPROOF_DRAW_REQUESTER"     envDefault:"cli"`
	PollInterval time.Duration `env:"RANDOMPROOF_DRAW_POLL_INTERVAL" envDefault:"2s"`
	Timeout      time.Duration `env:"RANDOMPROOF_DRAW_TIMEOUT"`

	// local driver
	DBPath       string        `env:"RANDOMPROOF_DRAW_DB_PATH"       envDefault:"data/ledger.db"`
	FulfillDelay time.Duration `env:"RANDOMPROOF_DRAW_FULFILL_DELAY"`
	// memory driver; zero picks a random seed
	MemorySeed int64 `env:"RANDOMPROOF_DRAW_MEMORY_SEED"`

	// http driver
	OracleURL      string `env:"RANDOMPROOF_DRAW_ORACLE_URL"       envDefault:"http://localhost:8091"`
	OracleGRPCAddr string `env:"RANDOMPROOF_DRAW_ORACLE_GRPC_ADDR"`

	// chain driver
	ChainRPCURL   string `env:"RANDOMPROOF_CHAIN_RPC_URL"`
	ChainContract string `env:"RANDOMPROOF_CHAIN_CONTRACT"`
	ChainKey      string `env:"RANDOMPROOF_CHAIN_PRIVATE_KEY"`
	ChainID       int64  `env:"RANDOMPROOF_CHAIN_ID"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Winners: 1}
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Dataset directory; every file is one block of entries")
	fs.StringVar(&cfg.Entries, "entries", cfg.Entries, "Comma separated entries, used when -dir and -entry are empty; every comma splits an entry")
	fs.Var(&cfg.Entry, "entry", "One entry taken as given, commas included; repeat for each entry")
	fs.StringVar(&cfg.Salt, "salt", cfg.Salt, "Salt for the commitment (default: .salt file or a random salt)")
	fs.BoolVar(&cfg.NoSort, "no-sort", cfg.NoSort, "Keep entry order instead of sorting before hashing")
	fs.IntVar(&cfg.Winners, "winners", cfg.Winners, "Number of winners to draw")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Randomness driver: memory, local, http or chain")
	fs.StringVar(&cfg.Requester, "requester", cfg.Requester, "Requester recorded in the ledger")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often to poll for randomness")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Give up waiting for randomness after this long (0 waits forever)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Ledger SQLite database for the local driver")
	fs.DurationVar(&cfg.FulfillDelay, "fulfill-delay", cfg.FulfillDelay, "Minimum request age before the local driver fulfills it")
	fs.Int64Var(&cfg.MemorySeed, "memory-seed", cfg.MemorySeed, "Seed for the memory driver")
	fs.StringVar(&cfg.OracleURL, "oracle-url", cfg.OracleURL, "Oracle HTTP API base URL for the http driver")
	fs.StringVar(&cfg.OracleGRPCAddr, "oracle-grpc-addr", cfg.OracleGRPCAddr, "Oracle gRPC address to health check before submitting")
	fs.StringVar(&cfg.ChainRPCURL, "rpc-url", cfg.ChainRPCURL, "Ethereum JSON-RPC URL for the chain driver")
	fs.StringVar(&cfg.ChainContract, "contract", cfg.ChainContract, "Consumer contract address for the chain driver")
	fs.Int64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "Chain id for the chain driver (0 asks the node)")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Winners < 0 {
		return Config{}, fmt.Errorf("winners must not be negative")
	}
	return cfg, nil
}

// Run executes one draw and prints the result to stdout.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceDraw, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	draft, err := loadDraft(cfg)
	if err != nil {
		return err
	}
	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	runner, err := workflow.NewRunner(source, workflow.Config{PollInterval: cfg.PollInterval})
	if err != nil {
		return err
	}
	d, err := runner.Commit(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "entity hash: %s\n", d.EntityHash)
	fmt.Fprintf(out, "salt: %s\n", draft.Salt)
	fmt.Fprintf(out, "salt digest: %s\n", d.SaltDigest)
	fmt.Fprintf(out, "tracking id: %s\n", d.TrackingID)
	fmt.Fprintln(out, d.Message(""))

	pollCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := runner.Poll(pollCtx, d); err != nil {
		return fmt.Errorf("wait for randomness for %s: %w", d.EntityHash, err)
	}
	fmt.Fprintln(out, d.Message(""))
	fmt.Fprintf(out, "randomness: %s\n", d.Randomness)
	for i, winner := range d.Result.Winners {
		fmt.Fprintf(out, "winner %d: %s\n", i+1, winner)
	}
	return nil
}

func loadDraft(cfg Config) (workflow.Draft, error) {
	draft := workflow.Draft{Winners: cfg.Winners, PreSort: !cfg.NoSort}
	switch {
	case strings.TrimSpace(cfg.Dir) != "":
		src, err := dataset.Load(os.DirFS(cfg.Dir))
		if err != nil {
			return workflow.Draft{}, err
		}
		draft.Data = src.Raw
		draft.PreSort = src.PreSort && !cfg.NoSort
		if src.HasSalt {
			draft.Salt = src.Salt
		}
	case len(cfg.Entry) > 0:
		draft.Data = strings.Join(cfg.Entry, "\n")
	case strings.TrimSpace(cfg.Entries) != "":
		draft.Data = strings.ReplaceAll(cfg.Entries, ",", "\n")
	default:
		return workflow.Draft{}, errors.New("one of -dir, -entry or -entries is required")
	}
	if cfg.Salt != "" {
		draft.Salt = cfg.Salt
	}
	if draft.Salt == "" {
		salt, err := random.NewSalt(generatedSaltBytes)
		if err != nil {
			return workflow.Draft{}, err
		}
		draft.Salt = salt
	}
	return draft, nil
}

// openSource builds the configured driver. The returned func releases it.
func openSource(ctx context.Context, cfg Config) (randomness.Source, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMemory:
		seed := cfg.MemorySeed
		if seed == 0 {
			var err error
			if seed, err = random.NewSeed(); err != nil {
				return nil, nil, err
			}
		}
		return memory.New(memory.WithAutoFulfill(seed)), func() {}, nil
	case DriverLocal:
		return openLocal(ctx, cfg)
	case DriverHTTP:
		return openHTTP(ctx, cfg)
	case DriverChain:
		src, err := chain.Dial(ctx, chain.DialConfig{
			RPCURL:     cfg.ChainRPCURL,
			Contract:   cfg.ChainContract,
			PrivateKey: cfg.ChainKey,
			ChainID:    cfg.ChainID,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// openLocal opens the ledger and runs a fulfiller next to it so the draw can
// complete without a separate oracle.
func openLocal(ctx context.Context, cfg Config) (randomness.Source, func(), error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	store, err := ledgersqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.New(store)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	src, err := local.New(l, cfg.Requester)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fulfiller.New(l, fulfiller.Config{
			PollInterval: cfg.PollInterval,
			FulfillDelay: cfg.FulfillDelay,
		}, nil).Run(loopCtx); err != nil {
			log.Printf("local fulfiller: %v", err)
		}
	}()
	return src, func() {
		cancel()
		wg.Wait()
		if err := store.Close(); err != nil {
			log.Printf("close ledger: %v", err)
		}
	}, nil
}

func openHTTP(ctx context.Context, cfg Config) (randomness.Source, func(), error) {
	if addr := strings.TrimSpace(cfg.OracleGRPCAddr); addr != "" {
		probe := platformgrpc.OracleProbe{Addr: addr, Service: app.HealthService, Timeout: timeouts.GRPCDial, Logf: log.Printf}
		if err := probe.Check(ctx); err != nil {
			return nil, nil, err
		}
	}
	authCfg, err := auth.LoadConfigFromEnv(time.Now)
	if err != nil {
		return nil, nil, err
	}
	client, err := httporacle.New(httporacle.Config{
		BaseURL:        cfg.OracleURL,
		Auth:           authCfg,
		Subject:        cfg.Requester,
		RequestTimeout: timeouts.OracleRequest,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, func() {}, nil
}
