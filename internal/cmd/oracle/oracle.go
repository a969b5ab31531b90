// Package oracle parses oracle command flags and starts the oracle runtime.
package oracle

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/jimrubenstein/randomproof/internal/platform/cmd"
	server "github.com/jimrubenstein/randomproof/internal/services/oracle/app"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/fulfiller"
)

// Config holds oracle command configuration.
type Config struct {
	GRPCAddr     string        `env:"RANDOMPROOF_ORACLE_GRPC_ADDR"     envDefault:"localhost:8090"`
	HTTPAddr     string        `env:"RANDOMPROOF_ORACLE_HTTP_ADDR"     envDefault:"localhost:8091"`
	DBPath       string        `env:"RANDOMPROOF_ORACLE_DB_PATH"       envDefault:"data/ledger.db"`
	PollInterval time.Duration `env:"RANDOMPROOF_ORACLE_POLL_INTERVAL" envDefault:"1s"`
	FulfillDelay time.Duration `env:"RANDOMPROOF_ORACLE_FULFILL_DELAY" envDefault:"0s"`
	BatchSize    int           `env:"RANDOMPROOF_ORACLE_BATCH_SIZE"    envDefault:"32"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The oracle gRPC health address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The oracle HTTP API address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger SQLite database")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often pending requests are fulfilled")
	fs.DurationVar(&cfg.FulfillDelay, "fulfill-delay", cfg.FulfillDelay, "Minimum age of a request before it is fulfilled")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum requests fulfilled per tick")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the oracle service.
func Run(ctx context.Context, cfg Config) error {
	authCfg, err := auth.LoadConfigFromEnv(time.Now)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceOracle, func(ctx context.Context) error {
		return server.Run(ctx, serverConfig(cfg, authCfg))
	})
}

func serverConfig(cfg Config, authCfg auth.Config) server.Config {
	return server.Config{
		GRPCAddr: cfg.GRPCAddr,
		HTTPAddr: cfg.HTTPAddr,
		DBPath:   cfg.DBPath,
		Auth:     authCfg,
		Fulfiller: fulfiller.Config{
			PollInterval: cfg.PollInterval,
			FulfillDelay: cfg.FulfillDelay,
			BatchSize:    cfg.BatchSize,
		},
	}
}
