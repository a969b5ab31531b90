// Package hmackey generates the oracle signing key and mints bearer tokens
// signed with it.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
)

const minKeyBytes = 16

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	// Subject switches to token mode: a token for Subject is signed with the
	// key from RANDOMPROOF_ORACLE_HMAC_KEY.
	Subject string
	TTL     time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, TTL: auth.DefaultTTL}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	fs.StringVar(&cfg.Subject, "token", cfg.Subject, "mint a bearer token for this requester instead of a key")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < minKeyBytes {
		return fmt.Errorf("bytes must be at least %d", minKeyBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "RANDOMPROOF_ORACLE_HMAC_KEY=%s\n", hex.EncodeToString(buf))
	return err
}

// RunToken signs a bearer token for cfg.Subject and writes it to out.
func RunToken(cfg Config, authCfg auth.Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	token, err := auth.Issue(authCfg, cfg.Subject, cfg.TTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
