package audit

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jimrubenstein/randomproof/internal/draw/randomness/httporacle"
	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	ledgersqlite "github.com/jimrubenstein/randomproof/internal/services/ledger/storage/sqlite"
)

// Backend reads commitments and their audit trail.
type Backend interface {
	Records
	Events
}

// BackendConfig selects where records are read from. DBPath wins when both
// are set.
type BackendConfig struct {
	DBPath    string
	OracleURL string
}

// readerSubject is only used to satisfy the oracle client; reads are public.
const readerSubject = "auditor"

// OpenBackend opens an existing ledger database or an oracle client. The
// returned func releases it.
func OpenBackend(cfg BackendConfig) (Backend, func(), error) {
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, nil, fmt.Errorf("ledger database %s: %w", path, err)
		}
		store, err := ledgersqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		l, err := ledger.New(store)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return LedgerRecords{Ledger: l}, func() {
			if err := store.Close(); err != nil {
				log.Printf("close ledger: %v", err)
			}
		}, nil
	}
	if strings.TrimSpace(cfg.OracleURL) != "" {
		client, err := httporacle.New(httporacle.Config{
			BaseURL:        cfg.OracleURL,
			Subject:        readerSubject,
			RequestTimeout: timeouts.OracleRequest,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
	return nil, nil, errors.New("a ledger database or oracle URL is required")
}
