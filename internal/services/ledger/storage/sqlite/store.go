// Package sqlite provides a SQLite-backed commitment ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/holiman/uint256"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/platform/storage/sqlitemigrate"
	"github.com/jimrubenstein/randomproof/internal/services/ledger/storage"
	"github.com/jimrubenstein/randomproof/internal/services/ledger/storage/sqlite/migrations"
)

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations. Write
// transactions take the database lock up front so concurrent submissions
// serialize on it instead of failing on lock upgrade.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB exposes the handle for migration inspection.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateRecord inserts a pending record and its requested event.
func (s *Store) CreateRecord(ctx context.Context, record storage.Record) (storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Record{}, err
	}
	if record.EntityHash.IsZero() {
		return storage.Record{}, fmt.Errorf("entity hash is required")
	}
	requestedAt := record.RequestedAt.UTC()
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}
	requester := strings.TrimSpace(record.Requester)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Record{}, fmt.Errorf("begin create record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO commitments (entity_hash, salt_digest, requester, randomness, fulfilled, requested_at)
		 VALUES (?, ?, ?, '0', 0, ?)`,
		record.EntityHash.Hex(),
		record.SaltDigest.Hex(),
		requester,
		toMillis(requestedAt),
	)
	if err != nil {
		if isEntityHashUniqueViolation(err) {
			return storage.Record{}, storage.ErrAlreadyExists
		}
		return storage.Record{}, fmt.Errorf("create record: %w", err)
	}
	requestID, err := res.LastInsertId()
	if err != nil {
		return storage.Record{}, fmt.Errorf("create record id: %w", err)
	}

	created := storage.Record{
		RequestID:   requestID,
		EntityHash:  record.EntityHash,
		SaltDigest:  record.SaltDigest,
		Requester:   requester,
		RequestedAt: fromMillis(toMillis(requestedAt)),
	}
	if err := appendEvent(ctx, tx, storage.EventRequested, created, created.RequestedAt); err != nil {
		return storage.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		if isEntityHashUniqueViolation(err) {
			return storage.Record{}, storage.ErrAlreadyExists
		}
		return storage.Record{}, fmt.Errorf("commit create record: %w", err)
	}
	return created, nil
}

// FulfillRecord sets randomness on a pending record. An already fulfilled
// record is returned unchanged with Applied false.
func (s *Store) FulfillRecord(ctx context.Context, requestID int64, value *uint256.Int, at time.Time) (storage.FulfillResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FulfillResult{}, err
	}
	if value == nil || value.IsZero() {
		return storage.FulfillResult{}, fmt.Errorf("randomness must be non-zero")
	}
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.FulfillResult{}, fmt.Errorf("begin fulfill record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanRecord(tx.QueryRowContext(ctx, selectRecord+` WHERE request_id = ?`, requestID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.FulfillResult{}, storage.ErrNotFound
		}
		return storage.FulfillResult{}, fmt.Errorf("fulfill record: %w", err)
	}
	if current.Fulfilled {
		return storage.FulfillResult{Record: current}, nil
	}

	fulfilledAt := fromMillis(toMillis(at))
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE commitments SET randomness = ?, fulfilled = 1, fulfilled_at = ?
		  WHERE request_id = ? AND fulfilled = 0`,
		value.Dec(),
		toMillis(fulfilledAt),
		requestID,
	); err != nil {
		return storage.FulfillResult{}, fmt.Errorf("fulfill record: %w", err)
	}
	current.Randomness.Set(value)
	current.Fulfilled = true
	current.FulfilledAt = fulfilledAt

	if err := appendEvent(ctx, tx, storage.EventFulfilled, current, fulfilledAt); err != nil {
		return storage.FulfillResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.FulfillResult{}, fmt.Errorf("commit fulfill record: %w", err)
	}
	return storage.FulfillResult{Record: current, Applied: true}, nil
}

// GetRecordByEntityHash returns the record committed to entityHash.
func (s *Store) GetRecordByEntityHash(ctx context.Context, entityHash hashing.Digest) (storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Record{}, err
	}
	record, err := scanRecord(s.sqlDB.QueryRowContext(ctx, selectRecord+` WHERE entity_hash = ?`, entityHash.Hex()))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Record{}, fmt.Errorf("get record by entity hash: %w", err)
	}
	return record, err
}

// GetRecordByRequestID returns the record with requestID.
func (s *Store) GetRecordByRequestID(ctx context.Context, requestID int64) (storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Record{}, err
	}
	record, err := scanRecord(s.sqlDB.QueryRowContext(ctx, selectRecord+` WHERE request_id = ?`, requestID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Record{}, fmt.Errorf("get record by request id: %w", err)
	}
	return record, err
}

// RecordExists reports whether entityHash has a record.
func (s *Store) RecordExists(ctx context.Context, entityHash hashing.Digest) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM commitments WHERE entity_hash = ?`, entityHash.Hex()).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return true, nil
}

// DeletePendingRecord removes a pending record and writes a cancelled event.
func (s *Store) DeletePendingRecord(ctx context.Context, requestID int64, at time.Time) (storage.Record, bool, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Record{}, false, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("begin delete record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanRecord(tx.QueryRowContext(ctx, selectRecord+` WHERE request_id = ?`, requestID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Record{}, false, nil
		}
		return storage.Record{}, false, fmt.Errorf("delete record: %w", err)
	}
	if current.Fulfilled {
		return current, false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM commitments WHERE request_id = ? AND fulfilled = 0`, requestID); err != nil {
		return storage.Record{}, false, fmt.Errorf("delete record: %w", err)
	}
	if err := appendEvent(ctx, tx, storage.EventCancelled, current, fromMillis(toMillis(at))); err != nil {
		return storage.Record{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Record{}, false, fmt.Errorf("commit delete record: %w", err)
	}
	return current, true, nil
}

// ListPendingRecords returns the oldest pending records.
func (s *Store) ListPendingRecords(ctx context.Context, requestedBefore time.Time, limit int) ([]storage.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if requestedBefore.IsZero() {
		requestedBefore = time.Now()
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		selectRecord+` WHERE fulfilled = 0 AND requested_at <= ? ORDER BY requested_at ASC, request_id ASC LIMIT ?`,
		toMillis(requestedBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	defer rows.Close()

	records := make([]storage.Record, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending records: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	return records, nil
}

// ListEvents returns one page of audit events in sequence order.
func (s *Store) ListEvents(ctx context.Context, query storage.EventQuery) ([]storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if query.Limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	stmt := `SELECT seq, event_type, request_id, entity_hash, salt_digest, requester, randomness, occurred_at
	           FROM ledger_events
	          WHERE seq > ?`
	params := []any{query.AfterSeq}
	if clause := strings.TrimSpace(query.Clause); clause != "" {
		stmt += ` AND (` + clause + `)`
		params = append(params, query.Params...)
	}
	stmt += ` ORDER BY seq ASC LIMIT ?`
	params = append(params, query.Limit)

	rows, err := s.sqlDB.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		var (
			event       storage.Event
			eventType   string
			entityHash  string
			saltDigest  string
			randomValue string
			occurredAt  int64
		)
		if err := rows.Scan(&event.Seq, &eventType, &event.RequestID, &entityHash, &saltDigest,
			&event.Requester, &randomValue, &occurredAt); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		event.Type = storage.EventType(eventType)
		if event.EntityHash, err = hashing.ParseDigest(entityHash); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		if event.SaltDigest, err = hashing.ParseDigest(saltDigest); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		if err := event.Randomness.SetFromDecimal(randomValue); err != nil {
			return nil, fmt.Errorf("list events: parse randomness: %w", err)
		}
		event.OccurredAt = fromMillis(occurredAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

const selectRecord = `SELECT request_id, entity_hash, salt_digest, requester, randomness, fulfilled, requested_at, fulfilled_at
  FROM commitments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (storage.Record, error) {
	var (
		record      storage.Record
		entityHash  string
		saltDigest  string
		randomValue string
		fulfilled   int
		requestedAt int64
		fulfilledAt sql.NullInt64
	)
	err := row.Scan(&record.RequestID, &entityHash, &saltDigest, &record.Requester,
		&randomValue, &fulfilled, &requestedAt, &fulfilledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, storage.ErrNotFound
		}
		return storage.Record{}, err
	}
	if record.EntityHash, err = hashing.ParseDigest(entityHash); err != nil {
		return storage.Record{}, err
	}
	if record.SaltDigest, err = hashing.ParseDigest(saltDigest); err != nil {
		return storage.Record{}, err
	}
	if err := record.Randomness.SetFromDecimal(randomValue); err != nil {
		return storage.Record{}, fmt.Errorf("parse randomness: %w", err)
	}
	record.Fulfilled = fulfilled != 0
	record.RequestedAt = fromMillis(requestedAt)
	if fulfilledAt.Valid {
		record.FulfilledAt = fromMillis(fulfilledAt.Int64)
	}
	return record, nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, eventType storage.EventType, record storage.Record, at time.Time) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO ledger_events (event_type, request_id, entity_hash, salt_digest, requester, randomness, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(eventType),
		record.RequestID,
		record.EntityHash.Hex(),
		record.SaltDigest.Hex(),
		record.Requester,
		record.Randomness.Dec(),
		toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func isEntityHashUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "commitments.entity_hash")
}

var _ storage.Store = (*Store)(nil)
