package durable

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"

	"github.com/mattn/go-sqlite3"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Record format marker in meta
const currentSchemaVersion = 1

// recordFormat names the payload encoding written by this version.
const recordFormat = "entry-cbor-v1"

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db    *sql.DB
	codec codec
}

// SQLiteOption configures OpenSQLite.
type SQLiteOption func(*SQLite)

// WithCompression sets the payload compression and, for zstd, the level
// (0 for the default).
func WithCompression(c Compression, level int) SQLiteOption {
	return func(s *SQLite) {
		s.codec = codec{compression: c, level: level}
	}
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL synchronous mode so a committed transaction survives power loss
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLite{db: db, codec: codec{compression: CompressionZSTD}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 records the payload format of existing rows.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('record_format', ?)`, recordFormat)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Begin starts a write transaction.
func (s *SQLite) Begin(ctx context.Context) (Txn, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Error{Op: "begin", Err: err}
	}
	return &sqliteTxn{ctx: ctx, tx: tx, codec: s.codec}, nil
}

// LoadAll iterates every committed record in ascending ID order. Iteration
// stops after the first error.
func (s *SQLite) LoadAll(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if s.db == nil {
			yield(Record{}, ErrClosed)
			return
		}
		rows, err := s.db.QueryContext(ctx, `SELECT id, format, size, data FROM entries ORDER BY id`)
		if err != nil {
			yield(Record{}, &Error{Op: "load", Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id     int64
				format uint8
				size   int
				data   []byte
			)
			if err := rows.Scan(&id, &format, &size, &data); err != nil {
				yield(Record{}, &Error{Op: "load", Err: err})
				return
			}
			payload, err := decode(data, Compression(format), size)
			if err != nil {
				yield(Record{}, &Error{Op: "load", Err: fmt.Errorf("entry %d: %w", id, err)})
				return
			}
			if !yield(Record{ID: entry.ID(id), Data: payload}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, &Error{Op: "load", Err: err})
		}
	}
}

type sqliteTxn struct {
	ctx   context.Context
	tx    *sql.Tx
	codec codec
	done  bool
}

func (t *sqliteTxn) Put(id entry.ID, data []byte) error {
	if t.done {
		return ErrTxnDone
	}
	payload, format, err := t.codec.encode(data)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO entries (id, format, size, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			format = excluded.format,
			size = excluded.size,
			data = excluded.data
	`, int64(id), uint8(format), len(data), payload)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

func (t *sqliteTxn) Delete(id entry.ID) error {
	if t.done {
		return ErrTxnDone
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM entries WHERE id = ?`, int64(id)); err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Commit commits the transaction. I/O errors reported by SQLite during
// commit leave the outcome unknown and are marked indeterminate.
func (t *sqliteTxn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return &Error{Op: "commit", Err: err, Indeterminate: isIOError(err)}
	}
	return nil
}

func (t *sqliteTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &Error{Op: "rollback", Err: err}
	}
	return nil
}

func isIOError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrIoErr || se.Code == sqlite3.ErrFull || se.Code == sqlite3.ErrCorrupt
}
