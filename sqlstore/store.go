// Package sqlstore loads rows into SQLite through database/sql,
// inside a single transaction tuned for bulk loading.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
	_ "modernc.org/sqlite"
	"os"
	"path/filepath"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DefaultPragmas trade durability for load speed: no rollback journal,
// no fsync, a large page cache, an exclusive lock for the whole session
// and temporary structures in memory. A crash mid-load can corrupt the file.
var DefaultPragmas = []string{
	"journal_mode = OFF",
	"synchronous = 0",
	"cache_size = 1000000",
	"locking_mode = EXCLUSIVE",
	"temp_store = MEMORY",
}

// Options describes the database and table to load.
type Options struct {
	Path string
	// Table is created if it does not exist; existing rows are kept.
	Table string
	// ValueWidth sizes the CHAR column holding each value.
	ValueWidth int
	// Pragmas are applied, in order, before the table is created.
	// nil means DefaultPragmas; an empty slice applies none.
	Pragmas []string
}

// Store is an open load transaction.
// It is owned by a single goroutine.
type Store struct {
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
	stmt *sql.Stmt
	log  *log.Entry
	rows int64
	done bool

	// closers are released in reverse order once the load ends.
	closers []io.Closer
}

// Open opens or creates the database, configures the connection,
// ensures the table exists, begins the transaction
// and prepares the insert statement.
func Open(ctx context.Context, opts Options) (_ *Store, err error) {
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory %s for sqlite db", dir)
		}
	}

	db, err := sql.Open(DriverName, opts.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %s", opts.Path)
	}
	// PRAGMAs and the transaction live on one connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log.WithField("path", opts.Path), closers: []io.Closer{db}}
	defer func() {
		if err != nil {
			_ = s.close()
		}
	}()

	if s.conn, err = db.Conn(ctx); err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %s", opts.Path)
	}
	s.closers = append(s.closers, s.conn)

	pragmas := opts.Pragmas
	if pragmas == nil {
		pragmas = DefaultPragmas
	}
	for _, pragma := range pragmas {
		if _, err = s.conn.ExecContext(ctx, "PRAGMA "+pragma); err != nil {
			return nil, errors.Wrapf(err, "apply pragma %q", pragma)
		}
	}

	if _, err = s.conn.ExecContext(ctx, createTableSQL(opts.Table, opts.ValueWidth)); err != nil {
		return nil, errors.Wrapf(err, "create table %s", opts.Table)
	}

	if s.tx, err = s.conn.BeginTx(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	if s.stmt, err = s.tx.PrepareContext(ctx, insertSQL(opts.Table)); err != nil {
		_ = s.tx.Rollback()
		return nil, errors.Wrap(err, "prepare insert")
	}

	s.log.WithField("pragmas", pragmas).Debug("sqlite store opened")
	return s, nil
}

func createTableSQL(table string, width int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		value CHAR(%d))`, table, width)
}

func insertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s(value) VALUES (?)", table)
}

// Insert adds one row through the prepared statement.
func (s *Store) Insert(ctx context.Context, value string) error {
	if _, err := s.stmt.ExecContext(ctx, value); err != nil {
		return errors.Wrap(err, "insert row")
	}
	s.rows++
	return nil
}

// Commit commits the transaction and closes the database.
// Once the commit succeeds the rows are durable, so a failure to close
// afterwards is logged and not returned.
func (s *Store) Commit() error {
	if s.done {
		panic("store finished")
	}
	s.done = true

	if err := s.tx.Commit(); err != nil {
		_ = s.close()
		return errors.Wrap(err, "commit")
	}
	s.log.WithField("rows", s.rows).Debug("sqlite store committed")
	if err := s.close(); err != nil {
		s.log.WithError(err).Warn("Could not close sqlite db after commit")
	}
	return nil
}

// Rollback abandons the transaction and closes the database.
// It is a no-op after Commit.
//
// With journal_mode OFF SQLite cannot undo pages already written to the
// file; only pages still in the cache are discarded.
func (s *Store) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true

	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	if closeErr := s.close(); err == nil {
		err = closeErr
	}
	return errors.Wrap(err, "rollback")
}

func (s *Store) close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
