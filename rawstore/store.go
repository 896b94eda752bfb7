// Package rawstore loads rows into a brand-new SQLite file by writing
// the file format directly, skipping the SQL engine entirely.
//
// Rows become table B-tree leaf pages as they arrive. Interior pages and
// page 1 (the file header and sqlite_schema) are produced at Commit.
// Everything is written to a temporary file next to the target,
// which is renamed into place only once it is a complete database,
// so an interrupted load leaves nothing behind at the target path.
//
// The trade-off is that the target must not already exist: a raw load
// can create a table but never append to one. Rowids run from 1 with no
// gaps, and the table is declared without AUTOINCREMENT because that
// would need a sqlite_sequence table.
package rawstore

import (
	"context"
	"fmt"
	"github.com/atopx/mockphone/record"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"os"
	"path/filepath"
)

// ErrExists is returned by Create when the target file already exists.
var ErrExists = errors.New("target already exists")

// Options describes the file and table to create.
type Options struct {
	Path string
	// Table is the name of the single table written.
	Table string
	// ValueWidth sizes the CHAR column holding each value.
	ValueWidth int
}

// Store is an in-progress raw load.
// It is owned by a single goroutine.
type Store struct {
	path   string
	file   *os.File
	db     *Database
	table  *Table
	name   string
	schema string

	rec  record.Record
	row  []byte
	rows int64
	done bool
}

// Create starts a raw load into a new file at opts.Path.
func Create(ctx context.Context, opts Options) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(opts.Path); err == nil {
		return nil, errors.Wrap(ErrExists, opts.Path)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", opts.Path)
	}

	dir, base := filepath.Split(opts.Path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory %s", dir)
	}
	file, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temporary file")
	}

	db := NewDatabase(file)
	s := &Store{
		path:   opts.Path,
		file:   file,
		db:     db,
		table:  db.NewTable(),
		name:   opts.Table,
		schema: fmt.Sprintf("CREATE TABLE %s (id INTEGER PRIMARY KEY, value CHAR(%d))", opts.Table, opts.ValueWidth),
	}
	log.WithField("path", opts.Path).WithField("tmp", file.Name()).Debug("raw store created")
	return s, nil
}

// Insert appends one row. The id column is the rowid alias, stored as NULL.
func (s *Store) Insert(_ context.Context, value string) error {
	s.rec.Reset()
	s.rec.AppendNull()
	s.rec.AppendString(value)
	s.row = s.rec.AppendTo(s.row[:0])
	if _, err := s.table.Append(s.row); err != nil {
		return errors.WithMessage(err, "insert row")
	}
	s.rows++
	return nil
}

// Commit finishes the file and moves it to the target path.
// On failure, including a file having appeared at the target path
// since Create, the temporary file is removed and the target is untouched.
func (s *Store) Commit() (err error) {
	if s.done {
		panic("store finished")
	}
	s.done = true
	defer func() {
		if err != nil {
			_ = s.file.Close()
			_ = os.Remove(s.file.Name())
		}
	}()

	if err = s.table.Close(s.name, s.schema); err != nil {
		return errors.WithMessage(err, "finish table")
	}
	if err = s.db.Close(); err != nil {
		return err
	}
	if err = s.file.Close(); err != nil {
		return errors.Wrap(err, "close temporary file")
	}
	if err = publish(s.file.Name(), s.path); err != nil {
		return err
	}
	log.WithField("path", s.path).WithField("rows", s.rows).Debug("raw store committed")
	return nil
}

// publish makes tmp visible at path. Unlike a rename, linking fails
// rather than replace a file that already exists at path.
func publish(tmp, path string) error {
	if err := os.Link(tmp, path); err != nil {
		if os.IsExist(err) {
			return errors.Wrap(ErrExists, path)
		}
		return errors.Wrapf(err, "link into %s", path)
	}
	if err := os.Remove(tmp); err != nil {
		log.WithError(err).WithField("tmp", tmp).Warn("Could not remove temporary file")
	}
	return nil
}

// Rollback discards the temporary file. It is a no-op after Commit.
func (s *Store) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true

	closeErr := s.file.Close()
	if err := os.Remove(s.file.Name()); err != nil {
		return errors.Wrap(err, "remove temporary file")
	}
	return errors.Wrap(closeErr, "close temporary file")
}
