package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// killedLoadEnv tells a re-executed test binary to load rows into the
// named database and exit without committing.
const killedLoadEnv = "SQLSTORE_KILLED_LOAD_PATH"

func options(path string) Options {
	return Options{Path: path, Table: "phone", ValueWidth: 11}
}

func load(t *testing.T, opts Options, n int) {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, opts)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Insert(ctx, fmt.Sprintf("138%08d", 10_000_000+i)))
	}
	require.NoError(t, s.Commit())
}

func count(t *testing.T, path string) (rows, ids int) {
	t.Helper()
	db, err := sql.Open(DriverName, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT id) FROM phone").Scan(&rows, &ids))
	return rows, ids
}

func TestOpen_AppliesDefaultPragmas(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, options(filepath.Join(t.TempDir(), "out.db")))
	require.NoError(t, err)
	defer s.Rollback()

	var journal, locking string
	var synchronous, tempStore, cacheSize int
	require.NoError(t, s.tx.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
	require.NoError(t, s.tx.QueryRowContext(ctx, "PRAGMA locking_mode").Scan(&locking))
	require.NoError(t, s.tx.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, s.tx.QueryRowContext(ctx, "PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, s.tx.QueryRowContext(ctx, "PRAGMA cache_size").Scan(&cacheSize))

	assert.Equal(t, "off", journal)
	assert.Equal(t, "exclusive", locking)
	assert.Equal(t, 0, synchronous)
	assert.Equal(t, 2, tempStore)
	assert.Equal(t, 1000000, cacheSize)
}

func TestStore_CommitPersistsEveryRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	load(t, options(path), 1000)

	rows, ids := count(t, path)
	assert.Equal(t, 1000, rows)
	assert.Equal(t, 1000, ids)
}

func TestStore_EmptyLoadCreatesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.db")
	load(t, options(path), 0)

	rows, _ := count(t, path)
	assert.Equal(t, 0, rows)
}

func TestStore_RerunAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	load(t, options(path), 300)
	load(t, options(path), 200)

	rows, ids := count(t, path)
	assert.Equal(t, 500, rows)
	assert.Equal(t, 500, ids)

	db, err := sql.Open(DriverName, path)
	require.NoError(t, err)
	defer db.Close()
	var maxID int
	require.NoError(t, db.QueryRow("SELECT MAX(id) FROM phone").Scan(&maxID))
	assert.Equal(t, 500, maxID)
}

func TestStore_RollbackLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.db")
	opts := options(path)
	// ROLLBACK is only well defined with a journal.
	opts.Pragmas = []string{"journal_mode = DELETE"}

	load(t, opts, 10)

	s, err := Open(ctx, opts)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Insert(ctx, "13912345678"))
	}
	require.NoError(t, s.Rollback())
	require.NoError(t, s.Rollback())

	rows, _ := count(t, path)
	assert.Equal(t, 10, rows)
}

func TestStore_RollbackWithDefaultPragmas(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.db")
	load(t, options(path), 10)

	s, err := Open(ctx, options(path))
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Insert(ctx, "13912345678"))
	}
	require.NoError(t, s.Rollback())

	rows, _ := count(t, path)
	assert.Equal(t, 10, rows)
}

func TestStore_KilledLoadLeavesNoRows(t *testing.T) {
	if path := os.Getenv(killedLoadEnv); path != "" {
		ctx := context.Background()
		s, err := Open(ctx, options(path))
		if err != nil {
			os.Exit(2)
		}
		for i := 0; i < 200_000; i++ {
			if err := s.Insert(ctx, fmt.Sprintf("137%08d", 10_000_000+i)); err != nil {
				os.Exit(3)
			}
		}
		os.Exit(0)
	}

	path := filepath.Join(t.TempDir(), "out.db")
	load(t, options(path), 10)

	cmd := exec.Command(os.Args[0], "-test.run=^TestStore_KilledLoadLeavesNoRows$")
	cmd.Env = append(os.Environ(), killedLoadEnv+"="+path)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))

	rows, ids := count(t, path)
	assert.Equal(t, 10, rows)
	assert.Equal(t, 10, ids)
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("release failed") }

func TestStore_CommitSucceedsWhenCloseFails(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.db")
	s, err := Open(ctx, options(path))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(ctx, "13912345678"))
	}
	s.closers = append(s.closers, failingCloser{})

	require.NoError(t, s.Commit())
	assert.Contains(t, buf.String(), "release failed")

	rows, _ := count(t, path)
	assert.Equal(t, 5, rows)
}

func TestOpen_Failures(t *testing.T) {
	tests := map[string]func(dir string) Options{
		"bad pragma": func(dir string) Options {
			opts := options(filepath.Join(dir, "out.db"))
			opts.Pragmas = []string{"this is not a pragma ("}
			return opts
		},
		"bad table name": func(dir string) Options {
			opts := options(filepath.Join(dir, "out.db"))
			opts.Table = "no such table"
			return opts
		},
		"path is a directory": func(dir string) Options {
			return options(dir)
		},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(context.Background(), opts(t.TempDir()))
			assert.Error(t, err)
		})
	}
}
