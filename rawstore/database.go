package rawstore

import (
	"encoding/binary"
	"github.com/atopx/mockphone/internal/pagebuf"
	"github.com/atopx/mockphone/record"
	"github.com/pkg/errors"
	"io"
	"sync"
	"sync/atomic"
)

// lockBytePage is the page holding the byte range SQLite uses for file locks.
// It is never allocated.
const lockBytePage = 1073741824/pageSize + 1

type schemaEntry struct {
	name     string
	rootPage pagebuf.PageNumber
	sql      string
}

// Database lays out a new SQLite file on an io.WriterAt.
// Pages are written as soon as they are full; page 1 is written last, by Close.
type Database struct {
	file     io.WriterAt
	nextPage atomic.Uint32

	// mu protects tables and closed
	mu     sync.Mutex
	tables []schemaEntry
	closed bool
}

// NewDatabase prepares to write a SQLite database to file.
func NewDatabase(file io.WriterAt) *Database {
	db := &Database{file: file}
	db.nextPage.Store(2)
	return db
}

// Close writes the file header and the sqlite_schema table
// pointing at the root page of every closed Table.
// It does not close file.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		panic("database closed")
	}
	db.closed = true

	hdr := pagebuf.NewDatabaseHeader(pageSize)
	for i, entry := range db.tables {
		cell, err := db.schemaCell(int64(i+1), entry)
		if err != nil {
			return err
		}
		if !hdr.Add(cell) {
			return errors.Errorf("schema for %d tables does not fit on page 1", len(db.tables))
		}
	}

	_, err := db.file.WriteAt(hdr.Finish(), 0)
	return errors.Wrap(err, "write header page")
}

func (db *Database) addTable(name, sql string, rootPage pagebuf.PageNumber) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		panic("database closed")
	}
	db.tables = append(db.tables, schemaEntry{name: name, rootPage: rootPage, sql: sql})
}

func (db *Database) allocPage() pagebuf.PageNumber {
	for {
		p := db.nextPage.Add(1) - 1
		if p == 0 {
			panic("database too large")
		}
		if p != lockBytePage {
			return pagebuf.PageNumber(p)
		}
	}
}

func (db *Database) writePage(pageNumber pagebuf.PageNumber, page []byte) error {
	_, err := db.file.WriteAt(page, int64(pageNumber-1)*pageSize)
	return errors.Wrapf(err, "write page %d", pageNumber)
}

// spill moves the part of a cell payload that does not fit on a leaf page
// to a chain of overflow pages, returning the first overflow page
// and the part that stays on the leaf.
func (db *Database) spill(payload []byte) (first pagebuf.PageNumber, local []byte, err error) {
	onPage := leafPayloadOnPage(pageSize, len(payload))
	if len(payload) <= onPage {
		return 0, payload, nil
	}

	local, rest := payload[:onPage], payload[onPage:]
	page := make([]byte, pageSize)
	first = db.allocPage()
	for this := first; ; {
		var next pagebuf.PageNumber
		if len(rest) > pageSize-4 {
			next = db.allocPage()
		}
		binary.BigEndian.PutUint32(page, uint32(next))
		n := copy(page[4:], rest)
		clear(page[4+n:])
		if err = db.writePage(this, page); err != nil {
			return 0, nil, err
		}
		if next == 0 {
			return first, local, nil
		}
		rest = rest[n:]
		this = next
	}
}

func (db *Database) schemaCell(rowid int64, entry schemaEntry) ([]byte, error) {
	var rec record.Record
	rec.AppendString("table")
	rec.AppendString(entry.name)
	rec.AppendString(entry.name)
	rec.AppendUint(uint64(entry.rootPage))
	rec.AppendString(entry.sql)

	payload := rec.AppendTo(nil)
	overflow, local, err := db.spill(payload)
	if err != nil {
		return nil, err
	}
	return appendLeafCell(nil, len(payload), rowid, local, overflow), nil
}
