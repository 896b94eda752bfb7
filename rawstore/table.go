package rawstore

import (
	"encoding/binary"
	"github.com/atopx/mockphone/internal/pagebuf"
	"github.com/atopx/mockphone/internal/svarint"
)

const pageSize = 65536

// Table builds one table B-tree from rows appended in rowid order,
// starting at rowid 1.
//
// A leaf is written as soon as the next row no longer fits on it, and its
// page number goes into levels[0]. An interior level that fills up is cut
// into a page, which in turn goes into the level above. Close writes the
// partly filled spine that remains.
type Table struct {
	db   *Database
	leaf *pagebuf.TableLeaf
	cell []byte

	levels  []*pagebuf.TableInterior
	scratch []byte

	// lastRowid is the rowid of the most recent row.
	lastRowid int64
	closed    bool
}

// NewTable starts an empty table.
func (db *Database) NewTable() *Table {
	return &Table{
		db:      db,
		leaf:    pagebuf.NewTableLeaf(pageSize),
		cell:    make([]byte, 0, pageSize),
		scratch: make([]byte, pageSize),
	}
}

// Append stores the encoded record row under the next rowid and returns it.
// row is not retained.
func (t *Table) Append(row []byte) (int64, error) {
	if t.closed {
		panic("table closed")
	}

	overflow, local, err := t.db.spill(row)
	if err != nil {
		return 0, err
	}
	rowid := t.lastRowid + 1
	t.cell = appendLeafCell(t.cell[:0], len(row), rowid, local, overflow)
	if !t.leaf.Add(t.cell) {
		if err := t.flushLeaf(); err != nil {
			return 0, err
		}
		// spill keeps every cell small enough for an empty leaf.
		t.leaf.Add(t.cell)
	}
	t.lastRowid = rowid
	return rowid, nil
}

// flushLeaf writes the current leaf and links it under lastRowid.
func (t *Table) flushLeaf() error {
	if t.leaf.IsEmpty() {
		return nil
	}
	page := t.db.allocPage()
	if err := t.db.writePage(page, t.leaf.Finish()); err != nil {
		return err
	}
	return t.link(page, t.lastRowid)
}

// link adds child, holding rowids up to key, to the lowest interior level.
func (t *Table) link(child pagebuf.PageNumber, key int64) error {
	for depth := 0; ; depth++ {
		if depth == len(t.levels) {
			t.levels = append(t.levels, pagebuf.NewTableInterior(pageSize))
		}
		if t.levels[depth].Add(child, key) {
			return nil
		}

		child = t.db.allocPage()
		key, _ = t.levels[depth].Put(t.scratch)
		if err := t.db.writePage(child, t.scratch); err != nil {
			return err
		}
	}
}

// Close writes the last leaf and the remaining interior pages, then
// records the table in the schema under name with its CREATE statement.
func (t *Table) Close(name, sql string) error {
	if t.closed {
		panic("table closed")
	}
	t.closed = true

	if err := t.flushLeaf(); err != nil {
		return err
	}
	root, err := t.finishLevels()
	if err != nil {
		return err
	}
	t.db.addTable(name, sql, root)
	return nil
}

// finishLevels empties the interior levels bottom up and returns the root.
func (t *Table) finishLevels() (pagebuf.PageNumber, error) {
	if len(t.levels) == 0 {
		root := t.db.allocPage()
		return root, t.db.writePage(root, t.leaf.Finish())
	}

	for depth := 0; ; depth++ {
		level := t.levels[depth]
		top := depth == len(t.levels)-1
		// A level is only ever cut after it holds two children,
		// so a lone child means nothing was cut here and this is the top.
		if level.Length() == 1 {
			root, _ := level.Remove()
			return root, nil
		}

		for {
			page := t.db.allocPage()
			key, empty := level.Put(t.scratch)
			if err := t.db.writePage(page, t.scratch); err != nil {
				return 0, err
			}
			if top && empty {
				return page, nil
			}
			if top {
				t.levels = append(t.levels, pagebuf.NewTableInterior(pageSize))
				top = false
			}
			t.levels[depth+1].Add(page, key)
			if empty {
				break
			}
		}
	}
}

func appendLeafCell(buf []byte, payloadLen int, rowid int64, local []byte, overflow pagebuf.PageNumber) []byte {
	buf = svarint.Append(buf, payloadLen)
	buf = svarint.Append(buf, rowid)
	buf = append(buf, local...)
	if overflow != 0 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(overflow))
	}
	return buf
}

// leafPayloadOnPage returns how many payload bytes a table leaf cell keeps
// locally, following the overflow rules of https://sqlite.org/fileformat2.html.
func leafPayloadOnPage(pageSize int, payloadSize int) int {
	maxLocal := pageSize - 35
	minLocal := (pageSize-12)*32/255 - 23
	surplus := minLocal + (payloadSize-minLocal)%(pageSize-4)
	switch {
	case payloadSize <= maxLocal:
		return payloadSize
	case surplus <= maxLocal:
		return surplus
	default:
		return minLocal
	}
}
