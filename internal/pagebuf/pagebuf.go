// Package pagebuf assembles SQLite table B-tree pages in memory.
package pagebuf

import (
	"encoding/binary"
	"github.com/atopx/mockphone/internal/svarint"
)

const (
	DatabaseHeaderSize = 100
	LeafHeaderSize     = 8
	InteriorHeaderSize = 12
)

const (
	kindTableInterior = 5
	kindTableLeaf     = 13
)

// PageNumber annotates uint32s that are actually page numbers.
type PageNumber uint32

// cellArea fills a page with cells from the end toward the b-tree header,
// growing the cell pointer array behind the header as it goes.
type cellArea struct {
	page []byte
	// headerOffset is where the b-tree header starts; 100 on page 1, else 0.
	headerOffset int
	// pointersStart is where the cell pointer array starts.
	pointersStart int
	contentStart  int
	numCells      int
}

func newCellArea(pageSize, headerOffset, headerSize int) cellArea {
	return cellArea{
		page:          make([]byte, pageSize),
		headerOffset:  headerOffset,
		pointersStart: headerOffset + headerSize,
		contentStart:  pageSize,
	}
}

// Add tries to add a cell to the page, returning true if it fits.
func (a *cellArea) Add(cell []byte) bool {
	contentStart := a.contentStart - len(cell)
	pointer := a.pointersStart + 2*a.numCells
	if contentStart < pointer+2 {
		return false
	}

	binary.BigEndian.PutUint16(a.page[pointer:], uint16(contentStart))
	copy(a.page[contentStart:], cell)
	a.contentStart = contentStart
	a.numCells++
	return true
}

// IsEmpty returns whether no cells have been added since the last finish.
func (a *cellArea) IsEmpty() bool { return a.numCells == 0 }

func (a *cellArea) finish(kind byte, rightmost PageNumber) []byte {
	putHeader(a.page[a.headerOffset:], kind, a.numCells, a.contentStart, rightmost)
	a.contentStart = len(a.page)
	a.numCells = 0
	return a.page
}

// putHeader writes a b-tree page header. A content start of 65536 wraps to
// zero, which is how the file format spells it.
func putHeader(h []byte, kind byte, numCells, contentStart int, rightmost PageNumber) {
	h[0] = kind
	binary.BigEndian.PutUint16(h[1:], 0)
	binary.BigEndian.PutUint16(h[3:], uint16(numCells))
	binary.BigEndian.PutUint16(h[5:], uint16(contentStart))
	h[7] = 0
	if kind == kindTableInterior {
		binary.BigEndian.PutUint32(h[8:], uint32(rightmost))
	}
}

// TableLeaf helps write table B-tree leaf nodes.
type TableLeaf struct {
	cellArea
}

// NewTableLeaf returns an empty TableLeaf.
func NewTableLeaf(pageSize int) *TableLeaf {
	return &TableLeaf{newCellArea(pageSize, 0, LeafHeaderSize)}
}

// Finish finishes writing the node, returning a page-sized slice with its contents.
// The TableLeaf is emptied and ready to reuse after Finish returns.
//
// Finish returns a reference to the internal buffer; do not modify it.
func (p *TableLeaf) Finish() []byte {
	return p.finish(kindTableLeaf, 0)
}

// TableInterior buffers the children of one level of a table B-tree
// and cuts them into interior pages.
//
// Every page must keep at least two children, so the buffer holds up to
// two cells past what fits on a page before the caller has to Put.
type TableInterior struct {
	children []PageNumber
	keys     []int64
	pageSize int
	// contentStart tracks where the next cell would go if the buffered
	// cells were laid out on one page.
	contentStart int
	// excess counts buffered cells that did not fit.
	excess int
}

// NewTableInterior returns an empty TableInterior.
func NewTableInterior(pageSize int) *TableInterior {
	return &TableInterior{
		pageSize:     pageSize,
		contentStart: pageSize,
	}
}

func interiorCellLen(key int64) int {
	return 4 + svarint.Length(key)
}

func (ti *TableInterior) account(numCells int, key int64) {
	if ti.excess > 0 {
		ti.excess++
		return
	}
	contentStart := ti.contentStart - interiorCellLen(key)
	if contentStart < InteriorHeaderSize+2*numCells+2 {
		ti.excess = 1
		return
	}
	ti.contentStart = contentStart
}

// Add buffers a child page whose largest rowid is at most key.
// If Add returns false a full page of cells is buffered;
// call Put to write the page and make room for more.
func (ti *TableInterior) Add(child PageNumber, key int64) (ok bool) {
	ti.children = append(ti.children, child)
	ti.keys = append(ti.keys, key)
	ti.account(len(ti.children), key)
	return ti.excess < 2
}

// Length returns the number of buffered children, including excess cells.
func (ti *TableInterior) Length() int {
	return len(ti.children)
}

// Put writes an interior page to p and drops the children it used from the buffer.
//
// While the table is open, call Put once whenever Add returns false and ignore empty.
// Once the table is closed, keep calling Put until empty is true.
func (ti *TableInterior) Put(p []byte) (rightmostKey int64, empty bool) {
	if len(ti.children) < 2 {
		panic("degenerate node")
	}

	// Leave two children behind whenever anything is left behind at all.
	limit := len(ti.children) - ti.excess
	if ti.excess == 1 {
		limit--
	}

	contentStart := len(p)
	numCells := 0
	for ; numCells < limit-1; numCells++ {
		contentStart -= interiorCellLen(ti.keys[numCells])
		pointer := InteriorHeaderSize + 2*numCells
		if contentStart <= pointer+2 {
			// NOTE: Add and Put disagree about how much fits on a page.
			panic("internal bug")
		}
		binary.BigEndian.PutUint16(p[pointer:], uint16(contentStart))
		binary.BigEndian.PutUint32(p[contentStart:], uint32(ti.children[numCells]))
		svarint.Put(p[contentStart+4:], ti.keys[numCells])
	}
	rightmostKey = ti.keys[numCells]
	putHeader(p, kindTableInterior, numCells, contentStart, ti.children[numCells])

	ti.children = append(ti.children[:0], ti.children[numCells+1:]...)
	ti.keys = append(ti.keys[:0], ti.keys[numCells+1:]...)
	ti.contentStart = ti.pageSize
	ti.excess = 0
	for i, key := range ti.keys {
		ti.account(i+1, key)
	}

	return rightmostKey, len(ti.children) == 0
}

// Remove removes the most recent child added with Add.
func (ti *TableInterior) Remove() (child PageNumber, key int64) {
	last := len(ti.children) - 1
	if last < 0 {
		panic("empty node")
	}

	child, key = ti.children[last], ti.keys[last]
	ti.children = ti.children[:last]
	ti.keys = ti.keys[:last]

	if ti.excess > 0 {
		ti.excess--
	} else {
		ti.contentStart += interiorCellLen(key)
	}
	return child, key
}

// DatabaseHeader helps write page 1: the file header followed by
// the sqlite_schema root, which is always a single leaf here.
type DatabaseHeader struct {
	cellArea
}

// NewDatabaseHeader returns an empty DatabaseHeader.
func NewDatabaseHeader(pageSize int) *DatabaseHeader {
	return &DatabaseHeader{newCellArea(pageSize, DatabaseHeaderSize, LeafHeaderSize)}
}

// Finish writes the file header and the schema leaf header,
// returning a page-sized slice with its contents.
//
// Finish returns a reference to the internal buffer; do not modify it.
func (p *DatabaseHeader) Finish() []byte {
	h := p.page
	copy(h, "SQLite format 3\000")
	if len(h) == 65536 {
		// page size 1 means 65536; file format write/read versions 1 (legacy)
		binary.BigEndian.PutUint32(h[16:], 0x010101)
	} else {
		binary.BigEndian.PutUint32(h[16:], uint32(len(h)<<16)|0x0101)
	}
	// reserved bytes 0, payload fractions 64/32/32
	binary.BigEndian.PutUint32(h[20:], 0x00402020)
	// schema format 4
	binary.BigEndian.PutUint32(h[44:], 4)
	binary.BigEndian.PutUint32(h[48:], uint32(2048000/len(h)))
	// UTF-8
	binary.BigEndian.PutUint32(h[56:], 1)
	binary.BigEndian.PutUint32(h[96:], 3003000)
	return p.finish(kindTableLeaf, 0)
}
