package pagebuf

import (
	"encoding/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestTableLeaf(t *testing.T) {
	leaf := NewTableLeaf(512)
	assert.True(t, leaf.IsEmpty())

	cell := make([]byte, 100)
	added := 0
	for leaf.Add(cell) {
		added++
	}
	// 8 header bytes, then 102 bytes per cell including its pointer.
	assert.Equal(t, 4, added)
	assert.False(t, leaf.IsEmpty())

	page := leaf.Finish()
	require.Len(t, page, 512)
	assert.Equal(t, byte(13), page[0])
	assert.Equal(t, uint16(4), binary.BigEndian.Uint16(page[3:]))
	assert.Equal(t, uint16(512-400), binary.BigEndian.Uint16(page[5:]))
	assert.Equal(t, uint16(412), binary.BigEndian.Uint16(page[8:]))
	assert.Equal(t, uint16(112), binary.BigEndian.Uint16(page[8+2*3:]))
	assert.True(t, leaf.IsEmpty())
}

func TestTableLeafFullSizePageWrapsContentStart(t *testing.T) {
	page := NewTableLeaf(65536).Finish()
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(page[5:]))
}

func TestTableInterior_PutKeepsTwoChildren(t *testing.T) {
	const pageSize = 64
	ti := NewTableInterior(pageSize)

	var n int
	for n = 1; ti.Add(PageNumber(n), int64(n)*10); n++ {
	}
	// Adding failed with two cells past a full page.
	full := ti.Length()

	p := make([]byte, pageSize)
	rightmost, empty := ti.Put(p)
	assert.False(t, empty)
	assert.Equal(t, 2, ti.Length())
	assert.Equal(t, int64(full-2)*10, rightmost)

	assert.Equal(t, byte(5), p[0])
	numCells := int(binary.BigEndian.Uint16(p[3:]))
	assert.Equal(t, full-3, numCells)
	assert.Equal(t, uint32(full-2), binary.BigEndian.Uint32(p[8:]))

	first := binary.BigEndian.Uint16(p[InteriorHeaderSize:])
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(p[first:]))
	assert.Equal(t, byte(10), p[first+4])

	rightmost, empty = ti.Put(p)
	assert.True(t, empty)
	assert.Equal(t, int64(full)*10, rightmost)
	assert.Equal(t, 0, ti.Length())
}

func TestTableInterior_Remove(t *testing.T) {
	ti := NewTableInterior(4096)
	ti.Add(7, 700)
	ti.Add(8, 800)

	child, key := ti.Remove()
	assert.Equal(t, PageNumber(8), child)
	assert.Equal(t, int64(800), key)
	assert.Equal(t, 1, ti.Length())
	assert.Equal(t, 4096-interiorCellLen(700), ti.contentStart)
}

func TestDatabaseHeader(t *testing.T) {
	hdr := NewDatabaseHeader(4096)
	require.True(t, hdr.Add([]byte{1, 2, 3}))

	page := hdr.Finish()
	assert.Equal(t, "SQLite format 3\000", string(page[:16]))
	assert.Equal(t, uint16(4096), binary.BigEndian.Uint16(page[16:]))
	assert.Equal(t, byte(13), page[DatabaseHeaderSize])
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(page[DatabaseHeaderSize+3:]))
	assert.Equal(t, uint16(4093), binary.BigEndian.Uint16(page[DatabaseHeaderSize+LeafHeaderSize:]))
	assert.Equal(t, []byte{1, 2, 3}, page[4093:])
}
