// Package record builds rows in the SQLite record format:
// a header of serial types followed by the column values.
package record

import (
	"github.com/atopx/mockphone/internal/svarint"
	"math"
)

// Serial types with no payload.
const (
	serialNull  = 0
	serialZero  = 8
	serialOne   = 9
	serialText0 = 13
)

// intWidths maps the integer serial types 1 through 6 to their payload width.
var intWidths = [...]int{1, 2, 3, 4, 6, 8}

// Record accumulates the columns of one row. The zero value is an empty record.
type Record struct {
	header  []byte
	payload []byte
}

// AppendNull appends a NULL column. A rowid alias column is stored as NULL.
func (r *Record) AppendNull() {
	r.header = append(r.header, serialNull)
}

// AppendInt appends an integer column using the narrowest serial type.
func (r *Record) AppendInt(i int64) {
	switch i {
	case 0:
		r.header = append(r.header, serialZero)
		return
	case 1:
		r.header = append(r.header, serialOne)
		return
	}

	for n, width := range intWidths {
		limit := int64(1) << (8*width - 1)
		if width == 8 || (i >= -limit && i < limit) {
			r.header = append(r.header, byte(n+1))
			for shift := 8 * (width - 1); shift >= 0; shift -= 8 {
				r.payload = append(r.payload, byte(i>>shift))
			}
			return
		}
	}
}

// AppendUint appends an unsigned integer column.
// Values above math.MaxInt64 wrap, as they would in SQLite.
func (r *Record) AppendUint(u uint64) {
	if u > math.MaxInt64 {
		r.header = append(r.header, byte(len(intWidths)))
		for shift := 56; shift >= 0; shift -= 8 {
			r.payload = append(r.payload, byte(u>>shift))
		}
		return
	}
	r.AppendInt(int64(u))
}

// AppendString appends a TEXT column.
func (r *Record) AppendString(s string) {
	r.header = svarint.Append(r.header, 2*len(s)+serialText0)
	r.payload = append(r.payload, s...)
}

// AppendTo appends the encoded record to p.
func (r *Record) AppendTo(p []byte) []byte {
	p = svarint.Append(p, headerLen(len(r.header)))
	p = append(p, r.header...)
	return append(p, r.payload...)
}

// Reset empties the record, keeping its buffers.
func (r *Record) Reset() {
	r.header = r.header[:0]
	r.payload = r.payload[:0]
}

// headerLen is the header size including its own varint length prefix,
// which may need an extra byte once it counts itself.
func headerLen(l int) int {
	return l + svarint.Length(l+svarint.Length(l))
}
