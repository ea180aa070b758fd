// stand for bytes helper
package bx

import "encoding/binary"

var LE = binary.LittleEndian

func U16(b []byte) uint16 { return LE.Uint16(b) }
func U32(b []byte) uint32 { return LE.Uint32(b) }
func U64(b []byte) uint64 { return LE.Uint64(b) }

func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutU64(b []byte, v uint64) { LE.PutUint64(b, v) }

// Cursor walks a fixed buffer, writing or reading LE fields in sequence.
type Cursor struct {
	Buf []byte
	Off int
}

func (c *Cursor) PutU16(v uint16) { PutU16(c.Buf[c.Off:], v); c.Off += 2 }
func (c *Cursor) PutU32(v uint32) { PutU32(c.Buf[c.Off:], v); c.Off += 4 }

func (c *Cursor) U16() uint16 {
	v := U16(c.Buf[c.Off:])
	c.Off += 2
	return v
}

func (c *Cursor) U32() uint32 {
	v := U32(c.Buf[c.Off:])
	c.Off += 4
	return v
}

// Remaining reports how many bytes are left after the cursor.
func (c *Cursor) Remaining() int { return len(c.Buf) - c.Off }
