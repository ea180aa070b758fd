package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/tuannm99/novarel/internal/alias/bx"
)

var (
	ErrBadMagic   = errors.New("snapshot: bad magic")
	ErrBadVersion = errors.New("snapshot: unsupported version")
	ErrBadCRC     = errors.New("snapshot: bad crc")
	ErrBadRecord  = errors.New("snapshot: bad record")
	ErrShortRead  = errors.New("snapshot: short read")
)

const (
	magicU32   uint32 = 0x4C45524E // "NREL"
	versionU16 uint16 = 1

	// magic(4) ver(2) rsv(2) payloadLen(4) crc(4)
	headerSize = 4 + 2 + 2 + 4 + 4
)

// Encode frames a gob payload behind a fixed header.
func Encode(img Image) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(img); err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}

	buf := make([]byte, headerSize+payload.Len())
	c := bx.Cursor{Buf: buf}
	c.PutU32(magicU32)
	c.PutU16(versionU16)
	c.PutU16(0)
	c.PutU32(uint32(payload.Len()))
	c.PutU32(crc32.ChecksumIEEE(payload.Bytes()))
	copy(buf[c.Off:], payload.Bytes())
	return buf, nil
}

func Decode(data []byte) (Image, error) {
	if len(data) < headerSize {
		return Image{}, ErrShortRead
	}
	c := bx.Cursor{Buf: data}
	if c.U32() != magicU32 {
		return Image{}, ErrBadMagic
	}
	if v := c.U16(); v != versionU16 {
		return Image{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	_ = c.U16()
	n := int(c.U32())
	crc := c.U32()
	if c.Remaining() < n {
		return Image{}, ErrShortRead
	}
	payload := data[c.Off : c.Off+n]
	if crc32.ChecksumIEEE(payload) != crc {
		return Image{}, ErrBadCRC
	}

	var img Image
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&img); err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return img, nil
}
