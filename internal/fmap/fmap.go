// Package fmap is the external fmap serializer: it encodes an extent list
// plus a file-kind tag into the fixed-size wire message the kernel client
// expects back from the daemon's custom "get_fmap" operation, and decodes
// it again (used by tests to verify the round-trip property). The byte
// layout is a stable wire contract — see MessageSize.
package fmap

import (
	"encoding/binary"
	"fmt"

	"github.com/shadowfs/shadowfsd/internal/shadowmeta"
)

// MessageSize is the fixed reply size for get_fmap. Older kernel clients
// cannot handle a short reply, so every message is padded to this length
// regardless of how many extents it actually carries.
const MessageSize = 4096

// Kind tags the type of object the fmap describes.
type Kind uint8

const (
	KindRegular Kind = 1
)

// ExtentType tags the shape of the extent array that follows the header.
type ExtentType uint8

const (
	ExtentTypeSimple ExtentType = 1
)

// MaxExtents bounds how many extents a single 4 KiB message can carry:
// 8 bytes of header plus 16 bytes per extent.
const MaxExtents = (MessageSize - headerSize) / extentSize

const (
	headerSize = 8  // kind(1) + extentType(1) + reserved(2) + count(4)
	extentSize = 16 // offset(8) + length(8)
)

// Encode renders kind and the extent list into a MessageSize-byte buffer.
// It fails if the extent list would overflow the fixed message size.
func Encode(kind Kind, extentType ExtentType, extents []shadowmeta.Extent) ([]byte, error) {
	if len(extents) > MaxExtents {
		return nil, fmt.Errorf("fmap: %d extents exceeds message capacity %d", len(extents), MaxExtents)
	}

	buf := make([]byte, MessageSize)
	buf[0] = byte(kind)
	buf[1] = byte(extentType)
	// buf[2:4] reserved, left zero.
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(extents)))

	off := headerSize
	for _, e := range extents {
		binary.LittleEndian.PutUint64(buf[off:off+8], e.Offset)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], e.Length)
		off += extentSize
	}

	return buf, nil
}

// Decode parses a message produced by Encode. It does not require the
// buffer be exactly MessageSize bytes, only that it be large enough to
// hold the declared extent count, so tests can decode partial buffers.
func Decode(buf []byte) (kind Kind, extentType ExtentType, extents []shadowmeta.Extent, err error) {
	if len(buf) < headerSize {
		return 0, 0, nil, fmt.Errorf("fmap: message too short (%d bytes)", len(buf))
	}

	kind = Kind(buf[0])
	extentType = ExtentType(buf[1])
	count := binary.LittleEndian.Uint32(buf[4:8])

	need := headerSize + int(count)*extentSize
	if len(buf) < need {
		return 0, 0, nil, fmt.Errorf("fmap: message declares %d extents but is only %d bytes", count, len(buf))
	}

	extents = make([]shadowmeta.Extent, count)
	off := headerSize
	for i := range extents {
		extents[i] = shadowmeta.Extent{
			Offset: binary.LittleEndian.Uint64(buf[off : off+8]),
			Length: binary.LittleEndian.Uint64(buf[off+8 : off+16]),
		}
		off += extentSize
	}

	return kind, extentType, extents, nil
}
