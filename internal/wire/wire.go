// Package wire frames cached records with the generation they were read at.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version    byte = 1
	kindSingle byte = 1
	kindBulk   byte = 2

	singleHdr = 4 + 1 + 1 + 8 + 4
	bulkHdr   = 4 + 1 + 1 + 4
	maxKeyLen = 0xFFFF
)

var (
	ErrCorrupt = errors.New("feedsync: corrupt cache entry")
	magic      = [4]byte{'F', 'S', 'Y', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic[:])
}

// EncodeSingle frames one record:
//
//	magic(4) | ver(1) | kind(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func EncodeSingle(gen uint64, payload []byte) []byte {
	b := make([]byte, singleHdr, singleHdr+len(payload))
	copy(b, magic[:])
	b[4] = version
	b[5] = kindSingle
	binary.BigEndian.PutUint64(b[6:14], gen)
	binary.BigEndian.PutUint32(b[14:18], uint32(len(payload)))
	return append(b, payload...)
}

// DecodeSingle returns a payload slice aliasing b.
func DecodeSingle(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < singleHdr || !hasMagic(b) || b[4] != version || b[5] != kindSingle {
		return 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[6:14])
	vlen := int(binary.BigEndian.Uint32(b[14:18]))
	if vlen != len(b)-singleHdr {
		return 0, nil, ErrCorrupt
	}
	return gen, b[singleHdr:], nil
}

// BulkItem is one record inside a GetMany frame.
type BulkItem struct {
	Key     string
	Gen     uint64
	Payload []byte
}

// EncodeBulk frames a GetMany result:
//
//	magic(4) | ver(1) | kind(1) | n(u32 be)
//	n * [ klen(u16 be) | key | gen(u64 be) | vlen(u32 be) | payload ]
func EncodeBulk(items []BulkItem) ([]byte, error) {
	total := bulkHdr
	for _, it := range items {
		if l := len(it.Key); l == 0 || l > maxKeyLen {
			return nil, fmt.Errorf("feedsync: bulk key length %d out of range", l)
		}
		total += 2 + len(it.Key) + 8 + 4 + len(it.Payload)
	}

	b := make([]byte, 0, total)
	b = append(b, magic[:]...)
	b = append(b, version, kindBulk)
	b = binary.BigEndian.AppendUint32(b, uint32(len(items)))
	for _, it := range items {
		b = binary.BigEndian.AppendUint16(b, uint16(len(it.Key)))
		b = append(b, it.Key...)
		b = binary.BigEndian.AppendUint64(b, it.Gen)
		b = binary.BigEndian.AppendUint32(b, uint32(len(it.Payload)))
		b = append(b, it.Payload...)
	}
	return b, nil
}

// DecodeBulk returns items whose payloads alias b.
func DecodeBulk(b []byte) ([]BulkItem, error) {
	if len(b) < bulkHdr || !hasMagic(b) || b[4] != version || b[5] != kindBulk {
		return nil, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[6:10]))
	off := bulkHdr
	// each item needs at least 15 bytes; reject impossible counts before allocating
	if n > (len(b)-off)/15 {
		return nil, ErrCorrupt
	}

	items := make([]BulkItem, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen == 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		key := string(b[off : off+klen])
		off += klen

		if off+12 > len(b) {
			return nil, ErrCorrupt
		}
		gen := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen > len(b)-off {
			return nil, ErrCorrupt
		}
		items = append(items, BulkItem{Key: key, Gen: gen, Payload: b[off : off+vlen : off+vlen]})
		off += vlen
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}
