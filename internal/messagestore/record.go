package messagestore

import (
	"encoding/binary"
	"hash/crc32"
)

// Record is one logged entry: the logical stream it belongs to, its global
// append position, and the serialized envelope payload. Records are immutable
// once appended.
type Record struct {
	Stream  string
	Pos     uint64
	Payload []byte
}

// Value encoding: varint streamLen | stream | payload | crc32c(stream|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeValue(stream string, payload []byte) []byte {
	out := make([]byte, 0, 10+len(stream)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(stream)))
	out = append(out, tmp[:n]...)
	out = append(out, stream...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, []byte(stream))
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func decodeValue(b []byte) (stream string, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return "", nil, false
	}
	slen, n := binary.Uvarint(b)
	// A corrupt length field can exceed the buffer or wrap negative when
	// truncated to int; reject it before any slice arithmetic.
	if n <= 0 || slen > uint64(len(b)) || n+int(slen)+4 > len(b) {
		return "", nil, false
	}
	streamBytes := b[n : n+int(slen)]
	body := b[n+int(slen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, streamBytes)
	crc = crc32.Update(crc, castagnoli, body)
	if crc != expect {
		return "", nil, false
	}
	return string(streamBytes), append([]byte(nil), body...), true
}
