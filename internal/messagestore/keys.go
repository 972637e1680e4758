package messagestore

import "encoding/binary"

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/m                 last assigned position
// - log/e/{pos_be8}       one record per global position
// - log/c/{group}         durable checkpoint per consumer group
var (
	metaKey      = []byte("log/m")
	entryPrefix  = []byte("log/e/")
	cursorPrefix = []byte("log/c/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyEntry builds the entry key with a big-endian position for proper ordering.
func keyEntry(pos uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return appendBE8(k, pos)
}

func keyCheckpoint(group string) []byte {
	k := make([]byte, 0, len(cursorPrefix)+len(group))
	k = append(k, cursorPrefix...)
	return append(k, group...)
}

func posFromEntryKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(entryPrefix):])
}
