package messagestore

import (
	"github.com/cockroachdb/pebble"
)

// ReadFrom returns up to limit records starting at position from (inclusive),
// in global append order. A limit of zero means unbounded. A record that fails
// its checksum aborts the scan with ErrCorruptRecord rather than being
// silently skipped.
func (s *Store) ReadFrom(from uint64, limit int) ([]Record, error) {
	low := keyEntry(0)
	hi := keyEntry(^uint64(0))

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	records := make([]Record, 0, 16)
	if from == 0 {
		if !iter.First() {
			return records, nil
		}
	} else if !iter.SeekGE(keyEntry(from)) {
		return records, nil
	}

	for iter.Valid() && (limit == 0 || len(records) < limit) {
		stream, payload, ok := decodeValue(iter.Value())
		if !ok {
			return nil, ErrCorruptRecord
		}
		records = append(records, Record{
			Stream:  stream,
			Pos:     posFromEntryKey(iter.Key()),
			Payload: payload,
		})
		if !iter.Next() {
			break
		}
	}
	return records, nil
}
