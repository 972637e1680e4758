package messagestore

import (
	"encoding/binary"
	"errors"

	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

// CommitCheckpoint durably records the last processed position for a consumer
// group. Commits never move a checkpoint backwards: a stale commit after a
// restart is ignored, which keeps redelivery at-least-once instead of
// rewinding the group.
func (s *Store) CommitCheckpoint(group string, pos uint64) error {
	if group == "" {
		return errors.New("messagestore: checkpoint group is required")
	}
	key := keyCheckpoint(group)
	cur, err := s.db.Get(key)
	if err == nil && len(cur) >= 8 {
		if pos <= binary.BigEndian.Uint64(cur[:8]) {
			return nil
		}
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], pos)
	return s.db.Set(key, b[:])
}

// Checkpoint loads the stored position for a consumer group. The second
// return value reports whether a checkpoint exists.
func (s *Store) Checkpoint(group string) (uint64, bool) {
	cur, err := s.db.Get(keyCheckpoint(group))
	if err != nil || len(cur) < 8 {
		if err != nil && !errors.Is(err, pebblestore.ErrNotFound) {
			return 0, false
		}
		return 0, false
	}
	return binary.BigEndian.Uint64(cur[:8]), true
}
