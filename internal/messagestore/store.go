// Package messagestore implements the append-only, keyed message log backing
// the routing pipeline. Every record carries a logical stream key; positions
// are assigned from one global monotonic sequence so replay across streams
// preserves commit order, while each stream key stays totally ordered within
// itself.
package messagestore

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

// AuditStream is the stream key the router appends command audit records to.
const AuditStream = "audit"

var ErrCorruptRecord = errors.New("messagestore: corrupt record")

// Store provides append-only operations over a Pebble database. Appends are
// linearized under one mutex and committed as atomic batches, so concurrent
// appenders to any mix of stream keys cannot corrupt each other's ordering.
type Store struct {
	db *pebblestore.DB

	mu      sync.Mutex
	lastPos uint64
	notify  chan struct{}
}

// Open initialises a Store and loads the last assigned position, if any.
func Open(db *pebblestore.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("messagestore: db is required")
	}
	s := &Store{db: db, notify: make(chan struct{})}
	meta, err := db.Get(metaKey)
	switch {
	case err == nil && len(meta) >= 8:
		s.lastPos = binary.BigEndian.Uint64(meta[:8])
	case errors.Is(err, pebblestore.ErrNotFound):
		// fresh log
	case err != nil:
		return nil, err
	}
	return s, nil
}

// Append writes one record under the given stream key and returns its
// assigned global position. The entry and the position metadata commit in a
// single atomic batch.
func (s *Store) Append(ctx context.Context, stream string, payload []byte) (uint64, error) {
	if stream == "" {
		return 0, errors.New("messagestore: stream key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	pos := s.lastPos + 1
	if err := b.Set(keyEntry(pos), encodeValue(stream, payload), nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], pos)
	if err := b.Set(metaKey, meta[:], nil); err != nil {
		return 0, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	s.lastPos = pos

	// wake blocked tails
	close(s.notify)
	s.notify = make(chan struct{})
	return pos, nil
}

// LastPos returns the highest assigned position, or zero for an empty log.
func (s *Store) LastPos() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPos
}

// WaitForAppend blocks until the log grows past seen or ctx is done. The
// store never busy-spins: tailing readers park on a channel replaced by each
// append. The head re-check happens under the same lock that snapshots the
// channel, so a record committed between the caller's last read and this
// call wakes it immediately instead of being lost until the next append.
func (s *Store) WaitForAppend(ctx context.Context, seen uint64) error {
	s.mu.Lock()
	ch := s.notify
	head := s.lastPos
	s.mu.Unlock()

	if head > seen {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
