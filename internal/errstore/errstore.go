// Package errstore is the keyed blob container for quarantined envelopes.
// Entries are keyed by envelope id and keep enough context (failure reason,
// original queue) to support manual or automated replay.
package errstore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eventspine/eventspine/internal/runtime/jsoncodec"
	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

var keyPrefix = []byte("errors/")

var ErrNotFound = errors.New("errstore: entry not found")

// Entry is one quarantined envelope with its failure context.
type Entry struct {
	EnvelopeID    string    `json:"envelope_id"`
	Envelope      []byte    `json:"envelope"`
	Reason        string    `json:"reason"`
	OriginalQueue string    `json:"original_queue"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

// Store persists quarantine entries in Pebble.
type Store struct {
	db *pebblestore.DB
}

func New(db *pebblestore.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("errstore: db is required")
	}
	return &Store{db: db}, nil
}

func entryKey(envelopeID string) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(envelopeID))
	k = append(k, keyPrefix...)
	return append(k, envelopeID...)
}

// Put stores an entry under its envelope id. A redelivered poison message
// overwrites its previous entry; the container holds at most one entry per
// envelope id.
func (s *Store) Put(entry Entry) error {
	if entry.EnvelopeID == "" {
		return errors.New("errstore: envelope id is required")
	}
	if entry.QuarantinedAt.IsZero() {
		entry.QuarantinedAt = time.Now().UTC()
	}
	val, err := jsoncodec.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Set(entryKey(entry.EnvelopeID), val)
}

// Get loads the entry for an envelope id.
func (s *Store) Get(envelopeID string) (Entry, error) {
	val, err := s.db.Get(entryKey(envelopeID))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	var entry Entry
	if err := jsoncodec.Unmarshal(val, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes the entry for an envelope id, typically after a replay.
func (s *Store) Delete(envelopeID string) error {
	return s.db.Delete(entryKey(envelopeID))
}

// List returns up to limit entries in key order. A limit of zero means all.
func (s *Store) List(limit int) ([]Entry, error) {
	upper := append(append([]byte(nil), keyPrefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for ok := iter.First(); ok && (limit == 0 || len(entries) < limit); ok = iter.Next() {
		var entry Entry
		if err := jsoncodec.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
