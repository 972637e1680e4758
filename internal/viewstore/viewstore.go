// Package viewstore defines the opaque document persistence used by
// projections. The routing core never inspects documents itself; it only hands
// the store to registered projection handlers.
package viewstore

import (
	"errors"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/eventspine/eventspine/internal/storage/pebble"
)

var ErrNotFound = errors.New("viewstore: document not found")

// Store is keyed document persistence: opaque byte documents addressed by
// collection and key.
type Store interface {
	Get(collection, key string) ([]byte, error)
	Put(collection, key string, doc []byte) error
	Delete(collection, key string) error
	// Keys lists the document keys of a collection in lexicographic order.
	Keys(collection string) ([]string, error)
}

// PebbleStore implements Store on the shared Pebble wrapper.
type PebbleStore struct {
	db *pebblestore.DB
}

func NewPebbleStore(db *pebblestore.DB) (*PebbleStore, error) {
	if db == nil {
		return nil, errors.New("viewstore: db is required")
	}
	return &PebbleStore{db: db}, nil
}

// Key layout: views/{collection}/{key}. Collections must not contain '/'.
func docKey(collection, key string) []byte {
	k := make([]byte, 0, 6+len(collection)+1+len(key))
	k = append(k, "views/"...)
	k = append(k, collection...)
	k = append(k, '/')
	return append(k, key...)
}

func (s *PebbleStore) Get(collection, key string) ([]byte, error) {
	doc, err := s.db.Get(docKey(collection, key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *PebbleStore) Put(collection, key string, doc []byte) error {
	return s.db.Set(docKey(collection, key), doc)
}

func (s *PebbleStore) Delete(collection, key string) error {
	return s.db.Delete(docKey(collection, key))
}

func (s *PebbleStore) Keys(collection string) ([]string, error) {
	prefix := docKey(collection, "")
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var keys []string
	for ok := iter.First(); ok; ok = iter.Next() {
		keys = append(keys, string(iter.Key()[len(prefix):]))
	}
	return keys, nil
}
