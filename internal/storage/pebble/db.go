// Package pebblestore wraps a Pebble database with the durability policy and
// small helpers shared by the message store, the error container, and the view
// store. All durable state in eventspine lives behind this wrapper.
package pebblestore

import (
	"context"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Options configures the Pebble wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Sync forces a WAL fsync on every committed batch. The message store
	// opens its database with Sync enabled; view caches may opt out.
	Sync bool
	// PebbleOptions allows advanced tuning. Nil selects Pebble defaults.
	PebbleOptions *pebble.Options
}

// DB wraps a Pebble database instance with the configured fsync policy.
type DB struct {
	inner     *pebble.DB
	writeSync bool
	closeOnce sync.Once
	closeErr  error
}

var ErrNotFound = pebble.ErrNotFound

// Open creates or opens a Pebble database at Options.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, writeSync: opts.Sync}, nil
}

// Synced reports whether committed batches fsync the WAL.
func (db *DB) Synced() bool {
	return db.writeSync
}

// Close closes the underlying database. Safe to call more than once.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	db.closeOnce.Do(func() {
		db.closeErr = db.inner.Close()
	})
	return db.closeErr
}

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits the batch with the configured fsync policy.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebblestore: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// Set writes a single key through a small batch so the fsync policy applies.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Delete removes a key through a small batch so the fsync policy applies.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Get returns a copy of the value stored for key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter creates a raw Pebble iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
