package storage

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key prefixes (simulating column families)
const (
	PrefixBlocks    = "blk:"
	PrefixChainHead = "hed:"
	PrefixVotes     = "vot:"
)

// Column family names
const (
	CFBlocks    = "blocks"
	CFChainHead = "chain_head"
	CFVotes     = "votes"
)

// Column family name to prefix mapping
var cfPrefixes = map[string]string{
	CFBlocks:    PrefixBlocks,
	CFChainHead: PrefixChainHead,
	CFVotes:     PrefixVotes,
}

// Options controls how the database is opened
type Options struct {
	// InMemory keeps all data in memory; Path is ignored.
	InMemory bool
	// CacheSize is the block cache size in bytes.
	CacheSize int64
	// NoSync skips fsync on every write.
	NoSync bool
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db     *pebble.DB
	noSync bool
}

// WriteBatch wraps Pebble's batch for atomic writes
type WriteBatch struct {
	batch *pebble.Batch
	db    *PebbleDB
}

// Iterator walks one column family in key order
type Iterator struct {
	iter     *pebble.Iterator
	cfPrefix []byte // stripped from returned keys
}

// NewMemPebbleDB opens a PebbleDB backed by an in-memory filesystem
func NewMemPebbleDB() (*PebbleDB, error) {
	return OpenPebbleDB("", Options{InMemory: true, NoSync: true})
}

// OpenPebbleDB opens a PebbleDB with the given options
func OpenPebbleDB(path string, o Options) (*PebbleDB, error) {
	cacheSize := o.CacheSize
	if cacheSize <= 0 {
		cacheSize = 64 << 20
	}
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: 500,
	}

	if o.InMemory {
		opts.FS = vfs.NewMem()
		path = "ledger"
	} else if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleDB{db: db, noSync: o.NoSync}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// Sync flushes memtables to sstables
func (p *PebbleDB) Sync() error {
	return p.db.Flush()
}

// writeOptions returns the appropriate write options based on sync mode
func (p *PebbleDB) writeOptions() *pebble.WriteOptions {
	if p.noSync {
		return pebble.NoSync
	}
	return pebble.Sync
}

// prefixKey creates a prefixed key for the given column family
func (p *PebbleDB) prefixKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}
	return append([]byte(prefix), key...), nil
}

// Put stores a key-value pair in the specified column family
func (p *PebbleDB) Put(cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Set(prefixedKey, value, p.writeOptions())
}

// Get retrieves a value from the specified column family.
// A missing key yields (nil, nil).
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return nil, err
	}

	value, closer, err := p.db.Get(prefixedKey)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Delete removes a key from the specified column family
func (p *PebbleDB) Delete(cf string, key []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Delete(prefixedKey, p.writeOptions())
}

// NewBatch creates a new write batch
func (p *PebbleDB) NewBatch() *WriteBatch {
	return &WriteBatch{
		batch: p.db.NewBatch(),
		db:    p,
	}
}

// WriteBatch writes a batch to the database
func (p *PebbleDB) WriteBatch(batch *WriteBatch) error {
	return batch.batch.Commit(p.writeOptions())
}

// PutBatch adds a put operation to the batch
func (p *PebbleDB) PutBatch(batch *WriteBatch, cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return batch.batch.Set(prefixedKey, value, nil)
}

// Destroy closes the batch and releases resources
func (b *WriteBatch) Destroy() {
	b.batch.Close()
}

// NewIterator creates an iterator over the whole column family
func (p *PebbleDB) NewIterator(cf string) (*Iterator, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	prefixBytes := []byte(prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixBytes,
		UpperBound: prefixUpperBound(prefixBytes),
	})
	if err != nil {
		return nil, err
	}

	iter.First()
	return &Iterator{iter: iter, cfPrefix: prefixBytes}, nil
}

// prefixUpperBound returns the upper bound for prefix iteration
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Valid returns true if the iterator is positioned at a valid key
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// Next advances the iterator to the next key
func (i *Iterator) Next() bool {
	return i.iter.Next()
}

// Key returns the current key without the column family prefix
func (i *Iterator) Key() []byte {
	key := i.iter.Key()
	return bytes.TrimPrefix(key, i.cfPrefix)
}

// Value returns the current value. It is only valid until the next move.
func (i *Iterator) Value() []byte {
	return i.iter.Value()
}

// Close closes the iterator
func (i *Iterator) Close() error {
	return i.iter.Close()
}
