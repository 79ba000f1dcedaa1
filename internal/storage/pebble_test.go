package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *PebbleDB {
	t.Helper()
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// go test -v -run=TestPebbleGetPutDelete
func TestPebbleGetPutDelete(t *testing.T) {
	db := newTestDB(t)

	v, err := db.Get(CFVotes, []byte("missing"))
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, db.Put(CFVotes, []byte("k"), []byte("v")))
	v, err = db.Get(CFVotes, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	// same key in another column family is independent
	v, err = db.Get(CFBlocks, []byte("k"))
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, db.Delete(CFVotes, []byte("k")))
	v, err = db.Get(CFVotes, []byte("k"))
	require.NoError(t, err)
	require.Nil(t, v)
}

// go test -v -run=TestPebbleUnknownColumnFamily
func TestPebbleUnknownColumnFamily(t *testing.T) {
	db := newTestDB(t)

	require.Error(t, db.Put("nope", []byte("k"), []byte("v")))
	_, err := db.Get("nope", []byte("k"))
	require.Error(t, err)
	_, err = db.NewIterator("nope")
	require.Error(t, err)
}

// go test -v -run=TestPebbleIteratorStaysInColumnFamily
func TestPebbleIteratorStaysInColumnFamily(t *testing.T) {
	db := newTestDB(t)

	batch := db.NewBatch()
	require.NoError(t, db.PutBatch(batch, CFBlocks, []byte("1"), []byte("b1")))
	require.NoError(t, db.PutBatch(batch, CFBlocks, []byte("0"), []byte("b0")))
	require.NoError(t, db.PutBatch(batch, CFChainHead, []byte("head"), []byte("h")))
	require.NoError(t, db.PutBatch(batch, CFVotes, []byte("v1"), []byte("x")))
	require.NoError(t, db.WriteBatch(batch))
	batch.Destroy()

	iter, err := db.NewIterator(CFBlocks)
	require.NoError(t, err)
	defer iter.Close()

	var keys []string
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.Equal(t, []string{"0", "1"}, keys)
}

// go test -v -run=TestPrefixUpperBound
func TestPrefixUpperBound(t *testing.T) {
	require.Equal(t, []byte("blk;"), prefixUpperBound([]byte("blk:")))
	require.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xff}))
	require.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
	require.Nil(t, prefixUpperBound(nil))
}

// go test -v -run=TestPebbleReopenOnDisk
func TestPebbleReopenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")

	db, err := OpenPebbleDB(path, Options{CacheSize: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, db.Put(CFBlocks, []byte("0"), []byte("genesis")))
	require.NoError(t, db.Sync())
	require.NoError(t, db.Close())

	db, err = OpenPebbleDB(path, Options{})
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Get(CFBlocks, []byte("0"))
	require.NoError(t, err)
	require.Equal(t, []byte("genesis"), v)
}
