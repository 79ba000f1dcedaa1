package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thanhnp/vote-ledger/internal/ledger"
)

func newTestChain(t *testing.T, votes ...[2]string) *ledger.Chain {
	t.Helper()
	clock := ledger.NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	c := ledger.NewChain(ledger.WithClock(clock))
	for _, v := range votes {
		_, err := c.AddBlock(ledger.Payload{
			"voterReference":     v[0],
			"candidateReference": v[1],
			"timestamp":          "2024-01-01T00:00:00Z",
		})
		require.NoError(t, err)
	}
	return c
}

func requireSameBlocks(t *testing.T, want, got []*ledger.Block) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Index, got[i].Index)
		require.Equal(t, want[i].Hash, got[i].Hash)
		require.Equal(t, want[i].PreviousHash, got[i].PreviousHash)
		require.Equal(t, want[i].Timestamp, got[i].Timestamp)
		require.Equal(t, want[i].Nonce, got[i].Nonce)

		wantData, err := ledger.CanonicalJSON(want[i].Data)
		require.NoError(t, err)
		gotData, err := ledger.CanonicalJSON(got[i].Data)
		require.NoError(t, err)
		require.JSONEq(t, string(wantData), string(gotData))
	}
}

// go test -v -run=TestLedgerStoreRoundTrip
func TestLedgerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(newTestDB(t))
	src := newTestChain(t, [2]string{"v1", "A"}, [2]string{"v2", "B"})

	require.NoError(t, s.Save(ctx, src))

	dst := ledger.NewChain()
	n, err := s.Load(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	requireSameBlocks(t, src.Blocks(), dst.Blocks())
	require.True(t, dst.IsChainValid())

	b1, err := dst.Block(1)
	require.NoError(t, err)
	require.Equal(t, "A", b1.Data["candidateReference"])

	head, err := s.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), head.Index)
	require.Equal(t, src.Blocks()[2].Hash, head.Hash)
}

// go test -v -run=TestLedgerStoreLoadSortsOutOfOrderRecords
func TestLedgerStoreLoadSortsOutOfOrderRecords(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLedgerStore(db)

	var votes [][2]string
	for i := 0; i < 11; i++ {
		votes = append(votes, [2]string{"voter", "cand"})
	}
	src := newTestChain(t, votes...)
	blocks := src.Blocks()

	// write records one by one in a scrambled order; keys "10" and "11" also
	// sort before "2" lexicographically
	order := []int{7, 11, 0, 3, 10, 1, 9, 2, 5, 4, 8, 6}
	for _, i := range order {
		data, err := blocks[i].Encode()
		require.NoError(t, err)
		require.NoError(t, db.Put(CFBlocks, blockKey(blocks[i].Index), data))
	}

	dst := ledger.NewChain()
	n, err := s.Load(ctx, dst)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	requireSameBlocks(t, blocks, dst.Blocks())
	require.True(t, dst.IsChainValid())
}

// go test -v -run=TestLedgerStoreLoadEmpty
func TestLedgerStoreLoadEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(newTestDB(t))

	c := ledger.NewChain()
	genesis := c.Blocks()[0]

	n, err := s.Load(ctx, c)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 1, c.Len())
	require.Equal(t, genesis, c.Blocks()[0])

	head, err := s.Head(ctx)
	require.NoError(t, err)
	require.Nil(t, head)
}

// go test -v -run=TestLedgerStoreLoadPreservesStoredHash
func TestLedgerStoreLoadPreservesStoredHash(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLedgerStore(db)
	src := newTestChain(t, [2]string{"v1", "A"}, [2]string{"v2", "B"})
	require.NoError(t, s.Save(ctx, src))

	// tamper with a stored vote but keep its hash
	tampered := src.Blocks()[1].Clone()
	tampered.Data["candidateReference"] = "B"
	data, err := tampered.Encode()
	require.NoError(t, err)
	require.NoError(t, db.Put(CFBlocks, blockKey(1), data))

	dst := ledger.NewChain()
	_, err = s.Load(ctx, dst)
	require.NoError(t, err)

	b1, err := dst.Block(1)
	require.NoError(t, err)
	require.Equal(t, src.Blocks()[1].Hash, b1.Hash)

	r := dst.Verify()
	require.False(t, r.Valid())
	first, _ := r.FirstFailure()
	require.Equal(t, int64(1), first.Index)
	require.Equal(t, ledger.ViolationHash, first.Kind)
}

// go test -v -run=TestLedgerStoreLoadCorruptRecord
func TestLedgerStoreLoadCorruptRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLedgerStore(db)
	require.NoError(t, db.Put(CFBlocks, blockKey(0), []byte("{")))

	_, err := s.Load(ctx, ledger.NewChain())
	require.Error(t, err)
}

// go test -v -run=TestLedgerStoreAppend
func TestLedgerStoreAppend(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(newTestDB(t))
	c := newTestChain(t)

	require.NoError(t, s.Append(ctx, c.Blocks()[0]))

	b1, err := c.AddBlock(ledger.Payload{"voterReference": "v1", "candidateReference": "A"})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, b1))

	b2, err := c.AddBlock(ledger.Payload{"voterReference": "v2", "candidateReference": "B"})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, b2))

	head, err := s.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, &ChainHead{Index: 2, Hash: b2.Hash}, head)

	stored, err := s.GetBlock(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, b1.Hash, stored.Hash)

	missing, err := s.GetBlock(ctx, 9)
	require.NoError(t, err)
	require.Nil(t, missing)

	dst := ledger.NewChain()
	_, err = s.Load(ctx, dst)
	require.NoError(t, err)
	requireSameBlocks(t, c.Blocks(), dst.Blocks())
}

// go test -v -run=TestLedgerStoreAppendRejectsStaleHead
func TestLedgerStoreAppendRejectsStaleHead(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(newTestDB(t))

	// two writers start from the same persisted genesis
	base := newTestChain(t)
	require.NoError(t, s.Save(ctx, base))

	writerA := ledger.NewChain()
	writerB := ledger.NewChain()
	_, err := s.Load(ctx, writerA)
	require.NoError(t, err)
	_, err = s.Load(ctx, writerB)
	require.NoError(t, err)

	a, err := writerA.AddBlock(ledger.Payload{"voterReference": "a"})
	require.NoError(t, err)
	b, err := writerB.AddBlock(ledger.Payload{"voterReference": "b"})
	require.NoError(t, err)
	require.Equal(t, a.PreviousHash, b.PreviousHash)

	require.NoError(t, s.Append(ctx, a))
	err = s.Append(ctx, b)
	require.ErrorIs(t, err, ErrHeadMismatch)

	head, err := s.Head(ctx)
	require.NoError(t, err)
	require.Equal(t, a.Hash, head.Hash)
}

// go test -v -run=TestLedgerStoreAppendOnEmptyStore
func TestLedgerStoreAppendOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerStore(newTestDB(t))
	c := newTestChain(t, [2]string{"v1", "A"})

	err := s.Append(ctx, c.Blocks()[1])
	require.ErrorIs(t, err, ErrHeadMismatch)
}

// go test -v -run=TestStorageErrorUnwraps
func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := storageErr("save", cause)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "save", se.Op)
	require.ErrorIs(t, err, cause)
	require.Nil(t, storageErr("save", nil))
}

// go test -v -run=TestLedgerStoreCanceledContext
func TestLedgerStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewLedgerStore(newTestDB(t))

	require.ErrorIs(t, s.Save(ctx, newTestChain(t)), context.Canceled)
	_, err := s.Load(ctx, ledger.NewChain())
	require.ErrorIs(t, err, context.Canceled)
}
