package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/thanhnp/vote-ledger/internal/ledger"
)

var headKey = []byte("head")

// ChainHead points at the latest persisted block
type ChainHead struct {
	Index int64  `json:"index"`
	Hash  string `json:"hash"`
}

// LedgerStore persists ledger blocks, one record per block index
type LedgerStore struct {
	db *PebbleDB
	mu sync.Mutex // serializes head reads and writes
}

// NewLedgerStore creates a new LedgerStore
func NewLedgerStore(db *PebbleDB) *LedgerStore {
	return &LedgerStore{db: db}
}

// blockKey creates a key for the blocks column family
func blockKey(index int64) []byte {
	return []byte(strconv.FormatInt(index, 10))
}

// Save writes every block of the chain and the head pointer.
// Existing records at the same index are overwritten.
func (s *LedgerStore) Save(ctx context.Context, chain *ledger.Chain) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blocks := chain.Blocks()
	if len(blocks) == 0 {
		return ledger.ErrEmptyChain
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Destroy()

	for _, b := range blocks {
		if err := s.putBlock(batch, b); err != nil {
			return err
		}
	}
	if err := s.putHead(batch, blocks[len(blocks)-1]); err != nil {
		return err
	}

	return storageErr("save", s.db.WriteBatch(batch))
}

// Append writes a single block if it extends the stored head, then moves
// the head to it. A fresh store only accepts the genesis block.
func (s *LedgerStore) Append(ctx context.Context, b *ledger.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.head()
	if err != nil {
		return err
	}
	if head == nil {
		if b.Index != 0 || b.PreviousHash != ledger.GenesisPreviousHash {
			return fmt.Errorf("%w: store is empty, got block %d", ErrHeadMismatch, b.Index)
		}
	} else if head.Hash != b.PreviousHash || head.Index+1 != b.Index {
		return fmt.Errorf("%w: head is %d/%s, block %d links to %s",
			ErrHeadMismatch, head.Index, head.Hash, b.Index, b.PreviousHash)
	}

	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := s.putBlock(batch, b); err != nil {
		return err
	}
	if err := s.putHead(batch, b); err != nil {
		return err
	}

	return storageErr("append", s.db.WriteBatch(batch))
}

// LoadBlocks reads every stored block, sorted by index. Stored hashes are
// kept as they are.
func (s *LedgerStore) LoadBlocks(ctx context.Context) ([]*ledger.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter, err := s.db.NewIterator(CFBlocks)
	if err != nil {
		return nil, storageErr("load", err)
	}
	defer iter.Close()

	var blocks []*ledger.Block
	for ; iter.Valid(); iter.Next() {
		b, err := ledger.DecodeBlock(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode block at key %s: %w", iter.Key(), err)
		}
		blocks = append(blocks, b)
	}

	// Keys are decimal strings, so "10" sorts before "2".
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Index < blocks[j].Index
	})
	return blocks, nil
}

// Load replaces the chain's blocks with the stored ones and returns how many
// were loaded. An empty store leaves the chain untouched.
func (s *LedgerStore) Load(ctx context.Context, chain *ledger.Chain) (int, error) {
	blocks, err := s.LoadBlocks(ctx)
	if err != nil {
		return 0, err
	}
	if len(blocks) == 0 {
		log.Printf("[storage] Warning: no ledger blocks stored, keeping fresh chain")
		return 0, nil
	}

	chain.LoadChain(blocks)
	return len(blocks), nil
}

// GetBlock retrieves a stored block by index
func (s *LedgerStore) GetBlock(ctx context.Context, index int64) (*ledger.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.db.Get(CFBlocks, blockKey(index))
	if err != nil {
		return nil, storageErr("get", err)
	}
	if data == nil {
		return nil, nil
	}
	return ledger.DecodeBlock(data)
}

// Head returns the stored chain head, or nil if nothing was persisted
func (s *LedgerStore) Head(ctx context.Context) (*ChainHead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head()
}

func (s *LedgerStore) head() (*ChainHead, error) {
	data, err := s.db.Get(CFChainHead, headKey)
	if err != nil {
		return nil, storageErr("head", err)
	}
	if data == nil {
		return nil, nil
	}

	var head ChainHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain head: %w", err)
	}
	return &head, nil
}

func (s *LedgerStore) putBlock(batch *WriteBatch, b *ledger.Block) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return s.db.PutBatch(batch, CFBlocks, blockKey(b.Index), data)
}

func (s *LedgerStore) putHead(batch *WriteBatch, b *ledger.Block) error {
	data, err := json.Marshal(ChainHead{Index: b.Index, Hash: b.Hash})
	if err != nil {
		return fmt.Errorf("failed to marshal chain head: %w", err)
	}
	return s.db.PutBatch(batch, CFChainHead, headKey, data)
}
