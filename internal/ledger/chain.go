package ledger

import (
	"fmt"
	"sort"
)

// State is the lifecycle stage of a Chain.
type State int

const (
	// Fresh chains hold only the genesis block.
	Fresh State = iota
	// Populated chains hold at least one block after genesis.
	Populated
)

func (s State) String() string {
	if s == Populated {
		return "populated"
	}
	return "fresh"
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock sets the clock used to timestamp new blocks.
func WithClock(clock Clock) Option {
	return func(c *Chain) {
		c.clock = clock
	}
}

// Chain is an ordered sequence of blocks starting at genesis.
type Chain struct {
	blocks []*Block
	clock  Clock
}

// NewChain creates a chain holding only the genesis block.
func NewChain(opts ...Option) *Chain {
	c := &Chain{clock: SystemClock{}}
	for _, opt := range opts {
		opt(c)
	}

	genesis, err := NewBlock(0, FormatTime(c.clock.Now()), GenesisPayload(), GenesisPreviousHash, 0)
	if err != nil {
		// The genesis payload is a fixed literal and always encodes.
		panic(err)
	}
	c.blocks = []*Block{genesis}
	return c
}

// GenesisPayload is the sentinel data stored in the genesis block.
func GenesisPayload() Payload {
	return Payload{"isGenesis": true}
}

// GetLatestBlock returns the block with the highest index.
func (c *Chain) GetLatestBlock() (*Block, error) {
	if len(c.blocks) == 0 {
		return nil, ErrEmptyChain
	}
	return c.blocks[len(c.blocks)-1], nil
}

// NextBlock builds, without appending, the block AddBlock would append for data.
func (c *Chain) NextBlock(data Payload) (*Block, error) {
	latest, err := c.GetLatestBlock()
	if err != nil {
		return nil, err
	}
	return NewBlock(latest.Index+1, FormatTime(c.clock.Now()), data, latest.Hash, 0)
}

// AddBlock appends a new block carrying data and returns it. The data is not
// inspected beyond being hashable.
func (c *Chain) AddBlock(data Payload) (*Block, error) {
	b, err := c.NextBlock(data)
	if err != nil {
		return nil, err
	}
	c.blocks = append(c.blocks, b)
	return b, nil
}

// Append adds a block built elsewhere, typically by NextBlock, after checking
// that it extends the current tip.
func (c *Chain) Append(b *Block) error {
	latest, err := c.GetLatestBlock()
	if err != nil {
		return err
	}
	if b.Index != latest.Index+1 {
		return fmt.Errorf("%w: expected index %d, got %d", ErrInvalidBlock, latest.Index+1, b.Index)
	}
	if b.PreviousHash != latest.Hash {
		return fmt.Errorf("%w: expected prev hash %s, got %s", ErrInvalidBlock, latest.Hash, b.PreviousHash)
	}
	expected, err := b.CalculateHash()
	if err != nil {
		return err
	}
	if b.Hash != expected {
		return fmt.Errorf("%w: expected hash %s, got %s", ErrInvalidBlock, expected, b.Hash)
	}

	c.blocks = append(c.blocks, b)
	return nil
}

// LoadChain replaces the whole sequence with blocks, ordered by index.
// It does not validate them; call Verify afterwards.
func (c *Chain) LoadChain(blocks []*Block) {
	sorted := make([]*Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	c.blocks = sorted
}

// Blocks returns the chain's blocks in index order. The slice is a copy;
// the blocks are shared.
func (c *Chain) Blocks() []*Block {
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Block returns the block whose Index field equals index. On a valid chain
// that is also its position; a loaded chain with gaps is searched.
func (c *Chain) Block(index int64) (*Block, error) {
	if index >= 0 && index < int64(len(c.blocks)) && c.blocks[index].Index == index {
		return c.blocks[index], nil
	}
	for _, b := range c.blocks {
		if b.Index == index {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
}

// Len returns the number of blocks, genesis included.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// State reports whether the chain holds anything beyond genesis.
func (c *Chain) State() State {
	if len(c.blocks) > 1 {
		return Populated
	}
	return Fresh
}
