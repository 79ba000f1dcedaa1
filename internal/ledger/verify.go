package ledger

import "fmt"

// ViolationKind names the check a block failed.
type ViolationKind string

const (
	ViolationGenesis  ViolationKind = "genesis"
	ViolationIndex    ViolationKind = "index"
	ViolationLinkage  ViolationKind = "linkage"
	ViolationHash     ViolationKind = "hash"
	ViolationEncoding ViolationKind = "encoding"
)

// Violation is a single failed check at a given position in the chain.
type Violation struct {
	Index    int64         `json:"index"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected,omitempty"`
	Actual   string        `json:"actual,omitempty"`
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationGenesis:
		return fmt.Sprintf("invalid genesis block: expected %s, got %s", v.Expected, v.Actual)
	case ViolationIndex:
		return fmt.Sprintf("invalid index: expected %s, got %s", v.Expected, v.Actual)
	case ViolationLinkage:
		return fmt.Sprintf("invalid prev hash: expected %s, got %s", v.Expected, v.Actual)
	case ViolationHash:
		return fmt.Sprintf("invalid hash: expected %s, got %s", v.Expected, v.Actual)
	default:
		return fmt.Sprintf("unhashable data: %s", v.Actual)
	}
}

// Report is the outcome of a full chain verification.
type Report struct {
	Length     int         `json:"length"`
	HeadHash   string      `json:"headHash"`
	Violations []Violation `json:"violations"`
}

// Valid reports whether every block passed every check.
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

// FirstFailure returns the violation with the lowest block position.
func (r *Report) FirstFailure() (Violation, bool) {
	if len(r.Violations) == 0 {
		return Violation{}, false
	}
	return r.Violations[0], true
}

// Err returns nil for a valid chain and an *IntegrityError otherwise.
func (r *Report) Err() error {
	v, ok := r.FirstFailure()
	if !ok {
		return nil
	}
	return &IntegrityError{Violation: v, Total: len(r.Violations)}
}

// Verify checks the genesis sentinel and then, for every following block,
// index continuity, previousHash linkage and the stored hash against a fresh
// computation. All blocks are checked; violations are reported in chain order.
func (c *Chain) Verify() *Report {
	r := &Report{
		Length:     len(c.blocks),
		Violations: []Violation{},
	}
	if len(c.blocks) == 0 {
		r.Violations = append(r.Violations, Violation{
			Index:    0,
			Kind:     ViolationGenesis,
			Expected: "genesis block",
			Actual:   "empty chain",
		})
		return r
	}
	r.HeadHash = c.blocks[len(c.blocks)-1].Hash

	genesis := c.blocks[0]
	if genesis.Index != 0 {
		r.Violations = append(r.Violations, Violation{
			Index:    genesis.Index,
			Kind:     ViolationIndex,
			Expected: "0",
			Actual:   fmt.Sprintf("%d", genesis.Index),
		})
	}
	if genesis.PreviousHash != GenesisPreviousHash {
		r.Violations = append(r.Violations, Violation{
			Index:    genesis.Index,
			Kind:     ViolationGenesis,
			Expected: GenesisPreviousHash,
			Actual:   genesis.PreviousHash,
		})
	}
	r.Violations = append(r.Violations, checkHash(genesis)...)

	for i := 1; i < len(c.blocks); i++ {
		current := c.blocks[i]
		previous := c.blocks[i-1]

		if current.Index != previous.Index+1 {
			r.Violations = append(r.Violations, Violation{
				Index:    current.Index,
				Kind:     ViolationIndex,
				Expected: fmt.Sprintf("%d", previous.Index+1),
				Actual:   fmt.Sprintf("%d", current.Index),
			})
		}
		if current.PreviousHash != previous.Hash {
			r.Violations = append(r.Violations, Violation{
				Index:    current.Index,
				Kind:     ViolationLinkage,
				Expected: previous.Hash,
				Actual:   current.PreviousHash,
			})
		}
		r.Violations = append(r.Violations, checkHash(current)...)
	}

	return r
}

// IsChainValid reports whether Verify finds no violations.
func (c *Chain) IsChainValid() bool {
	return c.Verify().Valid()
}

func checkHash(b *Block) []Violation {
	expected, err := b.CalculateHash()
	if err != nil {
		return []Violation{{Index: b.Index, Kind: ViolationEncoding, Actual: err.Error()}}
	}
	if b.Hash != expected {
		return []Violation{{Index: b.Index, Kind: ViolationHash, Expected: expected, Actual: b.Hash}}
	}
	return nil
}
