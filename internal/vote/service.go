package vote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/thanhnp/vote-ledger/internal/config"
	"github.com/thanhnp/vote-ledger/internal/ledger"
	"github.com/thanhnp/vote-ledger/internal/models"
	"github.com/thanhnp/vote-ledger/internal/storage"
)

var (
	// ErrInvalidVote is returned for a vote missing its voter or candidate
	ErrInvalidVote = errors.New("vote: invalid vote")
	// ErrAlreadyVoted is returned when the voter already has a vote on record
	ErrAlreadyVoted = storage.ErrAlreadyVoted
)

// Options controls how the service records votes
type Options struct {
	IntegrityPolicy  string
	SaveMode         string
	MaxAppendRetries int
	VerifyCacheTTL   time.Duration
	Clock            ledger.Clock
}

// OptionsFromConfig maps the ledger configuration section to Options
func OptionsFromConfig(cfg config.LedgerConfig) Options {
	return Options{
		IntegrityPolicy:  cfg.IntegrityPolicy,
		SaveMode:         cfg.SaveMode,
		MaxAppendRetries: cfg.MaxAppendRetries,
		VerifyCacheTTL:   time.Duration(cfg.VerifyCacheTTL) * time.Second,
	}
}

// Receipt is returned for every recorded vote
type Receipt struct {
	Vote       *models.Vote  `json:"vote"`
	Block      *ledger.Block `json:"block"`
	ChainValid bool          `json:"chainValid"`
	Warning    string        `json:"warning,omitempty"`
}

// Service records votes in the primary votes collection and in the ledger,
// and answers integrity queries. It is the only writer of its chain.
type Service struct {
	mu          sync.Mutex
	chain       *ledger.Chain
	ledgerStore *storage.LedgerStore
	voteStore   *storage.VoteStore
	opts        Options
	reports     *cache.Cache
}

// NewService creates a Service around chain. Call Open before use.
func NewService(chain *ledger.Chain, ledgerStore *storage.LedgerStore, voteStore *storage.VoteStore, opts Options) *Service {
	if opts.IntegrityPolicy == "" {
		opts.IntegrityPolicy = config.PolicyWarn
	}
	if opts.SaveMode == "" {
		opts.SaveMode = config.SaveModeAppend
	}
	if opts.Clock == nil {
		opts.Clock = ledger.SystemClock{}
	}

	s := &Service{
		chain:       chain,
		ledgerStore: ledgerStore,
		voteStore:   voteStore,
		opts:        opts,
	}
	if opts.VerifyCacheTTL > 0 {
		s.reports = cache.New(opts.VerifyCacheTTL, 2*opts.VerifyCacheTTL)
	}
	return s
}

// Open hydrates the chain from storage, persists genesis on an empty store,
// and verifies the result. A failed verification is logged, not returned.
func (s *Service) Open(ctx context.Context) (*ledger.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := s.ledgerStore.Save(ctx, s.chain); err != nil {
			return nil, fmt.Errorf("failed to persist genesis block: %w", err)
		}
		log.Printf("[vote] Initialized ledger with genesis block")
	} else {
		log.Printf("[vote] Loaded %d ledger blocks", n)
	}

	report := s.verify()
	if !report.Valid() {
		log.Printf("[vote] Warning: ledger integrity check failed: %v", report.Err())
	}
	return report, nil
}

// Reload replaces the in-memory chain with the stored one and verifies it.
func (s *Service) Reload(ctx context.Context) (*ledger.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.verify(), nil
}

// Append records a vote. The chain is verified first; under the block policy
// a failed check rejects the vote, under the warn policy the vote is recorded
// and the receipt carries a warning.
func (s *Service) Append(ctx context.Context, v models.Vote) (*Receipt, error) {
	v.VoterReference = strings.TrimSpace(v.VoterReference)
	v.CandidateReference = strings.TrimSpace(v.CandidateReference)
	if v.VoterReference == "" {
		return nil, fmt.Errorf("%w: voterReference is required", ErrInvalidVote)
	}
	if v.CandidateReference == "" {
		return nil, fmt.Errorf("%w: candidateReference is required", ErrInvalidVote)
	}
	if v.Timestamp == "" {
		v.Timestamp = ledger.FormatTime(s.opts.Clock.Now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.voteStore.Save(ctx, &v); err != nil {
		return nil, err
	}

	receipt := &Receipt{Vote: &v}
	block, err := s.appendBlock(ctx, receipt)
	if err != nil {
		// the vote only counts once its block is on the ledger
		if derr := s.voteStore.Delete(context.WithoutCancel(ctx), v.VoterReference); derr != nil {
			log.Printf("[vote] Failed to roll back vote for %s: %v", v.VoterReference, derr)
		}
		return nil, err
	}

	receipt.Block = block.Clone()
	return receipt, nil
}

// appendBlock verifies the chain, applies the integrity policy and persists
// the receipt's vote as the next block. In append mode a head conflict
// reloads the chain and starts over, verification included.
func (s *Service) appendBlock(ctx context.Context, receipt *Receipt) (*ledger.Block, error) {
	payload := receipt.Vote.Payload()

	for attempt := 0; ; attempt++ {
		if err := s.checkIntegrity(receipt); err != nil {
			return nil, err
		}

		b, err := s.chain.NextBlock(payload)
		if err != nil {
			return nil, err
		}

		if s.opts.SaveMode == config.SaveModeRewrite {
			if err := s.chain.Append(b); err != nil {
				return nil, err
			}
			if err := s.ledgerStore.Save(ctx, s.chain); err != nil {
				if _, lerr := s.load(ctx); lerr != nil {
					log.Printf("[vote] Failed to restore chain after save error: %v", lerr)
				}
				return nil, fmt.Errorf("failed to record vote in ledger: %w", err)
			}
			return b, nil
		}

		err = s.ledgerStore.Append(ctx, b)
		if err == nil {
			return b, s.chain.Append(b)
		}
		if !errors.Is(err, storage.ErrHeadMismatch) || attempt >= s.opts.MaxAppendRetries {
			return nil, fmt.Errorf("failed to record vote in ledger: %w", err)
		}

		log.Printf("[vote] Ledger head moved, reloading chain (attempt %d): %v", attempt+1, err)
		if _, err := s.load(ctx); err != nil {
			return nil, err
		}
	}
}

// checkIntegrity verifies the current chain and records the outcome on the
// receipt. Under the block policy a failed check is returned as an error.
func (s *Service) checkIntegrity(receipt *Receipt) error {
	report := s.verify()
	receipt.ChainValid = report.Valid()
	receipt.Warning = ""
	if report.Valid() {
		return nil
	}
	if s.opts.IntegrityPolicy == config.PolicyBlock {
		return report.Err()
	}
	receipt.Warning = fmt.Sprintf("ledger integrity check failed: %v", report.Err())
	log.Printf("[vote] Warning: recording vote for %s on an unverified ledger: %v", receipt.Vote.VoterReference, report.Err())
	return nil
}

// Verify checks the in-memory chain. Reports are cached per chain head.
func (s *Service) Verify() *ledger.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verify()
}

// IsChainValid reports whether Verify finds no violations
func (s *Service) IsChainValid() bool {
	return s.Verify().Valid()
}

func (s *Service) verify() *ledger.Report {
	if s.reports == nil {
		return s.chain.Verify()
	}

	key := s.reportKey()
	if cached, ok := s.reports.Get(key); ok {
		return cached.(*ledger.Report)
	}
	report := s.chain.Verify()
	s.reports.Set(key, report, cache.DefaultExpiration)
	return report
}

func (s *Service) reportKey() string {
	latest, err := s.chain.GetLatestBlock()
	if err != nil {
		return "empty"
	}
	return fmt.Sprintf("%d:%s", latest.Index, latest.Hash)
}

func (s *Service) load(ctx context.Context) (int, error) {
	n, err := s.ledgerStore.Load(ctx, s.chain)
	if err != nil {
		return 0, fmt.Errorf("failed to load ledger: %w", err)
	}
	if s.reports != nil {
		s.reports.Flush()
	}
	return n, nil
}

// Blocks returns copies of every block in index order
func (s *Service) Blocks() []*ledger.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := s.chain.Blocks()
	out := make([]*ledger.Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Block returns a copy of the block at index
func (s *Service) Block(index int64) (*ledger.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.chain.Block(index)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// Latest returns a copy of the newest block
func (s *Service) Latest() (*ledger.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.chain.GetLatestBlock()
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// Len returns the number of blocks, genesis included
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Len()
}

// Tally counts votes from the primary votes collection
func (s *Service) Tally(ctx context.Context) (*models.Tally, error) {
	return s.voteStore.Tally(ctx)
}

// LedgerTally counts votes recorded in ledger blocks. Blocks whose data is
// not a vote, genesis included, are skipped.
func (s *Service) LedgerTally() *models.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()

	tally := &models.Tally{Candidates: make(map[string]int)}
	for _, b := range s.chain.Blocks() {
		v, ok := models.VoteFromPayload(b.Data)
		if !ok {
			continue
		}
		tally.Candidates[v.CandidateReference]++
		tally.Total++
	}
	return tally
}

// VoteOf returns the vote cast by voter, or nil if none
func (s *Service) VoteOf(ctx context.Context, voter string) (*models.Vote, error) {
	return s.voteStore.Get(ctx, voter)
}
