package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/thanhnp/vote-ledger/internal/models"
)

// VoteStore handles the primary votes collection, keyed by voter reference
type VoteStore struct {
	db *PebbleDB
	mu sync.Mutex
}

// NewVoteStore creates a new VoteStore
func NewVoteStore(db *PebbleDB) *VoteStore {
	return &VoteStore{db: db}
}

// Save stores a vote unless the voter already has one
func (s *VoteStore) Save(ctx context.Context, vote *models.Vote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("failed to marshal vote: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.db.Get(CFVotes, []byte(vote.VoterReference))
	if err != nil {
		return storageErr("get vote", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, vote.VoterReference)
	}

	return storageErr("save vote", s.db.Put(CFVotes, []byte(vote.VoterReference), data))
}

// Get retrieves the vote cast by voter, or nil if none
func (s *VoteStore) Get(ctx context.Context, voter string) (*models.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.db.Get(CFVotes, []byte(voter))
	if err != nil {
		return nil, storageErr("get vote", err)
	}
	if data == nil {
		return nil, nil
	}

	var vote models.Vote
	if err := json.Unmarshal(data, &vote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vote: %w", err)
	}
	return &vote, nil
}

// Delete removes the vote cast by voter. Deleting a missing vote is not an error.
func (s *VoteStore) Delete(ctx context.Context, voter string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return storageErr("delete vote", s.db.Delete(CFVotes, []byte(voter)))
}

// HasVoted reports whether voter has a stored vote
func (s *VoteStore) HasVoted(ctx context.Context, voter string) (bool, error) {
	vote, err := s.Get(ctx, voter)
	if err != nil {
		return false, err
	}
	return vote != nil, nil
}

// List returns every stored vote ordered by voter reference
func (s *VoteStore) List(ctx context.Context) ([]*models.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := s.db.NewIterator(CFVotes)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	defer iter.Close()

	var votes []*models.Vote
	for ; iter.Valid(); iter.Next() {
		var vote models.Vote
		if err := json.Unmarshal(iter.Value(), &vote); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vote %s: %w", iter.Key(), err)
		}
		votes = append(votes, &vote)
	}
	return votes, nil
}

// Tally counts the stored votes per candidate
func (s *VoteStore) Tally(ctx context.Context) (*models.Tally, error) {
	votes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	tally := &models.Tally{Candidates: make(map[string]int)}
	for _, v := range votes {
		tally.Candidates[v.CandidateReference]++
		tally.Total++
	}
	return tally, nil
}
