package models

import (
	"github.com/thanhnp/vote-ledger/internal/ledger"
)

// Payload keys for a vote stored in a ledger block
const (
	KeyVoterReference     = "voterReference"
	KeyCandidateReference = "candidateReference"
	KeyTimestamp          = "timestamp"
)

// Vote represents a single ballot cast by a voter
type Vote struct {
	VoterReference     string `json:"voterReference"`
	CandidateReference string `json:"candidateReference"`
	Timestamp          string `json:"timestamp"`
}

// Payload converts the vote into ledger block data
func (v *Vote) Payload() ledger.Payload {
	return ledger.Payload{
		KeyVoterReference:     v.VoterReference,
		KeyCandidateReference: v.CandidateReference,
		KeyTimestamp:          v.Timestamp,
	}
}

// VoteFromPayload extracts a vote from block data.
// Extra keys are ignored; ok is false when the voter or candidate is missing.
func VoteFromPayload(p ledger.Payload) (vote *Vote, ok bool) {
	voter, _ := p[KeyVoterReference].(string)
	candidate, _ := p[KeyCandidateReference].(string)
	if voter == "" || candidate == "" {
		return nil, false
	}
	timestamp, _ := p[KeyTimestamp].(string)
	return &Vote{
		VoterReference:     voter,
		CandidateReference: candidate,
		Timestamp:          timestamp,
	}, true
}

// Tally holds the vote count per candidate
type Tally struct {
	Total      int            `json:"total"`
	Candidates map[string]int `json:"candidates"`
}
