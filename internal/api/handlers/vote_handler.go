package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/vote-ledger/internal/ledger"
	"github.com/thanhnp/vote-ledger/internal/models"
	"github.com/thanhnp/vote-ledger/internal/storage"
	"github.com/thanhnp/vote-ledger/internal/vote"
)

// VoteHandler handles vote submission and tally requests
type VoteHandler struct {
	service *vote.Service
}

// NewVoteHandler creates a new VoteHandler
func NewVoteHandler(service *vote.Service) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type submitRequest struct {
	VoterReference     string `json:"voterReference" binding:"required"`
	CandidateReference string `json:"candidateReference" binding:"required"`
	Timestamp          string `json:"timestamp"`
}

// Submit records a vote in the votes collection and the ledger
// POST /api/v1/votes
func (h *VoteHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote: " + err.Error()})
		return
	}

	receipt, err := h.service.Append(c.Request.Context(), models.Vote{
		VoterReference:     req.VoterReference,
		CandidateReference: req.CandidateReference,
		Timestamp:          req.Timestamp,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (h *VoteHandler) writeError(c *gin.Context, err error) {
	var integrityErr *ledger.IntegrityError

	switch {
	case errors.Is(err, vote.ErrInvalidVote):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"error": "Voter has already voted"})
	case errors.Is(err, storage.ErrHeadMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "Ledger was modified concurrently, retry the vote"})
	case errors.As(err, &integrityErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Ledger integrity check failed, vote not recorded",
			"violation": integrityErr.Violation,
		})
	default:
		log.Printf("[API] Vote submission failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Tally returns the vote count per candidate. With source=ledger the count
// is taken from ledger blocks instead of the votes collection.
// GET /api/v1/votes/tally
func (h *VoteHandler) Tally(c *gin.Context) {
	switch c.DefaultQuery("source", "votes") {
	case "votes":
	case "ledger":
		c.JSON(http.StatusOK, h.service.LedgerTally())
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source parameter. Must be votes or ledger"})
		return
	}

	tally, err := h.service.Tally(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tally)
}

// Get returns the vote cast by a voter
// GET /api/v1/votes/:voter
func (h *VoteHandler) Get(c *gin.Context) {
	v, err := h.service.VoteOf(c.Request.Context(), c.Param("voter"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vote not found"})
		return
	}

	c.JSON(http.StatusOK, v)
}
