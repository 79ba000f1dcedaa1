package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/vote-ledger/internal/api/middleware"
	"github.com/thanhnp/vote-ledger/internal/ledger"
	"github.com/thanhnp/vote-ledger/internal/vote"
)

// ChainHandler handles ledger read and verification requests
type ChainHandler struct {
	service *vote.Service
}

// NewChainHandler creates a new ChainHandler
func NewChainHandler(service *vote.Service) *ChainHandler {
	return &ChainHandler{
		service: service,
	}
}

// Verify reports the integrity of the ledger. A broken chain is a result,
// not a failure, so the status is always 200.
// GET /api/v1/chain/verify
func (h *ChainHandler) Verify(c *gin.Context) {
	report := h.service.Verify()

	resp := gin.H{
		"valid":      report.Valid(),
		"length":     report.Length,
		"headHash":   report.HeadHash,
		"violations": report.Violations,
	}
	if first, ok := report.FirstFailure(); ok {
		resp["firstFailure"] = first
		resp["warning"] = report.Err().Error()
	}

	c.JSON(http.StatusOK, resp)
}

// List returns every block in index order
// GET /api/v1/chain/blocks
func (h *ChainHandler) List(c *gin.Context) {
	blocks := h.service.Blocks()

	c.JSON(http.StatusOK, gin.H{
		"count":  len(blocks),
		"blocks": blocks,
	})
}

// GetLatest returns the latest block
// GET /api/v1/chain/blocks/latest
func (h *ChainHandler) GetLatest(c *gin.Context) {
	block, err := h.service.Latest()
	if err != nil {
		if errors.Is(err, ledger.ErrEmptyChain) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No blocks found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, block)
}

// GetByIndex returns a block by its index
// GET /api/v1/chain/blocks/:index
func (h *ChainHandler) GetByIndex(c *gin.Context) {
	index := c.GetInt64(middleware.IndexKey)

	block, err := h.service.Block(index)
	if err != nil {
		if errors.Is(err, ledger.ErrBlockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, block)
}
