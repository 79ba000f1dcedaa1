package api

import (
	"github.com/gin-gonic/gin"

	"github.com/thanhnp/vote-ledger/internal/api/handlers"
	"github.com/thanhnp/vote-ledger/internal/api/middleware"
	"github.com/thanhnp/vote-ledger/internal/vote"
)

// Router wraps the Gin router with handlers
type Router struct {
	engine       *gin.Engine
	chainHandler *handlers.ChainHandler
	voteHandler  *handlers.VoteHandler
}

// NewRouter creates a new Router with all handlers
func NewRouter(service *vote.Service) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:       gin.New(),
		chainHandler: handlers.NewChainHandler(service),
		voteHandler:  handlers.NewVoteHandler(service),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.engine.Group("/api/v1")
	{
		// Vote routes
		votes := v1.Group("/votes")
		{
			votes.POST("", r.voteHandler.Submit)
			votes.GET("/tally", r.voteHandler.Tally)
			votes.GET("/:voter", r.voteHandler.Get)
		}

		// Ledger routes
		chain := v1.Group("/chain")
		{
			chain.GET("/verify", r.chainHandler.Verify)
			chain.GET("/blocks", r.chainHandler.List)
			chain.GET("/blocks/latest", r.chainHandler.GetLatest)
			chain.GET("/blocks/:index", middleware.ValidateIndex(), r.chainHandler.GetByIndex)
		}
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
