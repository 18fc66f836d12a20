package endpoints

import (
	"context"

	"memovault/internal/ledger"
	"memovault/internal/poller"

	"github.com/gin-gonic/gin"
)

// PollerStatus exposes the runner state the status endpoint renders.
type PollerStatus interface {
	Running() bool
	LastResult() (*poller.Result, error)
}

// LedgerReader is the read-only ledger surface the API needs.
type LedgerReader interface {
	GetSyncState(ctx context.Context, key string) (string, bool, error)
	RecentCaptures(ctx context.Context, limit int) ([]ledger.Capture, error)
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, status PollerStatus, store LedgerReader) {
	api := r.Group("/api")
	{
		// Health check endpoint
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "healthy",
				"service": "memovault",
			})
		})

		api.GET("/status", HandleStatus(status, store))
		api.GET("/captures", HandleRecentCaptures(store))
	}
}
