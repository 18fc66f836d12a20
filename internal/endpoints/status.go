package endpoints

import (
	"net/http"
	"strconv"

	"memovault/internal/config"
	"memovault/internal/ledger"
	"memovault/internal/poller"

	"github.com/gin-gonic/gin"
)

// StatusResponse reports the poller's health to CLI and dashboard callers.
type StatusResponse struct {
	Running   bool           `json:"running"`
	Watermark string         `json:"watermark,omitempty"`
	LastPoll  *poller.Result `json:"last_poll,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// HandleStatus returns a handler that renders the runner state and the
// persisted watermark.
func HandleStatus(status PollerStatus, store LedgerReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := StatusResponse{Running: status.Running()}

		if result, err := status.LastResult(); result != nil || err != nil {
			resp.LastPoll = result
			if err != nil {
				resp.LastError = err.Error()
			}
		}

		watermark, ok, err := store.GetSyncState(c.Request.Context(), config.WatermarkKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read watermark"})
			return
		}
		if ok {
			resp.Watermark = watermark
		}

		c.JSON(http.StatusOK, resp)
	}
}

// RecentCapturesResponse wraps the captures list endpoint payload.
type RecentCapturesResponse struct {
	Captures []ledger.Capture `json:"captures"`
}

// HandleRecentCaptures returns a handler that lists recently staged
// captures, newest first. The limit query parameter defaults to 20.
func HandleRecentCaptures(store LedgerReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
				return
			}
			limit = parsed
		}

		captures, err := store.RecentCaptures(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch captures"})
			return
		}

		c.JSON(http.StatusOK, RecentCapturesResponse{Captures: captures})
	}
}
