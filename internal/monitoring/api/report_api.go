package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/middleware"
	"github.com/proactivedb/fleetmon/internal/monitoring/ingest"
)

// PostReport accepts one agent status payload. 201 on success, 400 for
// payloads the pipeline rejects, 500 when the snapshot store is down.
func (api *Api) PostReport(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	ack, err := api.pipeline.Ingest(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": payloadError(err)})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("report ingestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist report"})
		return
	}

	c.JSON(http.StatusCreated, ack)
}

// payloadError strips the sentinel prefix so clients see only the reason.
func payloadError(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, ingest.ErrInvalidPayload.Error()+": "); ok {
		return rest
	}
	return msg
}
