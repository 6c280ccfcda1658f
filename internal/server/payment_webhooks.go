package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gateways retry on non-2xx, so recognized-but-unprocessable events are
// acknowledged with 200 and a result envelope. Only payloads we could never
// make sense of (empty, malformed, unsigned) are rejected.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.reconcileSvc.Reconcile(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !result.Success {
		s.log.Warn("webhook not reconciled",
			zap.String("gateway", result.Gateway),
			zap.String("message", result.Message))
	}
	c.JSON(http.StatusOK, result)
}
