package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type reconcileRequest struct {
	Actor string `json:"actor"`
}

// ReconcileUnprocessed runs the catch-up scan: every received payment
// without an invoice gets one, existing invoices are left alone.
func (s *Server) ReconcileUnprocessed(c *gin.Context) {
	var req reconcileRequest
	_ = c.ShouldBindJSON(&req)

	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = "operator:api"
	}

	result, err := s.reconcileSvc.ReconcileUnprocessed(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
