package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseID(c *gin.Context, field string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(field, "invalid_id", fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

func actorOrDefault(c *gin.Context) string {
	var body struct {
		Actor string `json:"actor"`
	}
	_ = c.ShouldBindJSON(&body)
	if actor := strings.TrimSpace(body.Actor); actor != "" {
		return actor
	}
	return "operator:api"
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.FindByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	display, err := s.invoiceSvc.FindDisplay(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdfProvider.RenderInvoice(c.Request.Context(), display)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, display.Invoice.Number))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), id, actorOrDefault(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// CreateInvoiceForEnrollment is the manual invoicing path for enrollments
// that never saw a gateway event.
func (s *Server) CreateInvoiceForEnrollment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.InvoiceForEnrollment(c.Request.Context(), id, actorOrDefault(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}
