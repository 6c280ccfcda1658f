package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/opencampus/campuspay/internal/report"
)

// PaymentsReport returns received-payment revenue bucketed by course, month
// and currency. Query params: from, to (RFC 3339 or YYYY-MM-DD), gateway,
// course_id.
func (s *Server) PaymentsReport(c *gin.Context) {
	var filter report.Filter

	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		at, err := parseTime(raw)
		if err != nil {
			AbortWithError(c, newValidationError("from", "invalid_time", err.Error()))
			return
		}
		filter.From = at
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		at, err := parseTime(raw)
		if err != nil {
			AbortWithError(c, newValidationError("to", "invalid_time", err.Error()))
			return
		}
		filter.To = at
	}
	filter.Gateway = strings.TrimSpace(c.Query("gateway"))
	if raw := strings.TrimSpace(c.Query("course_id")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("course_id", "invalid_id", "course_id is not a valid id"))
			return
		}
		filter.CourseID = id
	}

	result, err := s.reportSvc.PaymentsReport(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseTime(raw string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, nil
	}
	return time.Parse("2006-01-02", raw)
}
