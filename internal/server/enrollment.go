package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	enrollmentdomain "github.com/opencampus/campuspay/internal/enrollment/domain"
)

func (s *Server) GetEnrollment(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	enrollment, err := s.enrollmentSvc.FindByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if enrollment == nil {
		AbortWithError(c, enrollmentdomain.ErrEnrollmentNotFound)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}
