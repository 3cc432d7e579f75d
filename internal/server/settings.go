package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallops/dealdesk/internal/orgcontext"
)

func (s *Server) GetSettings(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}
