package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	"github.com/smallops/dealdesk/internal/orgcontext"
)

func (s *Server) ListMembers(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), orgID, strings.TrimSpace(c.Query("search")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) ListMemberAuditLogs(c *gin.Context) {
	memberID := strings.TrimSpace(c.Param("memberId"))
	if _, err := snowflake.ParseString(memberID); err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		ActorType: "user",
		ActorID:   memberID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}
