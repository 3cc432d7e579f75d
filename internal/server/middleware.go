package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallops/dealdesk/internal/auditcontext"
	"github.com/smallops/dealdesk/internal/authorization"
	obscontext "github.com/smallops/dealdesk/internal/observability/context"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	contextActorKey  = "actor"
)

// SessionRequired authenticates the session cookie and stamps the
// actor into the request context.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		userID := session.UserID.String()
		c.Set(contextUserIDKey, userID)
		c.Set(contextActorKey, "user:"+userID)

		ctx := auditcontext.WithActor(c.Request.Context(), "user", userID)
		ctx = obscontext.WithActor(ctx, "user", userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantContext resolves the :tenant slug, verifies membership, and
// scopes the request context to the organization.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.TrimSpace(c.Param("tenant"))
		if slug == "" {
			AbortWithError(c, ErrNotFound)
			return
		}

		org, err := s.organizationSvc.ResolveSlug(c.Request.Context(), slug)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		userID, ok := s.currentUserID(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		member, err := s.organizationSvc.IsMember(c.Request.Context(), org.ID, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !member {
			AbortWithError(c, ErrNotFound)
			return
		}

		ctx := orgcontext.WithOrg(c.Request.Context(), org.ID, org.Slug)
		ctx = obscontext.WithOrgID(ctx, org.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthorizeOrgAction gates an endpoint behind the role enforcer.
func (s *Server) AuthorizeOrgAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrNotFound)
			return
		}
		actor := c.GetString(contextActorKey)
		if actor == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		err := s.authzSvc.Authorize(c.Request.Context(), actor, orgID.String(), object, action)
		if err != nil {
			if err == authorization.ErrForbidden {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit bounds an endpoint per organization. When the limiter
// itself fails the request is allowed through; limits degrade open.
func (s *Server) RateLimit(endpoint string, rate float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", endpoint, orgID)
		result, err := s.limiter.Allow(c.Request.Context(), key, rate, burst)
		if err != nil {
			s.log.Warn("rate limiter unavailable",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), orgID.String(), endpoint, "bucket_empty")
			if result.RetryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), orgID.String(), endpoint)
		c.Next()
	}
}

func (s *Server) currentUserID(c *gin.Context) (snowflake.ID, bool) {
	raw := c.GetString(contextUserIDKey)
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
