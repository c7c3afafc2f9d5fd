package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
)

const (
	HeaderCallerID   = "X-Caller-Id"
	HeaderCallerRole = "X-Caller-Role"
)

// CallerRequired trusts the identity forwarded by the gateway in front of
// the service and puts it on the request context.
func (s *Server) CallerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		externalID := strings.TrimSpace(c.GetHeader(HeaderCallerID))
		if externalID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := callercontext.WithCaller(c.Request.Context(), callercontext.Caller{
			ExternalID: externalID,
			Role:       callercontext.ParseRole(c.GetHeader(HeaderCallerRole)),
		})
		ctx = callercontext.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// currentPartner resolves the caller's partner account and keeps its id on
// the request context for downstream logging.
func (s *Server) currentPartner(c *gin.Context) (*partnerdomain.Partner, error) {
	partner, err := s.partnerSvc.Current(c.Request.Context())
	if err != nil {
		return nil, err
	}
	c.Request = c.Request.WithContext(callercontext.WithPartnerID(c.Request.Context(), partner.ID))
	return partner, nil
}

// currentActivePartner is currentPartner for write paths that need an
// active account.
func (s *Server) currentActivePartner(c *gin.Context) (*partnerdomain.Partner, error) {
	partner, err := s.partnerSvc.CurrentActive(c.Request.Context())
	if err != nil {
		return nil, err
	}
	c.Request = c.Request.WithContext(callercontext.WithPartnerID(c.Request.Context(), partner.ID))
	return partner, nil
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return id, nil
}
