package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/partnerhub/internal/authorization"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	dashboarddomain "github.com/smallbiznis/partnerhub/internal/dashboard/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuthz struct {
	allowed map[callercontext.Role]map[string]bool
	calls   int
}

func (f *fakeAuthz) Authorize(ctx context.Context, object string, action string) error {
	f.calls++
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return authorization.ErrInvalidActor
	}
	if f.allowed[caller.Role][action] {
		return nil
	}
	return authorization.ErrForbidden
}

type fakeDashboard struct {
	stats    dashboarddomain.Stats
	err      error
	callerID string
}

func (f *fakeDashboard) ForCaller(ctx context.Context) (dashboarddomain.Stats, error) {
	if caller, ok := callercontext.FromContext(ctx); ok {
		f.callerID = caller.ExternalID
	}
	return f.stats, f.err
}

func (f *fakeDashboard) Summary(ctx context.Context, partnerID snowflake.ID) (partnerdomain.Summary, error) {
	_ = ctx
	_ = partnerID
	return partnerdomain.Summary{}, f.err
}

func newTestServer(authz authorization.Service, dashboard dashboarddomain.Service) *Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	s := &Server{
		engine:       r,
		log:          zap.NewNop(),
		authzSvc:     authz,
		dashboardSvc: dashboard,
	}
	api := r.Group("/api")
	api.Use(s.CallerRequired())
	api.GET("/dashboard", s.authorize(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboard)
	admin := r.Group("/admin")
	admin.Use(s.CallerRequired())
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []any{}})
	})
	return s
}

func partnerOnlyAuthz() *fakeAuthz {
	return &fakeAuthz{allowed: map[callercontext.Role]map[string]bool{
		callercontext.RolePartner: {authorization.ActionDashboardView: true},
		callercontext.RoleAdmin:   {authorization.ActionAuditLogView: true},
	}}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestCallerRequiredRejectsMissingIdentity(t *testing.T) {
	authz := partnerOnlyAuthz()
	s := newTestServer(authz, &fakeDashboard{})

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)
	assert.Zero(t, authz.calls)
}

func TestDashboardForActivePartner(t *testing.T) {
	dashboard := &fakeDashboard{stats: dashboarddomain.Stats{
		PartnerID:      snowflake.ID(7),
		ConversionRate: 50,
		Counts:         dashboarddomain.StatusCounts{Total: 2, Converted: 1},
	}}
	s := newTestServer(partnerOnlyAuthz(), dashboard)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(HeaderCallerID, "user-1")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", dashboard.callerID)

	var body struct {
		Data dashboarddomain.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Counts.Total)
	assert.Equal(t, float64(50), body.Data.ConversionRate)
}

func TestDashboardDistinguishesMissingAndInactivePartner(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"no partner", partnerdomain.ErrPartnerNotFound, http.StatusNotFound, "partner_not_found"},
		{"pending partner", &partnerdomain.NotActiveError{Status: partnerdomain.StatusPending}, http.StatusForbidden, "partner_not_active"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(partnerOnlyAuthz(), &fakeDashboard{err: tc.err})

			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			req.Header.Set(HeaderCallerID, "user-1")
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.reason, decodeError(t, w).Reason)
		})
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(partnerOnlyAuthz(), &fakeDashboard{})

	req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
	req.Header.Set(HeaderCallerID, "user-1")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
	req.Header.Set(HeaderCallerID, "ops-1")
	req.Header.Set(HeaderCallerRole, "Admin")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/leads/:id", func(c *gin.Context) {
		id, err := parseIDParam(c, "id")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.String()})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "id", payload.Errors[0].Field)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"42"}`, w.Body.String())
}
