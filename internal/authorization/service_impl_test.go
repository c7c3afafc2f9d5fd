package authorization

import (
	"context"
	"testing"

	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	auditrepo "github.com/smallbiznis/partnerhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/partnerhub/internal/audit/service"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: testutil.Node(t), Clock: testutil.Clock(), Repo: auditrepo.Provide(),
	})
	return NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit}), db
}

func as(id string, role callercontext.Role) context.Context {
	return callercontext.WithCaller(context.Background(), callercontext.Caller{ExternalID: id, Role: role})
}

func TestPartnerGrants(t *testing.T) {
	svc, _ := newService(t)
	ctx := as("user-1", callercontext.RolePartner)

	assert.NoError(t, svc.Authorize(ctx, ObjectLead, ActionLeadCreate))
	assert.NoError(t, svc.Authorize(ctx, ObjectNotification, ActionNotificationUpdate))
	assert.ErrorIs(t, svc.Authorize(ctx, ObjectApplication, ActionApplicationReview), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, ObjectAuditLog, ActionAuditLogView), ErrForbidden)
}

func TestAdminGrants(t *testing.T) {
	svc, _ := newService(t)
	ctx := as("admin-1", callercontext.RoleAdmin)

	assert.NoError(t, svc.Authorize(ctx, ObjectApplication, ActionApplicationReview))
	assert.NoError(t, svc.Authorize(ctx, ObjectLead, ActionLeadCommissionPaid))
	assert.ErrorIs(t, svc.Authorize(ctx, ObjectLead, ActionLeadCreate), ErrForbidden)
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.Authorize(as("user-9", callercontext.RoleAdmin), ObjectAuditLog, ActionAuditLogView))
	assert.ErrorIs(t, svc.Authorize(as("user-9", callercontext.RolePartner), ObjectAuditLog, ActionAuditLogView), ErrForbidden)
}

func TestDenialIsAudited(t *testing.T) {
	svc, db := newService(t)
	_ = svc.Authorize(as("user-1", callercontext.RolePartner), ObjectAuditLog, ActionAuditLogView)

	var logs []auditdomain.AuditLog
	require.NoError(t, db.Where("action = ?", auditdomain.ActionAuthorizationDeny).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "partner", logs[0].ActorType)
}

func TestAuthorizeRequiresCaller(t *testing.T) {
	svc, _ := newService(t)
	assert.ErrorIs(t, svc.Authorize(context.Background(), ObjectLead, ActionLeadView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(as("u", callercontext.RolePartner), " ", ActionLeadView), ErrInvalidObject)
}

func TestNewEnforcerIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	_, err = NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("casbin_rule").Where("ptype = ?", "p").Count(&count).Error)
	assert.Equal(t, int64(len(partnerGrants)+2*len(adminGrants)), count)
}
