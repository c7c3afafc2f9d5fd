package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectApplication  = "application"
	ObjectPartner      = "partner"
	ObjectLead         = "lead"
	ObjectAgreement    = "agreement"
	ObjectOnboarding   = "onboarding"
	ObjectDashboard    = "dashboard"
	ObjectNotification = "notification"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionApplicationSubmit = "application.submit"
	ActionApplicationView   = "application.view"
	ActionApplicationReview = "application.review"

	ActionPartnerView       = "partner.view"
	ActionPartnerUpdate     = "partner.update"
	ActionPartnerSuspend    = "partner.suspend"
	ActionPartnerRateChange = "partner.commission_rate"

	ActionLeadView           = "lead.view"
	ActionLeadCreate         = "lead.create"
	ActionLeadUpdate         = "lead.update"
	ActionLeadCommissionPaid = "lead.commission_paid"

	ActionAgreementView    = "agreement.view"
	ActionAgreementSign    = "agreement.sign"
	ActionAgreementPublish = "agreement.publish"

	ActionOnboardingView    = "onboarding.view"
	ActionOnboardingAdvance = "onboarding.advance"

	ActionDashboardView = "dashboard.view"

	ActionNotificationView   = "notification.view"
	ActionNotificationCreate = "notification.create"
	ActionNotificationUpdate = "notification.update"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies from the casbin_rule table and seeds the
// built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	caller, ok := callercontext.FromContext(ctx)
	if !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("user:%s", caller.ExternalID)
	roleName := fmt.Sprintf("role:%s", caller.Role)
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per subject; the role comes from
// the identity provider on every request and may change between requests.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, s.db, auditdomain.Entry{
		Action:     auditdomain.ActionAuthorizationDeny,
		TargetType: "authorization",
		TargetID:   object,
		Metadata: map[string]any{
			"object": object,
			"action": action,
		},
	})
	if err != nil {
		s.log.Warn("audit authorization denial failed", zap.Error(err))
	}
}

var partnerGrants = [][]string{
	{ObjectApplication, ActionApplicationSubmit},
	{ObjectPartner, ActionPartnerView},
	{ObjectPartner, ActionPartnerUpdate},
	{ObjectLead, ActionLeadView},
	{ObjectLead, ActionLeadCreate},
	{ObjectLead, ActionLeadUpdate},
	{ObjectAgreement, ActionAgreementView},
	{ObjectAgreement, ActionAgreementSign},
	{ObjectOnboarding, ActionOnboardingView},
	{ObjectOnboarding, ActionOnboardingAdvance},
	{ObjectDashboard, ActionDashboardView},
	{ObjectNotification, ActionNotificationView},
	{ObjectNotification, ActionNotificationCreate},
	{ObjectNotification, ActionNotificationUpdate},
}

var adminGrants = [][]string{
	{ObjectApplication, ActionApplicationView},
	{ObjectApplication, ActionApplicationReview},
	{ObjectPartner, ActionPartnerView},
	{ObjectPartner, ActionPartnerSuspend},
	{ObjectPartner, ActionPartnerRateChange},
	{ObjectLead, ActionLeadView},
	{ObjectLead, ActionLeadCommissionPaid},
	{ObjectAgreement, ActionAgreementView},
	{ObjectAgreement, ActionAgreementPublish},
	{ObjectAuditLog, ActionAuditLogView},
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := make([][]string, 0, len(partnerGrants)+2*len(adminGrants))
	for _, grant := range partnerGrants {
		policies = append(policies, []string{"role:partner", grant[0], grant[1]})
	}
	for _, grant := range adminGrants {
		policies = append(policies, []string{"role:admin", grant[0], grant[1]})
		policies = append(policies, []string{"role:system", grant[0], grant[1]})
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
