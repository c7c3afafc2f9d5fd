package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	auditrepo "github.com/smallbiznis/partnerhub/internal/audit/repository"
	auditservice "github.com/smallbiznis/partnerhub/internal/audit/service"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/smallbiznis/partnerhub/internal/partner/repository"
	"github.com/smallbiznis/partnerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.Node(t)
	clk := testutil.Clock()

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    repository.Provide(),
		Outbox:  events.NewOutbox(node, clk),
		Audit:   audit,
		Program: config.NewStaticProgramHolder(config.DefaultProgramConfig()),
	})
	return fixture{db: db, svc: svc}
}

func partnerCtx(id string) context.Context {
	return callercontext.WithCaller(context.Background(), callercontext.Caller{ExternalID: id})
}

func adminCtx() context.Context {
	return callercontext.WithCaller(context.Background(), callercontext.Caller{ExternalID: "ops", Role: callercontext.RoleAdmin})
}

func (f fixture) approve(t *testing.T, externalID, company string) *domain.Partner {
	t.Helper()
	app, err := f.svc.SubmitApplication(partnerCtx(externalID), domain.SubmitApplicationRequest{
		CompanyName:  company,
		ContactEmail: "owner@" + externalID + ".test",
		Website:      "acme.test",
	})
	require.NoError(t, err)
	partner, err := f.svc.ApproveApplication(adminCtx(), app.ID)
	require.NoError(t, err)
	return partner
}

func (f fixture) activate(t *testing.T, partner *domain.Partner) {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.Partner{}).Where("id = ?", partner.ID).
		Update("status", domain.StatusActive).Error)
}

func TestSubmitApplicationRequiresCaller(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitApplication(context.Background(), domain.SubmitApplicationRequest{CompanyName: "Acme"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSubmitApplicationValidates(t *testing.T) {
	f := newFixture(t)
	ctx := partnerCtx("u1")

	_, err := f.svc.SubmitApplication(ctx, domain.SubmitApplicationRequest{CompanyName: " ", ContactEmail: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompanyName)

	_, err = f.svc.SubmitApplication(ctx, domain.SubmitApplicationRequest{CompanyName: "Acme", ContactEmail: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.SubmitApplication(ctx, domain.SubmitApplicationRequest{CompanyName: "Acme", ContactEmail: "a@b.test", Website: "ftp://x"})
	assert.ErrorIs(t, err, domain.ErrInvalidWebsite)
}

func TestSubmitApplicationRejectsDuplicateOpenApplication(t *testing.T) {
	f := newFixture(t)
	ctx := partnerCtx("u1")
	req := domain.SubmitApplicationRequest{CompanyName: "Acme", ContactEmail: "a@acme.test"}

	_, err := f.svc.SubmitApplication(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.SubmitApplication(ctx, req)
	assert.ErrorIs(t, err, domain.ErrApplicationExists)
}

func TestApproveApplicationCreatesPendingPartner(t *testing.T) {
	f := newFixture(t)
	partner := f.approve(t, "u1", "Acme Studio")

	assert.Equal(t, domain.StatusPending, partner.Status)
	assert.Equal(t, "10", partner.CommissionRate)
	assert.Equal(t, "acme-studio", partner.ReferralCode)
	assert.Equal(t, "https://acme.test", partner.Website)

	var evts []events.Event
	require.NoError(t, f.db.Where("partner_id = ?", partner.ID).Find(&evts).Error)
	require.Len(t, evts, 1)
	assert.Equal(t, events.ApplicationApproved, evts[0].EventType)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionApplicationApprove, logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorType)

	_, err := f.svc.SubmitApplication(partnerCtx("u1"), domain.SubmitApplicationRequest{CompanyName: "Again", ContactEmail: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrAlreadyPartner)
}

func TestApproveApplicationTwiceFails(t *testing.T) {
	f := newFixture(t)
	app, err := f.svc.SubmitApplication(partnerCtx("u1"), domain.SubmitApplicationRequest{CompanyName: "Acme", ContactEmail: "a@acme.test"})
	require.NoError(t, err)

	_, err = f.svc.ApproveApplication(adminCtx(), app.ID)
	require.NoError(t, err)
	_, err = f.svc.ApproveApplication(adminCtx(), app.ID)
	assert.ErrorIs(t, err, domain.ErrApplicationReviewed)

	_, err = f.svc.RejectApplication(adminCtx(), domain.ReviewApplicationRequest{ApplicationID: app.ID})
	assert.ErrorIs(t, err, domain.ErrApplicationReviewed)
}

func TestRejectApplication(t *testing.T) {
	f := newFixture(t)
	app, err := f.svc.SubmitApplication(partnerCtx("u1"), domain.SubmitApplicationRequest{CompanyName: "Acme", ContactEmail: "a@acme.test"})
	require.NoError(t, err)

	rejected, err := f.svc.RejectApplication(adminCtx(), domain.ReviewApplicationRequest{ApplicationID: app.ID, Reason: "incomplete"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "incomplete", *rejected.RejectionReason)

	_, err = f.svc.Current(partnerCtx("u1"))
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)

	list, err := f.svc.ListApplications(adminCtx(), domain.ListApplicationsRequest{Status: "rejected"})
	require.NoError(t, err)
	assert.Len(t, list.Applications, 1)

	_, err = f.svc.ListApplications(adminCtx(), domain.ListApplicationsRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestReferralCodeCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)
	first := f.approve(t, "u1", "Acme")
	second := f.approve(t, "u2", "ACME")

	assert.Equal(t, "acme", first.ReferralCode)
	assert.NotEqual(t, first.ReferralCode, second.ReferralCode)
	assert.Contains(t, second.ReferralCode, "acme-")
}

func TestCurrentActiveDistinguishesStates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CurrentActive(partnerCtx("nobody"))
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)

	f.approve(t, "u1", "Acme")
	_, err = f.svc.CurrentActive(partnerCtx("u1"))
	require.ErrorIs(t, err, domain.ErrPartnerNotActive)
	var notActive *domain.NotActiveError
	require.True(t, errors.As(err, &notActive))
	assert.Equal(t, domain.StatusPending, notActive.Status)
}

func TestUpdateProfileAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)
	partner := f.approve(t, "u1", "Acme")

	var update domain.ProfileUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"phone":"+1 555 0100","timezone":"Asia/Jakarta"}`), &update))

	updated, err := f.svc.UpdateProfile(partnerCtx("u1"), update)
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0100", updated.Phone)
	assert.Equal(t, "Asia/Jakarta", updated.Timezone)
	assert.Equal(t, partner.CompanyName, updated.CompanyName)
	assert.Equal(t, partner.ContactEmail, updated.ContactEmail)
	assert.Equal(t, partner.Version+1, updated.Version)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)
	f.approve(t, "u1", "Acme")
	ctx := partnerCtx("u1")

	_, err := f.svc.UpdateProfile(ctx, domain.ProfileUpdate{})
	assert.ErrorIs(t, err, domain.ErrEmptyUpdate)

	var update domain.ProfileUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"timezone":"Mars/Olympus"}`), &update))
	_, err = f.svc.UpdateProfile(ctx, update)
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)

	update = domain.ProfileUpdate{}
	require.NoError(t, json.Unmarshal([]byte(`{"companyName":null}`), &update))
	_, err = f.svc.UpdateProfile(ctx, update)
	assert.ErrorIs(t, err, domain.ErrInvalidCompanyName)
}

func TestStaleVersionUpdateIsRejected(t *testing.T) {
	f := newFixture(t)
	partner := f.approve(t, "u1", "Acme")
	repo := repository.Provide()

	affected, err := repo.UpdateColumns(context.Background(), f.db, partner.ID, partner.Version, map[string]any{"phone": "1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = repo.UpdateColumns(context.Background(), f.db, partner.ID, partner.Version, map[string]any{"phone": "2"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
}

func TestSuspendAndReinstate(t *testing.T) {
	f := newFixture(t)
	partner := f.approve(t, "u1", "Acme")

	_, err := f.svc.Suspend(adminCtx(), partner.ID, "fraud")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = f.svc.Reinstate(adminCtx(), partner.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	f.activate(t, partner)
	suspended, err := f.svc.Suspend(adminCtx(), partner.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, suspended.Status)
	assert.NotNil(t, suspended.SuspendedAt)

	reinstated, err := f.svc.Reinstate(adminCtx(), partner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, reinstated.Status)
	assert.Nil(t, reinstated.SuspendedAt)

	var types []string
	require.NoError(t, f.db.Model(&events.Event{}).Where("partner_id = ?", partner.ID).Order("id").Pluck("event_type", &types).Error)
	assert.Equal(t, []string{events.ApplicationApproved, events.PartnerSuspended, events.PartnerReinstated}, types)
}

func TestChangeCommissionRate(t *testing.T) {
	f := newFixture(t)
	partner := f.approve(t, "u1", "Acme")

	_, err := f.svc.ChangeCommissionRate(adminCtx(), domain.ChangeCommissionRateRequest{PartnerID: partner.ID, Rate: "150"})
	assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)

	updated, err := f.svc.ChangeCommissionRate(adminCtx(), domain.ChangeCommissionRateRequest{PartnerID: partner.ID, Rate: "12.5"})
	require.NoError(t, err)
	assert.Equal(t, "12.5", updated.CommissionRate)
	assert.Equal(t, "12.5", updated.Rate().String())
}
