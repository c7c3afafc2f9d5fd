package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/audit/repository"
	"github.com/smallbiznis/partnerhub/internal/callercontext"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestRecordUsesCallerAndMasksPersonalData(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := callercontext.WithCaller(context.Background(), callercontext.Caller{ExternalID: "ops-1", Role: callercontext.RoleAdmin})
	ctx = callercontext.WithClient(ctx, "10.0.0.1", "curl/8")

	require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{
		Action:     auditdomain.ActionPartnerSuspend,
		TargetType: "partner",
		TargetID:   "77",
		Metadata:   map[string]any{"contact_email": "owner@acme.test", "reason": "fraud"},
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "admin", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "ops-1", *entry.ActorID)
	assert.Equal(t, "****test", entry.Metadata["contact_email"])
	assert.Equal(t, "fraud", entry.Metadata["reason"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Record(context.Background(), nil, auditdomain.Entry{Action: " "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		clk.Advance(time.Minute)
		require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{Action: auditdomain.ActionAgreementPublish, TargetType: "agreement"}))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 3)
	assert.False(t, first.HasMore)

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	page, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page.AuditLogs, 2)
	require.True(t, page.HasMore)

	req.PageToken = page.NextPageToken
	rest, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, rest.AuditLogs, 1)
	assert.Equal(t, "system", rest.AuditLogs[0].ActorType)
}

func TestListRejectsBadRange(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}

func TestListFiltersByActor(t *testing.T) {
	svc, _ := newTestService(t)
	for _, id := range []string{"ops-1", "ops-2", "ops-1"} {
		ctx := callercontext.WithCaller(context.Background(), callercontext.Caller{ExternalID: id, Role: callercontext.RoleAdmin})
		require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{Action: auditdomain.ActionApplicationApprove, TargetType: "application"}))
	}

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{ActorID: "ops-1"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)
	for _, entry := range resp.AuditLogs {
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, "ops-1", *entry.ActorID)
	}
}
