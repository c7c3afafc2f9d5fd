package logger

import (
	"context"
	"testing"

	"github.com/smallbiznis/partnerhub/internal/callercontext"
	obscontext "github.com/smallbiznis/partnerhub/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = callercontext.WithCaller(ctx, callercontext.Caller{ExternalID: "user-9", Role: callercontext.RolePartner})

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "user-9", fields["caller_id"])
		assert.Equal(t, "partner", fields["caller_role"])
	}
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("update leads set status = ?"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestWithPartnerTagsEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	WithPartner(zap.New(core), " 42 ").Info("lead created")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "42", entries[0].ContextMap()["partner_id"])
	}
	assert.Nil(t, WithPartner(nil, "42"))
}
