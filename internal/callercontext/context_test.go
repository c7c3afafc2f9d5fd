package callercontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestCallerRoundTrip(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{ExternalID: " user-1 "})

	caller, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", caller.ExternalID)
	assert.Equal(t, RolePartner, caller.Role)
	assert.False(t, caller.IsAdmin())
}

func TestFromContextRejectsBlankIdentity(t *testing.T) {
	_, ok := FromContext(WithCaller(context.Background(), Caller{ExternalID: "  "}))
	assert.False(t, ok)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RolePartner, ParseRole(""))
	assert.Equal(t, RolePartner, ParseRole("root"))
}

func TestPartnerIDFromContext(t *testing.T) {
	ctx := WithPartnerID(context.Background(), snowflake.ID(42))
	id, ok := PartnerIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = PartnerIDFromContext(WithPartnerID(context.Background(), 0))
	assert.False(t, ok)
}
