package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEventLeadConverted(t *testing.T) {
	req, ok := FromEvent(events.Event{
		ID:        snowflake.ID(99),
		PartnerID: snowflake.ID(5),
		EventType: events.LeadConverted,
		Payload:   map[string]any{"client_name": "Jane", "commission": "500.00"},
	})
	require.True(t, ok)
	assert.Equal(t, events.LeadConverted, req.Type)
	assert.Equal(t, snowflake.ID(5), req.PartnerID)
	require.NotNil(t, req.SourceEventID)
	assert.Equal(t, snowflake.ID(99), *req.SourceEventID)
	assert.Contains(t, req.Message, "500.00")
	assert.Equal(t, "500.00", req.Data["commission"])
}

func TestFromEventCoversPartnerFacingTypes(t *testing.T) {
	for _, eventType := range []string{
		events.LeadContacted, events.LeadQualified, events.LeadConverted, events.LeadLost,
		events.ApplicationApproved, events.AccountApproved, events.PartnerSuspended,
		events.PartnerReinstated, events.CommissionPaid, events.CommissionRateChanged,
	} {
		req, ok := FromEvent(events.Event{ID: 1, PartnerID: 2, EventType: eventType})
		assert.True(t, ok, eventType)
		assert.NotEmpty(t, req.Title, eventType)
		assert.NotEmpty(t, req.Message, eventType)
	}
}

func TestFromEventSkipsInternalTypes(t *testing.T) {
	for _, eventType := range []string{events.LeadCreated, events.AgreementSigned, events.PaymentSetupStarted, "application_rejected"} {
		_, ok := FromEvent(events.Event{ID: 1, PartnerID: 2, EventType: eventType})
		assert.False(t, ok, eventType)
	}
}
