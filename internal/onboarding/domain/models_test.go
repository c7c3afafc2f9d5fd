package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to Phase
		required int
		want     bool
	}{
		{PhaseApplied, PhaseAgreementsPending, 2, true},
		{PhaseApplied, PhaseAgreementsPending, 0, false},
		{PhaseApplied, PhaseAgreementsComplete, 0, true},
		{PhaseApplied, PhaseAgreementsComplete, 1, false},
		{PhaseAgreementsPending, PhaseAgreementsComplete, 2, true},
		{PhaseAgreementsPending, PhasePaymentPending, 2, false},
		{PhaseAgreementsComplete, PhasePaymentPending, 2, true},
		{PhaseAgreementsComplete, PhaseActive, 2, false},
		{PhasePaymentPending, PhaseActive, 2, true},
		{PhaseActive, PhaseApplied, 2, false},
		{PhasePaymentPending, PhaseAgreementsPending, 2, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanAdvance(tc.from, tc.to, tc.required), "%s -> %s", tc.from, tc.to)
	}
}

func TestRequiredKeepsLatestVersionPerType(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agreements := []Agreement{
		{ID: 1, Type: "terms", Version: "v1", IsRequired: true, CreatedAt: base},
		{ID: 2, Type: "terms", Version: "v2", IsRequired: true, CreatedAt: base.Add(time.Hour)},
		{ID: 3, Type: "conduct", Version: "v1", IsRequired: true, CreatedAt: base},
		{ID: 4, Type: "newsletter", Version: "v1", IsRequired: false, CreatedAt: base},
	}

	required := Required(agreements)
	ids := []snowflake.ID{}
	for _, a := range required {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []snowflake.ID{2, 3}, ids)
	assert.Len(t, Current(agreements), 3)
}

func TestComputeProgress(t *testing.T) {
	required := []Agreement{{ID: 1}, {ID: 2}}

	p := ComputeProgress(required, []Signature{{AgreementID: 1}, {AgreementID: 9}})
	assert.Equal(t, Progress{Total: 2, Signed: 1, Remaining: 1, AllSigned: false}, p)

	p = ComputeProgress(nil, nil)
	assert.True(t, p.AllSigned)
}
