package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/commission"
	leaddomain "github.com/smallbiznis/partnerhub/internal/lead/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestBuildStatsEmpty(t *testing.T) {
	stats := BuildStats(partnerdomain.Partner{ID: 1}, nil, now)

	assert.Equal(t, StatusCounts{}, stats.Counts)
	assert.Equal(t, float64(0), stats.ConversionRate)
	assert.Equal(t, commission.Totals{}, stats.Earnings)
	assert.Equal(t, "UTC", stats.Timezone)
	require.Len(t, stats.Trend, TrendMonths)
	assert.Equal(t, "2025-10", stats.Trend[0].Period)
	assert.Equal(t, "2026-03", stats.Trend[TrendMonths-1].Period)
	assert.Equal(t, int64(0), stats.MonthOverMonth.Earnings.Amount)
	assert.Nil(t, stats.MonthOverMonth.Earnings.GrowthRate)
}

func TestBuildStatsCountsAndTrend(t *testing.T) {
	feb := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	leads := []leaddomain.Lead{
		{Status: leaddomain.StatusPending, CreatedAt: mar},
		{Status: leaddomain.StatusContacted, CreatedAt: mar},
		{Status: leaddomain.StatusQualified, CreatedAt: feb},
		{Status: leaddomain.StatusConverted, Commission: 50_000, CreatedAt: feb, ConvertedAt: &feb},
		{Status: leaddomain.StatusConverted, Commission: 20_000, CommissionPaid: true, CreatedAt: feb, ConvertedAt: &mar},
		{Status: leaddomain.StatusLost, CreatedAt: mar},
	}

	stats := BuildStats(partnerdomain.Partner{ID: 1}, leads, now)

	assert.Equal(t, StatusCounts{Total: 6, Pending: 1, Contacted: 1, Qualified: 1, Converted: 2, Lost: 1}, stats.Counts)
	assert.Equal(t, 33.33, stats.ConversionRate)
	assert.Equal(t, commission.Totals{Total: 70_000, Pending: 50_000, Paid: 20_000}, stats.Earnings)

	febBucket := stats.Trend[TrendMonths-2]
	marBucket := stats.Trend[TrendMonths-1]
	assert.Equal(t, MonthBucket{Period: "2026-02", Leads: 3, Conversions: 1, Earnings: 50_000}, febBucket)
	assert.Equal(t, MonthBucket{Period: "2026-03", Leads: 3, Conversions: 1, Earnings: 20_000}, marBucket)

	assert.Equal(t, int64(0), stats.MonthOverMonth.Leads.Amount)
	assert.Equal(t, int64(-30_000), stats.MonthOverMonth.Earnings.Amount)
	require.NotNil(t, stats.MonthOverMonth.Earnings.GrowthRate)
	assert.Equal(t, -60.0, *stats.MonthOverMonth.Earnings.GrowthRate)
}

func TestBuildStatsUsesPartnerTimezone(t *testing.T) {
	// 02:00 UTC on March 1st is still February in New York.
	created := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	leads := []leaddomain.Lead{{Status: leaddomain.StatusPending, CreatedAt: created}}

	ny := BuildStats(partnerdomain.Partner{Timezone: "America/New_York"}, leads, now)
	assert.Equal(t, "America/New_York", ny.Timezone)
	assert.Equal(t, 1, ny.Trend[TrendMonths-2].Leads)
	assert.Equal(t, 0, ny.Trend[TrendMonths-1].Leads)

	utc := BuildStats(partnerdomain.Partner{Timezone: "Not/AZone"}, leads, now)
	assert.Equal(t, "UTC", utc.Timezone)
	assert.Equal(t, 1, utc.Trend[TrendMonths-1].Leads)
}

func TestBuildStatsIgnoresLeadsOutsideWindow(t *testing.T) {
	old := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	leads := []leaddomain.Lead{{ID: snowflake.ID(1), Status: leaddomain.StatusConverted, Commission: 100, CreatedAt: old, ConvertedAt: &old}}

	stats := BuildStats(partnerdomain.Partner{}, leads, now)
	assert.Equal(t, 1, stats.Counts.Converted)
	assert.Equal(t, int64(100), stats.Earnings.Total)
	for _, bucket := range stats.Trend {
		assert.Zero(t, bucket.Leads)
		assert.Zero(t, bucket.Earnings)
	}
}

func TestEarningsReconcileOnRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		leads := make([]leaddomain.Lead, rng.Intn(40))
		for i := range leads {
			leads[i] = leaddomain.Lead{
				Status:         leaddomain.Statuses[rng.Intn(len(leaddomain.Statuses))],
				Commission:     rng.Int63n(10_000_000),
				CommissionPaid: rng.Intn(2) == 0,
				CreatedAt:      now.AddDate(0, 0, -rng.Intn(200)),
			}
		}
		stats := BuildStats(partnerdomain.Partner{}, leads, now)
		assert.Equal(t, stats.Earnings.Total, stats.Earnings.Pending+stats.Earnings.Paid)
		assert.Equal(t, len(leads), stats.Counts.Total)
	}
}
