package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/commission"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
)

// TrendMonths is how many calendar months the trend series covers,
// the current month included.
const TrendMonths = 6

type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Contacted int `json:"contacted"`
	Qualified int `json:"qualified"`
	Converted int `json:"converted"`
	Lost      int `json:"lost"`
}

// MonthBucket groups leads by the month they were created and conversions
// and earnings by the month they converted.
type MonthBucket struct {
	Period      string `json:"period"`
	Leads       int    `json:"leads"`
	Conversions int    `json:"conversions"`
	Earnings    int64  `json:"earnings"`
}

type Change struct {
	Amount     int64    `json:"amount"`
	GrowthRate *float64 `json:"growthRate,omitempty"`
}

type MonthOverMonth struct {
	Leads       Change `json:"leads"`
	Conversions Change `json:"conversions"`
	Earnings    Change `json:"earnings"`
}

type Stats struct {
	PartnerID      snowflake.ID      `json:"partnerId"`
	Timezone       string            `json:"timezone"`
	Counts         StatusCounts      `json:"counts"`
	ConversionRate float64           `json:"conversionRate"`
	Earnings       commission.Totals `json:"earnings"`
	Trend          []MonthBucket     `json:"trend"`
	MonthOverMonth MonthOverMonth    `json:"monthOverMonth"`
}

type Service interface {
	// ForCaller builds the dashboard of the active partner behind ctx.
	ForCaller(ctx context.Context) (Stats, error)
	Summary(ctx context.Context, partnerID snowflake.ID) (partnerdomain.Summary, error)
}
