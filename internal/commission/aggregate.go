package commission

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/partnerhub/internal/config"
)

// Record is anything that carries a locked-in commission.
type Record interface {
	CommissionAmount() int64
	IsCommissionPaid() bool
	IsConverted() bool
}

type Totals struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Paid    int64 `json:"paid"`
}

// Aggregate sums commissions over every record regardless of status.
// Pending is derived as Total - Paid so the two always reconcile.
func Aggregate[T Record](records []T) Totals {
	var totals Totals
	for _, r := range records {
		amount := r.CommissionAmount()
		totals.Total += amount
		if r.IsCommissionPaid() {
			totals.Paid += amount
		}
	}
	totals.Pending = totals.Total - totals.Paid
	return totals
}

// ConversionRate is converted/total × 100 rounded to two places, 0 when empty.
func ConversionRate[T Record](records []T) float64 {
	if len(records) == 0 {
		return 0
	}
	converted := 0
	for _, r := range records {
		if r.IsConverted() {
			converted++
		}
	}
	return Percent(converted, len(records))
}

func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(int64(part)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		Float64()
	return rate
}

// Rank picks the highest tier whose earnings and referral thresholds are both met.
func Rank(totalEarnings int64, referrals int, tiers []config.RankTier) string {
	if len(tiers) == 0 {
		return ""
	}
	ordered := make([]config.RankTier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MinEarnings == ordered[j].MinEarnings {
			return ordered[i].MinReferrals < ordered[j].MinReferrals
		}
		return ordered[i].MinEarnings < ordered[j].MinEarnings
	})

	rank := ordered[0].Name
	for _, tier := range ordered {
		if totalEarnings >= tier.MinEarnings && referrals >= tier.MinReferrals {
			rank = tier.Name
		}
	}
	return rank
}
