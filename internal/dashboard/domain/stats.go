package domain

import (
	"time"

	"github.com/smallbiznis/partnerhub/internal/commission"
	leaddomain "github.com/smallbiznis/partnerhub/internal/lead/domain"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
)

const periodLayout = "2006-01"

// BuildStats projects a partner's leads into dashboard figures. It never
// fails; no leads yields zero counts and an all-zero trend.
func BuildStats(partner partnerdomain.Partner, leads []leaddomain.Lead, now time.Time) Stats {
	loc := partner.Location()
	stats := Stats{
		PartnerID:      partner.ID,
		Timezone:       loc.String(),
		ConversionRate: commission.ConversionRate(leads),
		Earnings:       commission.Aggregate(leads),
		Trend:          emptyTrend(now.In(loc)),
	}

	index := make(map[string]int, len(stats.Trend))
	for i, bucket := range stats.Trend {
		index[bucket.Period] = i
	}

	for _, lead := range leads {
		stats.Counts.Total++
		switch lead.Status {
		case leaddomain.StatusPending:
			stats.Counts.Pending++
		case leaddomain.StatusContacted:
			stats.Counts.Contacted++
		case leaddomain.StatusQualified:
			stats.Counts.Qualified++
		case leaddomain.StatusConverted:
			stats.Counts.Converted++
		case leaddomain.StatusLost:
			stats.Counts.Lost++
		}

		if i, ok := index[lead.CreatedAt.In(loc).Format(periodLayout)]; ok {
			stats.Trend[i].Leads++
		}
		if lead.ConvertedAt != nil {
			if i, ok := index[lead.ConvertedAt.In(loc).Format(periodLayout)]; ok {
				stats.Trend[i].Conversions++
				stats.Trend[i].Earnings += lead.Commission
			}
		}
	}

	current := stats.Trend[len(stats.Trend)-1]
	previous := stats.Trend[len(stats.Trend)-2]
	stats.MonthOverMonth = MonthOverMonth{
		Leads:       change(int64(current.Leads), int64(previous.Leads)),
		Conversions: change(int64(current.Conversions), int64(previous.Conversions)),
		Earnings:    change(current.Earnings, previous.Earnings),
	}
	return stats
}

func emptyTrend(now time.Time) []MonthBucket {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	trend := make([]MonthBucket, TrendMonths)
	for i := range trend {
		month := start.AddDate(0, i-(TrendMonths-1), 0)
		trend[i] = MonthBucket{Period: month.Format(periodLayout)}
	}
	return trend
}

// change has no growth rate when the previous month is zero.
func change(current, previous int64) Change {
	c := Change{Amount: current - previous}
	if previous != 0 {
		rate := commission.Percent(int(current-previous), int(previous))
		c.GrowthRate = &rate
	}
	return c
}
