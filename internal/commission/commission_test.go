package commission

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	amount    int64
	paid      bool
	converted bool
}

func (r record) CommissionAmount() int64 { return r.amount }
func (r record) IsCommissionPaid() bool  { return r.paid }
func (r record) IsConverted() bool       { return r.converted }

func TestCompute(t *testing.T) {
	cases := []struct {
		name  string
		value int64
		rate  string
		want  int64
	}{
		{name: "website referral", value: 500_000, rate: "10", want: 50_000},
		{name: "half rounds up", value: 5, rate: "10", want: 1},
		{name: "below half rounds down", value: 4, rate: "10", want: 0},
		{name: "fractional rate", value: 123_456, rate: "12.5", want: 15_432},
		{name: "zero value", value: 0, rate: "10", want: 0},
		{name: "negative value", value: -10_000, rate: "10", want: 0},
		{name: "zero rate", value: 10_000, rate: "0", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rate := decimal.RequireFromString(tc.rate)
			assert.Equal(t, tc.want, Compute(tc.value, rate))
		})
	}
}

func TestParseRate(t *testing.T) {
	rate, err := ParseRate(" 10.5 ")
	require.NoError(t, err)
	assert.Equal(t, "10.5", rate.String())

	_, err = ParseRate("101")
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = ParseRate("-1")
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = ParseRate("ten")
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestParseAndFormatAmount(t *testing.T) {
	amount, err := ParseAmount("5000")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), amount)
	assert.Equal(t, "500.00", FormatMinor(50_000))
	assert.Equal(t, "0.05", FormatMinor(5))

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestToMinorRejectsOverflow(t *testing.T) {
	amount, err := ToMinor(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), amount)

	_, err = ToMinor(decimal.RequireFromString("92233720368547758.08"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("100000000000000000")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAggregateReconcilesForRandomSets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(50)
		records := make([]record, 0, n)
		for j := 0; j < n; j++ {
			records = append(records, record{
				amount: rng.Int63n(10_000_000),
				paid:   rng.Intn(2) == 0,
			})
		}

		totals := Aggregate(records)
		require.Equal(t, totals.Total, totals.Paid+totals.Pending)

		var paid int64
		for _, r := range records {
			if r.paid {
				paid += r.amount
			}
		}
		require.Equal(t, paid, totals.Paid)
	}
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, Aggregate([]record{}))
}

func TestConversionRate(t *testing.T) {
	assert.Equal(t, float64(0), ConversionRate([]record{}))
	assert.Equal(t, float64(0), ConversionRate[record](nil))

	records := []record{{converted: true}, {}, {}}
	assert.Equal(t, 33.33, ConversionRate(records))
	assert.Equal(t, float64(100), ConversionRate([]record{{converted: true}}))
}

func TestRank(t *testing.T) {
	tiers := config.DefaultProgramConfig().RankTiers

	assert.Equal(t, "Bronze", Rank(0, 0, tiers))
	assert.Equal(t, "Silver", Rank(100_000, 5, tiers))
	assert.Equal(t, "Silver", Rank(600_000, 10, tiers))
	assert.Equal(t, "Gold", Rank(600_000, 15, tiers))
	assert.Equal(t, "", Rank(1, 1, nil))
}
