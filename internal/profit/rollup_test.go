package profit

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestBuildMonthlyRollupsAdditivity(t *testing.T) {
	clientID := uuid.New()
	dailies := []DailyProfitSummary{
		{Date: day("2026-05-01"), Revenue: 100, Orders: 2, Units: 5, EstCogs: 40, ContributionProfit: 30},
		{Date: day("2026-05-17"), Revenue: 250.50, Orders: 4, Units: 9, EstCogs: 90.25, ContributionProfit: 75.10},
		{Date: day("2026-06-02"), Revenue: 80, Orders: 1, Units: 2, EstCogs: 32, ContributionProfit: 20},
	}
	rows := []DailyMetricRow{
		{Date: day("2026-05-01"), Source: SourcePaidSearch, Spend: 30},
		{Date: day("2026-05-17"), Source: SourcePaidSocial, Spend: 45.50},
		{Date: day("2026-06-02"), Source: SourcePaidSearch, Spend: 10},
	}

	out := BuildMonthlyRollups(clientID, dailies, rows)
	if len(out) != 2 {
		t.Fatalf("months = %d, want 2", len(out))
	}

	may := out[0]
	if !may.Month.Equal(day("2026-05-01")) {
		t.Fatalf("first month = %s, want 2026-05-01", may.Month)
	}
	if may.Revenue != 350.50 || may.Orders != 6 || may.Units != 14 {
		t.Fatalf("may totals = %v/%d/%d", may.Revenue, may.Orders, may.Units)
	}
	if may.GoogleSpend != 30 || may.MetaSpend != 45.50 || may.TotalAdSpend != 75.50 {
		t.Fatalf("may spend split = %v/%v/%v", may.GoogleSpend, may.MetaSpend, may.TotalAdSpend)
	}
	if math.Abs(may.EstCogs-130.25) > 1e-9 || math.Abs(may.ContributionProfit-105.10) > 1e-9 {
		t.Fatalf("may costs = %v/%v", may.EstCogs, may.ContributionProfit)
	}

	june := out[1]
	if !june.Month.Equal(day("2026-06-01")) || june.Revenue != 80 {
		t.Fatalf("june = %s/%v", june.Month, june.Revenue)
	}
}

func TestBuildMonthlyRollupsDerivedRatios(t *testing.T) {
	clientID := uuid.New()
	dailies := []DailyProfitSummary{{Date: day("2026-05-03"), Revenue: 900, Orders: 30}}
	rows := []DailyMetricRow{
		{Date: day("2026-05-03"), Source: SourcePaidSearch, Spend: 100},
		{Date: day("2026-05-03"), Source: SourcePaidSocial, Spend: 200},
	}

	out := BuildMonthlyRollups(clientID, dailies, rows)
	if len(out) != 1 {
		t.Fatalf("months = %d, want 1", len(out))
	}
	m := out[0]
	if m.TrueROAS != 3 {
		t.Fatalf("true_roas = %v, want 3", m.TrueROAS)
	}
	if m.AOV != 30 {
		t.Fatalf("aov = %v, want 30", m.AOV)
	}
	if m.CPO != 10 {
		t.Fatalf("cpo = %v, want 10", m.CPO)
	}
}

func TestBuildMonthlyRollupsZeroDenominators(t *testing.T) {
	out := BuildMonthlyRollups(uuid.New(), []DailyProfitSummary{{Date: day("2026-05-03")}}, nil)
	m := out[0]
	if m.TrueROAS != 0 || m.AOV != 0 || m.CPO != 0 {
		t.Fatalf("zero-denominator ratios = %v/%v/%v, want all 0", m.TrueROAS, m.AOV, m.CPO)
	}
}

func TestBuildMonthlyRollupsSpendOnlyMonth(t *testing.T) {
	// Paid rows with no storefront summaries still produce a month row so
	// burn without revenue stays visible.
	rows := []DailyMetricRow{{Date: day("2026-07-10"), Source: SourcePaidSocial, Spend: 55}}
	out := BuildMonthlyRollups(uuid.New(), nil, rows)
	if len(out) != 1 {
		t.Fatalf("months = %d, want 1", len(out))
	}
	if out[0].MetaSpend != 55 || out[0].Revenue != 0 || out[0].TrueROAS != 0 {
		t.Fatalf("spend-only month = %+v", out[0])
	}
}

func TestBuildMonthlyRollupsEmpty(t *testing.T) {
	if out := BuildMonthlyRollups(uuid.New(), nil, nil); len(out) != 0 {
		t.Fatalf("expected no rollups, got %d", len(out))
	}
}
