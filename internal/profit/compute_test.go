package profit

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func fptr(v float64) *float64 { return &v }

func TestComputeDailyFullyEstimated(t *testing.T) {
	profile := Resolve(ClientCostSettings{
		DefaultGrossMarginPct: fptr(0.5),
		ProcessingFeePct:      fptr(0.03),
		PickPackPerOrder:      fptr(2),
	})
	m := DayMetrics{Revenue: 1000, Orders: 10, Units: 50, PaidSpend: 200}

	s := ComputeDaily(uuid.Nil, day("2026-05-01"), m, profile, nil)

	if s.EstCogs != 500 {
		t.Fatalf("est_cogs = %v, want 500", s.EstCogs)
	}
	if s.EstProcessingFees != 30 {
		t.Fatalf("est_processing_fees = %v, want 30", s.EstProcessingFees)
	}
	if s.EstFulfillmentCosts != 20 {
		t.Fatalf("est_fulfillment_costs = %v, want 20", s.EstFulfillmentCosts)
	}
	if s.EstOtherVariableCosts != 0 || s.EstOtherFixedCosts != 0 {
		t.Fatalf("other costs = %v/%v, want 0/0", s.EstOtherVariableCosts, s.EstOtherFixedCosts)
	}
	if s.ContributionProfit != 250 {
		t.Fatalf("contribution_profit = %v, want 250", s.ContributionProfit)
	}
	if s.MER != 5.0 || s.ProfitMER != 1.25 {
		t.Fatalf("mer/profit_mer = %v/%v, want 5/1.25", s.MER, s.ProfitMER)
	}
	if s.CogsCoveragePct != 0 {
		t.Fatalf("coverage = %v, want 0 without a coverage record", s.CogsCoveragePct)
	}
}

func TestComputeDailyPartialCoverage(t *testing.T) {
	cov := &CoverageRecord{ProductCogsKnown: 300, RevenueWithCogs: 600, UnitsWithCogs: 30}
	m := DayMetrics{Revenue: 1000, Orders: 10, Units: 50, PaidSpend: 200}

	// Symmetric case: 300 known + 400×0.5 estimated lands on the same total
	// as the fully-estimated path.
	symmetric := ComputeDaily(uuid.Nil, day("2026-05-01"), m, Resolve(ClientCostSettings{DefaultGrossMarginPct: fptr(0.5)}), cov)
	if symmetric.EstCogs != 500 {
		t.Fatalf("est_cogs = %v, want 500", symmetric.EstCogs)
	}

	// Margin 0.3 distinguishes the blend: 300 + 400×0.7 = 580.
	s := ComputeDaily(uuid.Nil, day("2026-05-01"), m, Resolve(ClientCostSettings{DefaultGrossMarginPct: fptr(0.3)}), cov)
	if math.Abs(s.EstCogs-580) > 1e-9 {
		t.Fatalf("est_cogs = %v, want 580", s.EstCogs)
	}
	if s.ProductCogsKnown != 300 || s.RevenueWithCogs != 600 {
		t.Fatalf("coverage diagnostics = %v/%v, want 300/600", s.ProductCogsKnown, s.RevenueWithCogs)
	}
	if s.CogsCoveragePct != 0.6 {
		t.Fatalf("coverage pct = %v, want 0.6", s.CogsCoveragePct)
	}
}

func TestComputeDailyZeroDayHasNoRatioPoison(t *testing.T) {
	s := ComputeDaily(uuid.Nil, day("2026-05-01"), DayMetrics{}, DefaultCostProfile(), nil)
	if s.MER != 0 || s.ProfitMER != 0 || s.CogsCoveragePct != 0 {
		t.Fatalf("zero-day ratios = %v/%v/%v, want all 0", s.MER, s.ProfitMER, s.CogsCoveragePct)
	}
	if !s.CoreZero() {
		t.Fatalf("expected zero core metrics")
	}
}

func TestComputeDailySanitizesNonFiniteInputs(t *testing.T) {
	m := DayMetrics{Revenue: math.NaN(), PaidSpend: math.Inf(1), Orders: 3}
	s := ComputeDaily(uuid.Nil, day("2026-05-01"), m, DefaultCostProfile(), nil)
	for name, v := range map[string]float64{
		"revenue":             s.Revenue,
		"paid_spend":          s.PaidSpend,
		"est_cogs":            s.EstCogs,
		"contribution_profit": s.ContributionProfit,
		"mer":                 s.MER,
		"profit_mer":          s.ProfitMER,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s = %v, want finite", name, v)
		}
	}
}

func TestContributionProfitIdentity(t *testing.T) {
	profile := Resolve(ClientCostSettings{
		DefaultGrossMarginPct:   fptr(0.42),
		ProcessingFeePct:        fptr(2.9), // 0-100 form
		ProcessingFeeFixed:      fptr(0.30),
		PickPackPerOrder:        fptr(1.85),
		ShippingSubsidyPerOrder: fptr(0.75),
		MaterialsPerOrder:       fptr(0.40),
		OtherVariablePctRevenue: fptr(0.015),
		OtherFixedPerDay:        fptr(12.5),
	})
	cov := &CoverageRecord{ProductCogsKnown: 91.37, RevenueWithCogs: 250.01, UnitsWithCogs: 11}

	for i := 0; i < 500; i++ {
		m := DayMetrics{
			Revenue:   float64(i) * 13.37,
			Orders:    int64(i % 29),
			Units:     int64(i % 83),
			PaidSpend: float64(i) * 2.11,
		}
		s := ComputeDaily(uuid.Nil, day("2026-05-01"), m, profile, cov).Rounded()
		want := s.Revenue - s.TotalCost()
		if math.Abs(s.ContributionProfit-want) > 1e-6 {
			t.Fatalf("identity broken at i=%d: contribution=%v want=%v", i, s.ContributionProfit, want)
		}
	}
}

func TestRoundedOnlyTouchesMoney(t *testing.T) {
	m := DayMetrics{Revenue: 100.456, Orders: 3, Units: 7, PaidSpend: 33.333}
	s := ComputeDaily(uuid.Nil, day("2026-05-01"), m, DefaultCostProfile(), nil)
	r := s.Rounded()
	if r.Revenue != 100.46 || r.PaidSpend != 33.33 {
		t.Fatalf("rounded money = %v/%v", r.Revenue, r.PaidSpend)
	}
	if r.Orders != 3 || r.Units != 7 {
		t.Fatalf("counts changed by rounding")
	}
}
