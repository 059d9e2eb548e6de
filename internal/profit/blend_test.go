package profit

import (
	"math"
	"testing"
)

func TestBlendCogsNoCoverage(t *testing.T) {
	b := BlendCogs(1000, CostProfile{GrossMarginPct: 0.4}, nil)
	if math.Abs(b.EstCogs-600) > 1e-9 {
		t.Fatalf("est_cogs = %v, want 600", b.EstCogs)
	}
	if b.CoveragePct != 0 || b.ProductCogsKnown != 0 || b.RevenueWithCogs != 0 {
		t.Fatalf("no-coverage blend leaked coverage fields: %+v", b)
	}
}

func TestBlendCogsPartialCoverage(t *testing.T) {
	cov := &CoverageRecord{ProductCogsKnown: 120, RevenueWithCogs: 400}
	b := BlendCogs(1000, CostProfile{GrossMarginPct: 0.4}, cov)
	// Known 120 plus (1000-400)×0.6 estimated.
	if math.Abs(b.EstCogs-480) > 1e-9 {
		t.Fatalf("est_cogs = %v, want 480", b.EstCogs)
	}
	if b.CoveragePct != 0.4 {
		t.Fatalf("coverage = %v, want 0.4", b.CoveragePct)
	}
}

func TestBlendCogsClampsStaleCoverage(t *testing.T) {
	// Late refunds can shrink day revenue below the coverage join's figure.
	cov := &CoverageRecord{ProductCogsKnown: 500, RevenueWithCogs: 1500}
	b := BlendCogs(1000, CostProfile{GrossMarginPct: 0.4}, cov)
	if b.RevenueWithCogs != 1000 {
		t.Fatalf("covered revenue = %v, want clamped to 1000", b.RevenueWithCogs)
	}
	if b.EstCogs != 500 {
		t.Fatalf("est_cogs = %v, want 500 (no negative unknown portion)", b.EstCogs)
	}
	if b.CoveragePct != 1 {
		t.Fatalf("coverage = %v, want 1", b.CoveragePct)
	}
}

func TestBlendCogsCoverageBounds(t *testing.T) {
	cases := []struct {
		revenue float64
		cov     *CoverageRecord
	}{
		{0, nil},
		{0, &CoverageRecord{RevenueWithCogs: 50, ProductCogsKnown: 10}},
		{-25, &CoverageRecord{RevenueWithCogs: 50}},
		{100, &CoverageRecord{RevenueWithCogs: -30, ProductCogsKnown: -5}},
		{100, &CoverageRecord{RevenueWithCogs: math.NaN(), ProductCogsKnown: math.Inf(1)}},
		{math.Inf(1), &CoverageRecord{RevenueWithCogs: 10}},
	}
	for i, tc := range cases {
		b := BlendCogs(tc.revenue, CostProfile{GrossMarginPct: 0.5}, tc.cov)
		if b.CoveragePct < 0 || b.CoveragePct > 1 {
			t.Fatalf("case %d: coverage %v out of [0,1]", i, b.CoveragePct)
		}
		if b.EstCogs < 0 || math.IsNaN(b.EstCogs) || math.IsInf(b.EstCogs, 0) {
			t.Fatalf("case %d: est_cogs %v", i, b.EstCogs)
		}
	}
}
