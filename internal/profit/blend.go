package profit

// CogsBlend is the best-available cost-of-goods estimate for one day, split
// into a covered portion (actual unit costs known) and an estimated remainder.
type CogsBlend struct {
	EstCogs          float64
	ProductCogsKnown float64
	RevenueWithCogs  float64
	CoveragePct      float64
}

// BlendCogs merges known per-unit cost coverage with a margin-based estimate
// for the uncovered share of revenue. A nil coverage record means the whole
// day is estimated. Coverage values are clamped against the day's totals so a
// stale join (revenue_with_cogs > dayRevenue after late corrections) can never
// yield a negative unknown portion.
func BlendCogs(dayRevenue float64, profile CostProfile, cov *CoverageRecord) CogsBlend {
	dayRevenue = sanitize(dayRevenue)
	if dayRevenue < 0 {
		dayRevenue = 0
	}

	var coveredRevenue, cogsKnown float64
	if cov != nil {
		coveredRevenue = clamp(sanitize(cov.RevenueWithCogs), 0, dayRevenue)
		cogsKnown = sanitize(cov.ProductCogsKnown)
		if cogsKnown < 0 {
			cogsKnown = 0
		}
	}

	unknownRevenue := dayRevenue - coveredRevenue
	if unknownRevenue < 0 {
		unknownRevenue = 0
	}

	estimatedUnknown := unknownRevenue * (1 - profile.GrossMarginPct)

	return CogsBlend{
		EstCogs:          cogsKnown + estimatedUnknown,
		ProductCogsKnown: cogsKnown,
		RevenueWithCogs:  coveredRevenue,
		CoveragePct:      ratio(coveredRevenue, dayRevenue),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
