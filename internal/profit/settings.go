package profit

// Resolve produces the fully-defaulted cost profile for a client. Percent-like
// inputs tolerate both fraction (0.3) and 0-100 (30) forms; unset fields become
// zero, except the gross margin which falls back to the platform-wide default.
func Resolve(s ClientCostSettings) CostProfile {
	return CostProfile{
		GrossMarginPct:          normalizePct(s.DefaultGrossMarginPct, FallbackGrossMarginPct),
		AvgCogsPerUnit:          nonNegative(s.AvgCogsPerUnit),
		ProcessingFeePct:        normalizePct(s.ProcessingFeePct, 0),
		ProcessingFeeFixed:      nonNegative(s.ProcessingFeeFixed),
		PickPackPerOrder:        nonNegative(s.PickPackPerOrder),
		ShippingSubsidyPerOrder: nonNegative(s.ShippingSubsidyPerOrder),
		MaterialsPerOrder:       nonNegative(s.MaterialsPerOrder),
		OtherVariablePctRevenue: normalizePct(s.OtherVariablePctRevenue, 0),
		OtherFixedPerDay:        nonNegative(s.OtherFixedPerDay),
	}
}

// DefaultCostProfile is used when a client has no settings row, or the
// settings store is unreachable. Cost estimation degrades instead of blocking
// revenue reporting.
func DefaultCostProfile() CostProfile {
	return CostProfile{GrossMarginPct: FallbackGrossMarginPct}
}

// normalizePct maps a possibly-unset percent input onto [0,1]. Values above 1
// are treated as 0-100 scale.
func normalizePct(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	v := sanitize(*p)
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNegative(p *float64) float64 {
	if p == nil {
		return 0
	}
	v := sanitize(*p)
	if v < 0 {
		return 0
	}
	return v
}
