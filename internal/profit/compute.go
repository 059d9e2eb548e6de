package profit

import (
	"time"

	"github.com/google/uuid"
)

// ComputeDaily derives one profit summary from a day's aggregated metrics,
// the client's resolved cost profile and optional COGS coverage. Pure total
// function: no error paths, never a non-finite output.
//
// Intermediate money values stay unrounded; rounding to cents happens once in
// Rounded before persistence so the additive cost chain does not compound
// rounding error.
func ComputeDaily(clientID uuid.UUID, date time.Time, m DayMetrics, profile CostProfile, cov *CoverageRecord) DailyProfitSummary {
	revenue := sanitize(m.Revenue)
	spend := sanitize(m.PaidSpend)
	orders := float64(m.Orders)

	blend := BlendCogs(revenue, profile, cov)

	processing := revenue*profile.ProcessingFeePct + orders*profile.ProcessingFeeFixed
	fulfillment := orders * profile.PickPackPerOrder
	otherVariable := orders*profile.ShippingSubsidyPerOrder +
		orders*profile.MaterialsPerOrder +
		revenue*profile.OtherVariablePctRevenue
	otherFixed := profile.OtherFixedPerDay

	contribution := revenue - (blend.EstCogs + processing + fulfillment + otherVariable + otherFixed + spend)

	return DailyProfitSummary{
		ClientID:              clientID,
		Date:                  date,
		Revenue:               revenue,
		Orders:                m.Orders,
		Units:                 m.Units,
		PaidSpend:             spend,
		MER:                   ratio(revenue, spend),
		EstCogs:               sanitize(blend.EstCogs),
		EstProcessingFees:     sanitize(processing),
		EstFulfillmentCosts:   sanitize(fulfillment),
		EstOtherVariableCosts: sanitize(otherVariable),
		EstOtherFixedCosts:    sanitize(otherFixed),
		ContributionProfit:    sanitize(contribution),
		ProfitMER:             ratio(contribution, spend),
		ProductCogsKnown:      sanitize(blend.ProductCogsKnown),
		RevenueWithCogs:       sanitize(blend.RevenueWithCogs),
		CogsCoveragePct:       blend.CoveragePct,
	}
}

// Rounded returns the summary with money fields rounded to cents, ready for
// persistence. Contribution profit is rebuilt from the rounded components so
// the identity revenue − costs == contribution survives rounding exactly.
// Ratios keep full precision.
func (s DailyProfitSummary) Rounded() DailyProfitSummary {
	s.Revenue = round2(s.Revenue)
	s.PaidSpend = round2(s.PaidSpend)
	s.EstCogs = round2(s.EstCogs)
	s.EstProcessingFees = round2(s.EstProcessingFees)
	s.EstFulfillmentCosts = round2(s.EstFulfillmentCosts)
	s.EstOtherVariableCosts = round2(s.EstOtherVariableCosts)
	s.EstOtherFixedCosts = round2(s.EstOtherFixedCosts)
	s.ContributionProfit = round2(s.Revenue - s.TotalCost())
	s.ProductCogsKnown = round2(s.ProductCogsKnown)
	s.RevenueWithCogs = round2(s.RevenueWithCogs)
	s.MER = sanitize(s.MER)
	s.ProfitMER = sanitize(s.ProfitMER)
	s.CogsCoveragePct = sanitize(s.CogsCoveragePct)
	return s
}
