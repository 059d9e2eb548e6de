// Package profit implements the profitability aggregation engine: it blends
// per-day storefront and paid-media metrics with client cost assumptions into a
// daily contribution-profit ledger, monthly rollups, and forward-windowed
// attribution series.
package profit

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// MetricSource identifies the upstream platform a daily metric row came from.
type MetricSource string

const (
	// SourceStorefront carries business-truth revenue, orders and units.
	SourceStorefront MetricSource = "storefront"
	// SourcePaidSearch carries search ad spend and platform-tracked revenue.
	SourcePaidSearch MetricSource = "paid_search"
	// SourcePaidSocial carries social ad spend and platform-tracked revenue.
	SourcePaidSocial MetricSource = "paid_social"
)

// FallbackGrossMarginPct is assumed when a client never configured a margin.
const FallbackGrossMarginPct = 0.5

// Client is a tenant known to the engine.
type Client struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

// ClientCostSettings holds a client's cost assumptions as stored. Nil fields
// were never configured and fall back to platform defaults on resolve.
type ClientCostSettings struct {
	ClientID                uuid.UUID
	DefaultGrossMarginPct   *float64
	AvgCogsPerUnit          *float64
	ProcessingFeePct        *float64
	ProcessingFeeFixed      *float64
	PickPackPerOrder        *float64
	ShippingSubsidyPerOrder *float64
	MaterialsPerOrder       *float64
	OtherVariablePctRevenue *float64
	OtherFixedPerDay        *float64
	UpdatedAt               time.Time
}

// CostProfile is the fully-defaulted view of a client's cost assumptions that
// the daily computer consumes. No field is ever missing.
type CostProfile struct {
	GrossMarginPct          float64
	AvgCogsPerUnit          float64
	ProcessingFeePct        float64
	ProcessingFeeFixed      float64
	PickPackPerOrder        float64
	ShippingSubsidyPerOrder float64
	MaterialsPerOrder       float64
	OtherVariablePctRevenue float64
	OtherFixedPerDay        float64
}

// DailyMetricRow is one normalized per-day row staged by an upstream fetcher.
// Storefront rows never carry spend; paid rows never carry orders or units, and
// their Revenue is platform-attributed, used only for tracked ROAS.
type DailyMetricRow struct {
	ClientID uuid.UUID
	Date     time.Time
	Source   MetricSource
	Spend    float64
	Revenue  float64
	Orders   int64
	Units    int64
}

// CoverageRecord is the per-day output of the external line-item unit-cost
// join. Absence of a record means coverage is zero for that day.
type CoverageRecord struct {
	ClientID        uuid.UUID
	Date            time.Time
	ProductCogsKnown float64
	RevenueWithCogs  float64
	UnitsWithCogs    int64
}

// DayMetrics aggregates a single day's rows across sources.
type DayMetrics struct {
	Date           time.Time
	Revenue        float64
	Orders         int64
	Units          int64
	PaidSpend      float64
	GoogleSpend    float64
	MetaSpend      float64
	TrackedRevenue float64
}

// DailyProfitSummary is the engine's canonical per-day output, upserted on
// (client_id, date).
type DailyProfitSummary struct {
	ClientID              uuid.UUID `json:"client_id"`
	Date                  time.Time `json:"date"`
	Revenue               float64   `json:"revenue"`
	Orders                int64     `json:"orders"`
	Units                 int64     `json:"units"`
	PaidSpend             float64   `json:"paid_spend"`
	MER                   float64   `json:"mer"`
	EstCogs               float64   `json:"est_cogs"`
	EstProcessingFees     float64   `json:"est_processing_fees"`
	EstFulfillmentCosts   float64   `json:"est_fulfillment_costs"`
	EstOtherVariableCosts float64   `json:"est_other_variable_costs"`
	EstOtherFixedCosts    float64   `json:"est_other_fixed_costs"`
	ContributionProfit    float64   `json:"contribution_profit"`
	ProfitMER             float64   `json:"profit_mer"`
	ProductCogsKnown      float64   `json:"product_cogs_known"`
	RevenueWithCogs       float64   `json:"revenue_with_cogs"`
	CogsCoveragePct       float64   `json:"cogs_coverage_pct"`
}

// CoreZero reports whether the summary's core metrics are all zero. The merge
// guard uses this to recognise a possibly-degraded resync.
func (s DailyProfitSummary) CoreZero() bool {
	return s.Revenue == 0 && s.Orders == 0 && s.Units == 0
}

// TotalCost returns the full cost chain including ad spend.
func (s DailyProfitSummary) TotalCost() float64 {
	return s.EstCogs + s.EstProcessingFees + s.EstFulfillmentCosts +
		s.EstOtherVariableCosts + s.EstOtherFixedCosts + s.PaidSpend
}

// MonthlyRollup is one row per (client_id, month), month being first-of-month.
type MonthlyRollup struct {
	ClientID              uuid.UUID `json:"client_id"`
	Month                 time.Time `json:"month"`
	Revenue               float64   `json:"revenue"`
	Orders                int64     `json:"orders"`
	Units                 int64     `json:"units"`
	MetaSpend             float64   `json:"meta_spend"`
	GoogleSpend           float64   `json:"google_spend"`
	TotalAdSpend          float64   `json:"total_ad_spend"`
	TrueROAS              float64   `json:"true_roas"`
	AOV                   float64   `json:"aov"`
	CPO                   float64   `json:"cpo"`
	EstCogs               float64   `json:"est_cogs"`
	EstProcessingFees     float64   `json:"est_processing_fees"`
	EstFulfillmentCosts   float64   `json:"est_fulfillment_costs"`
	EstOtherVariableCosts float64   `json:"est_other_variable_costs"`
	EstOtherFixedCosts    float64   `json:"est_other_fixed_costs"`
	ContributionProfit    float64   `json:"contribution_profit"`
}

// RunRequest scopes a single engine invocation.
type RunRequest struct {
	// ClientID limits the run to one tenant; uuid.Nil means all active clients.
	ClientID  uuid.UUID
	Start     time.Time
	End       time.Time
	FillZeros bool
	Force     bool
}

// RunError records a per-client failure without aborting the batch.
type RunError struct {
	ClientID uuid.UUID `json:"client_id"`
	Error    string    `json:"error"`
}

// RunReport summarises a batch invocation. Ok is false only when at least one
// client failed; the job itself still completed.
type RunReport struct {
	Ok               bool       `json:"ok"`
	ClientsProcessed int        `json:"clients_processed"`
	RowsUpserted     int        `json:"rows_upserted"`
	RowsSuppressed   int        `json:"rows_suppressed"`
	MonthsRolledUp   int        `json:"months_rolled_up"`
	Errors           []RunError `json:"errors"`
}

// AggregateDay folds one day's metric rows into a DayMetrics. Business revenue,
// orders and units come from storefront rows only; spend splits by paid source.
func AggregateDay(date time.Time, rows []DailyMetricRow) DayMetrics {
	m := DayMetrics{Date: date}
	for _, row := range rows {
		switch row.Source {
		case SourceStorefront:
			m.Revenue += sanitize(row.Revenue)
			m.Orders += row.Orders
			m.Units += row.Units
		case SourcePaidSearch:
			m.GoogleSpend += sanitize(row.Spend)
			m.TrackedRevenue += sanitize(row.Revenue)
		case SourcePaidSocial:
			m.MetaSpend += sanitize(row.Spend)
			m.TrackedRevenue += sanitize(row.Revenue)
		}
	}
	m.PaidSpend = m.GoogleSpend + m.MetaSpend
	return m
}

// sanitize coerces NaN and infinities to zero so a malformed upstream field can
// never poison an additive chain.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ratio divides guarding the zero denominator, returning 0 instead of NaN/Inf.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return sanitize(num / den)
}

// round2 rounds to two decimals. Applied only at the persistence boundary.
func round2(v float64) float64 {
	return math.Round(sanitize(v)*100) / 100
}
