package profit

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark-analytics/tidemark/internal/shared"
)

// BuildMonthlyRollups folds persisted daily summaries plus the raw per-source
// spend rows for the same window into one rollup per calendar month. Spend is
// kept split by source even though profit is not. Output is sorted by month
// and fully replaces existing rows on upsert, keeping reruns idempotent.
func BuildMonthlyRollups(clientID uuid.UUID, dailies []DailyProfitSummary, rows []DailyMetricRow) []MonthlyRollup {
	byMonth := make(map[time.Time]*MonthlyRollup)
	monthOf := func(d time.Time) *MonthlyRollup {
		key := shared.MonthStart(d)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyRollup{ClientID: clientID, Month: key}
			byMonth[key] = m
		}
		return m
	}

	for _, day := range dailies {
		m := monthOf(day.Date)
		m.Revenue += sanitize(day.Revenue)
		m.Orders += day.Orders
		m.Units += day.Units
		m.EstCogs += sanitize(day.EstCogs)
		m.EstProcessingFees += sanitize(day.EstProcessingFees)
		m.EstFulfillmentCosts += sanitize(day.EstFulfillmentCosts)
		m.EstOtherVariableCosts += sanitize(day.EstOtherVariableCosts)
		m.EstOtherFixedCosts += sanitize(day.EstOtherFixedCosts)
		m.ContributionProfit += sanitize(day.ContributionProfit)
	}

	for _, row := range rows {
		switch row.Source {
		case SourcePaidSearch:
			monthOf(row.Date).GoogleSpend += sanitize(row.Spend)
		case SourcePaidSocial:
			monthOf(row.Date).MetaSpend += sanitize(row.Spend)
		}
	}

	out := make([]MonthlyRollup, 0, len(byMonth))
	for _, m := range byMonth {
		m.TotalAdSpend = m.GoogleSpend + m.MetaSpend
		m.TrueROAS = ratio(m.Revenue, m.TotalAdSpend)
		m.AOV = ratio(m.Revenue, float64(m.Orders))
		m.CPO = ratio(m.TotalAdSpend, float64(m.Orders))
		out = append(out, m.rounded())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

func (m MonthlyRollup) rounded() MonthlyRollup {
	m.Revenue = round2(m.Revenue)
	m.MetaSpend = round2(m.MetaSpend)
	m.GoogleSpend = round2(m.GoogleSpend)
	m.TotalAdSpend = round2(m.TotalAdSpend)
	m.EstCogs = round2(m.EstCogs)
	m.EstProcessingFees = round2(m.EstProcessingFees)
	m.EstFulfillmentCosts = round2(m.EstFulfillmentCosts)
	m.EstOtherVariableCosts = round2(m.EstOtherVariableCosts)
	m.EstOtherFixedCosts = round2(m.EstOtherFixedCosts)
	m.ContributionProfit = round2(m.ContributionProfit)
	m.TrueROAS = sanitize(m.TrueROAS)
	m.AOV = sanitize(m.AOV)
	m.CPO = sanitize(m.CPO)
	return m
}
