package profit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidemark-analytics/tidemark/internal/platform/db"
	"github.com/tidemark-analytics/tidemark/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the engine. Metric and
// coverage tables are staged by the upstream fetchers; the engine only reads
// them. Summary and rollup tables are owned here and mutated exclusively
// through upsert-by-key.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListClients returns all active clients.
func (r *Repository) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, active
		FROM clients
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// GetClient fetches one client by id.
func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrUnknownClient
		}
		return Client{}, err
	}
	return c, nil
}

// GetCostSettings loads a client's cost assumptions. Absence of a row is valid
// and surfaces as shared.ErrNotFound; the resolver defaults everything.
func (r *Repository) GetCostSettings(ctx context.Context, clientID uuid.UUID) (ClientCostSettings, error) {
	var s ClientCostSettings
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, default_gross_margin_pct, avg_cogs_per_unit,
		       processing_fee_pct, processing_fee_fixed, pick_pack_per_order,
		       shipping_subsidy_per_order, materials_per_order,
		       other_variable_pct_revenue, other_fixed_per_day, updated_at
		FROM client_cost_settings
		WHERE client_id = $1
	`, clientID).Scan(
		&s.ClientID, &s.DefaultGrossMarginPct, &s.AvgCogsPerUnit,
		&s.ProcessingFeePct, &s.ProcessingFeeFixed, &s.PickPackPerOrder,
		&s.ShippingSubsidyPerOrder, &s.MaterialsPerOrder,
		&s.OtherVariablePctRevenue, &s.OtherFixedPerDay, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClientCostSettings{}, shared.ErrNotFound
		}
		return ClientCostSettings{}, err
	}
	return s, nil
}

// UpsertCostSettings stores a client's cost assumptions, replacing any prior row.
func (r *Repository) UpsertCostSettings(ctx context.Context, s ClientCostSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_cost_settings (
			client_id, default_gross_margin_pct, avg_cogs_per_unit,
			processing_fee_pct, processing_fee_fixed, pick_pack_per_order,
			shipping_subsidy_per_order, materials_per_order,
			other_variable_pct_revenue, other_fixed_per_day, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		ON CONFLICT (client_id) DO UPDATE SET
			default_gross_margin_pct   = EXCLUDED.default_gross_margin_pct,
			avg_cogs_per_unit          = EXCLUDED.avg_cogs_per_unit,
			processing_fee_pct         = EXCLUDED.processing_fee_pct,
			processing_fee_fixed       = EXCLUDED.processing_fee_fixed,
			pick_pack_per_order        = EXCLUDED.pick_pack_per_order,
			shipping_subsidy_per_order = EXCLUDED.shipping_subsidy_per_order,
			materials_per_order        = EXCLUDED.materials_per_order,
			other_variable_pct_revenue = EXCLUDED.other_variable_pct_revenue,
			other_fixed_per_day        = EXCLUDED.other_fixed_per_day,
			updated_at                 = now()
	`,
		s.ClientID, s.DefaultGrossMarginPct, s.AvgCogsPerUnit,
		s.ProcessingFeePct, s.ProcessingFeeFixed, s.PickPackPerOrder,
		s.ShippingSubsidyPerOrder, s.MaterialsPerOrder,
		s.OtherVariablePctRevenue, s.OtherFixedPerDay,
	)
	return mapPgError(err)
}

// FetchDailyMetrics reads the staged per-source metric rows for a window.
func (r *Repository) FetchDailyMetrics(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]DailyMetricRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, date, source, spend, revenue, orders, units
		FROM daily_metric_rows
		WHERE client_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, source
	`, clientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyMetricRow
	for rows.Next() {
		var m DailyMetricRow
		var src string
		if err := rows.Scan(&m.ClientID, &m.Date, &src, &m.Spend, &m.Revenue, &m.Orders, &m.Units); err != nil {
			return nil, err
		}
		m.Source = MetricSource(src)
		m.Date = shared.Day(m.Date)
		out = append(out, m)
	}
	return out, rows.Err()
}

// FetchCoverage reads the per-day unit-cost coverage join output for a window.
func (r *Repository) FetchCoverage(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]CoverageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, date, product_cogs_known, revenue_with_cogs, units_with_cogs
		FROM coverage_records
		WHERE client_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, clientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CoverageRecord
	for rows.Next() {
		var c CoverageRecord
		if err := rows.Scan(&c.ClientID, &c.Date, &c.ProductCogsKnown, &c.RevenueWithCogs, &c.UnitsWithCogs); err != nil {
			return nil, err
		}
		c.Date = shared.Day(c.Date)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDailySummaries returns persisted summaries for a window, date-ascending.
func (r *Repository) ListDailySummaries(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]DailyProfitSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, date, revenue, orders, units, paid_spend, mer,
		       est_cogs, est_processing_fees, est_fulfillment_costs,
		       est_other_variable_costs, est_other_fixed_costs,
		       contribution_profit, profit_mer,
		       product_cogs_known, revenue_with_cogs, cogs_coverage_pct
		FROM daily_profit_summary
		WHERE client_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, clientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyProfitSummary
	for rows.Next() {
		var s DailyProfitSummary
		if err := rows.Scan(
			&s.ClientID, &s.Date, &s.Revenue, &s.Orders, &s.Units, &s.PaidSpend, &s.MER,
			&s.EstCogs, &s.EstProcessingFees, &s.EstFulfillmentCosts,
			&s.EstOtherVariableCosts, &s.EstOtherFixedCosts,
			&s.ContributionProfit, &s.ProfitMER,
			&s.ProductCogsKnown, &s.RevenueWithCogs, &s.CogsCoveragePct,
		); err != nil {
			return nil, err
		}
		s.Date = shared.Day(s.Date)
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertDailySummaries writes one client's committed summaries as a single
// atomic batch. Partial-window writes would leave the ledger inconsistent, so
// the whole batch shares one transaction.
func (r *Repository) UpsertDailySummaries(ctx context.Context, summaries []DailyProfitSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range summaries {
			batch.Queue(`
				INSERT INTO daily_profit_summary (
					client_id, date, revenue, orders, units, paid_spend, mer,
					est_cogs, est_processing_fees, est_fulfillment_costs,
					est_other_variable_costs, est_other_fixed_costs,
					contribution_profit, profit_mer,
					product_cogs_known, revenue_with_cogs, cogs_coverage_pct
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (client_id, date) DO UPDATE SET
					revenue                  = EXCLUDED.revenue,
					orders                   = EXCLUDED.orders,
					units                    = EXCLUDED.units,
					paid_spend               = EXCLUDED.paid_spend,
					mer                      = EXCLUDED.mer,
					est_cogs                 = EXCLUDED.est_cogs,
					est_processing_fees      = EXCLUDED.est_processing_fees,
					est_fulfillment_costs    = EXCLUDED.est_fulfillment_costs,
					est_other_variable_costs = EXCLUDED.est_other_variable_costs,
					est_other_fixed_costs    = EXCLUDED.est_other_fixed_costs,
					contribution_profit      = EXCLUDED.contribution_profit,
					profit_mer               = EXCLUDED.profit_mer,
					product_cogs_known       = EXCLUDED.product_cogs_known,
					revenue_with_cogs        = EXCLUDED.revenue_with_cogs,
					cogs_coverage_pct        = EXCLUDED.cogs_coverage_pct
			`,
				s.ClientID, s.Date, s.Revenue, s.Orders, s.Units, s.PaidSpend, s.MER,
				s.EstCogs, s.EstProcessingFees, s.EstFulfillmentCosts,
				s.EstOtherVariableCosts, s.EstOtherFixedCosts,
				s.ContributionProfit, s.ProfitMER,
				s.ProductCogsKnown, s.RevenueWithCogs, s.CogsCoveragePct,
			)
		}
		results := tx.SendBatch(ctx, batch)
		defer func() { _ = results.Close() }()
		for range summaries {
			if _, err := results.Exec(); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

// ListMonthlyRollups returns rollups whose month key falls inside the window.
func (r *Repository) ListMonthlyRollups(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]MonthlyRollup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, month, revenue, orders, units,
		       meta_spend, google_spend, total_ad_spend,
		       true_roas, aov, cpo,
		       est_cogs, est_processing_fees, est_fulfillment_costs,
		       est_other_variable_costs, est_other_fixed_costs, contribution_profit
		FROM monthly_rollup
		WHERE client_id = $1 AND month BETWEEN $2 AND $3
		ORDER BY month
	`, clientID, shared.MonthStart(start), shared.MonthStart(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyRollup
	for rows.Next() {
		var m MonthlyRollup
		if err := rows.Scan(
			&m.ClientID, &m.Month, &m.Revenue, &m.Orders, &m.Units,
			&m.MetaSpend, &m.GoogleSpend, &m.TotalAdSpend,
			&m.TrueROAS, &m.AOV, &m.CPO,
			&m.EstCogs, &m.EstProcessingFees, &m.EstFulfillmentCosts,
			&m.EstOtherVariableCosts, &m.EstOtherFixedCosts, &m.ContributionProfit,
		); err != nil {
			return nil, err
		}
		m.Month = shared.Day(m.Month)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertMonthlyRollups full-replaces rollup rows keyed on (client_id, month).
func (r *Repository) UpsertMonthlyRollups(ctx context.Context, rollups []MonthlyRollup) error {
	if len(rollups) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range rollups {
			batch.Queue(`
				INSERT INTO monthly_rollup (
					client_id, month, revenue, orders, units,
					meta_spend, google_spend, total_ad_spend,
					true_roas, aov, cpo,
					est_cogs, est_processing_fees, est_fulfillment_costs,
					est_other_variable_costs, est_other_fixed_costs, contribution_profit
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
				ON CONFLICT (client_id, month) DO UPDATE SET
					revenue                  = EXCLUDED.revenue,
					orders                   = EXCLUDED.orders,
					units                    = EXCLUDED.units,
					meta_spend               = EXCLUDED.meta_spend,
					google_spend             = EXCLUDED.google_spend,
					total_ad_spend           = EXCLUDED.total_ad_spend,
					true_roas                = EXCLUDED.true_roas,
					aov                      = EXCLUDED.aov,
					cpo                      = EXCLUDED.cpo,
					est_cogs                 = EXCLUDED.est_cogs,
					est_processing_fees      = EXCLUDED.est_processing_fees,
					est_fulfillment_costs    = EXCLUDED.est_fulfillment_costs,
					est_other_variable_costs = EXCLUDED.est_other_variable_costs,
					est_other_fixed_costs    = EXCLUDED.est_other_fixed_costs,
					contribution_profit      = EXCLUDED.contribution_profit
			`,
				m.ClientID, m.Month, m.Revenue, m.Orders, m.Units,
				m.MetaSpend, m.GoogleSpend, m.TotalAdSpend,
				m.TrueROAS, m.AOV, m.CPO,
				m.EstCogs, m.EstProcessingFees, m.EstFulfillmentCosts,
				m.EstOtherVariableCosts, m.EstOtherFixedCosts, m.ContributionProfit,
			)
		}
		results := tx.SendBatch(ctx, batch)
		defer func() { _ = results.Close() }()
		for range rollups {
			if _, err := results.Exec(); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicateRow
	}
	return err
}
