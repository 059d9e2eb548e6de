package profit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tidemark-analytics/tidemark/internal/shared"
)

// clientConcurrency bounds parallel client runs. Read/write sets are disjoint
// by client_id, so parallelism is safe; upstream staging reads are I/O bound.
const clientConcurrency = 4

// Store is the persistence contract the engine depends on. Implemented by
// Repository; stubbed in tests.
type Store interface {
	ListClients(ctx context.Context) ([]Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	GetCostSettings(ctx context.Context, clientID uuid.UUID) (ClientCostSettings, error)
	UpsertCostSettings(ctx context.Context, s ClientCostSettings) error
	FetchDailyMetrics(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]DailyMetricRow, error)
	FetchCoverage(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]CoverageRecord, error)
	ListDailySummaries(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]DailyProfitSummary, error)
	UpsertDailySummaries(ctx context.Context, summaries []DailyProfitSummary) error
	ListMonthlyRollups(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]MonthlyRollup, error)
	UpsertMonthlyRollups(ctx context.Context, rollups []MonthlyRollup) error
}

// Service orchestrates the engine: resolve settings, compute daily summaries,
// guard writes, roll up months, serve chart series.
type Service struct {
	store           Store
	cache           *Cache
	logger          *slog.Logger
	maxLookbackDays int
	now             func() time.Time
}

// NewService wires the engine. cache may be nil (series are computed on every
// request); maxLookbackDays <= 0 disables the lookback clamp.
func NewService(store Store, cache *Cache, logger *slog.Logger, maxLookbackDays int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:           store,
		cache:           cache,
		logger:          logger,
		maxLookbackDays: maxLookbackDays,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

type clientOutcome struct {
	upserted   int
	suppressed int
	months     int
}

// RunRollup executes one batch over the requested window. Per-client failures
// are isolated into the report; the returned error is non-nil only when the
// run could not start at all (bad window, unresolvable scope).
func (s *Service) RunRollup(ctx context.Context, req RunRequest) (RunReport, error) {
	req.Start, req.End = shared.Day(req.Start), shared.Day(req.End)
	if req.Start.After(req.End) {
		return RunReport{}, shared.ErrInvalidDateRange
	}

	clients, err := s.resolveScope(ctx, req.ClientID)
	if err != nil {
		return RunReport{}, err
	}

	report := RunReport{Ok: true, Errors: []RunError{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clientConcurrency)
	for _, client := range clients {
		client := client
		g.Go(func() error {
			outcome, err := s.runClient(gctx, client, req)
			mu.Lock()
			defer mu.Unlock()
			report.ClientsProcessed++
			if err != nil {
				report.Ok = false
				report.Errors = append(report.Errors, RunError{ClientID: client.ID, Error: err.Error()})
				s.logger.Error("client rollup failed",
					slog.String("client_id", client.ID.String()),
					slog.Any("error", err))
				return nil
			}
			report.RowsUpserted += outcome.upserted
			report.RowsSuppressed += outcome.suppressed
			report.MonthsRolledUp += outcome.months
			return nil
		})
	}
	_ = g.Wait()

	if report.RowsUpserted > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("cache bump", slog.Any("error", err))
		}
	}
	return report, nil
}

func (s *Service) resolveScope(ctx context.Context, clientID uuid.UUID) ([]Client, error) {
	if clientID != uuid.Nil {
		client, err := s.store.GetClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return []Client{client}, nil
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (s *Service) runClient(ctx context.Context, client Client, req RunRequest) (clientOutcome, error) {
	today := shared.Day(s.now())
	start := ClampWindowStart(req.Start, today, s.maxLookbackDays, req.Force)
	if start.After(req.End) {
		s.logger.Info("window fully behind lookback cutoff, nothing to do",
			slog.String("client_id", client.ID.String()))
		return clientOutcome{}, nil
	}
	end := req.End

	profile := s.loadProfile(ctx, client.ID)

	var (
		metricRows []DailyMetricRow
		coverage   []CoverageRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metricRows, err = s.store.FetchDailyMetrics(gctx, client.ID, start, end)
		if err != nil {
			return fmt.Errorf("fetch metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		coverage, err = s.store.FetchCoverage(gctx, client.ID, start, end)
		if err != nil {
			return fmt.Errorf("fetch coverage: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return clientOutcome{}, err
	}

	rowsByDay := make(map[time.Time][]DailyMetricRow)
	for _, row := range metricRows {
		rowsByDay[row.Date] = append(rowsByDay[row.Date], row)
	}
	covByDay := make(map[time.Time]CoverageRecord, len(coverage))
	for _, c := range coverage {
		covByDay[c.Date] = c
	}

	existingRows, err := s.store.ListDailySummaries(ctx, client.ID, start, end)
	if err != nil {
		return clientOutcome{}, fmt.Errorf("read existing summaries: %w", err)
	}
	existing := make(map[time.Time]DailyProfitSummary, len(existingRows))
	for _, row := range existingRows {
		existing[row.Date] = row
	}

	var outcome clientOutcome
	var commits []DailyProfitSummary
	shared.EachDay(start, end, func(day time.Time) {
		rows, hasRows := rowsByDay[day]
		if !hasRows && !req.FillZeros {
			return
		}
		var cov *CoverageRecord
		if c, ok := covByDay[day]; ok {
			cov = &c
		}
		proposed := ComputeDaily(client.ID, day, AggregateDay(day, rows), profile, cov)

		var prior *DailyProfitSummary
		if p, ok := existing[day]; ok {
			prior = &p
		}
		switch DecideWrite(proposed, prior, req.Force) {
		case StateCommitted:
			commits = append(commits, proposed.Rounded())
		case StateSuppressed:
			outcome.suppressed++
			s.logger.Debug("suppressed zero overwrite",
				slog.String("client_id", client.ID.String()),
				slog.Time("date", day))
		}
	})

	if err := s.store.UpsertDailySummaries(ctx, commits); err != nil {
		return clientOutcome{}, fmt.Errorf("upsert daily summaries: %w", err)
	}
	outcome.upserted = len(commits)

	months, err := s.rollupMonths(ctx, client.ID, start, end)
	if err != nil {
		return clientOutcome{}, err
	}
	outcome.months = months

	s.logger.Info("client rollup complete",
		slog.String("client_id", client.ID.String()),
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Int("upserted", outcome.upserted),
		slog.Int("suppressed", outcome.suppressed),
		slog.Int("months", months))
	return outcome, nil
}

// loadProfile resolves the client's cost assumptions, degrading to the
// all-default profile instead of blocking revenue reporting.
func (s *Service) loadProfile(ctx context.Context, clientID uuid.UUID) CostProfile {
	settings, err := s.store.GetCostSettings(ctx, clientID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("cost settings unavailable, using defaults",
				slog.String("client_id", clientID.String()),
				slog.Any("error", err))
		}
		return DefaultCostProfile()
	}
	return Resolve(settings)
}

// rollupMonths recomputes every calendar month the window touches from the
// persisted daily rows, so a rerun over any sub-window converges to the same
// monthly totals.
func (s *Service) rollupMonths(ctx context.Context, clientID uuid.UUID, start, end time.Time) (int, error) {
	monthsStart := shared.MonthStart(start)
	monthsEnd := shared.MonthEnd(end)

	dailies, err := s.store.ListDailySummaries(ctx, clientID, monthsStart, monthsEnd)
	if err != nil {
		return 0, fmt.Errorf("read summaries for rollup: %w", err)
	}
	rows, err := s.store.FetchDailyMetrics(ctx, clientID, monthsStart, monthsEnd)
	if err != nil {
		return 0, fmt.Errorf("fetch metrics for rollup: %w", err)
	}

	rollups := BuildMonthlyRollups(clientID, dailies, rows)
	if err := s.store.UpsertMonthlyRollups(ctx, rollups); err != nil {
		return 0, fmt.Errorf("upsert monthly rollups: %w", err)
	}
	return len(rollups), nil
}

// DailySummaries returns persisted daily rows for a chart window.
func (s *Service) DailySummaries(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]DailyProfitSummary, error) {
	start, end = shared.Day(start), shared.Day(end)
	if start.After(end) {
		return nil, shared.ErrInvalidDateRange
	}
	return s.store.ListDailySummaries(ctx, clientID, start, end)
}

// MonthlyRollups returns persisted rollups for a window.
func (s *Service) MonthlyRollups(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]MonthlyRollup, error) {
	start, end = shared.Day(start), shared.Day(end)
	if start.After(end) {
		return nil, shared.ErrInvalidDateRange
	}
	return s.store.ListMonthlyRollups(ctx, clientID, start, end)
}

// AttributionSeries serves the forward-windowed comparison for a visible
// range, reading window−1 extra days past the end so the final days still see
// their full forward sums. Served through the versioned cache when available.
func (s *Service) AttributionSeries(ctx context.Context, clientID uuid.UUID, start, end time.Time, window int) ([]AttributionWindowPoint, error) {
	start, end = shared.Day(start), shared.Day(end)
	if start.After(end) {
		return nil, shared.ErrInvalidDateRange
	}
	if window < 1 {
		window = 1
	}

	loader := func(ctx context.Context) (interface{}, error) {
		return s.buildAttributionSeries(ctx, clientID, start, end, window)
	}

	key, err := s.cache.BuildKey(ctx, "profit", "attribution",
		clientID.String(),
		start.Format(shared.DateLayout),
		end.Format(shared.DateLayout),
		strconv.Itoa(window))
	if err != nil {
		return nil, err
	}
	var points []AttributionWindowPoint
	if err := s.cache.FetchJSON(ctx, key, &points, loader); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Service) buildAttributionSeries(ctx context.Context, clientID uuid.UUID, start, end time.Time, window int) ([]AttributionWindowPoint, error) {
	extEnd := end.AddDate(0, 0, window-1)

	var (
		summaries []DailyProfitSummary
		rows      []DailyMetricRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaries, err = s.store.ListDailySummaries(gctx, clientID, start, extEnd)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.store.FetchDailyMetrics(gctx, clientID, start, extEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]DailyProfitSummary, len(summaries))
	for _, sum := range summaries {
		byDay[sum.Date] = sum
	}
	rowsByDay := make(map[time.Time][]DailyMetricRow)
	for _, row := range rows {
		rowsByDay[row.Date] = append(rowsByDay[row.Date], row)
	}

	series := make([]AttributionPoint, 0, shared.DaysBetween(start, extEnd))
	shared.EachDay(start, extEnd, func(day time.Time) {
		point := AttributionPoint{Date: day}
		if sum, ok := byDay[day]; ok {
			point.Spend = sum.PaidSpend
			point.TotalCost = sum.TotalCost()
			point.Revenue = sum.Revenue
		}
		point.TrackedRevenue = AggregateDay(day, rowsByDay[day]).TrackedRevenue
		series = append(series, point)
	})

	return ForwardWindows(series, window, shared.DaysBetween(start, end)), nil
}

// CostSettings returns the stored cost assumptions for a client. ErrNotFound
// when the client never configured any.
func (s *Service) CostSettings(ctx context.Context, clientID uuid.UUID) (ClientCostSettings, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return ClientCostSettings{}, err
	}
	return s.store.GetCostSettings(ctx, clientID)
}

// SaveCostSettings stores a client's cost assumptions and invalidates cached
// series; summaries keep their previous values until the next run.
func (s *Service) SaveCostSettings(ctx context.Context, settings ClientCostSettings) error {
	if _, err := s.store.GetClient(ctx, settings.ClientID); err != nil {
		return err
	}
	if err := s.store.UpsertCostSettings(ctx, settings); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump", slog.Any("error", err))
	}
	return nil
}
