package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/tidemark-analytics/tidemark/internal/jobs"
	"github.com/tidemark-analytics/tidemark/internal/profit"
	"github.com/tidemark-analytics/tidemark/internal/shared"
)

// ProfitRollupJob runs the profitability engine for queued rollup tasks.
type ProfitRollupJob struct {
	Engine  *profit.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewProfitRollupJob wires dependencies for the rollup handler.
func NewProfitRollupJob(engine *profit.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProfitRollupJob {
	return &ProfitRollupJob{
		Engine:  engine,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskProfitRollup tasks.
func (j *ProfitRollupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("profit rollup: handler not configured")
	}
	var payload ProfitRollupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	req, err := j.buildRequest(payload)
	if err != nil {
		j.logger().Error("invalid rollup payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskProfitRollup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Time("start", req.Start),
		slog.Time("end", req.End),
		slog.Bool("fill_zeros", req.FillZeros),
		slog.Bool("force", req.Force))
	logger.Info("starting profitability rollup")

	report, err := j.Engine.RunRollup(ctx, req)
	if err != nil {
		resultErr = err
		logger.Error("rollup failed to start", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddRows(TaskProfitRollup, "daily", report.RowsUpserted)
	j.metrics().AddRows(TaskProfitRollup, "monthly", report.MonthsRolledUp)
	for _, clientErr := range report.Errors {
		logger.Error("client failed during rollup",
			slog.String("client_id", clientErr.ClientID.String()),
			slog.String("error", clientErr.Error))
	}
	logger.Info("completed profitability rollup",
		slog.Int("clients", report.ClientsProcessed),
		slog.Int("upserted", report.RowsUpserted),
		slog.Int("suppressed", report.RowsSuppressed),
		slog.Int("months", report.MonthsRolledUp),
		slog.Int("failed_clients", len(report.Errors)))

	if !report.Ok {
		// Partial failure: retry the task so transiently failing tenants heal;
		// idempotent upserts make the rerun safe for the tenants that passed.
		resultErr = errors.New("profit rollup: one or more clients failed")
	}
	return resultErr
}

func (j *ProfitRollupJob) buildRequest(payload ProfitRollupPayload) (profit.RunRequest, error) {
	req := profit.RunRequest{FillZeros: payload.FillZeros, Force: payload.Force}

	if payload.ClientID != "" {
		id, err := uuid.Parse(payload.ClientID)
		if err != nil {
			return profit.RunRequest{}, err
		}
		req.ClientID = id
	}

	if payload.Start == "" || payload.End == "" {
		// Cron mode: trailing window ending yesterday, zero-filled so the
		// charts never show holes.
		days := payload.WindowDays
		if days <= 0 {
			days = 7
		}
		yesterday := shared.Day(j.now()).AddDate(0, 0, -1)
		req.Start = yesterday.AddDate(0, 0, -(days - 1))
		req.End = yesterday
		req.FillZeros = true
		return req, nil
	}

	var err error
	if req.Start, err = shared.ParseDate(payload.Start); err != nil {
		return profit.RunRequest{}, err
	}
	if req.End, err = shared.ParseDate(payload.End); err != nil {
		return profit.RunRequest{}, err
	}
	return req, nil
}

func (j *ProfitRollupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ProfitRollupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *ProfitRollupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
