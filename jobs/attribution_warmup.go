package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tidemark-analytics/tidemark/internal/jobs"
	"github.com/tidemark-analytics/tidemark/internal/profit"
	"github.com/tidemark-analytics/tidemark/internal/shared"
)

var defaultWarmupWindows = []int{1, 7, 14}

// AttributionWarmupJob pre-populates attribution series caches for active
// clients so the first dashboard load after the nightly rollup is warm.
type AttributionWarmupJob struct {
	Engine  *profit.Service
	Store   profit.Store
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAttributionWarmupJob wires dependencies for the warmup handler.
func NewAttributionWarmupJob(engine *profit.Service, store profit.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *AttributionWarmupJob {
	return &AttributionWarmupJob{
		Engine:  engine,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAttributionWarmup tasks.
func (j *AttributionWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil || j.Store == nil {
		return errors.New("attribution warmup: handler not configured")
	}
	var payload AttributionWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RangeDays <= 0 {
		payload.RangeDays = 30
	}
	windows := payload.Windows
	if len(windows) == 0 {
		windows = defaultWarmupWindows
	}

	tracker := j.metrics().Track(TaskAttributionWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("range_days", payload.RangeDays))
	logger.Info("starting attribution warmup")

	clients, err := j.Store.ListClients(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list clients", slog.Any("error", err))
		return resultErr
	}

	end := shared.Day(j.now()).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(payload.RangeDays - 1))
	warmed := 0
	for _, client := range clients {
		// Bound each client so one huge tenant cannot stall the whole warmup.
		clientCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		for _, window := range windows {
			if _, err := j.Engine.AttributionSeries(clientCtx, client.ID, start, end, window); err != nil {
				cancel()
				resultErr = err
				logger.Error("warm client",
					slog.String("client_id", client.ID.String()),
					slog.Int("window", window),
					slog.Any("error", err))
				return resultErr
			}
		}
		cancel()
		warmed++
	}

	logger.Info("completed attribution warmup", slog.Int("clients", warmed))
	return resultErr
}

func (j *AttributionWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *AttributionWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *AttributionWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
