// Package jobs wires the background worker: task definitions, the asynq
// server/scheduler, and the handlers for the nightly profitability rollup and
// the attribution cache warmup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProfitRollup recomputes the profitability ledger over a window.
	TaskProfitRollup = "profit:rollup"
	// TaskAttributionWarmup pre-populates attribution series caches.
	TaskAttributionWarmup = "profit:attribution_warmup"
)

// ProfitRollupPayload scopes a queued engine run. Dates are YYYY-MM-DD; empty
// ClientID means all active clients. When Start/End are empty the handler
// derives the trailing window from WindowDays (nightly cron mode).
type ProfitRollupPayload struct {
	ClientID   string `json:"client_id,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	WindowDays int    `json:"window_days,omitempty"`
	FillZeros  bool   `json:"fill_zeros"`
	Force      bool   `json:"force"`
}

// NewProfitRollupTask constructs an asynq task for an engine run.
func NewProfitRollupTask(payload ProfitRollupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfitRollup, data), nil
}

// AttributionWarmupPayload scopes a cache warmup run.
type AttributionWarmupPayload struct {
	RangeDays int   `json:"range_days,omitempty"`
	Windows   []int `json:"windows,omitempty"`
}

// NewAttributionWarmupTask constructs an asynq task for a cache warmup.
func NewAttributionWarmupTask(payload AttributionWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAttributionWarmup, data), nil
}
