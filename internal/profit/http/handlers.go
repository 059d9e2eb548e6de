// Package profithttp exposes the profitability engine over HTTP: the run
// trigger used by the scheduler, chart feeds for the dashboard, and the cost
// settings store.
package profithttp

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tidemark-analytics/tidemark/internal/platform/httpx"
	"github.com/tidemark-analytics/tidemark/internal/profit"
	"github.com/tidemark-analytics/tidemark/internal/shared"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultAttributionWindow = 7
	maxAttributionWindow     = 28
)

// EngineService is the engine contract consumed by the handler.
type EngineService interface {
	RunRollup(ctx context.Context, req profit.RunRequest) (profit.RunReport, error)
	DailySummaries(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]profit.DailyProfitSummary, error)
	MonthlyRollups(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]profit.MonthlyRollup, error)
	AttributionSeries(ctx context.Context, clientID uuid.UUID, start, end time.Time, window int) ([]profit.AttributionWindowPoint, error)
	CostSettings(ctx context.Context, clientID uuid.UUID) (profit.ClientCostSettings, error)
	SaveCostSettings(ctx context.Context, settings profit.ClientCostSettings) error
}

// Enqueuer submits engine runs to the background queue.
type Enqueuer interface {
	EnqueueProfitRollup(ctx context.Context, req profit.RunRequest) (string, error)
}

// Handler coordinates HTTP requests for the profitability engine.
type Handler struct {
	logger   *slog.Logger
	service  EngineService
	enqueuer Enqueuer
	validate *validator.Validate
	money    *message.Printer
}

// NewHandler constructs the engine HTTP handler. enqueuer may be nil when the
// process runs without a queue (enqueue endpoint then responds 503).
func NewHandler(logger *slog.Logger, service EngineService, enqueuer Enqueuer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		enqueuer: enqueuer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		money:    message.NewPrinter(language.English),
	}
}

type runPayload struct {
	ClientID  string `json:"client_id" validate:"omitempty,uuid4"`
	Start     string `json:"start" validate:"required,datetime=2006-01-02"`
	End       string `json:"end" validate:"required,datetime=2006-01-02"`
	FillZeros bool   `json:"fill_zeros"`
	Force     bool   `json:"force"`
}

func (h *Handler) decodeRun(r *http.Request) (profit.RunRequest, error) {
	var payload runPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return profit.RunRequest{}, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body")
	}
	if err := h.validate.Struct(payload); err != nil {
		return profit.RunRequest{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	}
	req := profit.RunRequest{FillZeros: payload.FillZeros, Force: payload.Force}
	if payload.ClientID != "" {
		id, err := uuid.Parse(payload.ClientID)
		if err != nil {
			return profit.RunRequest{}, fmt.Errorf("%w: invalid client_id", httpx.ErrValidation)
		}
		req.ClientID = id
	}
	var err error
	if req.Start, err = shared.ParseDate(payload.Start); err != nil {
		return profit.RunRequest{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	}
	if req.End, err = shared.ParseDate(payload.End); err != nil {
		return profit.RunRequest{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	}
	return req, nil
}

// handleRun executes the engine synchronously. Partial per-client failures
// still respond 200 with ok=false so the scheduler can tell "job ran, some
// tenants failed" apart from "job failed to start".
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRun(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.RunRollup(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background queue not configured")
		return
	}
	req, err := h.decodeRun(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.enqueuer.EnqueueProfitRollup(r.Context(), req)
	if err != nil {
		h.logger.Error("enqueue rollup", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	clientID, start, end, err := chartQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.DailySummaries(r.Context(), clientID, start, end)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []profit.DailyProfitSummary{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	clientID, start, end, err := chartQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rollups, err := h.service.MonthlyRollups(r.Context(), clientID, start, end)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		h.writeMonthlyCSV(w, rollups)
		return
	}
	if rollups == nil {
		rollups = []profit.MonthlyRollup{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rollups})
}

func (h *Handler) writeMonthlyCSV(w http.ResponseWriter, rollups []profit.MonthlyRollup) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="monthly_rollup.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"month", "revenue", "orders", "units", "meta_spend", "google_spend",
		"total_ad_spend", "true_roas", "aov", "cpo", "contribution_profit",
	})
	for _, m := range rollups {
		_ = cw.Write([]string{
			m.Month.Format("2006-01"),
			h.money.Sprintf("%.2f", m.Revenue),
			strconv.FormatInt(m.Orders, 10),
			strconv.FormatInt(m.Units, 10),
			h.money.Sprintf("%.2f", m.MetaSpend),
			h.money.Sprintf("%.2f", m.GoogleSpend),
			h.money.Sprintf("%.2f", m.TotalAdSpend),
			strconv.FormatFloat(m.TrueROAS, 'f', 4, 64),
			h.money.Sprintf("%.2f", m.AOV),
			h.money.Sprintf("%.2f", m.CPO),
			h.money.Sprintf("%.2f", m.ContributionProfit),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleAttribution(w http.ResponseWriter, r *http.Request) {
	clientID, start, end, err := chartQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	window := defaultAttributionWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err = strconv.Atoi(raw)
		if err != nil || window < 1 || window > maxAttributionWindow {
			httpx.RespondError(w, fmt.Errorf("%w: window must be 1..%d", httpx.ErrValidation, maxAttributionWindow))
			return
		}
	}
	points, err := h.service.AttributionSeries(r.Context(), clientID, start, end, window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if points == nil {
		points = []profit.AttributionWindowPoint{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"window": window, "points": points})
}

func chartQuery(r *http.Request) (uuid.UUID, time.Time, time.Time, error) {
	q := r.URL.Query()
	clientID, err := uuid.Parse(q.Get("client_id"))
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, fmt.Errorf("%w: client_id must be a UUID", httpx.ErrValidation)
	}
	start, err := shared.ParseDate(q.Get("start"))
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	}
	end, err := shared.ParseDate(q.Get("end"))
	if err != nil {
		return uuid.Nil, time.Time{}, time.Time{}, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error())
	}
	return clientID, start, end, nil
}

type settingsPayload struct {
	DefaultGrossMarginPct   *float64 `json:"default_gross_margin_pct" validate:"omitempty,gte=0,lte=100"`
	AvgCogsPerUnit          *float64 `json:"avg_cogs_per_unit" validate:"omitempty,gte=0"`
	ProcessingFeePct        *float64 `json:"processing_fee_pct" validate:"omitempty,gte=0,lte=100"`
	ProcessingFeeFixed      *float64 `json:"processing_fee_fixed" validate:"omitempty,gte=0"`
	PickPackPerOrder        *float64 `json:"pick_pack_per_order" validate:"omitempty,gte=0"`
	ShippingSubsidyPerOrder *float64 `json:"shipping_subsidy_per_order" validate:"omitempty,gte=0"`
	MaterialsPerOrder       *float64 `json:"materials_per_order" validate:"omitempty,gte=0"`
	OtherVariablePctRevenue *float64 `json:"other_variable_pct_revenue" validate:"omitempty,gte=0,lte=100"`
	OtherFixedPerDay        *float64 `json:"other_fixed_per_day" validate:"omitempty,gte=0"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathClientID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	settings, err := h.service.CostSettings(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// No row yet is a valid state: respond with the empty shape.
			httpx.JSON(w, http.StatusOK, settingsResponse(profit.ClientCostSettings{ClientID: clientID}))
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settingsResponse(settings))
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathClientID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload settingsPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	settings := profit.ClientCostSettings{
		ClientID:                clientID,
		DefaultGrossMarginPct:   payload.DefaultGrossMarginPct,
		AvgCogsPerUnit:          payload.AvgCogsPerUnit,
		ProcessingFeePct:        payload.ProcessingFeePct,
		ProcessingFeeFixed:      payload.ProcessingFeeFixed,
		PickPackPerOrder:        payload.PickPackPerOrder,
		ShippingSubsidyPerOrder: payload.ShippingSubsidyPerOrder,
		MaterialsPerOrder:       payload.MaterialsPerOrder,
		OtherVariablePctRevenue: payload.OtherVariablePctRevenue,
		OtherFixedPerDay:        payload.OtherFixedPerDay,
	}
	if err := h.service.SaveCostSettings(r.Context(), settings); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settingsResponse(settings))
}

func settingsResponse(s profit.ClientCostSettings) map[string]any {
	resolved := profit.Resolve(s)
	return map[string]any{
		"client_id": s.ClientID,
		"settings": settingsPayload{
			DefaultGrossMarginPct:   s.DefaultGrossMarginPct,
			AvgCogsPerUnit:          s.AvgCogsPerUnit,
			ProcessingFeePct:        s.ProcessingFeePct,
			ProcessingFeeFixed:      s.ProcessingFeeFixed,
			PickPackPerOrder:        s.PickPackPerOrder,
			ShippingSubsidyPerOrder: s.ShippingSubsidyPerOrder,
			MaterialsPerOrder:       s.MaterialsPerOrder,
			OtherVariablePctRevenue: s.OtherVariablePctRevenue,
			OtherFixedPerDay:        s.OtherFixedPerDay,
		},
		"resolved": resolved,
	}
}

func pathClientID(r *http.Request) (uuid.UUID, error) {
	raw := pathParam(r, "clientID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: clientID must be a UUID", httpx.ErrValidation)
	}
	return id, nil
}
