// Package handler содержит HTTP-обработчики API сервиса начисления доходности.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/roicredit/internal/middleware"
	"github.com/mmeshcher/roicredit/internal/repository"
	"github.com/mmeshcher/roicredit/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RunCreditPass(ctx context.Context, trigger string) (service.Summary, error)
	LastRun(ctx context.Context) (*repository.CreditRun, error)
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler может быть nil, тогда /metrics не регистрируется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, metricsHandler http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        metricsHandler,
	}
}

type creditResponse struct {
	Processed        int `json:"processed"`
	Completed        int `json:"completed"`
	TotalInvestments int `json:"totalInvestments"`
	Skipped          int `json:"skipped"`
	Errors           int `json:"errors"`
}

// CreditDailyROI синхронно выполняет проход начислений и возвращает агрегированные счётчики.
// Проход доводится до конца, даже если клиент отключился.
func (h *Handler) CreditDailyROI(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RunCreditPass(context.WithoutCancel(r.Context()), service.TriggerManual)
	if err != nil {
		h.logger.Error("manual credit pass error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := creditResponse{
		Processed:        summary.Processed,
		Completed:        summary.Completed,
		TotalInvestments: summary.TotalInvestments,
		Skipped:          summary.Skipped,
		Errors:           summary.Errors,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type runResponse struct {
	ID               string `json:"id"`
	Trigger          string `json:"trigger"`
	Policy           string `json:"policy"`
	StartedAt        string `json:"startedAt"`
	FinishedAt       string `json:"finishedAt"`
	TotalInvestments int    `json:"totalInvestments"`
	Processed        int    `json:"processed"`
	Completed        int    `json:"completed"`
	Skipped          int    `json:"skipped"`
	Errors           int    `json:"errors"`
	TotalCredited    string `json:"totalCredited"`
}

// LastRun возвращает итог последнего прохода начислений.
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.LastRun(r.Context())
	if err != nil {
		h.logger.Error("get last credit run error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if run == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := runResponse{
		ID:               run.ID.String(),
		Trigger:          run.Trigger,
		Policy:           run.Policy,
		StartedAt:        run.StartedAt.Format(time.RFC3339),
		FinishedAt:       run.FinishedAt.Format(time.RFC3339),
		TotalInvestments: run.TotalInvestments,
		Processed:        run.Processed,
		Completed:        run.Completed,
		Skipped:          run.Skipped,
		Errors:           run.Errors,
		TotalCredited:    run.TotalCredited.StringFixed(2),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// Health отвечает 200, если хранилище доступно.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
