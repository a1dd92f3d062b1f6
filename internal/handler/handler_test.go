package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/roicredit/internal/middleware"
	"github.com/mmeshcher/roicredit/internal/repository"
	"github.com/mmeshcher/roicredit/internal/service"
)

type stubService struct {
	summary service.Summary
	err     error

	lastRun    *repository.CreditRun
	lastRunErr error
	pingErr    error

	calls   int
	trigger string

	// run, если задан, заменяет ответ RunCreditPass.
	run func(ctx context.Context) (service.Summary, error)
}

func (s *stubService) RunCreditPass(ctx context.Context, trigger string) (service.Summary, error) {
	s.calls++
	s.trigger = trigger
	if s.run != nil {
		return s.run(ctx)
	}
	return s.summary, s.err
}

func (s *stubService) LastRun(ctx context.Context) (*repository.CreditRun, error) {
	return s.lastRun, s.lastRunErr
}

func (s *stubService) Ping(ctx context.Context) error {
	return s.pingErr
}

func newTestHandler(t *testing.T, svc Service, token string) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"}))

	auth := middleware.NewAuthMiddleware(token)
	metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{DisableCompression: true})

	return NewHandler(svc, logger, auth, metrics)
}

func TestCreditDailyROI_Success(t *testing.T) {
	svc := &stubService{
		summary: service.Summary{
			TotalInvestments: 5,
			Processed:        3,
			Completed:        1,
			Skipped:          1,
			Errors:           1,
		},
	}
	h := newTestHandler(t, svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, service.TriggerManual, svc.trigger)

	var body map[string]int
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, map[string]int{
		"processed":        3,
		"completed":        1,
		"totalInvestments": 5,
		"skipped":          1,
		"errors":           1,
	}, body)
}

func TestCreditDailyROI_Failure(t *testing.T) {
	svc := &stubService{err: errors.New("database is down")}
	h := newTestHandler(t, svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	rec := httptest.NewRecorder()

	h.CreditDailyROI(rec, req)

	if rec.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestCreditDailyROI_CompletesAfterClientDisconnect(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const investments = 5
	svc := &stubService{
		run: func(ctx context.Context) (service.Summary, error) {
			summary := service.Summary{TotalInvestments: investments}
			for i := 0; i < investments; i++ {
				if err := ctx.Err(); err != nil {
					return summary, err
				}
				summary.Processed++
				if i == 0 {
					cancel()
				}
			}
			return summary, nil
		},
	}
	h := newTestHandler(t, svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, investments, body["processed"])
}

func TestCreditDailyROI_RequiresToken(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, "admin-secret")
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Result().StatusCode)
	assert.Equal(t, 0, svc.calls)

	req = httptest.NewRequest(http.MethodPost, "/api/credit-daily-roi", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Result().StatusCode)
	assert.Equal(t, 1, svc.calls)
}

func TestCreditDailyROI_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &stubService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/credit-daily-roi", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Result().StatusCode)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{}, "admin-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Result().StatusCode)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newTestHandler(t, &stubService{pingErr: errors.New("connection refused")}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Result().StatusCode)
}

func TestLastRun_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/credit-runs/last", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Result().StatusCode)
}

func TestLastRun_JSONResponse(t *testing.T) {
	started := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc := &stubService{
		lastRun: &repository.CreditRun{
			ID:               uuid.New(),
			Trigger:          service.TriggerCron,
			Policy:           "daily",
			StartedAt:        started,
			FinishedAt:       started.Add(2 * time.Second),
			TotalInvestments: 4,
			Processed:        3,
			Completed:        1,
			TotalCredited:    decimal.RequireFromString("450"),
		},
	}
	h := newTestHandler(t, svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/credit-runs/last", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body runResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "cron", body.Trigger)
	assert.Equal(t, "2026-03-10T00:00:00Z", body.StartedAt)
	assert.Equal(t, "450.00", body.TotalCredited)
	assert.Equal(t, 3, body.Processed)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Result().StatusCode)
	assert.True(t, strings.Contains(rec.Body.String(), "test_total"))
}
