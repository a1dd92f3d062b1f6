// Package main запускает сервис ежедневного начисления доходности по инвестициям.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/roicredit/internal/config"
	"github.com/mmeshcher/roicredit/internal/handler"
	"github.com/mmeshcher/roicredit/internal/metrics"
	"github.com/mmeshcher/roicredit/internal/middleware"
	"github.com/mmeshcher/roicredit/internal/notify"
	"github.com/mmeshcher/roicredit/internal/plan"
	"github.com/mmeshcher/roicredit/internal/repository"
	"github.com/mmeshcher/roicredit/internal/service"
	"github.com/mmeshcher/roicredit/internal/validation"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if err := plan.Validate(); err != nil {
		sugar.Fatalw("plan table error", "error", err.Error())
	}
	for _, p := range plan.All() {
		sugar.Infow("plan loaded",
			"plan", p.Name,
			"duration_days", p.DurationDays,
			"daily_rate", p.DailyRate.String(),
			"completion_bonus_rate", p.CompletionBonusRate.String(),
		)
	}
	if !validation.IsValidCronSpec(cfg.CreditSchedule) {
		sugar.Fatalw("configuration error", "error", "invalid credit schedule", "schedule", cfg.CreditSchedule)
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var sender notify.Sender = notify.NopSender{}
	if cfg.MailjetConfigured() {
		sender = notify.NewMailjetClient(cfg.MailjetBaseURL, cfg.MailjetAPIKey, cfg.MailjetSecretKey, cfg.MailFromEmail, cfg.MailFromName)
	} else {
		sugar.Infow("email notifications disabled", "email_enabled", cfg.EmailEnabled)
	}
	dispatcher := notify.NewDispatcher(sender, 0, logger.Named("notify"), m)

	svc := service.NewService(repo, dispatcher,
		service.WithLogger(logger.Named("credit")),
		service.WithMetrics(m),
	)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AdminToken)
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{DisableCompression: true})
	h := handler.NewHandler(svc, logger, authMiddleware, metricsHandler)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Очередь уведомлений
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})

	// Ежедневный проход начислений
	g.Go(func() error {
		return svc.StartDailyCredits(ctx, cfg.CreditSchedule)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting roi credit server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
