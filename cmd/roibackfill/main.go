// Package main выполняет разовый догоняющий проход начислений за пропущенные дни.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mmeshcher/roicredit/internal/config"
	"github.com/mmeshcher/roicredit/internal/notify"
	"github.com/mmeshcher/roicredit/internal/plan"
	"github.com/mmeshcher/roicredit/internal/repository"
	"github.com/mmeshcher/roicredit/internal/service"
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

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var sender notify.Sender = notify.NopSender{}
	if cfg.MailjetConfigured() {
		sender = notify.NewMailjetClient(cfg.MailjetBaseURL, cfg.MailjetAPIKey, cfg.MailjetSecretKey, cfg.MailFromEmail, cfg.MailFromName)
	}
	dispatcher := notify.NewDispatcher(sender, 0, logger.Named("notify"), nil, notify.WithBlockingPublish())

	svc := service.NewService(repo, dispatcher, service.WithLogger(logger.Named("backfill")))
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatcher.Run(dispatchCtx)
		close(done)
	}()

	summary, err := svc.RunBackfill(ctx)

	// Дожидаемся отправки поставленных в очередь писем.
	cancelDispatch()
	<-done

	if err != nil {
		sugar.Fatalw("backfill failed", "error", err)
	}

	sugar.Infow("backfill finished",
		"total", summary.TotalInvestments,
		"processed", summary.Processed,
		"completed", summary.Completed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"credited", summary.TotalCredited.String(),
	)
}
