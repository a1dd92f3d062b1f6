package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule ежедневно в 00:00:00 UTC.
const DefaultSchedule = "0 0 0 * * *"

// StartDailyCredits запускает проходы начислений по расписанию schedule (cron с секундами, UTC)
// и блокируется до отмены ctx. Пропущенные, пока процесс не работал, запуски не догоняются.
func (s *Service) StartDailyCredits(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	logger := cronLogger{log: s.logger.Named("cron")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)

	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunCreditPass(ctx, TriggerCron); err != nil {
			s.logger.Error("scheduled credit pass error", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	c.Start()
	s.logger.Info("daily credit schedule started", zap.String("schedule", schedule))

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("daily credit schedule stopped")

	return nil
}

// cronLogger адаптирует zap к интерфейсу cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
