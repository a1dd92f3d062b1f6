// Package service реализует проход начисления дневной доходности по активным инвестициям.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/roicredit/internal/clock"
	"github.com/mmeshcher/roicredit/internal/metrics"
	"github.com/mmeshcher/roicredit/internal/model"
	"github.com/mmeshcher/roicredit/internal/notify"
	"github.com/mmeshcher/roicredit/internal/plan"
	"github.com/mmeshcher/roicredit/internal/repository"
	"github.com/mmeshcher/roicredit/internal/roi"
)

// Источники запуска прохода.
const (
	TriggerCron     = "cron"
	TriggerManual   = "manual"
	TriggerBackfill = "backfill"
)

// ErrUnknownPlan возвращается для инвестиции с тарифом, отсутствующим в таблице.
var ErrUnknownPlan = errors.New("unknown plan")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	ListActiveInvestments(ctx context.Context) ([]model.Investment, error)
	ApplyCredit(ctx context.Context, req repository.CreditRequest) (*repository.CreditResult, error)
	SaveCreditRun(ctx context.Context, run repository.CreditRun) error
	GetLastCreditRun(ctx context.Context) (*repository.CreditRun, error)
}

// Notifier принимает письма о начислении после фиксации транзакции.
type Notifier interface {
	Publish(msg notify.Message) bool
}

// Summary итог одного прохода начислений.
type Summary struct {
	TotalInvestments int
	Processed        int
	Completed        int
	Skipped          int
	Errors           int
	TotalCredited    decimal.Decimal
}

// Service содержит бизнес-логику начисления доходности.
type Service struct {
	repo     Repository
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// mu исключает одновременные проходы (cron и ручной запуск).
	mu sync.Mutex
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService создаёт новый сервис с указанным репозиторием и очередью уведомлений.
func NewService(repo Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		clock:    clock.Real(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// LastRun возвращает итог последнего сохранённого прохода или nil, если проходов не было.
func (s *Service) LastRun(ctx context.Context) (*repository.CreditRun, error) {
	return s.repo.GetLastCreditRun(ctx)
}

// RunCreditPass выполняет один ежедневный проход начислений.
func (s *Service) RunCreditPass(ctx context.Context, trigger string) (Summary, error) {
	return s.run(ctx, trigger, roi.PolicyDaily)
}

// RunBackfill выполняет догоняющий проход: доначисляет пропущенные дни по графику тарифа.
func (s *Service) RunBackfill(ctx context.Context) (Summary, error) {
	return s.run(ctx, TriggerBackfill, roi.PolicyCatchUp)
}

func (s *Service) run(ctx context.Context, trigger string, policy roi.Policy) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.clock.Now()
	log := s.logger.With(
		zap.String("trigger", trigger),
		zap.String("policy", policy.String()),
	)
	log.Info("credit pass started")

	summary, err := s.processAll(ctx, log, policy, started)
	s.metrics.ObserveRun(trigger, s.clock.Now().Sub(started), err)
	if err != nil {
		log.Error("credit pass failed", zap.Error(err))
		return summary, err
	}

	log.Info("credit pass finished",
		zap.Int("total", summary.TotalInvestments),
		zap.Int("processed", summary.Processed),
		zap.Int("completed", summary.Completed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.String("credited", summary.TotalCredited.String()),
	)

	s.saveRun(ctx, log, trigger, policy, started, summary)

	return summary, nil
}

func (s *Service) processAll(ctx context.Context, log *zap.Logger, policy roi.Policy, now time.Time) (Summary, error) {
	summary := Summary{TotalCredited: decimal.Zero}

	investments, err := s.repo.ListActiveInvestments(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active investments: %w", err)
	}
	summary.TotalInvestments = len(investments)

	for _, inv := range investments {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		d, err := s.processInvestment(ctx, log, inv, policy, now)
		if err != nil {
			summary.Errors++
			s.metrics.IncCreditError(errorReason(err))
			log.Error("credit investment error",
				zap.Error(err),
				zap.String("investment_id", inv.ID.String()),
				zap.String("plan", inv.Plan),
				zap.String("user", inv.OwnerID),
			)
			continue
		}

		s.metrics.IncDisposition(string(d.Kind))

		switch d.Kind {
		case roi.KindSkip:
			summary.Skipped++
		case roi.KindAccrue:
			summary.Processed++
			summary.TotalCredited = summary.TotalCredited.Add(d.Credit())
		case roi.KindComplete:
			summary.Processed++
			summary.Completed++
			summary.TotalCredited = summary.TotalCredited.Add(d.Credit())
		}
	}

	credited, _ := summary.TotalCredited.Float64()
	s.metrics.AddCredited(credited)

	return summary, nil
}

func (s *Service) processInvestment(ctx context.Context, log *zap.Logger, inv model.Investment, policy roi.Policy, now time.Time) (roi.Disposition, error) {
	p, ok := plan.Lookup(inv.Plan)
	if !ok {
		return roi.Disposition{}, fmt.Errorf("%w: %q", ErrUnknownPlan, inv.Plan)
	}

	d := roi.ComputeCreditDisposition(inv, p, now, policy)
	if d.Kind == roi.KindSkip {
		return d, nil
	}

	after := d.Apply(inv)
	req := repository.CreditRequest{
		InvestmentID:     inv.ID,
		OwnerID:          inv.OwnerID,
		PrevCreditedROI:  inv.CreditedROI,
		NewCreditedROI:   after.CreditedROI,
		NewCreditedBonus: after.CreditedBonus,
		NewStatus:        after.Status,
		Amount:           d.Amount,
		Bonus:            d.Bonus,
		Now:              now,
	}
	if policy == roi.PolicyDaily {
		dayStart := roi.StartOfUTCDay(now)
		req.NotUpdatedSince = &dayStart
	}

	res, err := s.repo.ApplyCredit(ctx, req)
	if err != nil {
		if errors.Is(err, repository.ErrCreditConflict) {
			log.Warn("investment already credited concurrently",
				zap.String("investment_id", inv.ID.String()),
			)
			return roi.Disposition{Kind: roi.KindSkip, Reason: roi.ReasonCreditedToday}, nil
		}
		return roi.Disposition{}, err
	}

	if s.notifier != nil {
		s.notifier.Publish(notify.Message{
			RecipientEmail: res.User.Email,
			RecipientName:  res.User.Name,
			Amount:         d.Amount,
			Bonus:          d.Bonus,
			PlanName:       p.Name,
			NewBalance:     res.User.Balance,
			Completed:      d.Kind == roi.KindComplete,
		})
	}

	return d, nil
}

func (s *Service) saveRun(ctx context.Context, log *zap.Logger, trigger string, policy roi.Policy, started time.Time, summary Summary) {
	err := s.repo.SaveCreditRun(ctx, repository.CreditRun{
		ID:               uuid.New(),
		Trigger:          trigger,
		Policy:           policy.String(),
		StartedAt:        started,
		FinishedAt:       s.clock.Now(),
		TotalInvestments: summary.TotalInvestments,
		Processed:        summary.Processed,
		Completed:        summary.Completed,
		Skipped:          summary.Skipped,
		Errors:           summary.Errors,
		TotalCredited:    summary.TotalCredited,
	})
	if err != nil {
		log.Warn("save credit run error", zap.Error(err))
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownPlan):
		return "unknown_plan"
	case errors.Is(err, repository.ErrUserNotFound):
		return "user_not_found"
	default:
		return "db"
	}
}
