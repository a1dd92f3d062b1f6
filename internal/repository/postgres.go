// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/roicredit/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrCreditConflict возвращается, если инвестиция изменилась с момента чтения
	// (её уже начислил другой запуск или она перестала быть активной).
	ErrCreditConflict = errors.New("investment changed concurrently")
)

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, delays: retryDelays}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Ретраим конфликты сериализации и взаимоблокировки.
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	// Ошибки сети, которые pgconn не классифицирует
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// ListActiveInvestments возвращает все инвестиции в статусе Active.
func (r *PostgresRepository) ListActiveInvestments(ctx context.Context) ([]model.Investment, error) {
	var res []model.Investment

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, idnum, plan, capital, status, credited_roi, credited_bonus, start_date, date, updated_at
			 FROM investments
			 WHERE status = $1`,
			string(model.InvestmentStatusActive),
		)
		if err != nil {
			return fmt.Errorf("select active investments: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var (
				inv    model.Investment
				status string
			)
			if err := rows.Scan(
				&inv.ID,
				&inv.OwnerID,
				&inv.Plan,
				&inv.Capital,
				&status,
				&inv.CreditedROI,
				&inv.CreditedBonus,
				&inv.StartDate,
				&inv.CreatedAt,
				&inv.UpdatedAt,
			); err != nil {
				return fmt.Errorf("scan investment: %w", err)
			}
			inv.Status = model.InvestmentStatus(status)
			res = append(res, inv)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// CreditRequest описывает одно начисление по инвестиции.
type CreditRequest struct {
	InvestmentID uuid.UUID
	OwnerID      string
	// PrevCreditedROI значение credited_roi, прочитанное при сканировании.
	PrevCreditedROI  decimal.Decimal
	NewCreditedROI   decimal.Decimal
	NewCreditedBonus decimal.Decimal
	NewStatus        model.InvestmentStatus
	Amount           decimal.Decimal
	Bonus            decimal.Decimal
	// NotUpdatedSince, если задано, запрещает начисление по инвестиции,
	// изменённой в этот момент или позже.
	NotUpdatedSince *time.Time
	Now             time.Time
}

// CreditResult содержит состояние счёта пользователя после начисления.
type CreditResult struct {
	User model.User
}

// ApplyCredit в одной транзакции обновляет инвестицию и атомарно увеличивает баланс владельца.
func (r *PostgresRepository) ApplyCredit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	var res *CreditResult

	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.applyCredit(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (r *PostgresRepository) applyCredit(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Условие по credited_roi и updated_at работает как оптимистическая блокировка:
	// повторный или параллельный запуск не начислит ту же сумму дважды.
	cmdTag, err := tx.Exec(ctx,
		`UPDATE investments
		 SET credited_roi = $2, credited_bonus = $3, status = $4, updated_at = $5
		 WHERE id = $1
		   AND status = $6
		   AND credited_roi = $7
		   AND ($8::timestamptz IS NULL OR updated_at < $8::timestamptz)`,
		req.InvestmentID,
		req.NewCreditedROI,
		req.NewCreditedBonus,
		string(req.NewStatus),
		req.Now,
		string(model.InvestmentStatusActive),
		req.PrevCreditedROI,
		req.NotUpdatedSince,
	)
	if err != nil {
		return nil, fmt.Errorf("update investment: %w", err)
	}
	if cmdTag.RowsAffected() != 1 {
		return nil, ErrCreditConflict
	}

	var u model.User
	err = tx.QueryRow(ctx,
		`UPDATE users
		 SET balance = balance + $2, bonus = bonus + $3, updated_at = $4
		 WHERE idnum = $1
		 RETURNING idnum, email, name, balance, bonus, updated_at`,
		req.OwnerID, req.Amount, req.Bonus, req.Now,
	).Scan(&u.IDNum, &u.Email, &u.Name, &u.Balance, &u.Bonus, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.OwnerID)
		}
		return nil, fmt.Errorf("update user balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreditResult{User: u}, nil
}

// CreditRun описывает итог одного прохода начислений.
type CreditRun struct {
	ID               uuid.UUID
	Trigger          string
	Policy           string
	StartedAt        time.Time
	FinishedAt       time.Time
	TotalInvestments int
	Processed        int
	Completed        int
	Skipped          int
	Errors           int
	TotalCredited    decimal.Decimal
}

// SaveCreditRun сохраняет итог прохода начислений.
func (r *PostgresRepository) SaveCreditRun(ctx context.Context, run CreditRun) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO credit_runs
		 (id, trigger, policy, started_at, finished_at, total_investments, processed, completed, skipped, errors, total_credited)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Trigger, run.Policy, run.StartedAt, run.FinishedAt,
		run.TotalInvestments, run.Processed, run.Completed, run.Skipped, run.Errors, run.TotalCredited,
	)
	if err != nil {
		return fmt.Errorf("insert credit run: %w", err)
	}
	return nil
}

// GetLastCreditRun возвращает последний сохранённый проход начислений.
func (r *PostgresRepository) GetLastCreditRun(ctx context.Context) (*CreditRun, error) {
	var run CreditRun
	err := r.pool.QueryRow(ctx,
		`SELECT id, trigger, policy, started_at, finished_at, total_investments, processed, completed, skipped, errors, total_credited
		 FROM credit_runs
		 ORDER BY started_at DESC
		 LIMIT 1`,
	).Scan(
		&run.ID, &run.Trigger, &run.Policy, &run.StartedAt, &run.FinishedAt,
		&run.TotalInvestments, &run.Processed, &run.Completed, &run.Skipped, &run.Errors, &run.TotalCredited,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last credit run: %w", err)
	}
	return &run, nil
}
