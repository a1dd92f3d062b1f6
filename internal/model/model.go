// Package model содержит доменные сущности сервиса начисления доходности.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan описывает инвестиционный тариф: срок, дневную ставку и бонус за завершение.
type Plan struct {
	Name                string
	DurationDays        int
	DailyRate           decimal.Decimal
	CompletionBonusRate decimal.Decimal
}

// DailyReturn возвращает доход за один день для указанного капитала.
func (p Plan) DailyReturn(capital decimal.Decimal) decimal.Decimal {
	return capital.Mul(p.DailyRate)
}

// TotalReturn возвращает полный доход за весь срок тарифа.
func (p Plan) TotalReturn(capital decimal.Decimal) decimal.Decimal {
	return p.DailyReturn(capital).Mul(decimal.NewFromInt(int64(p.DurationDays)))
}

// CompletionBonus возвращает разовый бонус, начисляемый при завершении инвестиции.
func (p Plan) CompletionBonus(capital decimal.Decimal) decimal.Decimal {
	return capital.Mul(p.CompletionBonusRate)
}

// InvestmentStatus описывает статус инвестиции.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "Active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
)

// Investment описывает инвестицию пользователя и накопленные по ней начисления.
type Investment struct {
	ID            uuid.UUID
	OwnerID       string
	Plan          string
	Capital       decimal.Decimal
	Status        InvestmentStatus
	CreditedROI   decimal.Decimal
	CreditedBonus decimal.Decimal
	StartDate     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveStart возвращает дату начала инвестиции, а при её отсутствии дату создания.
func (i Investment) EffectiveStart() time.Time {
	if i.StartDate != nil {
		return *i.StartDate
	}
	return i.CreatedAt
}

// User представляет счёт пользователя, на который зачисляется доходность.
type User struct {
	IDNum     string
	Email     string
	Name      string
	Balance   decimal.Decimal
	Bonus     decimal.Decimal
	UpdatedAt time.Time
}
