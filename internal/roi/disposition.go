// Package roi вычисляет, что сделать с активной инвестицией при очередном начислении доходности.
//
// Пакет не обращается к хранилищу: решение принимается только по данным инвестиции,
// тарифу и текущему времени.
package roi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/roicredit/internal/model"
)

const millisPerDay = int64(24 * time.Hour / time.Millisecond)

// Kind вариант решения по инвестиции.
type Kind string

const (
	KindSkip     Kind = "skip"
	KindAccrue   Kind = "accrue"
	KindComplete Kind = "complete"
)

// Policy определяет правило расчёта суммы начисления.
type Policy int

const (
	// PolicyDaily начисляет доход ровно за один день и не чаще раза в календарные сутки UTC.
	PolicyDaily Policy = iota
	// PolicyCatchUp доводит начисленную сумму до положенной по графику на текущий момент.
	PolicyCatchUp
)

func (p Policy) String() string {
	switch p {
	case PolicyDaily:
		return "daily"
	case PolicyCatchUp:
		return "catch_up"
	default:
		return "unknown"
	}
}

// Причины пропуска.
const (
	ReasonNotActive       = "not_active"
	ReasonCreditedToday   = "credited_today"
	ReasonNotStarted      = "not_started"
	ReasonFullyCredited   = "fully_credited"
	ReasonNothingToCredit = "nothing_to_credit"
)

// Disposition результат расчёта: пропуск, дневное начисление или завершение.
type Disposition struct {
	Kind   Kind
	Amount decimal.Decimal
	Bonus  decimal.Decimal
	Reason string
}

// Apply возвращает инвестицию с учётом решения. Для пропуска инвестиция не меняется.
func (d Disposition) Apply(inv model.Investment) model.Investment {
	switch d.Kind {
	case KindAccrue:
		inv.CreditedROI = inv.CreditedROI.Add(d.Amount)
	case KindComplete:
		inv.CreditedROI = inv.CreditedROI.Add(d.Amount)
		inv.CreditedBonus = inv.CreditedBonus.Add(d.Bonus)
		inv.Status = model.InvestmentStatusCompleted
	}
	return inv
}

// Credit возвращает общую сумму, зачисляемую пользователю.
func (d Disposition) Credit() decimal.Decimal {
	return d.Amount.Add(d.Bonus)
}

func skip(reason string) Disposition {
	return Disposition{Kind: KindSkip, Amount: decimal.Zero, Bonus: decimal.Zero, Reason: reason}
}

// ComputeCreditDisposition определяет решение по инвестиции на момент now.
func ComputeCreditDisposition(inv model.Investment, p model.Plan, now time.Time, policy Policy) Disposition {
	if inv.Status != model.InvestmentStatusActive {
		return skip(ReasonNotActive)
	}

	if policy == PolicyDaily && SameUTCDay(inv.UpdatedAt, now) {
		return skip(ReasonCreditedToday)
	}

	elapsed := ElapsedDays(inv.EffectiveStart(), now)
	if elapsed < 0 {
		return skip(ReasonNotStarted)
	}

	total := p.TotalReturn(inv.Capital)

	if elapsed >= int64(p.DurationDays) {
		return Disposition{
			Kind:   KindComplete,
			Amount: nonNegative(total.Sub(inv.CreditedROI)),
			Bonus:  nonNegative(p.CompletionBonus(inv.Capital).Sub(inv.CreditedBonus)),
		}
	}

	remaining := total.Sub(inv.CreditedROI)
	if !remaining.IsPositive() {
		return skip(ReasonFullyCredited)
	}

	var amount decimal.Decimal
	switch policy {
	case PolicyCatchUp:
		due := p.DailyReturn(inv.Capital).Mul(decimal.NewFromInt(elapsed))
		amount = due.Sub(inv.CreditedROI)
	default:
		amount = p.DailyReturn(inv.Capital)
	}

	if !amount.IsPositive() {
		return skip(ReasonNothingToCredit)
	}

	return Disposition{
		Kind:   KindAccrue,
		Amount: decimal.Min(amount, remaining),
		Bonus:  decimal.Zero,
	}
}

// ElapsedDays возвращает число полных суток между start и now (округление вниз).
func ElapsedDays(start, now time.Time) int64 {
	diff := now.Sub(start).Milliseconds()
	days := diff / millisPerDay
	if diff%millisPerDay != 0 && diff < 0 {
		days--
	}
	return days
}

// SameUTCDay сообщает, приходятся ли a и b на одни календарные сутки UTC.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// StartOfUTCDay возвращает полночь UTC суток, в которые попадает t.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
