// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/roicredit/internal/model"
)

// ErrInvalidPlan возвращается, если параметры тарифа не проходят проверку.
var ErrInvalidPlan = errors.New("invalid plan")

// ValidatePlan проверяет корректность параметров инвестиционного тарифа.
func ValidatePlan(p model.Plan) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPlan)
	}
	if p.DurationDays <= 0 {
		return fmt.Errorf("%w: %s: duration must be positive", ErrInvalidPlan, p.Name)
	}
	if !p.DailyRate.IsPositive() || p.DailyRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s: daily rate must be in (0, 1]", ErrInvalidPlan, p.Name)
	}
	if p.CompletionBonusRate.IsNegative() || p.CompletionBonusRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s: completion bonus rate must be in [0, 1]", ErrInvalidPlan, p.Name)
	}
	return nil
}

// IsValidCronSpec выполняет грубую проверку шестипольного cron-выражения (с секундами).
func IsValidCronSpec(schedule string) bool {
	fields := strings.Fields(schedule)
	if len(fields) == 1 && strings.HasPrefix(fields[0], "@") {
		return true
	}
	return len(fields) == 6
}
