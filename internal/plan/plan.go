// Package plan содержит статическую таблицу инвестиционных тарифов.
package plan

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/roicredit/internal/model"
	"github.com/mmeshcher/roicredit/internal/validation"
)

var plans = map[string]model.Plan{
	"3-Day Plan": {
		Name:                "3-Day Plan",
		DurationDays:        3,
		DailyRate:           decimal.RequireFromString("0.10"),
		CompletionBonusRate: decimal.RequireFromString("0.05"),
	},
	"7-Day Plan": {
		Name:                "7-Day Plan",
		DurationDays:        7,
		DailyRate:           decimal.RequireFromString("0.05"),
		CompletionBonusRate: decimal.RequireFromString("0.07"),
	},
	"14-Day Plan": {
		Name:                "14-Day Plan",
		DurationDays:        14,
		DailyRate:           decimal.RequireFromString("0.035"),
		CompletionBonusRate: decimal.RequireFromString("0.10"),
	},
	"30-Day Plan": {
		Name:                "30-Day Plan",
		DurationDays:        30,
		DailyRate:           decimal.RequireFromString("0.025"),
		CompletionBonusRate: decimal.RequireFromString("0.15"),
	},
}

// Lookup возвращает тариф по имени.
func Lookup(name string) (model.Plan, bool) {
	p, ok := plans[name]
	return p, ok
}

// All возвращает все тарифы, упорядоченные по сроку.
func All() []model.Plan {
	res := make([]model.Plan, 0, len(plans))
	for _, p := range plans {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].DurationDays < res[j].DurationDays
	})
	return res
}

// Validate проверяет всю таблицу тарифов.
func Validate() error {
	for name, p := range plans {
		if name != p.Name {
			return fmt.Errorf("plan key %q does not match name %q", name, p.Name)
		}
		if err := validation.ValidatePlan(p); err != nil {
			return err
		}
	}
	return nil
}
