package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/roicredit/internal/model"
)

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name  string
		plan  model.Plan
		valid bool
	}{
		{
			name: "valid plan",
			plan: model.Plan{
				Name:                "3-Day Plan",
				DurationDays:        3,
				DailyRate:           decimal.RequireFromString("0.10"),
				CompletionBonusRate: decimal.RequireFromString("0.05"),
			},
			valid: true,
		},
		{
			name: "zero bonus is allowed",
			plan: model.Plan{
				Name:         "No Bonus",
				DurationDays: 1,
				DailyRate:    decimal.RequireFromString("0.01"),
			},
			valid: true,
		},
		{
			name: "empty name",
			plan: model.Plan{
				DurationDays: 3,
				DailyRate:    decimal.RequireFromString("0.10"),
			},
			valid: false,
		},
		{
			name: "zero duration",
			plan: model.Plan{
				Name:      "Broken",
				DailyRate: decimal.RequireFromString("0.10"),
			},
			valid: false,
		},
		{
			name: "daily rate above one",
			plan: model.Plan{
				Name:         "Greedy",
				DurationDays: 3,
				DailyRate:    decimal.RequireFromString("1.5"),
			},
			valid: false,
		},
		{
			name: "negative bonus",
			plan: model.Plan{
				Name:                "Negative",
				DurationDays:        3,
				DailyRate:           decimal.RequireFromString("0.10"),
				CompletionBonusRate: decimal.RequireFromString("-0.01"),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlan(tt.plan)
			if tt.valid && err != nil {
				t.Fatalf("ValidatePlan(%q) = %v, want nil", tt.plan.Name, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("ValidatePlan(%q) = %v, want ErrInvalidPlan", tt.plan.Name, err)
			}
		})
	}
}

func TestIsValidCronSpec(t *testing.T) {
	tests := []struct {
		schedule  string
		valid bool
	}{
		{schedule: "0 0 0 * * *", valid: true},
		{schedule: "@daily", valid: true},
		{schedule: "0 0 * * *", valid: false},
		{schedule: "", valid: false},
	}

	for _, tt := range tests {
		if got := IsValidCronSpec(tt.schedule); got != tt.valid {
			t.Fatalf("IsValidCronSpec(%q) = %v, want %v", tt.schedule, got, tt.valid)
		}
	}
}
