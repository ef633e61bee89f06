package billing

import "github.com/shopspring/decimal"

// Allocation splits a block of hours into the part absorbed by the budget
// ceiling and the billable overage.
type Allocation struct {
	WithinBudgetHours decimal.Decimal `json:"within_budget_hours"`
	OverageHours      decimal.Decimal `json:"overage_hours"`
}

// Allocate splits newHours against the ceiling given hours already consumed.
// WithinBudgetHours + OverageHours == newHours, and a zero ceiling makes the
// whole block overage. Negative inputs are treated as zero.
func Allocate(ceilingHours, consumed, newHours decimal.Decimal) Allocation {
	ceilingHours = clampZero(ceilingHours)
	consumed = clampZero(consumed)
	newHours = clampZero(newHours)

	consumedWithinCeiling := decimal.Max(decimal.Zero, decimal.Min(consumed, ceilingHours))
	remainingCeiling := decimal.Max(decimal.Zero, ceilingHours.Sub(consumedWithinCeiling))
	within := decimal.Min(newHours, remainingCeiling)
	overage := decimal.Max(decimal.Zero, newHours.Sub(within))

	return Allocation{
		WithinBudgetHours: within,
		OverageHours:      overage,
	}
}

// CeilingHours derives how many hours a task's budget or estimate absorbs.
// budget_cents wins when positive and the rate is positive; then
// estimated_hours; otherwise zero.
func CeilingHours(task *Task, hourlyRate decimal.Decimal) decimal.Decimal {
	if task == nil {
		return decimal.Zero
	}
	if task.BudgetCents != nil && *task.BudgetCents > 0 && hourlyRate.IsPositive() {
		return task.BudgetAmount().Div(hourlyRate)
	}
	if task.EstimatedHours != nil && task.EstimatedHours.IsPositive() {
		return *task.EstimatedHours
	}
	return decimal.Zero
}

// BudgetStatus summarises consumption of a task's ceiling.
type BudgetStatus struct {
	CeilingHours   decimal.Decimal `json:"ceiling_hours"`
	UsedHours      decimal.Decimal `json:"used_hours"`
	RemainingHours decimal.Decimal `json:"remaining_hours"`
	PercentUsed    decimal.Decimal `json:"percent_used"`
	OverBudget     bool            `json:"over_budget"`
}

// NewBudgetStatus creates a BudgetStatus from a ceiling and consumed hours.
func NewBudgetStatus(ceilingHours, usedHours decimal.Decimal) *BudgetStatus {
	remaining := ceilingHours.Sub(usedHours)
	percent := decimal.Zero
	if ceilingHours.IsPositive() {
		percent = usedHours.Div(ceilingHours).Mul(hundred).Round(1)
	}
	return &BudgetStatus{
		CeilingHours:   ceilingHours,
		UsedHours:      usedHours,
		RemainingHours: remaining,
		PercentUsed:    percent,
		OverBudget:     remaining.IsNegative(),
	}
}
