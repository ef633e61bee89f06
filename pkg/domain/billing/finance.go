package billing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FinanceScope selects what a snapshot is computed for.
type FinanceScope string

const (
	ScopeProject FinanceScope = "project"
	ScopeTask    FinanceScope = "task"
)

// DailyFinance is one row of the daily time series.
type DailyFinance struct {
	Date         string          `json:"date"`
	Hours        decimal.Decimal `json:"hours"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	ExternalCost decimal.Decimal `json:"external_cost"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// FinanceSnapshot is a derived, non-persisted profitability view.
type FinanceSnapshot struct {
	Scope         FinanceScope    `json:"scope"`
	ScopeID       string          `json:"scope_id"`
	GeneratedAt   time.Time       `json:"generated_at"`
	BillableHours decimal.Decimal `json:"billable_hours"`
	TotalHours    decimal.Decimal `json:"total_hours"`
	LaborCost     decimal.Decimal `json:"labor_cost"`
	ExternalCost  decimal.Decimal `json:"external_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	BudgetAmount  decimal.Decimal `json:"budget_amount"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitPct     decimal.Decimal `json:"profit_pct"`
	DailyData     []DailyFinance  `json:"daily_data"`
}

// FinanceInput holds the records read for one scope.
type FinanceInput struct {
	Scope        FinanceScope
	ScopeID      string
	Entries      []TimeEntry
	CostItems    []CostItem
	BudgetAmount decimal.Decimal
	GeneratedAt  time.Time
}

// Aggregate computes the snapshot. Labor cost sums the amounts stored on
// billable entries; it is not re-priced here. Labor is counted with the
// budget on the revenue side and only external costs count as cost.
func Aggregate(in FinanceInput) FinanceSnapshot {
	snap := FinanceSnapshot{
		Scope:         in.Scope,
		ScopeID:       in.ScopeID,
		GeneratedAt:   in.GeneratedAt,
		BillableHours: decimal.Zero,
		TotalHours:    decimal.Zero,
		LaborCost:     decimal.Zero,
		ExternalCost:  decimal.Zero,
		BudgetAmount:  in.BudgetAmount,
		DailyData:     []DailyFinance{},
	}

	days := make(map[string]*DailyFinance)
	day := func(t time.Time) *DailyFinance {
		key := t.Format(DateLayout)
		d, ok := days[key]
		if !ok {
			d = &DailyFinance{
				Date:         key,
				Hours:        decimal.Zero,
				LaborCost:    decimal.Zero,
				ExternalCost: decimal.Zero,
			}
			days[key] = d
		}
		return d
	}

	for _, e := range in.Entries {
		snap.TotalHours = snap.TotalHours.Add(e.Hours)
		d := day(e.Date)
		d.Hours = d.Hours.Add(e.Hours)
		if e.IsBillable {
			snap.BillableHours = snap.BillableHours.Add(e.Hours)
			snap.LaborCost = snap.LaborCost.Add(e.Amount)
			d.LaborCost = d.LaborCost.Add(e.Amount)
		}
	}

	for _, c := range in.CostItems {
		d := day(c.Date)
		if c.IsBillable {
			snap.ExternalCost = snap.ExternalCost.Add(c.Amount)
			d.ExternalCost = d.ExternalCost.Add(c.Amount)
		}
	}

	snap.TotalCost = snap.ExternalCost
	revenue := snap.LaborCost.Add(snap.BudgetAmount)
	snap.Profit = revenue.Sub(snap.TotalCost)
	snap.ProfitPct = decimal.Zero
	if !revenue.IsZero() {
		snap.ProfitPct = snap.Profit.Div(revenue).Mul(hundred).Round(2)
	}

	for _, d := range days {
		d.TotalRevenue = d.LaborCost.Add(d.ExternalCost)
		snap.DailyData = append(snap.DailyData, *d)
	}
	sort.Slice(snap.DailyData, func(i, j int) bool {
		return snap.DailyData[i].Date < snap.DailyData[j].Date
	})

	return snap
}

// ProjectBudgetAmount sums the budgets of a project's tasks.
func ProjectBudgetAmount(tasks []Task) decimal.Decimal {
	total := decimal.Zero
	for i := range tasks {
		total = total.Add(tasks[i].BudgetAmount())
	}
	return total
}

// TaskBudgetAmount is the task's own budget, or when unset the value of its
// logged hours: hours × the task's rate if it has one, else each entry's stored rate.
func TaskBudgetAmount(task *Task, entries []TimeEntry) decimal.Decimal {
	if task.BudgetCents != nil {
		return task.BudgetAmount()
	}
	taskRate, hasTaskRate := positiveCents(task.HourlyRateCents)
	total := decimal.Zero
	for _, e := range entries {
		rate := e.HourlyRate
		if hasTaskRate {
			rate = taskRate
		}
		total = total.Add(e.Hours.Mul(rate))
	}
	return RoundAmount(total)
}

// CSV renders the daily series with a totals row.
func (s *FinanceSnapshot) CSV() string {
	lines := []string{"Date,Hours,Labor Cost,External Cost,Total Revenue"}
	for _, d := range s.DailyData {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s,%s",
			d.Date, d.Hours.StringFixed(HoursPlaces), d.LaborCost.StringFixed(AmountPlaces),
			d.ExternalCost.StringFixed(AmountPlaces), d.TotalRevenue.StringFixed(AmountPlaces)))
	}
	lines = append(lines, fmt.Sprintf("TOTAL,%s,%s,%s,%s",
		s.TotalHours.StringFixed(HoursPlaces), s.LaborCost.StringFixed(AmountPlaces),
		s.ExternalCost.StringFixed(AmountPlaces), s.LaborCost.Add(s.ExternalCost).StringFixed(AmountPlaces)))
	return strings.Join(lines, "\n")
}
