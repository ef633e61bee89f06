package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeAmount_BudgetRoundTrip(t *testing.T) {
	task := &Task{ID: "t1", BudgetCents: Cents(10000), HourlyRateCents: Cents(5000)}
	rate := dec("50")

	first := ComputeAmount(task, decimal.Zero, dec("1.5"), rate)
	if !first.CeilingHours.Equal(dec("2")) {
		t.Fatalf("expected ceiling 2h, got %s", first.CeilingHours)
	}
	if !first.Amount.IsZero() {
		t.Errorf("first entry should be within budget, got amount %s", first.Amount)
	}

	second := ComputeAmount(task, dec("1.5"), dec("1"), rate)
	if !second.OverageHours.Equal(dec("0.5")) {
		t.Errorf("expected 0.5h overage, got %s", second.OverageHours)
	}
	if !second.Amount.Equal(dec("25")) {
		t.Errorf("expected amount 25.00, got %s", second.Amount)
	}
}

func TestComputeAmount_EstimateCeiling(t *testing.T) {
	task := &Task{ID: "t1", ProjectID: "p1", EstimatedHours: decPtr("5")}

	got := ComputeAmount(task, dec("4"), dec("2"), dec("60"))
	if !got.WithinBudgetHours.Equal(dec("1")) || !got.OverageHours.Equal(dec("1")) {
		t.Fatalf("expected 1h/1h split, got %s/%s", got.WithinBudgetHours, got.OverageHours)
	}
	if !got.Amount.Equal(dec("60")) {
		t.Errorf("expected amount 60.00, got %s", got.Amount)
	}
}

func TestComputeAmount_ZeroRate(t *testing.T) {
	got := ComputeAmount(&Task{ID: "t1"}, decimal.Zero, dec("3"), decimal.Zero)
	if !got.Amount.IsZero() {
		t.Errorf("expected zero amount, got %s", got.Amount)
	}
	if !got.OverageHours.Equal(dec("3")) {
		t.Errorf("expected all hours as overage, got %s", got.OverageHours)
	}
}

func TestComputeAmount_MonotonicInHours(t *testing.T) {
	tasks := []*Task{
		{ID: "budget", BudgetCents: Cents(10000)},
		{ID: "estimate", EstimatedHours: decPtr("3")},
		{ID: "none"},
	}
	rate := dec("42.5")
	for _, task := range tasks {
		for _, prior := range []string{"0", "1", "2.5", "10"} {
			prev := decimal.Zero
			for h := 1; h <= 40; h++ {
				hours := decimal.NewFromInt(int64(h)).Div(decimal.NewFromInt(4))
				got := ComputeAmount(task, dec(prior), hours, rate).Amount
				if got.LessThan(prev) {
					t.Fatalf("%s prior=%s: amount decreased from %s to %s at %s hours", task.ID, prior, prev, got, hours)
				}
				prev = got
			}
		}
	}
}

func TestCharge_Apply(t *testing.T) {
	entry := TimeEntry{ID: "e1"}
	ComputeAmount(&Task{}, decimal.Zero, dec("2"), dec("30")).Apply(&entry, SourceProject)
	if !entry.HourlyRate.Equal(dec("30")) {
		t.Errorf("expected rate 30, got %s", entry.HourlyRate)
	}
	if got := entry.StoredRate(); got.Source != SourceProject || !got.HourlyRate.Equal(dec("30")) {
		t.Errorf("unexpected stored rate %+v", got)
	}
	if !entry.Amount.Equal(dec("60")) {
		t.Errorf("expected amount 60, got %s", entry.Amount)
	}
}
