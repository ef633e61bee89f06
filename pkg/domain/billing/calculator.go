package billing

import "github.com/shopspring/decimal"

// Charge is the billing outcome for one time record.
type Charge struct {
	Allocation
	CeilingHours decimal.Decimal `json:"ceiling_hours"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// ComputeAmount prices hours logged on task at rate. priorHours is what the
// task had consumed before this record: actual_hours for a new entry, the sum
// of the other entries for an edit. Only the overage is billed.
func ComputeAmount(task *Task, priorHours, hours, rate decimal.Decimal) Charge {
	rate = clampZero(rate)
	ceiling := CeilingHours(task, rate)
	alloc := Allocate(ceiling, priorHours, hours)
	return Charge{
		Allocation:   alloc,
		CeilingHours: ceiling,
		HourlyRate:   rate,
		Amount:       RoundAmount(alloc.OverageHours.Mul(rate)),
	}
}

// Apply stamps the charge onto an entry as its rate and amount snapshot.
func (c Charge) Apply(entry *TimeEntry, source RateSource) {
	entry.HourlyRate = c.HourlyRate
	entry.RateSource = source
	entry.Amount = c.Amount
}
