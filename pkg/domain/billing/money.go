package billing

import "github.com/shopspring/decimal"

// Precision of persisted values.
const (
	HoursPlaces  = 3
	AmountPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// CentsToDecimal converts an integer cents field into currency units.
// A nil pointer converts to zero.
func CentsToDecimal(cents *int64) decimal.Decimal {
	if cents == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(*cents).Div(hundred)
}

// DecimalToCents converts currency units to integer cents, rounding half away from zero.
func DecimalToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// Cents returns a pointer to v, for optional cents fields.
func Cents(v int64) *int64 {
	return &v
}

// RoundHours rounds a tracked quantity to the persisted hour precision.
func RoundHours(h decimal.Decimal) decimal.Decimal {
	return h.Round(HoursPlaces)
}

// RoundAmount rounds a monetary value to cents.
func RoundAmount(a decimal.Decimal) decimal.Decimal {
	return a.Round(AmountPlaces)
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
