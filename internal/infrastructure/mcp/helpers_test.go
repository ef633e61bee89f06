package mcp

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := decimalOf(t, s)
	return &d
}
