// Package core provides money parsing and handling utilities.
//
// This file contains the conversions between the textual amounts used by the
// API and CSV files and the float64 stored in the database.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a signed amount.
//
// Positive values are income, negative values are expenses. A leading "+" is
// accepted; thousands separators, currency symbols and exponents other than
// those decimal understands are rejected.
//
// Examples:
//
//	ParseAmount("5000")    -> 5000, nil
//	ParseAmount("-120.50") -> -120.5, nil
//	ParseAmount("abc")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// CheckAmount rejects values that cannot be stored as a finite REAL.
func CheckAmount(f float64) error {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount renders an amount as the shortest decimal text, e.g. 5000 or -120.5.
func FormatAmount(f float64) string {
	return decimal.NewFromFloat(f).String()
}
