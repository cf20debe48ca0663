// Package core provides decimal parsing for form input.
//
// Amounts, rates and mileage are carried as decimals so that a
// reimbursement is exactly miles × rate rounded once, and totals are exact
// sums of the rounded per-entry amounts.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidNumber = errors.New("invalid number")

// ParseDecimal converts a user supplied number to a decimal.
//
// It accepts both dot (12.5) and comma (12,5) decimal separators. Signs,
// exponents, thousands separators and empty input are rejected.
//
// Examples:
//
//	ParseDecimal("12.5") -> 12.5, nil
//	ParseDecimal("12,5") -> 12.5, nil
//	ParseDecimal("-1")   -> 0, ErrInvalidNumber
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidNumber
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidNumber
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidNumber
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return decimal.Zero, ErrInvalidNumber
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	return d, nil
}

// ParseMiles parses a mileage figure and records it to a tenth of a mile,
// the precision the entry form works at.
func ParseMiles(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(MilesPlaces), nil
}
