package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places reimbursements are kept at.
const MoneyPlaces = 2

// MilesPlaces is the precision a journey's mileage is recorded at.
const MilesPlaces = 1

// Rates maps each vehicle type to the amount reimbursed per mile.
type Rates map[VehicleType]decimal.Decimal

// DefaultRates returns the built-in per-mile rates (HMRC approved mileage
// allowance payments).
func DefaultRates() Rates {
	return Rates{
		Car:        decimal.RequireFromString("0.45"),
		Motorcycle: decimal.RequireFromString("0.24"),
		Bicycle:    decimal.RequireFromString("0.20"),
	}
}

// For returns the rate for v.
func (r Rates) For(v VehicleType) (decimal.Decimal, bool) {
	rate, ok := r[v]
	return rate, ok
}

// Clone returns an independent copy of r.
func (r Rates) Clone() Rates {
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Validate checks that every vehicle type has a non-negative rate.
func (r Rates) Validate() error {
	for _, v := range VehicleTypes() {
		rate, ok := r[v]
		if !ok {
			return fmt.Errorf("missing rate for %s", v)
		}
		if rate.IsNegative() {
			return fmt.Errorf("negative rate for %s: %s", v, rate)
		}
	}
	return nil
}

// Reimbursement returns miles × rate for the vehicle, rounded to MoneyPlaces.
func Reimbursement(rates Rates, v VehicleType, miles decimal.Decimal) (decimal.Decimal, error) {
	if !v.Valid() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownVehicle, string(v))
	}
	rate, ok := rates.For(v)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate configured for %s", ErrUnknownVehicle, v)
	}
	if !miles.IsPositive() {
		return decimal.Zero, ErrInvalidMiles
	}
	return RoundMoney(miles.Mul(rate)), nil
}

// RoundMoney rounds d half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
