package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Car        VehicleType = "car"
	Motorcycle VehicleType = "motorcycle"
	Bicycle    VehicleType = "bicycle"
)

const (
	maxLocationLength = 120
	maxPurposeLength  = 500
)

type (
	VehicleType string

	Date struct {
		time.Time
	}

	// EntryInput carries the user supplied fields of a journey before the
	// ledger stamps, prices and records it.
	EntryInput struct {
		Date        Date
		From        string
		To          string
		Miles       decimal.Decimal
		VehicleType VehicleType
		Purpose     string
	}

	// Entry is one recorded journey. Rate is the per-mile rate that applied
	// when the entry was created; it is never recomputed.
	Entry struct {
		ID            string
		Date          Date
		From          string
		To            string
		Miles         decimal.Decimal
		VehicleType   VehicleType
		Purpose       string
		Rate          decimal.Decimal
		Reimbursement decimal.Decimal
		CreatedAt     time.Time
	}

	Business struct {
		CompanyName    string `json:"company_name"`
		FinanceEmail   string `json:"finance_email"`
		CurrencySymbol string `json:"currency_symbol"`
	}
)

var (
	ErrInvalidDate    = errors.New("invalid journey date")
	ErrFutureDate     = errors.New("journey date is in the future")
	ErrEmptyFrom      = errors.New("from location is required")
	ErrEmptyTo        = errors.New("to location is required")
	ErrEmptyPurpose   = errors.New("business purpose is required")
	ErrTooLong        = errors.New("value too long")
	ErrInvalidMiles   = errors.New("miles must be greater than 0")
	ErrTooManyMiles   = errors.New("miles exceed the maximum for one journey")
	ErrUnknownVehicle = errors.New("unknown vehicle type")
)

// VehicleTypes lists the vehicles offered by the entry form, in display order.
func VehicleTypes() []VehicleType {
	return []VehicleType{Car, Motorcycle, Bicycle}
}

func (v VehicleType) String() string {
	return string(v)
}

// Valid reports whether v is one of the fixed vehicle types.
func (v VehicleType) Valid() bool {
	switch v {
	case Car, Motorcycle, Bicycle:
		return true
	default:
		return false
	}
}

// Label returns the human readable name of the vehicle type.
func (v VehicleType) Label() string {
	switch v {
	case Car:
		return "Car"
	case Motorcycle:
		return "Motorcycle"
	case Bicycle:
		return "Bicycle"
	default:
		return string(v)
	}
}

// ParseVehicleType maps a form or file value onto a VehicleType.
func ParseVehicleType(s string) (VehicleType, error) {
	v := VehicleType(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownVehicle, s)
	}
	return v, nil
}

// ValidationError reports the input field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks the input against the journey rules. today bounds the
// journey date and maxMiles bounds a single journey; a zero maxMiles
// disables the upper bound.
func (in EntryInput) Validate(today Date, maxMiles decimal.Decimal) error {
	if err := in.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if in.Date.After(today.Time) {
		return invalid("date", ErrFutureDate)
	}
	if err := requireText(in.From, maxLocationLength, ErrEmptyFrom); err != nil {
		return invalid("from_location", err)
	}
	if err := requireText(in.To, maxLocationLength, ErrEmptyTo); err != nil {
		return invalid("to_location", err)
	}
	if !in.Miles.IsPositive() {
		return invalid("miles", ErrInvalidMiles)
	}
	if maxMiles.IsPositive() && in.Miles.GreaterThan(maxMiles) {
		return invalid("miles", fmt.Errorf("%w (%s)", ErrTooManyMiles, maxMiles))
	}
	if !in.VehicleType.Valid() {
		return invalid("vehicle_type", ErrUnknownVehicle)
	}
	if err := requireText(in.Purpose, maxPurposeLength, ErrEmptyPurpose); err != nil {
		return invalid("purpose", err)
	}
	return nil
}

func requireText(s string, max int, empty error) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty
	}
	if len([]rune(s)) > max {
		return fmt.Errorf("%w (max %d characters)", ErrTooLong, max)
	}
	return nil
}
