// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Form values are sanitized and converted to domain types here so handlers
// only deal with core values and core.ValidationError.

package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"mileage/internal/core"
	"mileage/internal/settings"
)

var (
	errMissingCompany  = errors.New("company name is required")
	errMissingEmail    = errors.New("finance email is required")
	errInvalidEmail    = errors.New("finance email is not a valid address")
	errMissingCurrency = errors.New("currency symbol is required")
)

// Form field names shared by the templates and the parsers.
const (
	fieldDate           = "date"
	fieldFrom           = "from_location"
	fieldTo             = "to_location"
	fieldMiles          = "miles"
	fieldVehicleType    = "vehicle_type"
	fieldPurpose        = "purpose"
	fieldCompanyName    = "company_name"
	fieldFinanceEmail   = "finance_email"
	fieldCurrencySymbol = "currency_symbol"
)

// ParseEntryForm converts the journey form into an EntryInput. Date, miles
// and vehicle type must parse; the remaining rules are checked by the
// ledger.
func ParseEntryForm(form url.Values) (core.EntryInput, error) {
	in := core.EntryInput{
		From:    sanitizeInput(form.Get(fieldFrom)),
		To:      sanitizeInput(form.Get(fieldTo)),
		Purpose: sanitizeInput(form.Get(fieldPurpose)),
	}

	date, err := core.ParseDate(form.Get(fieldDate))
	if err != nil {
		return core.EntryInput{}, &core.ValidationError{Field: fieldDate, Err: core.ErrInvalidDate}
	}
	in.Date = date

	miles, err := core.ParseMiles(form.Get(fieldMiles))
	if err != nil {
		return core.EntryInput{}, &core.ValidationError{Field: fieldMiles, Err: core.ErrInvalidMiles}
	}
	in.Miles = miles

	vehicle, err := core.ParseVehicleType(form.Get(fieldVehicleType))
	if err != nil {
		return core.EntryInput{}, &core.ValidationError{Field: fieldVehicleType, Err: core.ErrUnknownVehicle}
	}
	in.VehicleType = vehicle

	return in, nil
}

// ParseSettingsForm builds a new settings document from the settings form.
// Every vehicle type needs a rate; business fields are required.
func ParseSettingsForm(form url.Values) (settings.Document, error) {
	doc := settings.Document{Rates: make(core.Rates, len(core.VehicleTypes()))}

	for _, v := range core.VehicleTypes() {
		key := settings.RateKey(v)
		rate, err := core.ParseDecimal(form.Get(key))
		if err != nil {
			return settings.Document{}, &core.ValidationError{Field: key, Err: err}
		}
		doc.Rates[v] = rate
	}

	doc.Business.CompanyName = sanitizeInput(form.Get(fieldCompanyName))
	if doc.Business.CompanyName == "" {
		return settings.Document{}, &core.ValidationError{Field: fieldCompanyName, Err: errMissingCompany}
	}

	email := sanitizeInput(form.Get(fieldFinanceEmail))
	switch {
	case email == "":
		return settings.Document{}, &core.ValidationError{Field: fieldFinanceEmail, Err: errMissingEmail}
	case !looksLikeEmail(email):
		return settings.Document{}, &core.ValidationError{Field: fieldFinanceEmail, Err: errInvalidEmail}
	}
	doc.Business.FinanceEmail = email

	doc.Business.CurrencySymbol = sanitizeInput(form.Get(fieldCurrencySymbol))
	if doc.Business.CurrencySymbol == "" {
		return settings.Document{}, &core.ValidationError{Field: fieldCurrencySymbol, Err: errMissingCurrency}
	}

	return doc, nil
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
