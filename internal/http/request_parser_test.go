package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"mileage/internal/core"
	"mileage/internal/settings"
)

func TestParseEntryForm(t *testing.T) {
	form := url.Values{
		"date":          {"2025-03-04"},
		"from_location": {"  Home\x00 "},
		"to_location":   {"Office"},
		"miles":         {"12,46"},
		"vehicle_type":  {"Motorcycle"},
		"purpose":       {"Training"},
	}

	in, err := ParseEntryForm(form)
	if err != nil {
		t.Fatalf("ParseEntryForm() error = %v", err)
	}
	if in.Date.String() != "2025-03-04" {
		t.Errorf("Date = %s", in.Date)
	}
	if in.From != "Home" {
		t.Errorf("From = %q, want sanitized %q", in.From, "Home")
	}
	if !in.Miles.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Miles = %s, want 12.5", in.Miles)
	}
	if in.VehicleType != core.Motorcycle {
		t.Errorf("VehicleType = %q", in.VehicleType)
	}
}

func TestParseEntryFormErrors(t *testing.T) {
	valid := func() url.Values {
		return url.Values{
			"date":         {"2025-03-04"},
			"miles":        {"10"},
			"vehicle_type": {"car"},
		}
	}

	tests := []struct {
		name      string
		field     string
		value     string
		wantField string
		wantErr   error
	}{
		{"bad date", "date", "04/03/2025", "date", core.ErrInvalidDate},
		{"empty date", "date", "", "date", core.ErrInvalidDate},
		{"negative miles", "miles", "-3", "miles", core.ErrInvalidMiles},
		{"text miles", "miles", "ten", "miles", core.ErrInvalidMiles},
		{"unknown vehicle", "vehicle_type", "lorry", "vehicle_type", core.ErrUnknownVehicle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid()
			form.Set(tt.field, tt.value)

			_, err := ParseEntryForm(form)
			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSettingsForm(t *testing.T) {
	form := url.Values{
		settings.RateKey(core.Car):        {"0.5"},
		settings.RateKey(core.Motorcycle): {"0.25"},
		settings.RateKey(core.Bicycle):    {"0"},
		"company_name":                    {" Acme "},
		"finance_email":                   {"pay@acme.test"},
		"currency_symbol":                 {"$"},
	}

	doc, err := ParseSettingsForm(form)
	if err != nil {
		t.Fatalf("ParseSettingsForm() error = %v", err)
	}
	if rate, _ := doc.Rates.For(core.Car); !rate.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("car rate = %s", rate)
	}
	if rate, _ := doc.Rates.For(core.Bicycle); !rate.IsZero() {
		t.Errorf("bicycle rate = %s, want 0", rate)
	}
	want := core.Business{CompanyName: "Acme", FinanceEmail: "pay@acme.test", CurrencySymbol: "$"}
	if doc.Business != want {
		t.Errorf("Business = %+v, want %+v", doc.Business, want)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("parsed document invalid: %v", err)
	}
}

func TestParseSettingsFormErrors(t *testing.T) {
	valid := func() url.Values {
		return url.Values{
			settings.RateKey(core.Car):        {"0.45"},
			settings.RateKey(core.Motorcycle): {"0.24"},
			settings.RateKey(core.Bicycle):    {"0.20"},
			"company_name":                    {"The Hireman"},
			"finance_email":                   {"finance@thehireman.co.uk"},
			"currency_symbol":                 {"£"},
		}
	}

	tests := []struct {
		name      string
		field     string
		value     string
		wantField string
	}{
		{"missing rate", settings.RateKey(core.Car), "", "car_rate_per_mile"},
		{"negative rate", settings.RateKey(core.Bicycle), "-1", "bicycle_rate_per_mile"},
		{"missing company", "company_name", " ", "company_name"},
		{"missing email", "finance_email", "", "finance_email"},
		{"bad email", "finance_email", "finance", "finance_email"},
		{"missing currency", "currency_symbol", "", "currency_symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid()
			form.Set(tt.field, tt.value)

			_, err := ParseSettingsForm(form)
			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"GET allowed with multiple", http.MethodGet, []string{http.MethodGet, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("field=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if result := ParseFormOrFail(req); result != nil {
		t.Error("Expected nil for valid form, got error response")
	}
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}

	bad := httptest.NewRequest(http.MethodPost, "/test?%zz", nil)
	if result := ParseFormOrFail(bad); result == nil {
		t.Error("Expected error response for malformed query")
	}
}
