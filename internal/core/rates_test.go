package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReimbursementMatchesRoundedProduct(t *testing.T) {
	rates := DefaultRates()
	miles := []string{"0.1", "1", "12.3", "45.5", "99.9", "100", "333.3", "500"}
	for _, v := range VehicleTypes() {
		for _, m := range miles {
			md := decimal.RequireFromString(m)
			got, err := Reimbursement(rates, v, md)
			if err != nil {
				t.Fatalf("%s %s: unexpected error %v", v, m, err)
			}
			want := md.Mul(rates[v]).Round(2)
			if !got.Equal(want) {
				t.Fatalf("%s %s: got %s want %s", v, m, got, want)
			}
			again, _ := Reimbursement(rates, v, md)
			if !again.Equal(got) {
				t.Fatalf("%s %s: not deterministic", v, m)
			}
		}
	}
}

func TestReimbursementExamples(t *testing.T) {
	rates := DefaultRates()
	cases := []struct {
		v     VehicleType
		miles string
		want  string
	}{
		{Car, "100", "45.00"},
		{Bicycle, "10", "2.00"},
		{Motorcycle, "12.5", "3.00"},
		{Car, "0.1", "0.05"}, // 0.045 rounds half away from zero
		{Car, "33.3", "14.99"},
	}
	for _, tc := range cases {
		got, err := Reimbursement(rates, tc.v, decimal.RequireFromString(tc.miles))
		if err != nil {
			t.Fatalf("%s %s: %v", tc.v, tc.miles, err)
		}
		if got.StringFixed(2) != tc.want {
			t.Fatalf("%s %s: got %s want %s", tc.v, tc.miles, got.StringFixed(2), tc.want)
		}
	}
}

func TestReimbursementRejectsInvalidInput(t *testing.T) {
	rates := DefaultRates()
	if _, err := Reimbursement(rates, "van", decimal.NewFromInt(1)); !errors.Is(err, ErrUnknownVehicle) {
		t.Fatalf("expected ErrUnknownVehicle, got %v", err)
	}
	if _, err := Reimbursement(rates, Car, decimal.Zero); !errors.Is(err, ErrInvalidMiles) {
		t.Fatalf("expected ErrInvalidMiles, got %v", err)
	}
	if _, err := Reimbursement(rates, Car, decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidMiles) {
		t.Fatalf("expected ErrInvalidMiles, got %v", err)
	}
	partial := Rates{Car: decimal.RequireFromString("0.45")}
	if _, err := Reimbursement(partial, Bicycle, decimal.NewFromInt(1)); !errors.Is(err, ErrUnknownVehicle) {
		t.Fatalf("expected ErrUnknownVehicle for missing rate, got %v", err)
	}
}

func TestRatesValidate(t *testing.T) {
	if err := DefaultRates().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	missing := DefaultRates()
	delete(missing, Motorcycle)
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error for missing rate")
	}
	negative := DefaultRates()
	negative[Car] = decimal.RequireFromString("-0.01")
	if err := negative.Validate(); err == nil {
		t.Fatal("expected error for negative rate")
	}
	free := DefaultRates()
	free[Bicycle] = decimal.Zero
	if err := free.Validate(); err != nil {
		t.Fatalf("zero rate is allowed, got %v", err)
	}
}

func TestRatesClone(t *testing.T) {
	r := DefaultRates()
	c := r.Clone()
	c[Car] = decimal.NewFromInt(1)
	if r[Car].Equal(c[Car]) {
		t.Fatal("clone shares storage with original")
	}
}
