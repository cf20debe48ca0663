package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/core"
)

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestLedger() *Ledger {
	n := 0
	return New(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func input(v core.VehicleType, miles string) core.EntryInput {
	return core.EntryInput{
		Date:        core.NewDate(2025, 6, 14),
		From:        " Office ",
		To:          "Client",
		Miles:       decimal.RequireFromString(miles),
		VehicleType: v,
		Purpose:     "Meeting",
	}
}

func TestLedgerExampleTotals(t *testing.T) {
	l := newTestLedger()
	rates := core.DefaultRates()

	car, err := l.Add(input(core.Car, "100"), rates)
	if err != nil {
		t.Fatalf("add car: %v", err)
	}
	if car.Reimbursement.StringFixed(2) != "45.00" {
		t.Fatalf("car reimbursement=%s", car.Reimbursement)
	}
	bike, err := l.Add(input(core.Bicycle, "10"), rates)
	if err != nil {
		t.Fatalf("add bicycle: %v", err)
	}
	if bike.Reimbursement.StringFixed(2) != "2.00" {
		t.Fatalf("bicycle reimbursement=%s", bike.Reimbursement)
	}

	s := l.Summary()
	if s.Count != 2 || s.TotalMiles.StringFixed(1) != "110.0" || s.TotalReimbursement.StringFixed(2) != "47.00" {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestLedgerStampsEntries(t *testing.T) {
	l := newTestLedger()
	e, err := l.Add(input(core.Motorcycle, "20"), core.DefaultRates())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.ID != "id-1" {
		t.Fatalf("id=%q", e.ID)
	}
	if !e.CreatedAt.Equal(fixedNow) {
		t.Fatalf("created_at=%v", e.CreatedAt)
	}
	if e.From != "Office" {
		t.Fatalf("from not trimmed: %q", e.From)
	}
	if e.Rate.String() != "0.24" {
		t.Fatalf("rate=%s", e.Rate)
	}
}

func TestLedgerPreservesInsertionOrder(t *testing.T) {
	l := newTestLedger()
	rates := core.DefaultRates()
	for _, m := range []string{"3", "1", "2"} {
		if _, err := l.Add(input(core.Car, m), rates); err != nil {
			t.Fatalf("add %s: %v", m, err)
		}
	}
	got := l.Entries()
	for i, want := range []string{"3", "1", "2"} {
		if got[i].Miles.String() != want {
			t.Fatalf("entry %d miles=%s want %s", i, got[i].Miles, want)
		}
	}
}

func TestLedgerRejectsInvalidInputUnchanged(t *testing.T) {
	l := newTestLedger()
	rates := core.DefaultRates()
	if _, err := l.Add(input(core.Car, "5"), rates); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad := []struct {
		name string
		mod  func(*core.EntryInput)
		want error
	}{
		{"empty from", func(in *core.EntryInput) { in.From = "" }, core.ErrEmptyFrom},
		{"empty to", func(in *core.EntryInput) { in.To = " " }, core.ErrEmptyTo},
		{"empty purpose", func(in *core.EntryInput) { in.Purpose = "" }, core.ErrEmptyPurpose},
		{"zero miles", func(in *core.EntryInput) { in.Miles = decimal.Zero }, core.ErrInvalidMiles},
		{"negative miles", func(in *core.EntryInput) { in.Miles = decimal.NewFromInt(-1) }, core.ErrInvalidMiles},
		{"above max", func(in *core.EntryInput) { in.Miles = decimal.NewFromInt(501) }, core.ErrTooManyMiles},
		{"unknown vehicle", func(in *core.EntryInput) { in.VehicleType = "van" }, core.ErrUnknownVehicle},
		{"future date", func(in *core.EntryInput) { in.Date = core.NewDate(2025, 6, 16) }, core.ErrFutureDate},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			in := input(core.Car, "10")
			tc.mod(&in)
			_, err := l.Add(in, rates)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if l.Len() != 1 {
				t.Fatalf("ledger changed on rejected input: len=%d", l.Len())
			}
		})
	}
}

func TestLedgerMissingRateIsRejected(t *testing.T) {
	l := newTestLedger()
	rates := core.Rates{core.Car: decimal.RequireFromString("0.45")}
	if _, err := l.Add(input(core.Bicycle, "4"), rates); !errors.Is(err, core.ErrUnknownVehicle) {
		t.Fatalf("expected ErrUnknownVehicle, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatal("ledger changed")
	}
}

func TestLedgerRateIsSnapshotted(t *testing.T) {
	l := newTestLedger()
	rates := core.DefaultRates()
	if _, err := l.Add(input(core.Car, "10"), rates); err != nil {
		t.Fatalf("add: %v", err)
	}
	rates[core.Car] = decimal.RequireFromString("0.60")
	if _, err := l.Add(input(core.Car, "10"), rates); err != nil {
		t.Fatalf("add: %v", err)
	}
	got := l.Entries()
	if got[0].Rate.String() != "0.45" || got[0].Reimbursement.StringFixed(2) != "4.50" {
		t.Fatalf("first entry was repriced: %+v", got[0])
	}
	if got[1].Rate.String() != "0.6" || got[1].Reimbursement.StringFixed(2) != "6.00" {
		t.Fatalf("second entry has wrong price: %+v", got[1])
	}
	if l.Summary().TotalReimbursement.StringFixed(2) != "10.50" {
		t.Fatalf("total=%s", l.Summary().TotalReimbursement)
	}
}

func TestLedgerClear(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		l := newTestLedger()
		for i := 0; i < n; i++ {
			if _, err := l.Add(input(core.Car, "1"), core.DefaultRates()); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		l.Clear()
		if l.Len() != 0 || len(l.Entries()) != 0 {
			t.Fatalf("clear after %d entries left %d", n, l.Len())
		}
		if s := l.Summary(); s.Count != 0 || !s.TotalReimbursement.IsZero() {
			t.Fatalf("summary after clear: %+v", s)
		}
	}
}

func TestLedgerEntriesIsACopy(t *testing.T) {
	l := newTestLedger()
	if _, err := l.Add(input(core.Car, "1"), core.DefaultRates()); err != nil {
		t.Fatalf("add: %v", err)
	}
	got := l.Entries()
	got[0].Purpose = "mutated"
	if l.Entries()[0].Purpose == "mutated" {
		t.Fatal("Entries exposes internal storage")
	}
}

func TestLedgerSummaryMatchesEntries(t *testing.T) {
	l := newTestLedger()
	rates := core.DefaultRates()
	for i, m := range []string{"0.1", "33.3", "12.7", "99.9", "0.3"} {
		v := core.VehicleTypes()[i%3]
		if _, err := l.Add(input(v, m), rates); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	miles, amount := decimal.Zero, decimal.Zero
	for _, e := range l.Entries() {
		miles = miles.Add(e.Miles)
		amount = amount.Add(e.Reimbursement)
	}
	s := l.Summary()
	if !s.TotalMiles.Equal(miles) || !s.TotalReimbursement.Equal(amount) || s.Count != 5 {
		t.Fatalf("summary %+v does not match entries (%s, %s)", s, miles, amount)
	}
}

func TestLedgerMaxMilesOption(t *testing.T) {
	l := New(WithClock(func() time.Time { return fixedNow }), WithMaxMiles(decimal.NewFromInt(50)))
	if _, err := l.Add(input(core.Car, "51"), core.DefaultRates()); !errors.Is(err, core.ErrTooManyMiles) {
		t.Fatalf("expected ErrTooManyMiles, got %v", err)
	}
	if _, err := l.Add(input(core.Car, "50"), core.DefaultRates()); err != nil {
		t.Fatalf("50 miles should be accepted: %v", err)
	}
}

func TestLedgerRecordsMilesToTenths(t *testing.T) {
	l := newTestLedger()
	e, err := l.Add(input(core.Car, "10.05"), core.DefaultRates())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.Miles.String() != "10.1" || e.Reimbursement.StringFixed(2) != "4.55" {
		t.Fatalf("miles=%s reimbursement=%s, want 10.1 and 4.55", e.Miles, e.Reimbursement)
	}
	if _, err := l.Add(input(core.Car, "0.04"), core.DefaultRates()); !errors.Is(err, core.ErrInvalidMiles) {
		t.Fatalf("0.04 miles records as zero, expected ErrInvalidMiles, got %v", err)
	}
}
