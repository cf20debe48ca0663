// Package ledger holds the claims recorded during one session.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mileage/internal/core"
)

// DefaultMaxMiles bounds a single journey unless overridden.
var DefaultMaxMiles = decimal.NewFromInt(500)

// Ledger is an append-only, insertion ordered list of entries. Entries are
// removed only by Clear.
type Ledger struct {
	mu       sync.Mutex
	entries  []core.Entry
	now      func() time.Time
	newID    func() string
	maxMiles decimal.Decimal
}

type Option func(*Ledger)

// WithClock overrides the clock used for timestamps and the "not in the
// future" date check.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithMaxMiles overrides the per-journey upper bound. Zero disables it.
func WithMaxMiles(max decimal.Decimal) Option {
	return func(l *Ledger) { l.maxMiles = max }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:      time.Now,
		newID:    uuid.NewString,
		maxMiles: DefaultMaxMiles,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add records in's miles to a tenth of a mile, validates it, prices it with
// the rate currently in rates and appends the resulting entry. On error the
// ledger is unchanged.
func (l *Ledger) Add(in core.EntryInput, rates core.Rates) (core.Entry, error) {
	now := l.now()
	// The stored miles are the ones the reimbursement is priced from.
	in.Miles = in.Miles.Round(core.MilesPlaces)
	if err := in.Validate(core.DateOf(now), l.maxMiles); err != nil {
		return core.Entry{}, err
	}
	rate, ok := rates.For(in.VehicleType)
	if !ok {
		return core.Entry{}, &core.ValidationError{Field: "vehicle_type", Err: core.ErrUnknownVehicle}
	}
	amount, err := core.Reimbursement(rates, in.VehicleType, in.Miles)
	if err != nil {
		return core.Entry{}, &core.ValidationError{Field: "miles", Err: err}
	}

	e := core.Entry{
		ID:            l.newID(),
		Date:          in.Date,
		From:          strings.TrimSpace(in.From),
		To:            strings.TrimSpace(in.To),
		Miles:         in.Miles,
		VehicleType:   in.VehicleType,
		Purpose:       strings.TrimSpace(in.Purpose),
		Rate:          rate,
		Reimbursement: amount,
		CreatedAt:     now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return e, nil
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []core.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Entry(nil), l.entries...)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes every entry.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Summary recomputes the totals from the current entries.
func (l *Ledger) Summary() core.Summary {
	return core.Summarize(l.Entries())
}
