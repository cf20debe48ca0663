package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates a sequence of entries.
type Summary struct {
	Count              int
	TotalMiles         decimal.Decimal
	TotalReimbursement decimal.Decimal
}

// Summarize folds over entries. Totals are the exact sums of the per-entry
// values, so they always match what is shown line by line.
func Summarize(entries []Entry) Summary {
	s := Summary{TotalMiles: decimal.Zero, TotalReimbursement: decimal.Zero}
	for _, e := range entries {
		s.Count++
		s.TotalMiles = s.TotalMiles.Add(e.Miles)
		s.TotalReimbursement = s.TotalReimbursement.Add(e.Reimbursement)
	}
	return s
}

// Submission is a snapshot of a session's entries handed to the finance team.
type Submission struct {
	ID          int64
	Reference   string
	SubmittedBy string
	SubmittedAt time.Time
	Business    Business
	Entries     []Entry
	Summary     Summary
}

// NewSubmission snapshots entries into a submission. The entries slice is
// copied.
func NewSubmission(ref, user string, at time.Time, business Business, entries []Entry) Submission {
	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)
	return Submission{
		Reference:   ref,
		SubmittedBy: user,
		SubmittedAt: at,
		Business:    business,
		Entries:     snapshot,
		Summary:     Summarize(snapshot),
	}
}

var (
	ErrEmptySubmission = errors.New("no claims to submit")
	ErrNoReference     = errors.New("submission reference is required")
)

// Validate rejects submissions that carry no entries or no reference.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Reference) == "" {
		return ErrNoReference
	}
	if len(s.Entries) == 0 {
		return ErrEmptySubmission
	}
	return nil
}
