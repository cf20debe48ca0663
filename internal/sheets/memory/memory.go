// Package memory keeps submitted claim batches in process memory. It backs
// demos and tests where no spreadsheet or archive is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"mileage/internal/core"
	ports "mileage/internal/sheets"
)

var (
	_ ports.ClaimSubmitter = (*Store)(nil)
	_ ports.ClaimWriter    = (*Store)(nil)
)

type Store struct {
	mu     sync.Mutex
	subs   []core.Submission
	rows   [][]any
	limit  int
	lastID int64
}

// New returns an empty store. A positive limit keeps only the most recent
// submissions.
func New(limit int) *Store {
	return &Store{limit: limit}
}

// Submit stores a copy of the submission and returns its reference.
func (s *Store) Submit(_ context.Context, sub core.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.Entries = append([]core.Entry(nil), sub.Entries...)
	if sub.ID == 0 {
		s.lastID++
		sub.ID = s.lastID
	} else if sub.ID > s.lastID {
		s.lastID = sub.ID
	}
	s.subs = append(s.subs, sub)
	if s.limit > 0 && len(s.subs) > s.limit {
		s.subs = append([]core.Submission(nil), s.subs[len(s.subs)-s.limit:]...)
	}
	return sub.Reference, nil
}

// AppendClaims records the sheet rows of the submission and returns a
// synthetic row range.
func (s *Store) AppendClaims(_ context.Context, sub core.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	s.rows = append(s.rows, ports.Rows(sub)...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Submissions returns the stored submissions, oldest first.
func (s *Store) Submissions() []core.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Submission(nil), s.subs...)
}

// Rows returns every appended row.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
