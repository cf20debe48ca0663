package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/core"
	"mileage/internal/log"

	_ "modernc.org/sqlite"
)

// Sync states of an archived submission.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("submission not found")

// DefaultClaimLease is how long a sync claim blocks other workers before it
// is considered abandoned.
const DefaultClaimLease = 5 * time.Minute

// claimTimeFormat is fixed width so stored claim times compare as strings.
const claimTimeFormat = "2006-01-02T15:04:05.000000000Z"


// PendingSubmission identifies a submission not yet copied to the sheet.
type PendingSubmission struct {
	ID         int64
	Reference  string
	SyncStatus string
}

// SQLiteRepository archives submitted claim batches.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
	lease   time.Duration
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
		lease:   DefaultClaimLease,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateSubmission stores the submission and its entries in one
// transaction and returns the new id.
func (r *SQLiteRepository) CreateSubmission(ctx context.Context, s core.Submission) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	id, err := q.CreateSubmission(ctx, SubmissionRow{
		Reference:          s.Reference,
		SubmittedBy:        s.SubmittedBy,
		SubmittedAt:        s.SubmittedAt.UTC().Format(time.RFC3339Nano),
		CompanyName:        s.Business.CompanyName,
		FinanceEmail:       s.Business.FinanceEmail,
		CurrencySymbol:     s.Business.CurrencySymbol,
		EntryCount:         int64(s.Summary.Count),
		TotalMiles:         s.Summary.TotalMiles.String(),
		TotalReimbursement: s.Summary.TotalReimbursement.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("create submission: %w", err)
	}

	for i, e := range s.Entries {
		err := q.CreateSubmissionEntry(ctx, EntryRow{
			SubmissionID:  id,
			Position:      int64(i),
			EntryID:       e.ID,
			JourneyDate:   e.Date.String(),
			FromLocation:  e.From,
			ToLocation:    e.To,
			Miles:         e.Miles.String(),
			VehicleType:   string(e.VehicleType),
			Purpose:       e.Purpose,
			Rate:          e.Rate.String(),
			Reimbursement: e.Reimbursement.String(),
			CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return 0, fmt.Errorf("create submission entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submission: %w", err)
	}

	r.logger.InfoContext(ctx, "Submission saved to SQLite",
		"id", id,
		log.FieldSubmissionRef, s.Reference,
		log.FieldEntryCount, len(s.Entries),
		log.FieldReimbursement, s.Summary.TotalReimbursement.StringFixed(2))

	return id, nil
}

// GetSubmission loads a submission with its entries in their original
// order.
func (r *SQLiteRepository) GetSubmission(ctx context.Context, id int64) (core.Submission, error) {
	row, err := r.queries.GetSubmission(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Submission{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return core.Submission{}, fmt.Errorf("get submission: %w", err)
	}

	entryRows, err := r.queries.ListSubmissionEntries(ctx, id)
	if err != nil {
		return core.Submission{}, fmt.Errorf("list submission entries: %w", err)
	}

	submittedAt, err := time.Parse(time.RFC3339Nano, row.SubmittedAt)
	if err != nil {
		return core.Submission{}, fmt.Errorf("parse submitted_at: %w", err)
	}

	entries := make([]core.Entry, 0, len(entryRows))
	for _, er := range entryRows {
		e, err := entryFromRow(er)
		if err != nil {
			return core.Submission{}, fmt.Errorf("submission %d entry %d: %w", id, er.Position, err)
		}
		entries = append(entries, e)
	}

	sub := core.NewSubmission(row.Reference, row.SubmittedBy, submittedAt, core.Business{
		CompanyName:    row.CompanyName,
		FinanceEmail:   row.FinanceEmail,
		CurrencySymbol: row.CurrencySymbol,
	}, entries)
	sub.ID = row.ID
	return sub, nil
}

func entryFromRow(er EntryRow) (core.Entry, error) {
	date, err := core.ParseDate(er.JourneyDate)
	if err != nil {
		return core.Entry{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, er.CreatedAt)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	miles, err := decimal.NewFromString(er.Miles)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse miles: %w", err)
	}
	rate, err := decimal.NewFromString(er.Rate)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse rate: %w", err)
	}
	amount, err := decimal.NewFromString(er.Reimbursement)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse reimbursement: %w", err)
	}
	return core.Entry{
		ID:            er.EntryID,
		Date:          date,
		From:          er.FromLocation,
		To:            er.ToLocation,
		Miles:         miles,
		VehicleType:   core.VehicleType(er.VehicleType),
		Purpose:       er.Purpose,
		Rate:          rate,
		Reimbursement: amount,
		CreatedAt:     createdAt,
	}, nil
}

// ListPendingSubmissions returns submissions waiting for (or that failed) a
// sheet sync, oldest first.
func (r *SQLiteRepository) ListPendingSubmissions(ctx context.Context, limit int) ([]PendingSubmission, error) {
	if limit <= 0 {
		limit = 10
	}
	pending, err := r.queries.ListPendingSubmissions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	return pending, nil
}

// ClaimForSync takes a pending or failed submission for syncing. It reports
// false when the submission is already synced or another sync holds a claim
// younger than the lease. Marking the submission synced or failed releases
// the claim.
func (r *SQLiteRepository) ClaimForSync(ctx context.Context, id int64) (bool, error) {
	now := r.now().UTC()
	n, err := r.queries.ClaimSubmission(ctx, id,
		now.Format(claimTimeFormat),
		now.Add(-r.lease).Format(claimTimeFormat))
	if err != nil {
		return false, fmt.Errorf("claim submission: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	at := sql.NullString{String: r.now().UTC().Format(time.RFC3339Nano), Valid: true}
	return r.setSyncStatus(ctx, id, SyncDone, at)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncError, sql.NullString{})
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string, at sql.NullString) error {
	n, err := r.queries.UpdateSyncStatus(ctx, id, status, at)
	if err != nil {
		return fmt.Errorf("mark submission %s: %w", status, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, strconv.FormatInt(id, 10))
	}
	return nil
}

// SyncStatus returns the sync state of a submission.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	row, err := r.queries.GetSubmission(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("get submission: %w", err)
	}
	return row.SyncStatus, nil
}
