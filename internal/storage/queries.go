package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SubmissionRow mirrors the submissions table.
type SubmissionRow struct {
	ID                 int64
	Reference          string
	SubmittedBy        string
	SubmittedAt        string
	CompanyName        string
	FinanceEmail       string
	CurrencySymbol     string
	EntryCount         int64
	TotalMiles         string
	TotalReimbursement string
	SyncStatus         string
	SyncedAt           sql.NullString
}

// EntryRow mirrors the submission_entries table.
type EntryRow struct {
	SubmissionID  int64
	Position      int64
	EntryID       string
	JourneyDate   string
	FromLocation  string
	ToLocation    string
	Miles         string
	VehicleType   string
	Purpose       string
	Rate          string
	Reimbursement string
	CreatedAt     string
}

const createSubmission = `
INSERT INTO submissions (
    reference, submitted_by, submitted_at, company_name, finance_email,
    currency_symbol, entry_count, total_miles, total_reimbursement
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateSubmission(ctx context.Context, arg SubmissionRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, createSubmission,
		arg.Reference,
		arg.SubmittedBy,
		arg.SubmittedAt,
		arg.CompanyName,
		arg.FinanceEmail,
		arg.CurrencySymbol,
		arg.EntryCount,
		arg.TotalMiles,
		arg.TotalReimbursement,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createSubmissionEntry = `
INSERT INTO submission_entries (
    submission_id, position, entry_id, journey_date, from_location, to_location,
    miles, vehicle_type, purpose, rate, reimbursement, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateSubmissionEntry(ctx context.Context, arg EntryRow) error {
	_, err := q.db.ExecContext(ctx, createSubmissionEntry,
		arg.SubmissionID,
		arg.Position,
		arg.EntryID,
		arg.JourneyDate,
		arg.FromLocation,
		arg.ToLocation,
		arg.Miles,
		arg.VehicleType,
		arg.Purpose,
		arg.Rate,
		arg.Reimbursement,
		arg.CreatedAt,
	)
	return err
}

const getSubmission = `
SELECT id, reference, submitted_by, submitted_at, company_name, finance_email,
       currency_symbol, entry_count, total_miles, total_reimbursement,
       sync_status, synced_at
FROM submissions
WHERE id = ?`

func (q *Queries) GetSubmission(ctx context.Context, id int64) (SubmissionRow, error) {
	row := q.db.QueryRowContext(ctx, getSubmission, id)
	var s SubmissionRow
	err := row.Scan(
		&s.ID,
		&s.Reference,
		&s.SubmittedBy,
		&s.SubmittedAt,
		&s.CompanyName,
		&s.FinanceEmail,
		&s.CurrencySymbol,
		&s.EntryCount,
		&s.TotalMiles,
		&s.TotalReimbursement,
		&s.SyncStatus,
		&s.SyncedAt,
	)
	return s, err
}

const listSubmissionEntries = `
SELECT submission_id, position, entry_id, journey_date, from_location, to_location,
       miles, vehicle_type, purpose, rate, reimbursement, created_at
FROM submission_entries
WHERE submission_id = ?
ORDER BY position`

func (q *Queries) ListSubmissionEntries(ctx context.Context, submissionID int64) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listSubmissionEntries, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		var e EntryRow
		if err := rows.Scan(
			&e.SubmissionID,
			&e.Position,
			&e.EntryID,
			&e.JourneyDate,
			&e.FromLocation,
			&e.ToLocation,
			&e.Miles,
			&e.VehicleType,
			&e.Purpose,
			&e.Rate,
			&e.Reimbursement,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const listPendingSubmissions = `
SELECT id, reference, sync_status
FROM submissions
WHERE sync_status IN ('pending', 'error')
ORDER BY id
LIMIT ?`

func (q *Queries) ListPendingSubmissions(ctx context.Context, limit int64) ([]PendingSubmission, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSubmissions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSubmission
	for rows.Next() {
		var p PendingSubmission
		if err := rows.Scan(&p.ID, &p.Reference, &p.SyncStatus); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateSyncStatus = `
UPDATE submissions
SET sync_status = ?, synced_at = ?, claimed_at = NULL
WHERE id = ?`

func (q *Queries) UpdateSyncStatus(ctx context.Context, id int64, status string, syncedAt sql.NullString) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateSyncStatus, status, syncedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const claimSubmission = `
UPDATE submissions
SET claimed_at = ?
WHERE id = ?
  AND sync_status IN ('pending', 'error')
  AND (claimed_at IS NULL OR claimed_at < ?)`

func (q *Queries) ClaimSubmission(ctx context.Context, id int64, claimedAt, staleBefore string) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimSubmission, claimedAt, id, staleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
