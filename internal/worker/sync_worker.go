package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"mileage/internal/amqp"
	"mileage/internal/core"
	"mileage/internal/log"
	"mileage/internal/sheets"
	"mileage/internal/storage"
)

// Archive is the part of the submission archive the worker needs.
type Archive interface {
	GetSubmission(ctx context.Context, id int64) (core.Submission, error)
	ListPendingSubmissions(ctx context.Context, limit int) ([]storage.PendingSubmission, error)
	ClaimForSync(ctx context.Context, id int64) (bool, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies archived submissions to the finance spreadsheet.
type SyncWorker struct {
	archive   Archive
	sheets    sheets.ClaimWriter
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(archive Archive, writer sheets.ClaimWriter, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		archive:   archive,
		sheets:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleClaimsSubmitted processes a single claims-submitted message.
func (w *SyncWorker) HandleClaimsSubmitted(ctx context.Context, msg *amqp.ClaimsSubmittedMessage) error {
	w.logger.InfoContext(ctx, "Processing claims submitted message",
		"submission_id", msg.SubmissionID,
		log.FieldSubmissionRef, msg.Reference)

	return w.syncSubmission(ctx, msg.SubmissionID)
}

// ProcessPending syncs up to batchSize pending submissions one at a time.
// It backs up the message path when messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.archive.ListPendingSubmissions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending submissions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending submissions", "count", len(pending))
	for _, p := range pending {
		if err := w.syncSubmission(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync submission", "submission_id", p.ID, log.FieldError, err)
		}
	}
	return nil
}

// StartupSyncCheck syncs pending submissions at worker start, batchSize at
// a time concurrently.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.archive.ListPendingSubmissions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending submissions for startup check: %w", err)
	}

	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "No pending submissions found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "Found pending submissions on startup, processing...",
		"count", len(pending))

	var synced, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.batchSize)
	for _, p := range pending {
		p := p
		g.Go(func() error {
			if err := w.syncSubmission(gctx, p.ID); err != nil {
				w.logger.ErrorContext(gctx, "Failed to sync submission during startup",
					"submission_id", p.ID, log.FieldError, err)
				failed.Add(1)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced.Load(),
		"errors", failed.Load())
	return ctx.Err()
}

func (w *SyncWorker) syncSubmission(ctx context.Context, id int64) error {
	sub, err := w.archive.GetSubmission(ctx, id)
	if err != nil {
		return fmt.Errorf("get submission from storage: %w", err)
	}

	// The message path and the periodic sweep can race for the same
	// submission; only the claim holder appends rows.
	claimed, err := w.archive.ClaimForSync(ctx, id)
	if err != nil {
		return fmt.Errorf("claim submission: %w", err)
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Submission already synced or in progress, skipping",
			"submission_id", id,
			log.FieldSubmissionRef, sub.Reference)
		return nil
	}

	ref, err := w.sheets.AppendClaims(ctx, sub)
	if err != nil {
		if markErr := w.archive.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", "submission_id", id, log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The rows are written; a failed status update only means a later
	// duplicate sync.
	if err := w.archive.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", "submission_id", id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced submission",
		"submission_id", id,
		log.FieldSubmissionRef, sub.Reference,
		"sheets_ref", ref,
		log.FieldEntryCount, len(sub.Entries),
		log.FieldReimbursement, sub.Summary.TotalReimbursement.StringFixed(2))
	return nil
}
