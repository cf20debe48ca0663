package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/amqp"
	"mileage/internal/core"
	"mileage/internal/sheets/memory"
	"mileage/internal/storage"
)

type fakeArchive struct {
	mu      sync.Mutex
	subs    map[int64]core.Submission
	status  map[int64]string
	claimed map[int64]bool
}

func newFakeArchive(n int) *fakeArchive {
	a := &fakeArchive{subs: map[int64]core.Submission{}, status: map[int64]string{}, claimed: map[int64]bool{}}
	for i := 1; i <= n; i++ {
		sub := core.NewSubmission(fmt.Sprintf("ref-%d", i), "HM", time.Now(), core.Business{}, []core.Entry{{
			Date:          core.NewDate(2025, 1, 1),
			Miles:         decimal.NewFromInt(10),
			VehicleType:   core.Car,
			Rate:          decimal.RequireFromString("0.45"),
			Reimbursement: decimal.RequireFromString("4.50"),
		}})
		sub.ID = int64(i)
		a.subs[sub.ID] = sub
		a.status[sub.ID] = storage.SyncPending
	}
	return a
}

func (a *fakeArchive) GetSubmission(_ context.Context, id int64) (core.Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.subs[id]
	if !ok {
		return core.Submission{}, storage.ErrNotFound
	}
	return s, nil
}

func (a *fakeArchive) ListPendingSubmissions(_ context.Context, limit int) ([]storage.PendingSubmission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []storage.PendingSubmission
	for id := int64(1); id <= int64(len(a.subs)) && len(out) < limit; id++ {
		if a.status[id] != storage.SyncDone {
			out = append(out, storage.PendingSubmission{ID: id, Reference: a.subs[id].Reference, SyncStatus: a.status[id]})
		}
	}
	return out, nil
}

func (a *fakeArchive) ClaimForSync(_ context.Context, id int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status[id] == storage.SyncDone || a.claimed[id] {
		return false, nil
	}
	a.claimed[id] = true
	return true, nil
}

func (a *fakeArchive) MarkSynced(_ context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status[id] = storage.SyncDone
	delete(a.claimed, id)
	return nil
}

func (a *fakeArchive) MarkSyncError(_ context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status[id] = storage.SyncError
	delete(a.claimed, id)
	return nil
}

func (a *fakeArchive) statusOf(id int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status[id]
}

type failingWriter struct{}

func (failingWriter) AppendClaims(context.Context, core.Submission) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleClaimsSubmitted(t *testing.T) {
	archive := newFakeArchive(1)
	sheet := memory.New(0)
	w := NewSyncWorker(archive, sheet, 5, nil)

	if err := w.HandleClaimsSubmitted(context.Background(), amqp.NewClaimsSubmittedMessage(1, "ref-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if archive.statusOf(1) != storage.SyncDone {
		t.Fatalf("status=%q", archive.statusOf(1))
	}
	if rows := sheet.Rows(); len(rows) != 1 || rows[0][0] != "ref-1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestHandleClaimsSubmittedUnknownSubmission(t *testing.T) {
	w := NewSyncWorker(newFakeArchive(0), memory.New(0), 5, nil)
	err := w.HandleClaimsSubmitted(context.Background(), amqp.NewClaimsSubmittedMessage(9, "x"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandleClaimsSubmittedSheetFailureMarksError(t *testing.T) {
	archive := newFakeArchive(1)
	w := NewSyncWorker(archive, failingWriter{}, 5, nil)

	if err := w.HandleClaimsSubmitted(context.Background(), amqp.NewClaimsSubmittedMessage(1, "ref-1")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if archive.statusOf(1) != storage.SyncError {
		t.Fatalf("status=%q", archive.statusOf(1))
	}
}

func TestStartupSyncCheck(t *testing.T) {
	archive := newFakeArchive(12)
	sheet := memory.New(0)
	w := NewSyncWorker(archive, sheet, 3, nil)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	for id := int64(1); id <= 12; id++ {
		if archive.statusOf(id) != storage.SyncDone {
			t.Fatalf("submission %d status=%q", id, archive.statusOf(id))
		}
	}
	if len(sheet.Rows()) != 12 {
		t.Fatalf("rows=%d", len(sheet.Rows()))
	}
}

func TestStartupSyncCheckKeepsGoingOnErrors(t *testing.T) {
	archive := newFakeArchive(3)
	w := NewSyncWorker(archive, failingWriter{}, 2, nil)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	for id := int64(1); id <= 3; id++ {
		if archive.statusOf(id) != storage.SyncError {
			t.Fatalf("submission %d status=%q", id, archive.statusOf(id))
		}
	}
}

func TestProcessPendingRespectsBatchSize(t *testing.T) {
	archive := newFakeArchive(5)
	sheet := memory.New(0)
	w := NewSyncWorker(archive, sheet, 2, nil)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sheet.Rows()) != 2 {
		t.Fatalf("rows=%d", len(sheet.Rows()))
	}
	if archive.statusOf(3) != storage.SyncPending {
		t.Fatal("processed beyond the batch")
	}
}

// gatedWriter blocks in AppendClaims until release is closed.
type gatedWriter struct {
	entered chan struct{}
	release chan struct{}
	sheet   *memory.Store
}

func (g *gatedWriter) AppendClaims(ctx context.Context, sub core.Submission) (string, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.sheet.AppendClaims(ctx, sub)
}

func TestConcurrentSyncAppendsOnce(t *testing.T) {
	archive := newFakeArchive(1)
	writer := &gatedWriter{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		sheet:   memory.New(0),
	}
	w := NewSyncWorker(archive, writer, 5, nil)

	done := make(chan error, 1)
	go func() {
		done <- w.HandleClaimsSubmitted(context.Background(), amqp.NewClaimsSubmittedMessage(1, "ref-1"))
	}()
	<-writer.entered

	// The sweep finds the same submission while the message is in flight.
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	close(writer.release)
	if err := <-done; err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rows := writer.sheet.Rows(); len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if archive.statusOf(1) != storage.SyncDone {
		t.Fatalf("status=%q", archive.statusOf(1))
	}
}

func TestSyncedSubmissionIsNotAppendedAgain(t *testing.T) {
	archive := newFakeArchive(1)
	sheet := memory.New(0)
	w := NewSyncWorker(archive, sheet, 5, nil)

	msg := amqp.NewClaimsSubmittedMessage(1, "ref-1")
	for i := 0; i < 2; i++ {
		if err := w.HandleClaimsSubmitted(context.Background(), msg); err != nil {
			t.Fatalf("handle %d: %v", i+1, err)
		}
	}
	if rows := sheet.Rows(); len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
}
