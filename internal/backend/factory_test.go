package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/config"
	"mileage/internal/core"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name          string
		config        Config
		wantSubmitter bool
		wantErr       string
	}{
		{"none", Config{Type: NoneBackend}, false, ""},
		{"memory", Config{Type: MemoryBackend}, true, ""},
		{"sqlite without amqp", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "claims.db")}, true, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, false, "SQLite database path"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, false, "GoogleServiceAccountJSON"},
		{"unknown", Config{Type: "postgres"}, false, "invalid backend type"},
	}

	f := NewFactory(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tc.config)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			t.Cleanup(func() { res.Close() })
			if (res.Submitter != nil) != tc.wantSubmitter {
				t.Fatalf("submitter=%v", res.Submitter)
			}
			if res.Type != tc.config.Type {
				t.Fatalf("type=%s", res.Type)
			}
		})
	}
}

func TestSQLiteBackendSubmits(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "claims.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if err := res.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
	sub := core.NewSubmission("ref-1", "HM", time.Now(), core.Business{}, []core.Entry{{
		ID:            "e1",
		Date:          core.NewDate(2025, 1, 1),
		Miles:         decimal.NewFromInt(1),
		VehicleType:   core.Car,
		Rate:          decimal.RequireFromString("0.45"),
		Reimbursement: decimal.RequireFromString("0.45"),
	}})
	ref, err := res.Submitter.Submit(context.Background(), sub)
	if err != nil || ref != "ref-1" {
		t.Fatalf("unexpected submit: ref=%q err=%v", ref, err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{SubmitBackend: "ftp"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{
		SubmitBackend:            config.BackendSheets,
		GoogleSpreadsheetID:      "sheet",
		GoogleSheetName:          "Claims",
		GoogleServiceAccountFile: "/tmp/sa.json",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "sheet" || cfg.GoogleServiceAccountFile != "/tmp/sa.json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
