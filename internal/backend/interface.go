package backend

import (
	"context"

	"mileage/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the backend can accept submissions.
type ReadyFunc func(ctx context.Context) error

// Result contains the submitter and its optional hooks. Submitter is nil
// for the "none" backend.
type Result struct {
	Type      BackendType
	Submitter sheets.ClaimSubmitter
	Cleanup   CleanupFunc
	Ready     ReadyFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory specific; submissions beyond this are dropped oldest first
	MemoryLimit int
}

// BackendType represents the type of backend
type BackendType string

const (
	NoneBackend   BackendType = "none"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case NoneBackend, MemoryBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
