package log

import (
	"context"
	"log/slog"
	"net/http"

	"mileage/internal/core"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogEntryCreated logs a journey added to a session ledger.
func (sl *StructuredLogger) LogEntryCreated(ctx context.Context, sessionID, user string, e core.Entry) {
	fields := NewFields().
		WithSession(sessionID, user).
		WithEntry(e.ID, e.VehicleType.String(), e.Miles, e.Rate, e.Reimbursement).
		WithOperation(OpCreate)

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Mileage entry added", fields.ToSlice()...)
}

// LogLedgerCleared logs a bulk clear of a session ledger.
func (sl *StructuredLogger) LogLedgerCleared(ctx context.Context, sessionID, user string, removed int) {
	fields := NewFields().
		WithSession(sessionID, user).
		WithOperation(OpClear)
	fields[FieldEntryCount] = removed

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Mileage entries cleared", fields.ToSlice()...)
}

// LogClaimsSubmitted logs a ledger snapshot handed to the finance team.
func (sl *StructuredLogger) LogClaimsSubmitted(ctx context.Context, sessionID, user, ref string, summary core.Summary) {
	fields := NewFields().
		WithSession(sessionID, user).
		WithOperation(OpSubmit)
	fields[FieldSubmissionRef] = ref
	fields[FieldEntryCount] = summary.Count
	fields[FieldMiles] = summary.TotalMiles.String()
	fields[FieldReimbursement] = summary.TotalReimbursement.StringFixed(2)

	sl.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Mileage claims submitted", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
