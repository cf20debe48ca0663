package backend

import (
	"context"
	"fmt"

	"mileage/internal/amqp"
	"mileage/internal/log"
	"mileage/internal/services"
	gsheet "mileage/internal/sheets/google"
	"mileage/internal/sheets/memory"
	"mileage/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case NoneBackend:
		f.logger.Info("Claim submission disabled")
		return &Result{Type: NoneBackend}, nil
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	f.logger.Info("Initialized memory backend", "limit", config.MemoryLimit)
	return &Result{Type: MemoryBackend, Submitter: memory.New(config.MemoryLimit)}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// A nil *amqp.Client must not become a non-nil Publisher.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewClaimService(repo, publisher, f.logger)

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &Result{
		Type:      SQLiteBackend,
		Submitter: svc,
		Cleanup:   svc.Close,
		Ready:     repo.Ping,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return &Result{Type: SheetsBackend, Submitter: cli}, nil
}
