package backend

import (
	"context"
	"fmt"
	"log/slog"

	"budgetcal/internal/amqp"
	gsheet "budgetcal/internal/sheets/google"
	"budgetcal/internal/storage"
	"budgetcal/internal/storage/memory"
	"budgetcal/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create opens the store, then connects the optional broker and exporter.
// Broker and exporter failures are logged and leave the companion nil.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	res := &Result{Store: store}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without recalculation events", "error", err)
		} else {
			res.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleCredentialsJSON,
			CredentialsFile: config.GoogleCredentialsFile,
		})
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets exporter, continuing without export", "error", err)
		} else {
			res.Exporter = exporter
			f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.GoogleSpreadsheetID)
		}
	}

	return res, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.Open(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend")
		return repo, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		userID := config.DefaultUserID
		if userID < 1 {
			userID = 1
		}
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir, userID), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
