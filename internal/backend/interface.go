package backend

import (
	"context"

	"budgetcal/internal/amqp"
	"budgetcal/internal/services"
	"budgetcal/internal/sheets"
	"budgetcal/internal/storage"
)

// Result holds the wired data backend and its optional companions.
type Result struct {
	Store storage.Repository
	// AMQP is nil when no broker is configured or reachable.
	AMQP *amqp.Client
	// Exporter is nil when no spreadsheet is configured.
	Exporter sheets.ForecastExporter
}

// Publisher returns the recalculation publisher, or nil when events are off.
func (r *Result) Publisher() services.Publisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Close releases the broker connection and the store.
func (r *Result) Close() error {
	var firstErr error
	if r.AMQP != nil {
		firstErr = r.AMQP.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	SQLiteDBPath string
	PostgresDSN  string

	// Memory backend seed directory
	DataDirectory string
	DefaultUserID int64

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

// Type is the storage engine behind the repository ports.
type Type string

const (
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
	MemoryBackend   Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
