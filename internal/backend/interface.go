package backend

import (
	"context"

	"expenses/internal/ledger"
)

// Store is everything the API server and the mirror worker need from a
// storage backend.
type Store interface {
	ledger.Store
	PendingSync(ctx context.Context, maxAttempts, limit int) ([]int64, error)
	MarkSynced(ctx context.Context, id int64) error
	IsSynced(ctx context.Context, id int64) (bool, error)
	MarkSyncError(ctx context.Context, id int64) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store and its cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// MySQL specific
	MySQLDSN      string
	MySQLLogLevel string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MySQLBackend    BackendType = "mysql"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MySQLBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
