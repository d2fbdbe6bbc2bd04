// Package backend assembles the configured ledger, AMQP client and
// closing service into a ready-to-serve unit.
package backend

import (
	"context"
	"database/sql"

	"upkeep/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the assembled closing service and optional cleanup.
// DB is set for database-backed backends so callers can register
// ledger gauges.
type Result struct {
	Service *services.ClosingService
	Cleanup CleanupFunc
	DB      *sql.DB
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
