package backend

import (
	"context"
	"strings"
	"time"

	"remanejo/internal/services"
	"remanejo/internal/sheets"
	gsheet "remanejo/internal/sheets/google"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the run service and the cleanup of everything wired
// into it.
type BackendResult struct {
	Service *services.RunService
	Cleanup CleanupFunc
}

// Factory builds the run service and opens budget sources.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	OpenSource(ctx context.Context, source string) (sheets.BudgetSource, error)
}

// Config holds what the factory needs from the application configuration.
type Config struct {
	// History; empty path disables it
	SQLiteDBPath string

	// Events; empty URL disables them
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPEventsQueue string

	// Defaults for "gsheet:" sources that omit them
	GoogleSpreadsheetID string
	GoogleSheetName     string

	CacheSize int
	CacheTTL  time.Duration
}

// SourceKind tells where a budget source lives.
type SourceKind string

const (
	FileSource   SourceKind = "file"
	GSheetSource SourceKind = "gsheet"
)

// String implements fmt.Stringer
func (k SourceKind) String() string {
	return string(k)
}

// KindOf classifies a source reference.
func KindOf(source string) SourceKind {
	if strings.HasPrefix(strings.TrimSpace(source), gsheet.SourcePrefix) {
		return GSheetSource
	}
	return FileSource
}
