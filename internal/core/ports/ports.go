package ports

import (
	"context"
	"errors"

	"github.com/hive-corporation/reportsync/internal/core/domain"
)

var (
	// ErrReportNotFound means the catalog no longer serves a report it
	// previously enumerated. Not retryable.
	ErrReportNotFound = errors.New("report not found")

	// ErrDiskLow means free space is below the configured floor and no
	// further writes may be issued this run.
	ErrDiskLow = errors.New("disk free space below threshold")
)

// CatalogClient is the remote API boundary: enumerate available reports for
// a window and fetch individual report bytes. Fetch failures are either
// ErrReportNotFound or transient network errors.
type CatalogClient interface {
	List(ctx context.Context, window domain.SyncWindow, types, mailingLists []string) ([]domain.ReportDescriptor, error)
	Fetch(ctx context.Context, d domain.ReportDescriptor) ([]byte, error)
}

// Ledger is the durable dedup record of reports already materialized.
// Implementations must be safe for concurrent use and must survive process
// restarts. Record is idempotent: recording a key twice must not produce a
// second accounting entry.
type Ledger interface {
	Has(ctx context.Context, d domain.ReportDescriptor) (bool, error)
	Record(ctx context.Context, entry domain.LedgerEntry) error
	FindByDate(ctx context.Context, date string) ([]domain.LedgerEntry, error)
	Close() error
}

// DiskGuard refuses writes when free space drops below the configured
// floor. Checked once per write attempt, not once per run.
type DiskGuard interface {
	// Check returns nil when there is room, ErrDiskLow otherwise.
	Check() error
}

// TreeWriter persists report bytes at a path derived purely from the
// descriptor and maps local paths to canonical URIs.
type TreeWriter interface {
	// Write atomically places data at the descriptor's deterministic path
	// and returns the final local path. The file never appears at its
	// final path until fully written.
	Write(d domain.ReportDescriptor, data []byte) (string, error)
	// URI substitutes the configured URL prefix for the tree root. When no
	// prefix is configured it returns the local path unchanged.
	URI(localPath string) string
}

// Notifier publishes one message per newly written report to the configured
// backend. Connections are established lazily on first publish and reused
// for the run; Close releases them when the run completes.
type Notifier interface {
	Publish(ctx context.Context, msg domain.NotificationMessage) error
	Close() error
}
