package ledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// Open selects the ledger backend from the DSN scheme: a plain path or a
// file:// DSN opens the append-only JSONL ledger, postgres:// opens the
// shared database ledger.
func Open(ctx context.Context, dsn string) (ports.Ledger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("ledger DSN is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger DSN: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		return OpenFile(filePath(parsed, dsn))
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported ledger scheme: %s", parsed.Scheme)
	}
}

func filePath(parsed *url.URL, raw string) string {
	if parsed.Scheme == "" {
		return raw
	}
	if parsed.Path != "" {
		return parsed.Path
	}
	return parsed.Opaque
}
