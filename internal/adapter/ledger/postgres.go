package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/reportsync/internal/core/domain"
)

const createLedgerTable = `
	CREATE TABLE IF NOT EXISTS report_ledger (
		report_type   TEXT NOT NULL,
		mailing_list  TEXT NOT NULL,
		report_date   DATE NOT NULL,
		remote_id     TEXT NOT NULL,
		local_path    TEXT NOT NULL,
		downloaded_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (report_type, mailing_list, report_date, remote_id)
	)
`

// PostgresLedger keeps the dedup record in a shared database, for
// deployments where the report tree lives on a host that is reimaged and
// the cross-run state must not.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	if _, err := db.Exec(ctx, createLedgerTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure ledger table: %w", err)
	}
	return &PostgresLedger{db: db}, nil
}

func (l *PostgresLedger) Has(ctx context.Context, d domain.ReportDescriptor) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM report_ledger
			WHERE report_type = $1 AND mailing_list = $2 AND report_date = $3 AND remote_id = $4
		)
	`
	var exists bool
	err := l.db.QueryRow(ctx, query, d.ReportType, d.MailingList, d.ReportDate, d.RemoteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return exists, nil
}

// Record is idempotent through the table's composite primary key.
func (l *PostgresLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	query := `
		INSERT INTO report_ledger (report_type, mailing_list, report_date, remote_id, local_path, downloaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (report_type, mailing_list, report_date, remote_id) DO NOTHING
	`
	_, err := l.db.Exec(ctx, query,
		entry.ReportType,
		entry.MailingList,
		entry.ReportDate,
		entry.RemoteID,
		entry.LocalPath,
		entry.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByDate(ctx context.Context, date string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT report_type, mailing_list, to_char(report_date, 'YYYY-MM-DD'), remote_id, local_path, downloaded_at
		FROM report_ledger
		WHERE report_date = $1
		ORDER BY report_type, mailing_list, remote_id
	`
	rows, err := l.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		err := rows.Scan(
			&entry.ReportType,
			&entry.MailingList,
			&entry.ReportDate,
			&entry.RemoteID,
			&entry.LocalPath,
			&entry.DownloadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}

func (l *PostgresLedger) Close() error {
	l.db.Close()
	return nil
}
