package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hive-corporation/reportsync/internal/core/domain"
)

func testEntry(remoteID string) domain.LedgerEntry {
	return domain.LedgerEntry{
		ReportType:   "scan_stun",
		MailingList:  "example_com-asn",
		ReportDate:   "2022-08-31",
		RemoteID:     remoteID,
		LocalPath:    "/var/tmp/reports/2022/08/31/report-" + remoteID + ".csv",
		DownloadedAt: time.Date(2022, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func descriptorFor(entry domain.LedgerEntry) domain.ReportDescriptor {
	return domain.ReportDescriptor{
		ReportType:  entry.ReportType,
		MailingList: entry.MailingList,
		ReportDate:  entry.ReportDate,
		RemoteID:    entry.RemoteID,
	}
}

func TestFileLedgerRecordAndHas(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	ledger, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer ledger.Close()

	entry := testEntry("abc")
	exists, err := ledger.Has(ctx, descriptorFor(entry))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if exists {
		t.Fatal("empty ledger should not contain the entry")
	}

	if err := ledger.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	exists, err = ledger.Has(ctx, descriptorFor(entry))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !exists {
		t.Error("recorded entry not found")
	}
}

func TestFileLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	first, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := first.Record(ctx, testEntry("abc")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	first.Close()

	second, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	exists, err := second.Has(ctx, descriptorFor(testEntry("abc")))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !exists {
		t.Error("entry lost across reopen")
	}
}

func TestFileLedgerRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	ledger, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	entry := testEntry("abc")
	if err := ledger.Record(ctx, entry); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := ledger.Record(ctx, entry); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	ledger.Close()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Len(); got != 1 {
		t.Errorf("expected 1 entry after double record, got %d", got)
	}
}

func TestFileLedgerRepublishedRemoteIDIsNewEntry(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenFile(filepath.Join(t.TempDir(), "ledger.jsonl"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer ledger.Close()

	if err := ledger.Record(ctx, testEntry("v1")); err != nil {
		t.Fatalf("Record v1: %v", err)
	}
	if err := ledger.Record(ctx, testEntry("v2")); err != nil {
		t.Fatalf("Record v2: %v", err)
	}

	if got := ledger.Len(); got != 2 {
		t.Errorf("expected 2 entries for republished report, got %d", got)
	}
}

func TestFileLedgerFindByDate(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenFile(filepath.Join(t.TempDir(), "ledger.jsonl"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer ledger.Close()

	onDate := testEntry("abc")
	offDate := testEntry("def")
	offDate.ReportDate = "2022-08-30"
	if err := ledger.Record(ctx, onDate); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ledger.Record(ctx, offDate); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := ledger.FindByDate(ctx, "2022-08-31")
	if err != nil {
		t.Fatalf("FindByDate: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].RemoteID != "abc" {
		t.Errorf("wrong entry returned: %+v", entries[0])
	}
}

func TestFileLedgerToleratesTornTrailingLine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	ledger, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := ledger.Record(ctx, testEntry("abc")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	ledger.Close()

	// Simulate a crash mid-append.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := file.WriteString(`{"report_type":"scan_s`); err != nil {
		t.Fatalf("append torn line: %v", err)
	}
	file.Close()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen with torn line: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Len(); got != 1 {
		t.Errorf("expected 1 entry, got %d", got)
	}
}

func TestFileLedgerConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenFile(filepath.Join(t.TempDir(), "ledger.jsonl"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer ledger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			entry := testEntry(fmt.Sprintf("worker-%d", n))
			if err := ledger.Record(ctx, entry); err != nil {
				t.Errorf("Record: %v", err)
			}
			if _, err := ledger.Has(ctx, descriptorFor(entry)); err != nil {
				t.Errorf("Has: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := ledger.Len(); got != 8 {
		t.Errorf("expected 8 entries, got %d", got)
	}
}
