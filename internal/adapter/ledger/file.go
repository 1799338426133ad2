package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hive-corporation/reportsync/internal/core/domain"
)

// FileLedger is the default backing store: one JSON object per line,
// append-only. The full index is kept in memory and every Record is
// appended and fsynced before it is acknowledged, so entries survive
// process restarts and crashes.
type FileLedger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	entries map[string]domain.LedgerEntry
}

func OpenFile(path string) (*FileLedger, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}

	entries, err := loadEntries(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file %s: %w", path, err)
	}

	return &FileLedger{path: path, file: file, entries: entries}, nil
}

func loadEntries(path string) (map[string]domain.LedgerEntry, error) {
	entries := make(map[string]domain.LedgerEntry)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read ledger file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// A crash mid-append leaves at most one torn trailing line.
			log.Printf("⚠️  Skipping unparsable ledger line in %s: %v", path, err)
			continue
		}
		entries[entry.Key()] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan ledger file %s: %w", path, err)
	}
	return entries, nil
}

func (l *FileLedger) Has(ctx context.Context, d domain.ReportDescriptor) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[d.Key()]
	return ok, nil
}

// Record appends the entry unless its key is already present. The retry
// path after a crash between write-to-tree and record re-attempts both
// steps, so double recording must be a no-op.
func (l *FileLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := entry.Key()
	if _, ok := l.entries[key]; ok {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to ledger %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger %s: %w", l.path, err)
	}

	l.entries[key] = entry
	return nil
}

func (l *FileLedger) FindByDate(ctx context.Context, date string) ([]domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.LedgerEntry
	for _, entry := range l.entries {
		if entry.ReportDate == date {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Len reports how many entries the ledger holds.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
