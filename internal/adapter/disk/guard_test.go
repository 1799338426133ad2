package disk

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hive-corporation/reportsync/internal/core/ports"
)

func TestCheckReportsLowSpace(t *testing.T) {
	guard := &Guard{
		path:      "/var/tmp/reports",
		minFreeMB: 512,
		freeBytes: func(string) (uint64, error) { return 10 * 1024 * 1024, nil },
	}

	err := guard.Check()
	if !errors.Is(err, ports.ErrDiskLow) {
		t.Errorf("expected ErrDiskLow, got %v", err)
	}
}

func TestCheckPassesWithRoom(t *testing.T) {
	guard := &Guard{
		path:      "/var/tmp/reports",
		minFreeMB: 512,
		freeBytes: func(string) (uint64, error) { return 4 * 1024 * 1024 * 1024, nil },
	}

	if err := guard.Check(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckWrapsProbeError(t *testing.T) {
	guard := &Guard{
		path:      "/nope",
		minFreeMB: 512,
		freeBytes: func(string) (uint64, error) { return 0, fmt.Errorf("statfs failed") },
	}

	err := guard.Check()
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ports.ErrDiskLow) {
		t.Error("probe failure must not read as low disk")
	}
}

func TestCheckAgainstRealFilesystem(t *testing.T) {
	// Floor of zero can never trip on a writable temp dir.
	guard := NewGuard(t.TempDir(), 0)
	if err := guard.Check(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
