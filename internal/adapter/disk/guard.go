package disk

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// Guard refuses report writes once free space on the tree's filesystem
// drops below the configured floor. It holds no state, so concurrent checks
// from the fetch pool are safe.
type Guard struct {
	path      string
	minFreeMB int
	freeBytes func(path string) (uint64, error)
}

func NewGuard(path string, minFreeMB int) *Guard {
	return &Guard{path: path, minFreeMB: minFreeMB, freeBytes: freeBytes}
}

// Check returns ports.ErrDiskLow when the free space floor is breached.
func (g *Guard) Check() error {
	free, err := g.freeBytes(g.path)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem at %s: %w", g.path, err)
	}
	if free < uint64(g.minFreeMB)*1024*1024 {
		return fmt.Errorf("%w: %d MB free, floor is %d MB", ports.ErrDiskLow, free/(1024*1024), g.minFreeMB)
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, err
	}
	return fs.Bavail * uint64(fs.Bsize), nil
}
