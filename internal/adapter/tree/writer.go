package tree

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hive-corporation/reportsync/internal/core/domain"
)

// Writer persists reports into a year/month/day partitioned tree below
// root. Paths derive purely from the descriptor, so overlapping sync
// windows always land on identical paths.
type Writer struct {
	root      string
	urlPrefix string
}

func NewWriter(root, urlPrefix string) (*Writer, error) {
	if root == "" {
		return nil, fmt.Errorf("tree root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory %s: %w", root, err)
	}
	return &Writer{root: root, urlPrefix: urlPrefix}, nil
}

// Write places data at the descriptor's deterministic path using the
// write-to-temp-then-rename discipline: the file never appears at its final
// path until fully written, so a crash mid-write cannot leave a partial
// file a later run mistakes for a completed download.
func (w *Writer) Write(d domain.ReportDescriptor, data []byte) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to write empty report %s", d.Filename())
	}

	final := filepath.Join(w.root, filepath.FromSlash(d.TreePath()))
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create tree directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+d.Filename())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}
	return final, nil
}

// URI builds the canonical report URI by substituting the configured URL
// prefix for the tree root. Without a prefix the local path is returned
// as-is, matching the notification contract.
func (w *Writer) URI(localPath string) string {
	if w.urlPrefix == "" {
		return localPath
	}
	rel, err := filepath.Rel(w.root, localPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return localPath
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.TrimSuffix(w.urlPrefix, "/") + "/" + strings.Join(segments, "/")
}

// Root exposes the tree root for collaborators that serve or guard it.
func (w *Writer) Root() string {
	return w.root
}
