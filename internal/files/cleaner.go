package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalCleaner deletes uploaded model files from a directory on disk once
// the owning job reaches a terminal state.
type LocalCleaner struct {
	root string
}

func NewLocalCleaner(root string) *LocalCleaner {
	return &LocalCleaner{root: root}
}

// Remove deletes the file named by fileRef, resolved inside the uploads
// root. References escaping the root are refused. A file that is already
// gone is not an error.
func (c *LocalCleaner) Remove(ctx context.Context, fileRef string) error {
	path := filepath.Join(c.root, filepath.Clean("/"+fileRef))
	if !strings.HasPrefix(path, filepath.Clean(c.root)+string(os.PathSeparator)) {
		return fmt.Errorf("file ref %q resolves outside uploads directory", fileRef)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
