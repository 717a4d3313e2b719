package restore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Sweep deletes every file left in the staging folder under outputDir and
// then removes the folder tree if it is empty. It does nothing when the
// staging folder does not exist.
func Sweep(outputDir string) error {
	root := filepath.Join(outputDir, StagingDirName)
	if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	var dirs []string
	var errs []error
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", path, err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk staging dir: %w", err)
	}

	// Deepest first so parents are empty by the time they are removed.
	sort.Slice(dirs, func(a, b int) bool { return len(dirs[a]) > len(dirs[b]) })
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil && len(errs) == 0 {
			errs = append(errs, fmt.Errorf("sweep %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}
