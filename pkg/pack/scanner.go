package pack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ScannedFile is a directory entry found under the pack root.
type ScannedFile struct {
	Path    string // path on disk
	RelPath string // slash-separated path relative to the pack root
	Regular bool
}

// ScanFiles lists the entries of root. Without recursion only direct entries
// are returned, directories included so the caller can report them as
// skipped. With recursion every non-directory below root is returned.
func ScanFiles(root string, recursive bool) ([]ScannedFile, error) {
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read source dir: %w", err)
		}
		files := make([]ScannedFile, 0, len(entries))
		for _, e := range entries {
			files = append(files, ScannedFile{
				Path:    filepath.Join(root, e.Name()),
				RelPath: e.Name(),
				Regular: e.Type().IsRegular(),
			})
		}
		return files, nil
	}

	var files []ScannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		files = append(files, ScannedFile{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Regular: d.Type().IsRegular(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source dir: %w", err)
	}
	return files, nil
}
