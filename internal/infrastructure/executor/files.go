package executor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/doeshing/vrelay/internal/domain"
)

// The helpers below are exported to filesystem fragments as the "files"
// package. They return text instead of errors so a fragment can print the
// result directly; failures carry the error marker and fail the attempt.

// ReadFile returns the contents of path.
func ReadFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("%s failed to read file: %v", domain.ErrorMarker, err)
	}
	return string(data)
}

// WriteFile replaces the contents of path.
func WriteFile(path, content string) string {
	if err := os.WriteFile(path, []byte(content), domain.DataFilePermissions); err != nil {
		return fmt.Sprintf("%s failed to write file: %v", domain.ErrorMarker, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path)
}

// ListDir returns the entry names of dir, one per line.
func ListDir(dir string) string {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("%s failed to list directory: %v", domain.ErrorMarker, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

// WalkDir renders the tree under root: each directory on its own line followed
// by its files.
func WalkDir(root string) string {
	if root == "" {
		root = "."
	}
	var lines []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			lines = append(lines, path)
			return nil
		}
		lines = append(lines, "  └── "+d.Name())
		return nil
	})
	if err != nil {
		return fmt.Sprintf("%s failed to walk directory: %v", domain.ErrorMarker, err)
	}
	return strings.Join(lines, "\n")
}
