// Package utils holds small filesystem helpers shared by the binaries.
package utils

import (
	"os"
	"path/filepath"
)

// ClearFolder removes everything inside folderPath while keeping the folder
// itself. A missing folder is not an error.
func ClearFolder(folderPath string) error {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		// Remove file or directory (including its contents if it's a directory)
		if err := os.RemoveAll(filepath.Join(folderPath, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}
