//go:build !windows

package domain

import (
	"fmt"
	"os"
)

// openFileForEntropy opens a file for sampling.
// Unix has no mandatory locks, so a plain read-only open is enough.
func openFileForEntropy(filePath string) (*os.File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	return file, nil
}
