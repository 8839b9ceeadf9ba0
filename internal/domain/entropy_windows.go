//go:build windows

package domain

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// openFileShared opens a file with FILE_SHARE_READ|FILE_SHARE_WRITE|FILE_SHARE_DELETE
// so a file held open for writing by another process can still be sampled
func openFileShared(filePath string) (*os.File, error) {
	pathPtr, err := windows.UTF16PtrFromString(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to convert path: %w", err)
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateFile failed: %w", err)
	}

	file := os.NewFile(uintptr(handle), filePath)
	if file == nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("failed to create os.File from handle")
	}

	return file, nil
}

// openFileForEntropy tries a shared-mode open first, then falls back to os.Open
func openFileForEntropy(filePath string) (*os.File, error) {
	file, err := openFileShared(filePath)
	if err == nil {
		return file, nil
	}

	file, err2 := os.Open(filePath)
	if err2 == nil {
		return file, nil
	}

	return nil, fmt.Errorf("cannot open file (Windows API: %v, os.Open: %w)", err, err2)
}
