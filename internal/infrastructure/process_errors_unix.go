//go:build !windows

package infrastructure

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH) || errors.Is(err, os.ErrProcessDone)
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}

func enableTerminatePrivilege() error {
	return nil
}
