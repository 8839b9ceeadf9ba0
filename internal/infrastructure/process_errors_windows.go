//go:build windows

package infrastructure

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

func isNoSuchProcess(err error) bool {
	// OpenProcess on a pid that has exited reports an invalid parameter
	return errors.Is(err, windows.ERROR_INVALID_PARAMETER)
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED)
}

// enableTerminatePrivilege enables SeDebugPrivilege for system process access
func enableTerminatePrivilege() error {
	var token windows.Token

	err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return fmt.Errorf("OpenProcessToken failed: %w", err)
	}
	defer token.Close()

	var luid windows.LUID
	err = windows.LookupPrivilegeValue(nil,
		windows.StringToUTF16Ptr("SeDebugPrivilege"), &luid)
	if err != nil {
		return fmt.Errorf("LookupPrivilegeValue failed: %w", err)
	}

	tp := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}

	return windows.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil)
}
