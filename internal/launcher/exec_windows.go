//go:build windows

package launcher

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// ensureExecutable is a no-op on Windows; execution rights come from the
// file extension.
func ensureExecutable(string) error {
	return nil
}

// configureSysProcAttr keeps the child from flashing a console window.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}
