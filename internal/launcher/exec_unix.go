//go:build !windows

package launcher

import (
	"fmt"
	"os"
	"os/exec"
)

// ensureExecutable sets the execute bits on a freshly downloaded binary.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode()&0o111 != 0 {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", path, err)
	}
	return nil
}

func configureSysProcAttr(cmd *exec.Cmd) {}
