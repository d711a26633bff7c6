package daemon

import (
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/tunnelguard/tunnelguard/internal/core"
)

// cleanOrphanProcesses kills frpc processes left behind by a previous daemon
// instance. A process counts as ours when its command line references a config
// file inside the application directory. Returns the number of processes
// killed.
func (d *Daemon) cleanOrphanProcesses() int {
	procs, err := process.Processes()
	if err != nil {
		slog.Warn("Orphan scan failed", "error", err)
		return 0
	}

	configDir := core.GetConfigPath()
	killed := 0

	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.HasPrefix(name, "frpc") {
			continue
		}

		cmdline, err := p.Cmdline()
		if err != nil || !strings.Contains(cmdline, configDir) {
			continue
		}

		// Anything our registry tracks is not an orphan
		if d.registryOwnsPid(p.Pid) {
			continue
		}

		slog.Info("Killing orphan tunnel process", "pid", p.Pid, "cmdline", cmdline)
		if err := p.Kill(); err != nil {
			slog.Warn("Failed to kill orphan process", "pid", p.Pid, "error", err)
			continue
		}
		killed++
	}

	return killed
}

// registryOwnsPid reports whether a live OS pid belongs to a tracked tunnel.
func (d *Daemon) registryOwnsPid(pid int32) bool {
	for _, id := range d.reg.Sweep() {
		if owned, ok := d.reg.Pid(id); ok && int32(owned) == pid {
			return true
		}
	}
	return false
}
