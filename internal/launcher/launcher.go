// Package launcher ties the supervisor together for single tunnel start/stop
// operations: it composes the on-disk config, validates and spawns the frpc
// binary, wires the log streaming pipeline, registers the process and enrolls
// it with the guard.
package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/tunnelguard/tunnelguard/internal/events"
	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
	"github.com/tunnelguard/tunnelguard/internal/guard"
	"github.com/tunnelguard/tunnelguard/internal/registry"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

var (
	// ErrBinaryMissing means the frpc binary is not present in the
	// application directory.
	ErrBinaryMissing = errors.New("frpc binary not found, download it into the application directory first")
)

type Launcher struct {
	appDir   string
	reg      *registry.Registry
	guard    *guard.Guard
	emitter  events.Emitter
	recorder guard.Recorder
}

func New(appDir string, reg *registry.Registry, g *guard.Guard, emitter events.Emitter) *Launcher {
	return &Launcher{
		appDir:  appDir,
		reg:     reg,
		guard:   g,
		emitter: emitter,
	}
}

// SetRecorder enables lifecycle event persistence. Optional.
func (l *Launcher) SetRecorder(rec guard.Recorder) {
	l.recorder = rec
}

// BinaryPath returns the expected frpc binary location.
func (l *Launcher) BinaryPath() string {
	name := "frpc"
	if runtime.GOOS == "windows" {
		name = "frpc.exe"
	}
	return filepath.Join(l.appDir, name)
}

func (l *Launcher) officialConfigPath(id int32) string {
	return filepath.Join(l.appDir, fmt.Sprintf("g_%d.ini", id))
}

// StartOfficial generates the tunnel's config, writes it to its per-tunnel
// file and launches frpc on it. Returns the child's OS process id.
func (l *Launcher) StartOfficial(cfg frpconfig.TunnelConfig) (int, error) {
	if l.reg.IsRunning(cfg.TunnelID) {
		return 0, registry.ErrAlreadyRunning
	}

	content, err := frpconfig.Generate(cfg)
	if err != nil {
		return 0, err
	}

	configPath := l.officialConfigPath(cfg.TunnelID)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return 0, fmt.Errorf("failed to write config file: %w", err)
	}

	pid, err := l.spawn(cfg.TunnelID, configPath, []string{cfg.UserToken, cfg.NodeToken})
	if err != nil {
		return 0, err
	}

	l.guard.EnrollOfficial(cfg)
	l.record(cfg.TunnelID, "start", fmt.Sprintf("tunnel %s, PID %d", cfg.TunnelName, pid))

	l.emitter.EmitLog(events.LogMessage{
		TunnelID:  cfg.TunnelID,
		Message:   fmt.Sprintf("[I] frpc process started (PID: %d), connecting to server...", pid),
		Timestamp: events.Timestamp(),
	})
	return pid, nil
}

// StartCustom launches frpc on a custom tunnel's existing config file. The
// file is the durable definition of the tunnel and is never regenerated here.
func (l *Launcher) StartCustom(name string) (int, error) {
	id := frpconfig.HashCustomID(name)

	if l.reg.IsRunning(id) {
		return 0, registry.ErrAlreadyRunning
	}

	configPath := filepath.Join(l.appDir, tunnelstore.ConfigFileName(name))
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return 0, tunnelstore.ErrNotFound
	}

	pid, err := l.spawn(id, configPath, nil)
	if err != nil {
		return 0, err
	}

	l.guard.EnrollCustom(id, name)
	l.record(id, "start", fmt.Sprintf("custom tunnel %s, PID %d", name, pid))

	l.emitter.EmitLog(events.LogMessage{
		TunnelID:  id,
		Message:   fmt.Sprintf("[I] custom tunnel %s started (PID: %d)", name, pid),
		Timestamp: events.Timestamp(),
	})
	return pid, nil
}

// StopOfficial stops an official tunnel. The manual-stop mark is written
// before the process is signaled so a concurrent watchdog tick sees the stop
// as intentional. The transient config file is removed; official configs only
// exist while their tunnel runs.
func (l *Launcher) StopOfficial(id int32) error {
	l.guard.Unenroll(id, true)

	err := l.reg.RemoveAndTerminate(id)
	if errors.Is(err, registry.ErrNotRunning) {
		return err
	}

	if rmErr := os.Remove(l.officialConfigPath(id)); rmErr != nil && !os.IsNotExist(rmErr) {
		slog.Warn("Failed to remove tunnel config file", "tunnel_id", id, "error", rmErr)
	}

	l.record(id, "stop", "manual stop")
	return err
}

// StopCustom stops a custom tunnel. Its config file stays on disk; it is the
// tunnel's durable definition.
func (l *Launcher) StopCustom(name string) error {
	id := frpconfig.HashCustomID(name)
	l.guard.Unenroll(id, true)

	err := l.reg.RemoveAndTerminate(id)
	if errors.Is(err, registry.ErrNotRunning) {
		return err
	}

	l.record(id, "stop", fmt.Sprintf("manual stop of custom tunnel %s", name))
	return err
}

// Restart re-invokes the appropriate start path for a guard enrollment.
// Wired into the guard as its RestartFunc.
func (l *Launcher) Restart(e guard.Enrollment) error {
	var err error
	if e.Official != nil {
		_, err = l.StartOfficial(*e.Official)
	} else {
		_, err = l.StartCustom(e.CustomName)
	}
	return err
}

// IsRunning probes a single tunnel.
func (l *Launcher) IsRunning(id int32) bool {
	return l.reg.IsRunning(id)
}

// Running sweeps the registry and returns the ids of live tunnels.
func (l *Launcher) Running() []int32 {
	return l.reg.Sweep()
}

// spawn launches the frpc binary against a config file, wires the log
// pipeline and registers the process. The registry insert happens after the
// spawn; a concurrent duplicate start loses the race and the extra child is
// killed.
func (l *Launcher) spawn(id int32, configPath string, secrets []string) (int, error) {
	binary := l.BinaryPath()
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		return 0, ErrBinaryMissing
	}
	if err := ensureExecutable(binary); err != nil {
		return 0, err
	}

	cmd := exec.Command(binary, "-c", configPath)
	cmd.Dir = l.appDir
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start frpc: %w", err)
	}

	pipesDone := l.startLogReaders(id, stdout, stderr, secrets)
	handle := registry.NewCmdHandle(cmd, pipesDone)

	if err := l.reg.TryInsert(id, handle); err != nil {
		handle.Terminate()
		handle.Reap()
		return 0, err
	}

	slog.Info("Tunnel process launched", "tunnel_id", id, "pid", handle.Pid())
	return handle.Pid(), nil
}

func (l *Launcher) record(id int32, eventType, details string) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.LogTunnelEvent(id, eventType, details); err != nil {
		slog.Error("Failed to record tunnel event", "event", eventType, "error", err)
	}
}
