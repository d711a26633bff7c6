package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tunnelguard/tunnelguard/internal/core"
)

// SendCommand connects to the daemon, sends a command, and returns the response.
func SendCommand(command string) (Response, error) {
	response := Response{}

	conn, err := net.Dial("unix", core.GetSocketPath())
	if err != nil {
		return response, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return response, fmt.Errorf("failed to send command to daemon: %w", err)
	}
	bytes, err := io.ReadAll(conn)
	if err != nil {
		return response, fmt.Errorf("failed to read response from daemon: %w", err)
	}

	if err := json.Unmarshal(bytes, &response); err != nil {
		return response, fmt.Errorf("failed to parse response from daemon: %w", err)
	}

	return response, nil
}

// EnsureDaemonIsRunning handles the auto-start logic.
func EnsureDaemonIsRunning() {
	if _, err := SendCommand("STATUS"); err == nil {
		return // Daemon is running
	}

	slog.Info("Daemon not running. Starting it now...")
	cmd := exec.Command(os.Args[0], "internal-daemon-start")
	if err := cmd.Start(); err != nil {
		slog.Error(fmt.Sprintf("Fatal: Could not fork daemon process: %v", err))
		os.Exit(1)
	}
	slog.Info(fmt.Sprintf("Daemon process launched with PID: %d", cmd.Process.Pid))

	if err := WaitForDaemon(2 * time.Second); err != nil {
		slog.Error("Fatal: Daemon process was launched but socket was not created in time.")
		os.Exit(1)
	}
	slog.Info("Daemon is ready.")
}

// WaitForDaemon polls until the daemon answers on its socket or the timeout
// elapses.
func WaitForDaemon(timeout time.Duration) error {
	constant := backoff.NewConstantBackOff(100 * time.Millisecond)
	retries := uint64(timeout / (100 * time.Millisecond))
	return backoff.Retry(func() error {
		_, err := SendCommand("VERSION")
		return err
	}, backoff.WithMaxRetries(constant, retries))
}
