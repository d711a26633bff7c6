package daemon

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogging configures the daemon's logger to broadcast to connected clients
func (d *Daemon) setupLogging() {
	// Create a multi-writer that writes to both stderr and the broadcaster
	multiWriter := io.MultiWriter(os.Stderr, d.broadcaster)

	// Set up tint handler with the multi-writer
	handler := tint.NewHandler(multiWriter, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.DateTime,
	})

	// Set as the default logger
	slog.SetDefault(slog.New(handler))
}

// handleLogs streams the tunnel event feed to the client until they disconnect
func (d *Daemon) handleLogs(conn net.Conn, showHistory bool, historyLines int) {
	defer conn.Close()

	if !showHistory {
		historyLines = 0
	}
	logChan, history := d.broadcaster.Subscribe(historyLines)
	defer d.broadcaster.Unsubscribe(logChan)

	initialMsg := "Connected to tunnelguard daemon logs. Press Ctrl+C to exit.\n"
	if _, err := conn.Write([]byte(initialMsg)); err != nil {
		slog.Warn(fmt.Sprintf("Failed to send initial message to logs client: %v", err))
		return
	}

	// Send history first
	for _, msg := range history {
		if _, err := conn.Write([]byte(msg + "\n")); err != nil {
			return
		}
	}

	// Detect when client disconnects
	done := make(chan bool)
	go func() {
		reader := bufio.NewReader(conn)
		io.Copy(io.Discard, reader)
		done <- true
	}()

	for {
		select {
		case logMsg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := conn.Write([]byte(logMsg + "\n")); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
