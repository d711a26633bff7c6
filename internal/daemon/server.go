// Package daemon implements the long-running supervisor process. It owns the
// process registry, the guard and the log broadcaster, and serves CLI clients
// over a unix socket with a line-based command protocol.
package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/tunnelguard/tunnelguard/internal/core"
	"github.com/tunnelguard/tunnelguard/internal/db"
	"github.com/tunnelguard/tunnelguard/internal/events"
	"github.com/tunnelguard/tunnelguard/internal/guard"
	"github.com/tunnelguard/tunnelguard/internal/keyring"
	"github.com/tunnelguard/tunnelguard/internal/launcher"
	"github.com/tunnelguard/tunnelguard/internal/registry"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

// Daemon supervises the frpc tunnel processes.
type Daemon struct {
	reg          *registry.Registry
	guard        *guard.Guard
	launcher     *launcher.Launcher
	store        *tunnelstore.Store
	broadcaster  *events.Broadcaster
	database     *db.DB
	listener     net.Listener
	ctx          context.Context
	cancelFunc   context.CancelFunc
	shutdownOnce sync.Once
}

func New() *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	appDir := core.GetConfigPath()
	reg := registry.New()
	broadcaster := events.NewBroadcaster(core.GetLogHistorySize())

	g := guard.New(reg, broadcaster, guard.Options{
		PollInterval: core.GetGuardPollInterval(),
		RestartDelay: core.GetGuardRestartDelay(),
		WakeGrace:    core.GetGuardWakeGrace(),
	})

	l := launcher.New(appDir, reg, g, broadcaster)
	g.SetRestartFunc(l.Restart)

	return &Daemon{
		reg:         reg,
		guard:       g,
		launcher:    l,
		store:       tunnelstore.New(appDir),
		broadcaster: broadcaster,
		ctx:         ctx,
		cancelFunc:  cancel,
	}
}

// Run starts the daemon's main loop.
func (d *Daemon) Run() {
	// Setup custom logger that broadcasts to connected clients
	d.setupLogging()

	// Initialize database
	dbPath := core.GetDatabasePath()
	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", dbPath)
	} else {
		d.database = database
		// Closed explicitly in shutdown(), not deferred, so the stop path
		// can flush before the process exits
		slog.Info("Database opened", "path", dbPath)

		version := core.FormatVersion(core.Version)
		if err := d.database.LogDaemonEvent("start", fmt.Sprintf("daemon started - version: %s, PID: %d", version, os.Getpid())); err != nil {
			slog.Error("Failed to log daemon start", "error", err)
		}

		d.guard.SetRecorder(database)
		d.launcher.SetRecorder(database)
	}

	// Setup PID and socket files and ensure they are cleaned up on exit.
	socketPath := core.GetSocketPath()
	pidFilePath := core.GetPIDFilePath()

	// Try to create the socket listener
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		// Socket creation failed - this could be due to a stale socket file
		if _, statErr := os.Stat(socketPath); statErr == nil {
			// Socket file exists, try to connect to it to see if daemon is actually running
			conn, dialErr := net.Dial("unix", socketPath)
			if dialErr == nil {
				// Successfully connected, daemon is running
				conn.Close()
				slog.Error("Fatal: Daemon is already running")
				os.Exit(1)
			}
			// Connection failed, socket file is stale - remove it
			slog.Info(fmt.Sprintf("Removing stale socket file: %s", socketPath))
			if removeErr := os.Remove(socketPath); removeErr != nil {
				slog.Error(fmt.Sprintf("Fatal: Could not remove stale socket: %v", removeErr))
				os.Exit(1)
			}
			listener, err = net.Listen("unix", socketPath)
		}
		if err != nil {
			slog.Error(fmt.Sprintf("Fatal: Could not create socket listener: %v", err))
			os.Exit(1)
		}
	}

	os.WriteFile(pidFilePath, []byte(strconv.Itoa(os.Getpid())), 0o644)
	defer os.Remove(pidFilePath)
	defer os.Remove(socketPath)

	d.listener = listener
	slog.Info(fmt.Sprintf("Daemon listening on %s", socketPath))

	// Clean up orphan frpc processes from a previous daemon instance. Must
	// happen before autostart so orphans don't hold remote ports.
	if orphansKilled := d.cleanOrphanProcesses(); orphansKilled > 0 {
		slog.Info("Cleaned up orphan tunnel processes from previous daemon", "count", orphansKilled)
	}

	// Apply persisted guard setting and start the watchdog
	d.guard.SetEnabled(core.GetGuardEnabled())
	go d.guard.Run(d.ctx)

	// Suppress the watchdog around system sleep so it doesn't misread
	// suspended tunnels as crashes
	guard.StartSleepMonitor(d.ctx, d.guard)

	// Watch the config directory for custom tunnel file changes
	d.watchConfigDir()

	// Autostart marked official tunnels
	if core.GetAutostartEnabled() {
		d.autostartTunnels()
	}

	// Handle signals
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-shutdownChan
		slog.Info("Shutdown signal received. Stopping all tunnels.")
		d.shutdown()
		if d.listener != nil {
			d.listener.Close()
		}
		os.Exit(0)
	}()

	// Accept connections in a loop
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				slog.Info(fmt.Sprintf("Error accepting connection: %v", err))
			}
			break
		}
		go d.handleConnection(conn)
	}
}

// autostartTunnels launches every official tunnel marked autostart and every
// custom tunnel in the index.
func (d *Daemon) autostartTunnels() {
	tunnels, err := tunnelstore.LoadOfficialTunnels(core.GetTunnelsFilePath())
	if err != nil {
		slog.Error("Failed to load tunnel definitions for autostart", "error", err)
	} else {
		userToken, nodeToken := d.resolveTokens()
		for _, t := range tunnels {
			if !t.Autostart {
				continue
			}
			if _, err := d.launcher.StartOfficial(t.TunnelConfig(userToken, nodeToken)); err != nil {
				slog.Error("Autostart failed", "tunnel", t.Name, "error", err)
			} else {
				slog.Info("Autostarted tunnel", "tunnel", t.Name)
			}
		}
	}

	records, err := d.store.List()
	if err != nil {
		slog.Error("Failed to load custom tunnels for autostart", "error", err)
		return
	}
	for _, rec := range records {
		if _, err := d.launcher.StartCustom(rec.ID); err != nil {
			slog.Error("Autostart failed", "tunnel", rec.ID, "error", err)
		} else {
			slog.Info("Autostarted custom tunnel", "tunnel", rec.ID)
		}
	}
}

// resolveTokens returns the user and node tokens, preferring the keyring over
// the config file.
func (d *Daemon) resolveTokens() (string, string) {
	userToken, err := keyring.GetToken(keyring.UserTokenKey)
	if err != nil || userToken == "" {
		userToken = core.GetUserToken()
	}
	nodeToken, err := keyring.GetToken(keyring.NodeTokenKey)
	if err != nil || nodeToken == "" {
		nodeToken = core.GetNodeToken()
	}
	return userToken, nodeToken
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	parts := strings.Fields(scanner.Text())
	if len(parts) == 0 {
		return
	}
	command, args := parts[0], parts[1:]

	// Log the command execution (skip VERSION as it's automatic)
	if command != "VERSION" {
		if len(args) > 0 {
			slog.Info(fmt.Sprintf("Executing command: %s %v", command, args))
		} else {
			slog.Info(fmt.Sprintf("Executing command: %s", command))
		}
	}

	var response Response
	switch command {
	case "UP":
		if len(args) > 0 {
			response = d.startTunnel(args[0])
		} else {
			response.AddMessage("Usage: UP <name>", "ERROR")
		}
	case "DOWN":
		if len(args) > 0 {
			response = d.stopTunnel(args[0])
		} else {
			response.AddMessage("Usage: DOWN <name>", "ERROR")
		}
	case "DOWN_ALL":
		response = d.stopAllTunnels()
	case "STATUS":
		response = d.getStatus()
	case "VERSION":
		response = d.getVersion()
	case "GUARD_ON":
		response = d.setGuard(true)
	case "GUARD_OFF":
		response = d.setGuard(false)
	case "GUARD_STATUS":
		response = d.getGuardStatus()
	case "LOGS":
		// Handle log streaming - don't send JSON response, just stream lines
		// Parse optional lines count and no_history flag
		historyLines := 20 // default
		showHistory := true
		if len(args) >= 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				historyLines = n
			}
			// Check for no_history flag (in 1st or 2nd position)
			if args[0] == "no_history" || (len(args) >= 2 && args[1] == "no_history") {
				showHistory = false
			}
		}
		d.handleLogs(conn, showHistory, historyLines)
		return // Don't send JSON response
	case "STOP":
		response.AddMessage("Daemon stopping.", "INFO")
		// Send response before shutting down
		conn.Write([]byte(response.ToJSON()))
		slog.Info("Stop command received. Shutting down daemon.")
		d.shutdown()
		if d.listener != nil {
			d.listener.Close()
		}
		os.Exit(0)
	default:
		response.AddMessage("Unknown command.", "ERROR")
	}
	conn.Write([]byte(response.ToJSON()))
}

// shutdown stops every tunnel and flushes state. Safe to call more than once.
func (d *Daemon) shutdown() {
	d.shutdownOnce.Do(func() {
		if d.cancelFunc != nil {
			d.cancelFunc()
		}

		d.guard.SetEnabled(false)
		d.reg.TerminateAll()

		d.broadcaster.Close()

		if d.database != nil {
			version := core.FormatVersion(core.Version)
			if err := d.database.LogDaemonEvent("stop", fmt.Sprintf("daemon stopped - version: %s, PID: %d", version, os.Getpid())); err != nil {
				slog.Error("Failed to log daemon stop", "error", err)
			}
			if err := d.database.Flush(); err != nil {
				slog.Error("Failed to flush database", "error", err)
			}
			if err := d.database.Close(); err != nil {
				slog.Error("Failed to close database", "error", err)
			}
		}
	})
}
