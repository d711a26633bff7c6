//go:build linux

package guard

import (
	"context"
	"log/slog"
	"os"

	"github.com/godbus/dbus/v5"
)

// StartSleepMonitor listens for logind's PrepareForSleep signal and feeds
// sleep/wake transitions into the guard's suppression window, so the watchdog
// does not restart every tunnel the moment the machine wakes with no network.
// Falls back to a no-op when D-Bus is unavailable.
func StartSleepMonitor(ctx context.Context, g *Guard) {
	go func() {
		conn, err := dbus.SystemBus()
		if err != nil {
			if os.Getenv("DBUS_SYSTEM_BUS_ADDRESS") == "" {
				slog.Debug("D-Bus unavailable, sleep monitor disabled")
			} else {
				slog.Warn("Failed to connect to D-Bus for sleep monitoring", "error", err)
			}
			return
		}

		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath("/org/freedesktop/login1"),
			dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
			dbus.WithMatchMember("PrepareForSleep"),
		); err != nil {
			slog.Warn("Failed to subscribe to PrepareForSleep signal", "error", err)
			return
		}

		signals := make(chan *dbus.Signal, 8)
		conn.Signal(signals)

		slog.Info("Sleep monitor started (D-Bus logind)")

		for {
			select {
			case <-ctx.Done():
				conn.RemoveSignal(signals)
				return
			case sig := <-signals:
				if sig == nil {
					return
				}
				if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" {
					continue
				}
				if len(sig.Body) < 1 {
					continue
				}
				entering, ok := sig.Body[0].(bool)
				if !ok {
					continue
				}
				if entering {
					g.MarkSleep()
				} else {
					g.MarkWake()
				}
			}
		}
	}()
}
