package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tunnelguard/tunnelguard/internal/events"
)

// Run is the watchdog loop. Each tick cross-checks the enrollment set against
// registry liveness and schedules restarts for tunnels that died without a
// manual stop. Runs for the lifetime of the daemon.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

// tick decides restarts for one poll cycle. Each crashed tunnel gets its own
// short-lived goroutine so a slow restart never blocks the next tick or other
// tunnels' restarts.
func (g *Guard) tick() {
	if !g.enabled.Load() || g.suppressed() {
		return
	}

	for _, e := range g.snapshot() {
		if g.IsManuallyStopped(e.TunnelID) {
			continue
		}
		// Liveness is always re-derived from the registry, never cached
		if g.reg.IsRunning(e.TunnelID) {
			continue
		}

		slog.Warn("Supervised tunnel is offline, scheduling restart", "tunnel_id", e.TunnelID)
		g.emitter.EmitLog(events.LogMessage{
			TunnelID:  e.TunnelID,
			Message:   "[W] tunnel process offline, automatic restart triggered",
			Timestamp: events.Timestamp(),
		})
		g.record(e.TunnelID, "crash_detected", "")

		go g.restartAfterDelay(e)
	}
}

// restartAfterDelay performs a single restart attempt after a short pause
// that avoids a tight crash loop. The manual-stop mark and the enabled flag
// are re-checked immediately before spawning, not only at scheduling time,
// because a user stop may land inside the delay window. Restart failure
// drops the enrollment; there is no second automatic attempt.
func (g *Guard) restartAfterDelay(e Enrollment) {
	time.Sleep(g.opts.RestartDelay)

	if !g.enabled.Load() || g.IsManuallyStopped(e.TunnelID) {
		return
	}
	if g.restart == nil {
		slog.Error("No restart function wired into guard", "tunnel_id", e.TunnelID)
		return
	}

	if err := g.restart(e); err != nil {
		slog.Error("Automatic restart failed", "tunnel_id", e.TunnelID, "error", err)
		g.emitter.EmitLog(events.LogMessage{
			TunnelID:  e.TunnelID,
			Message:   fmt.Sprintf("[E] automatic restart failed: %v", err),
			Timestamp: events.Timestamp(),
		})
		g.record(e.TunnelID, "restart_failed", err.Error())
		g.Unenroll(e.TunnelID, false)
		return
	}

	slog.Info("Tunnel restarted automatically", "tunnel_id", e.TunnelID)
	g.emitter.EmitRestarted(e.TunnelID, events.Timestamp())
	g.record(e.TunnelID, "auto_restart", "")
}
