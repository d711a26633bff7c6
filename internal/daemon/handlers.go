package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tunnelguard/tunnelguard/internal/core"
	"github.com/tunnelguard/tunnelguard/internal/registry"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

// resolveTunnel maps a user-facing name to its tunnel id. Official tunnel
// definitions take precedence over custom tunnels with the same name.
func (d *Daemon) resolveTunnel(name string) (int32, bool, error) {
	tunnels, err := tunnelstore.LoadOfficialTunnels(core.GetTunnelsFilePath())
	if err != nil {
		return 0, false, err
	}
	if t, ok := tunnelstore.FindOfficialTunnel(tunnels, name); ok {
		return t.ID, true, nil
	}

	records, err := d.store.List()
	if err != nil {
		return 0, false, err
	}
	for _, rec := range records {
		if rec.ID == name {
			return rec.HashedID, false, nil
		}
	}
	return 0, false, fmt.Errorf("no tunnel named %q", name)
}

func (d *Daemon) startTunnel(name string) Response {
	response := Response{}

	tunnels, err := tunnelstore.LoadOfficialTunnels(core.GetTunnelsFilePath())
	if err != nil {
		response.AddMessage(fmt.Sprintf("Failed to load tunnel definitions: %v", err), "ERROR")
		return response
	}

	if t, ok := tunnelstore.FindOfficialTunnel(tunnels, name); ok {
		userToken, nodeToken := d.resolveTokens()
		pid, err := d.launcher.StartOfficial(t.TunnelConfig(userToken, nodeToken))
		if err != nil {
			response.AddMessage(fmt.Sprintf("Failed to start tunnel '%s': %v", name, err), "ERROR")
			return response
		}
		response.AddMessage(fmt.Sprintf("Tunnel '%s' started (PID %d).", name, pid), "INFO")
		return response
	}

	pid, err := d.launcher.StartCustom(name)
	if errors.Is(err, tunnelstore.ErrNotFound) {
		response.AddMessage(fmt.Sprintf("No tunnel named '%s'.", name), "ERROR")
		return response
	}
	if err != nil {
		response.AddMessage(fmt.Sprintf("Failed to start tunnel '%s': %v", name, err), "ERROR")
		return response
	}
	response.AddMessage(fmt.Sprintf("Custom tunnel '%s' started (PID %d).", name, pid), "INFO")
	return response
}

func (d *Daemon) stopTunnel(name string) Response {
	response := Response{}

	id, official, err := d.resolveTunnel(name)
	if err != nil {
		response.AddMessage(err.Error(), "ERROR")
		return response
	}

	if official {
		err = d.launcher.StopOfficial(id)
	} else {
		err = d.launcher.StopCustom(name)
	}
	if errors.Is(err, registry.ErrNotRunning) {
		response.AddMessage(fmt.Sprintf("Tunnel '%s' is not running.", name), "ERROR")
		return response
	}
	if err != nil {
		response.AddMessage(fmt.Sprintf("Failed to stop tunnel '%s': %v", name, err), "ERROR")
		return response
	}
	response.AddMessage(fmt.Sprintf("Tunnel '%s' stopped.", name), "INFO")
	return response
}

func (d *Daemon) stopAllTunnels() Response {
	response := Response{}

	running := d.reg.Sweep()
	if len(running) == 0 {
		response.AddMessage("No tunnels running.", "WARN")
		return response
	}

	names := d.tunnelNames()
	for _, id := range running {
		entry, known := names[id]
		label := fmt.Sprintf("tunnel %d", id)
		if known {
			label = entry.name
		}

		var err error
		switch {
		case known && entry.isOfficial:
			err = d.launcher.StopOfficial(id)
		case known:
			err = d.launcher.StopCustom(entry.name)
		default:
			// Process with no matching definition, terminate directly
			d.guard.Unenroll(id, true)
			err = d.reg.RemoveAndTerminate(id)
		}
		if err != nil {
			response.AddMessage(fmt.Sprintf("Failed to stop '%s': %v", label, err), "ERROR")
		} else {
			response.AddMessage(fmt.Sprintf("Tunnel '%s' stopped.", label), "INFO")
		}
	}
	return response
}

type tunnelName struct {
	name       string
	isOfficial bool
}

// tunnelNames maps every known tunnel id to its name.
func (d *Daemon) tunnelNames() map[int32]tunnelName {
	names := make(map[int32]tunnelName)

	if tunnels, err := tunnelstore.LoadOfficialTunnels(core.GetTunnelsFilePath()); err == nil {
		for _, t := range tunnels {
			names[t.ID] = tunnelName{name: t.Name, isOfficial: true}
		}
	}
	if records, err := d.store.List(); err == nil {
		for _, rec := range records {
			names[rec.HashedID] = tunnelName{name: rec.ID}
		}
	}
	return names
}

type TunnelStatus struct {
	TunnelID int32  `json:"tunnel_id"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind"`
	Pid      int    `json:"pid"`
	Guarded  bool   `json:"guarded"`
}

func (d *Daemon) getStatus() Response {
	response := Response{}
	statuses := []TunnelStatus{}

	running := d.reg.Sweep()
	if len(running) == 0 {
		response.AddMessage("No tunnels running", "WARN")
		response.AddData(statuses)
		return response
	}

	names := d.tunnelNames()
	response.AddMessage("OK", "INFO")
	for _, id := range running {
		pid, _ := d.reg.Pid(id)
		status := TunnelStatus{
			TunnelID: id,
			Pid:      pid,
			Kind:     "official",
			Guarded:  d.guard.IsEnrolled(id),
		}
		if n, ok := names[id]; ok {
			status.Name = n.name
			if !n.isOfficial {
				status.Kind = "custom"
			}
		}
		statuses = append(statuses, status)
	}
	response.AddData(statuses)
	return response
}

func (d *Daemon) getVersion() Response {
	response := Response{}
	response.AddMessage("OK", "INFO")
	response.AddData(map[string]interface{}{
		"version": core.Version,
		"pid":     os.Getpid(),
	})
	return response
}

func (d *Daemon) setGuard(enabled bool) Response {
	response := Response{}

	d.guard.SetEnabled(enabled)
	if err := core.SetGuardEnabled(enabled); err != nil {
		response.AddMessage(fmt.Sprintf("Guard setting not persisted: %v", err), "WARN")
	}

	state := "disabled"
	if enabled {
		state = "enabled"

		// Re-enroll everything currently running so the watchdog picks it up
		tunnels, err := tunnelstore.LoadOfficialTunnels(core.GetTunnelsFilePath())
		if err == nil {
			userToken, nodeToken := d.resolveTokens()
			for _, t := range tunnels {
				if d.reg.IsRunning(t.ID) {
					d.guard.EnrollOfficial(t.TunnelConfig(userToken, nodeToken))
				}
			}
		}
		if records, err := d.store.List(); err == nil {
			for _, rec := range records {
				if d.reg.IsRunning(rec.HashedID) {
					d.guard.EnrollCustom(rec.HashedID, rec.ID)
				}
			}
		}
	}

	if d.database != nil {
		if err := d.database.LogDaemonEvent("guard_"+state, "guard "+state); err != nil {
			slog.Error("Failed to log guard event", "error", err)
		}
	}

	response.AddMessage(fmt.Sprintf("Guard %s.", state), "INFO")
	return response
}

func (d *Daemon) getGuardStatus() Response {
	response := Response{}
	response.AddMessage("OK", "INFO")

	// The enrollment set is reported directly: a crashed tunnel awaiting its
	// restart is still supervised even though the registry has no process
	response.AddData(map[string]interface{}{
		"enabled":  d.guard.Enabled(),
		"enrolled": d.guard.EnrolledIDs(),
	})
	return response
}
