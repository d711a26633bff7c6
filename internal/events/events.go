// Package events carries user-facing notifications out of the supervisor
// core. Delivery is fire-and-forget, best-effort; the core never blocks on a
// slow consumer.
package events

import "time"

// TimestampFormat matches the frpc log line format so interleaved child and
// supervisor output reads uniformly.
const TimestampFormat = "2006/01/02 15:04:05"

// Timestamp returns the current local time in TimestampFormat.
func Timestamp() string {
	return time.Now().Format(TimestampFormat)
}

// LogMessage is one line of (sanitized) tunnel output or a supervisor notice
// about a tunnel.
type LogMessage struct {
	TunnelID  int32  `json:"tunnel_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Emitter is the notification sink handed to the supervisor core.
type Emitter interface {
	// EmitLog delivers one log line. An error tells stream readers the
	// sink has been torn down and they should stop.
	EmitLog(msg LogMessage) error

	// EmitRestarted announces a successful automatic restart.
	EmitRestarted(tunnelID int32, timestamp string) error
}
