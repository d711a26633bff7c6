// Package guard supervises running tunnels: it tracks which tunnels should be
// kept alive, distinguishes crashes from user-initiated stops, and restarts
// crashed tunnels from a periodic watchdog loop. Certain log lines indicate
// non-retryable server rejections; those stop supervision for the tunnel
// without touching the process itself.
package guard

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tunnelguard/tunnelguard/internal/events"
	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
	"github.com/tunnelguard/tunnelguard/internal/registry"
)

// stopPatterns are matched case-insensitively as substrings against every
// sanitized log line. A hit means the server has rejected the tunnel in a way
// a restart cannot fix, so the guard stops watching it.
var stopPatterns = []string{
	"token in login doesn't match token from configuration",
	"authorization failed",
	"invalid token",
	"read: connection reset by peer",
	"user token does not exist",
	"tunnel quota exceeded",
	"tunnel does not belong to this account",
	"missing user token or tunnel id parameter",
	"free tier accounts are limited",
	"proxy configuration does not match the server record",
	"server api error",
}

// Enrollment is the replay payload the watchdog needs to restart a tunnel.
// Official tunnels carry their full config; custom tunnels carry only their
// name, since their config is re-read from disk on every start.
type Enrollment struct {
	TunnelID   int32
	Official   *frpconfig.TunnelConfig
	CustomName string
}

// RestartFunc re-invokes the launch orchestrator for a crashed tunnel.
type RestartFunc func(Enrollment) error

// Recorder persists tunnel lifecycle events. Optional; a nil Recorder
// disables persistence.
type Recorder interface {
	LogTunnelEvent(tunnelID int32, eventType, details string) error
}

type Options struct {
	PollInterval time.Duration // watchdog cadence
	RestartDelay time.Duration // pause before a restart attempt
	WakeGrace    time.Duration // restart suppression after system wake
}

func DefaultOptions() Options {
	return Options{
		PollInterval: 3 * time.Second,
		RestartDelay: 1 * time.Second,
		WakeGrace:    15 * time.Second,
	}
}

// Guard holds the supervision state shared between command handlers, the log
// pipeline and the watchdog. Enrollment and manual-stop state live behind
// separate mutexes; the enabled flag is a lock-free atomic read on every hot
// path.
type Guard struct {
	enabled atomic.Bool

	mu       sync.Mutex
	enrolled map[int32]Enrollment

	stoppedMu       sync.Mutex
	manuallyStopped map[int32]struct{}

	sleepMu   sync.Mutex
	sleeping  bool
	wakeUntil time.Time

	reg      *registry.Registry
	emitter  events.Emitter
	restart  RestartFunc
	recorder Recorder
	opts     Options
}

func New(reg *registry.Registry, emitter events.Emitter, opts Options) *Guard {
	return &Guard{
		enrolled:        make(map[int32]Enrollment),
		manuallyStopped: make(map[int32]struct{}),
		reg:             reg,
		emitter:         emitter,
		opts:            opts,
	}
}

// SetRestartFunc wires the launch orchestrator in. Must be called before Run;
// injected as a function to keep the guard/launcher dependency one-way.
func (g *Guard) SetRestartFunc(fn RestartFunc) {
	g.restart = fn
}

func (g *Guard) SetRecorder(rec Recorder) {
	g.recorder = rec
}

func (g *Guard) Enabled() bool {
	return g.enabled.Load()
}

// SetEnabled flips supervision globally. Disabling clears all enrollment and
// manual-stop state immediately; nothing is restarted while disabled.
func (g *Guard) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
	if enabled {
		return
	}

	g.mu.Lock()
	g.enrolled = make(map[int32]Enrollment)
	g.mu.Unlock()

	g.stoppedMu.Lock()
	g.manuallyStopped = make(map[int32]struct{})
	g.stoppedMu.Unlock()
}

// EnrollOfficial places an official tunnel under supervision, keeping its
// full config for replay. A no-op while the guard is disabled. Enrolling
// clears any prior manual-stop mark for the identifier.
func (g *Guard) EnrollOfficial(cfg frpconfig.TunnelConfig) {
	if !g.enabled.Load() {
		return
	}
	g.enroll(Enrollment{TunnelID: cfg.TunnelID, Official: &cfg})
}

// EnrollCustom places a custom tunnel under supervision by its hashed id and
// original name.
func (g *Guard) EnrollCustom(id int32, name string) {
	if !g.enabled.Load() {
		return
	}
	g.enroll(Enrollment{TunnelID: id, CustomName: name})
}

func (g *Guard) enroll(e Enrollment) {
	g.mu.Lock()
	g.enrolled[e.TunnelID] = e
	g.mu.Unlock()

	g.stoppedMu.Lock()
	delete(g.manuallyStopped, e.TunnelID)
	g.stoppedMu.Unlock()
}

// Unenroll removes a tunnel from supervision. A manual stop is additionally
// remembered so the watchdog leaves the tunnel alone when it later notices
// the process is gone.
func (g *Guard) Unenroll(id int32, manualStop bool) {
	g.mu.Lock()
	delete(g.enrolled, id)
	g.mu.Unlock()

	if manualStop {
		g.stoppedMu.Lock()
		g.manuallyStopped[id] = struct{}{}
		g.stoppedMu.Unlock()
	}
}

func (g *Guard) IsEnrolled(id int32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.enrolled[id]
	return ok
}

// EnrolledIDs returns the sorted identifiers currently under supervision,
// including tunnels whose process is down and awaiting a restart.
func (g *Guard) EnrolledIDs() []int32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int32, 0, len(g.enrolled))
	for id := range g.enrolled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Guard) IsManuallyStopped(id int32) bool {
	g.stoppedMu.Lock()
	defer g.stoppedMu.Unlock()
	_, ok := g.manuallyStopped[id]
	return ok
}

// snapshot clones the enrollment set so restart side effects never run under
// the lock.
func (g *Guard) snapshot() []Enrollment {
	g.mu.Lock()
	defer g.mu.Unlock()

	list := make([]Enrollment, 0, len(g.enrolled))
	for _, e := range g.enrolled {
		list = append(list, e)
	}
	return list
}

// matchStopPattern returns the fatal pattern contained in message, if any.
func matchStopPattern(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, p := range stopPatterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// CheckLogLine inspects one sanitized log line for fatal patterns. On a match
// the tunnel's enrollment is dropped and a warning is pushed to the event
// sink; the process itself and the manual-stop set are left untouched.
// Called synchronously from the stream reader goroutines.
func (g *Guard) CheckLogLine(id int32, line string) {
	pattern, ok := matchStopPattern(line)
	if !ok {
		return
	}

	slog.Warn("Fatal error pattern in tunnel output, stopping supervision",
		"tunnel_id", id, "pattern", pattern)

	g.mu.Lock()
	delete(g.enrolled, id)
	g.mu.Unlock()

	g.emitter.EmitLog(events.LogMessage{
		TunnelID:  id,
		Message:   "[W] detected fatal error \"" + pattern + "\", supervision stopped for this tunnel",
		Timestamp: events.Timestamp(),
	})
	g.record(id, "guard_stopped", pattern)
}

func (g *Guard) record(id int32, eventType, details string) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.LogTunnelEvent(id, eventType, details); err != nil {
		slog.Error("Failed to record tunnel event", "event", eventType, "error", err)
	}
}

// MarkSleep suppresses the watchdog while the system is asleep.
func (g *Guard) MarkSleep() {
	g.sleepMu.Lock()
	g.sleeping = true
	g.sleepMu.Unlock()
	slog.Debug("Watchdog suppressed for system sleep")
}

// MarkWake lifts sleep suppression after a grace period, giving the network
// time to come back before restarts are attempted.
func (g *Guard) MarkWake() {
	g.sleepMu.Lock()
	g.sleeping = false
	g.wakeUntil = time.Now().Add(g.opts.WakeGrace)
	g.sleepMu.Unlock()
	slog.Debug("System wake detected, watchdog grace period started", "grace", g.opts.WakeGrace)
}

func (g *Guard) suppressed() bool {
	g.sleepMu.Lock()
	defer g.sleepMu.Unlock()
	return g.sleeping || time.Now().Before(g.wakeUntil)
}
