package events

import (
	"fmt"
	"sync"
)

// Broadcaster fans log lines out to subscribed clients and keeps a bounded
// in-memory history for late joiners. It implements Emitter by flattening
// structured events into display lines.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]bool
	history []string
	maxHist int
	closed  bool
}

func NewBroadcaster(historySize int) *Broadcaster {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Broadcaster{
		clients: make(map[chan string]bool),
		history: make([]string, 0, historySize),
		maxHist: historySize,
	}
}

// Subscribe adds a client and returns its channel plus up to historyLines of
// recent output. The channel is buffered; a client that falls behind misses
// lines rather than blocking the supervisor.
func (b *Broadcaster) Subscribe(historyLines int) (chan string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan string, 100)
	b.clients[ch] = true

	var history []string
	if historyLines > 0 && len(b.history) > 0 {
		start := len(b.history) - historyLines
		if start < 0 {
			start = 0
		}
		history = make([]string, len(b.history)-start)
		copy(history, b.history[start:])
	}
	return ch, history
}

func (b *Broadcaster) Unsubscribe(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.clients[ch] {
		delete(b.clients, ch)
		close(ch)
	}
}

// Close tears the sink down. Subsequent emits fail, which is the signal
// stream readers use to stop.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}

// Broadcast sends a raw line to all subscribers and records it in history.
func (b *Broadcaster) Broadcast(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("broadcaster is closed")
	}

	if len(b.history) >= b.maxHist {
		b.history = b.history[1:]
	}
	b.history = append(b.history, line)

	for ch := range b.clients {
		select {
		case ch <- line:
		default:
			// Client buffer full; drop the line for that client
		}
	}
	return nil
}

func (b *Broadcaster) EmitLog(msg LogMessage) error {
	return b.Broadcast(fmt.Sprintf("%s [%d] %s", msg.Timestamp, msg.TunnelID, msg.Message))
}

func (b *Broadcaster) EmitRestarted(tunnelID int32, timestamp string) error {
	return b.Broadcast(fmt.Sprintf("%s [%d] [I] tunnel auto-restarted", timestamp, tunnelID))
}

// Write lets the Broadcaster double as an io.Writer so the daemon's slog
// handler can mirror its output to attached log clients.
func (b *Broadcaster) Write(p []byte) (int, error) {
	b.Broadcast(string(p))
	return len(p), nil
}
