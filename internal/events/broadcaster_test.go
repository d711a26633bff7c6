package events

import (
	"strings"
	"testing"
)

func TestBroadcastReachesSubscribers(t *testing.T) {
	b := NewBroadcaster(10)
	ch, _ := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	if err := b.Broadcast("hello"); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	select {
	case line := <-ch:
		if line != "hello" {
			t.Errorf("got %q", line)
		}
	default:
		t.Fatal("no line delivered")
	}
}

func TestSubscribeHistory(t *testing.T) {
	b := NewBroadcaster(3)
	for _, line := range []string{"one", "two", "three", "four"} {
		b.Broadcast(line)
	}

	_, history := b.Subscribe(10)
	// Ring holds at most 3 entries, oldest dropped
	if len(history) != 3 {
		t.Fatalf("expected 3 history lines, got %d", len(history))
	}
	if history[0] != "two" || history[2] != "four" {
		t.Errorf("unexpected history: %v", history)
	}

	_, limited := b.Subscribe(2)
	if len(limited) != 2 || limited[0] != "three" {
		t.Errorf("unexpected limited history: %v", limited)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(10)
	ch, _ := b.Subscribe(0)
	defer b.Unsubscribe(ch)

	// Overflow the client buffer; Broadcast must not block
	for i := 0; i < 500; i++ {
		if err := b.Broadcast("line"); err != nil {
			t.Fatalf("Broadcast failed: %v", err)
		}
	}
}

func TestCloseFailsSubsequentEmits(t *testing.T) {
	b := NewBroadcaster(10)
	b.Close()

	if err := b.EmitLog(LogMessage{TunnelID: 1, Message: "x", Timestamp: Timestamp()}); err == nil {
		t.Error("expected emit on closed broadcaster to fail")
	}
}

func TestEmitLogFormat(t *testing.T) {
	b := NewBroadcaster(10)
	ch, _ := b.Subscribe(0)

	b.EmitLog(LogMessage{TunnelID: 42, Message: "connected", Timestamp: "2026/01/02 03:04:05"})

	line := <-ch
	if !strings.Contains(line, "[42]") || !strings.Contains(line, "connected") {
		t.Errorf("unexpected line format: %q", line)
	}
}
