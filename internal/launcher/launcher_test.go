//go:build !windows

package launcher

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tunnelguard/tunnelguard/internal/events"
	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
	"github.com/tunnelguard/tunnelguard/internal/guard"
	"github.com/tunnelguard/tunnelguard/internal/registry"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

type captureEmitter struct {
	mu   sync.Mutex
	logs []events.LogMessage
}

func (c *captureEmitter) EmitLog(msg events.LogMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, msg)
	return nil
}

func (c *captureEmitter) EmitRestarted(int32, string) error { return nil }

func (c *captureEmitter) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	for i, msg := range c.logs {
		out[i] = msg.Message
	}
	return out
}

// writeFakeBinary installs a shell script in place of frpc that prints the
// given lines and then sleeps so the process stays alive.
func writeFakeBinary(t *testing.T, dir, script string) {
	t.Helper()
	path := filepath.Join(dir, "frpc")
	content := "#!/bin/sh\n" + script
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
}

func newTestLauncher(t *testing.T) (*Launcher, string, *captureEmitter) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.New()
	emitter := &captureEmitter{}
	g := guard.New(reg, emitter, guard.DefaultOptions())
	l := New(dir, reg, g, emitter)
	t.Cleanup(func() { reg.TerminateAll() })
	return l, dir, emitter
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sampleTunnel() frpconfig.TunnelConfig {
	return frpconfig.TunnelConfig{
		TunnelID:   4221,
		TunnelName: "web-ssh",
		ServerAddr: "frp.example.com",
		ServerPort: 7000,
		LocalIP:    "127.0.0.1",
		LocalPort:  22,
		TunnelType: frpconfig.TypeTCP,
		RemotePort: 10022,
		UserToken:  "usertoken-abcdef",
		NodeToken:  "nodetoken-123456",
	}
}

func TestStartOfficialSpawnsAndWritesConfig(t *testing.T) {
	l, dir, _ := newTestLauncher(t)
	writeFakeBinary(t, dir, "sleep 30\n")

	pid, err := l.StartOfficial(sampleTunnel())
	if err != nil {
		t.Fatalf("StartOfficial failed: %v", err)
	}
	if pid <= 0 {
		t.Errorf("invalid pid %d", pid)
	}
	if !l.IsRunning(4221) {
		t.Error("tunnel not registered as running")
	}

	configPath := filepath.Join(dir, "g_4221.ini")
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode %v, want 0600", info.Mode().Perm())
	}

	data, _ := os.ReadFile(configPath)
	if !strings.Contains(string(data), "user = usertoken-abcdef") {
		t.Error("generated config missing user token")
	}
	if !strings.Contains(string(data), "token = nodetoken-123456") {
		t.Error("generated config missing node token")
	}

	if err := l.StopOfficial(4221); err != nil {
		t.Fatalf("StopOfficial failed: %v", err)
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Error("official config file not removed after stop")
	}
	if l.IsRunning(4221) {
		t.Error("tunnel still running after stop")
	}
}

func TestStartOfficialRejectsDuplicate(t *testing.T) {
	l, dir, _ := newTestLauncher(t)
	writeFakeBinary(t, dir, "sleep 30\n")

	if _, err := l.StartOfficial(sampleTunnel()); err != nil {
		t.Fatal(err)
	}
	if _, err := l.StartOfficial(sampleTunnel()); !errors.Is(err, registry.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartOfficialMissingBinary(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	if _, err := l.StartOfficial(sampleTunnel()); !errors.Is(err, ErrBinaryMissing) {
		t.Errorf("expected ErrBinaryMissing, got %v", err)
	}
}

func TestLogPipelineRedactsSecrets(t *testing.T) {
	l, dir, emitter := newTestLauncher(t)
	writeFakeBinary(t, dir, `echo "login with token usertoken-abcdef ok"
echo "stderr problem" >&2
sleep 30
`)

	if _, err := l.StartOfficial(sampleTunnel()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "redacted stdout line", func() bool {
		for _, msg := range emitter.messages() {
			if strings.Contains(msg, "login with token") {
				return true
			}
		}
		return false
	})

	for _, msg := range emitter.messages() {
		if strings.Contains(msg, "usertoken-abcdef") {
			t.Errorf("secret leaked into event stream: %q", msg)
		}
	}

	waitFor(t, "prefixed stderr line", func() bool {
		for _, msg := range emitter.messages() {
			if strings.HasPrefix(msg, "[ERR] ") && strings.Contains(msg, "stderr problem") {
				return true
			}
		}
		return false
	})
}

type closedSink struct{}

func (closedSink) EmitLog(events.LogMessage) error   { return errors.New("sink closed") }
func (closedSink) EmitRestarted(int32, string) error { return nil }

// A sink failure on one stream must stop the sibling reader too, even when
// that reader is blocked waiting for its next line.
func TestSinkFailureStopsBothReaders(t *testing.T) {
	reg := registry.New()
	sink := closedSink{}
	g := guard.New(reg, sink, guard.DefaultOptions())
	l := New(t.TempDir(), reg, g, sink)

	outR, outW := io.Pipe()
	errR, _ := io.Pipe() // never produces a line

	done := l.startLogReaders(7, outR, errR, nil)

	go outW.Write([]byte("connection established\n"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream readers did not stop after sink failure")
	}
}

func TestStartCustomRequiresConfigFile(t *testing.T) {
	l, dir, _ := newTestLauncher(t)
	writeFakeBinary(t, dir, "sleep 30\n")

	if _, err := l.StartCustom("ghost"); !errors.Is(err, tunnelstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartCustomKeepsConfigOnStop(t *testing.T) {
	l, dir, _ := newTestLauncher(t)
	writeFakeBinary(t, dir, "sleep 30\n")

	configPath := filepath.Join(dir, tunnelstore.ConfigFileName("mytunnel"))
	content := "[common]\nserver_addr = x\n\n[mytunnel]\ntype = tcp\nremote_port = 9000\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	pid, err := l.StartCustom("mytunnel")
	if err != nil {
		t.Fatalf("StartCustom failed: %v", err)
	}
	if pid <= 0 {
		t.Errorf("invalid pid %d", pid)
	}

	id := frpconfig.HashCustomID("mytunnel")
	if !l.IsRunning(id) {
		t.Error("custom tunnel not registered as running")
	}

	if err := l.StopCustom("mytunnel"); err != nil {
		t.Fatalf("StopCustom failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Error("custom config file must survive a stop")
	}
}

func TestStopNotRunning(t *testing.T) {
	l, _, _ := newTestLauncher(t)

	if err := l.StopOfficial(4221); !errors.Is(err, registry.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if err := l.StopCustom("mytunnel"); !errors.Is(err, registry.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}
