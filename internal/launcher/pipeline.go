package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tunnelguard/tunnelguard/internal/events"
	"github.com/tunnelguard/tunnelguard/internal/sanitize"
)

// startLogReaders drains the child's stdout and stderr line by line. Each line
// is stripped of ANSI escapes, has the launch secrets redacted, and is fed to
// the guard before being broadcast. Both readers share one cancellation: if
// the event sink fails for either stream, both pipes are closed so a sibling
// parked in Scan unblocks immediately, the returned channel closes and the
// reaper can collect the child.
func (l *Launcher) startLogReaders(id int32, stdout, stderr io.ReadCloser, secrets []string) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-ctx.Done()
		stdout.Close()
		stderr.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go l.readStream(ctx, cancel, &wg, id, stdout, secrets, "")
	go l.readStream(ctx, cancel, &wg, id, stderr, secrets, "[ERR] ")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		cancel()
		close(done)
	}()
	return done
}

func (l *Launcher) readStream(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, id int32, r io.Reader, secrets []string, prefix string) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := sanitize.StripANSI(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, secret := range secrets {
			line = sanitize.Redact(line, secret)
		}

		l.guard.CheckLogLine(id, line)

		err := l.emitter.EmitLog(events.LogMessage{
			TunnelID:  id,
			Message:   prefix + line,
			Timestamp: events.Timestamp(),
		})
		if err != nil {
			slog.Debug("Log sink gone, stopping stream readers", "tunnel_id", id)
			cancel()
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Debug("Tunnel output stream closed", "tunnel_id", id, "error", fmt.Sprint(err))
	}
}
