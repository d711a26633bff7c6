package registry

import (
	"os/exec"
	"sync"
)

// CmdHandle wraps an exec.Cmd in the Handle interface. A reaper goroutine owns
// the Wait call; it delays reaping until the caller-supplied pipesDone channel
// closes, because Wait closes the process's pipe read ends and would race the
// log readers otherwise.
type CmdHandle struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once
}

// NewCmdHandle starts the reaper for an already-started command. pipesDone
// must be closed when all pipe readers for the process have finished; pass a
// closed channel when there are none.
func NewCmdHandle(cmd *exec.Cmd, pipesDone <-chan struct{}) *CmdHandle {
	h := &CmdHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		<-pipesDone
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h
}

func (h *CmdHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *CmdHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *CmdHandle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	var err error
	h.once.Do(func() {
		err = h.cmd.Process.Kill()
	})
	return err
}

func (h *CmdHandle) Reap() error {
	<-h.done
	return h.waitErr
}
