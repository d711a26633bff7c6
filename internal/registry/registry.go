// Package registry tracks running tunnel child processes keyed by tunnel
// identifier. All mutation goes through a single mutex; the lock is never held
// across a blocking spawn, reap or pipe read.
package registry

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrAlreadyRunning is returned by TryInsert when the identifier is
	// already present.
	ErrAlreadyRunning = errors.New("tunnel is already running")

	// ErrNotRunning is returned when an operation targets an identifier
	// with no live entry.
	ErrNotRunning = errors.New("tunnel is not running")
)

// Handle abstracts a spawned child process so the guard and the registry can
// be tested without real processes.
type Handle interface {
	// Pid returns the OS process id.
	Pid() int

	// Alive reports liveness without blocking.
	Alive() bool

	// Terminate sends the kill signal. It does not wait for exit.
	Terminate() error

	// Reap blocks until the OS confirms process exit and returns the
	// process's wait error, if any.
	Reap() error
}

// Registry is a shared mapping from tunnel identifier to live process handle.
type Registry struct {
	mu    sync.Mutex
	procs map[int32]Handle
}

func New() *Registry {
	return &Registry{procs: make(map[int32]Handle)}
}

// TryInsert registers a handle for id. An existing entry is a precondition
// failure, never silently replaced.
func (r *Registry) TryInsert(id int32, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.procs[id]; exists {
		return ErrAlreadyRunning
	}
	r.procs[id] = h
	return nil
}

// RemoveAndTerminate removes the entry for id, signals the process and blocks
// until it has been reaped. The entry is removed even when the signal fails;
// termination intent is honored on partial failure and the signal error is
// returned.
func (r *Registry) RemoveAndTerminate(id int32) error {
	r.mu.Lock()
	h, exists := r.procs[id]
	if exists {
		delete(r.procs, id)
	}
	r.mu.Unlock()

	if !exists {
		return ErrNotRunning
	}

	killErr := h.Terminate()
	h.Reap()
	return killErr
}

// IsRunning probes the entry for id without blocking. A dead or missing
// process removes the entry as a side effect, so probing is self-cleaning.
func (r *Registry) IsRunning(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.procs[id]
	if !exists {
		return false
	}
	if !h.Alive() {
		delete(r.procs, id)
		return false
	}
	return true
}

// Pid returns the process id for a live entry.
func (r *Registry) Pid(id int32) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.procs[id]
	if !exists {
		return 0, false
	}
	return h.Pid(), true
}

// Sweep probes every entry once, drops the dead ones and returns the sorted
// identifiers that survive.
func (r *Registry) Sweep() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	running := make([]int32, 0, len(r.procs))
	for id, h := range r.procs {
		if h.Alive() {
			running = append(running, id)
		} else {
			delete(r.procs, id)
		}
	}
	sort.Slice(running, func(i, j int) bool { return running[i] < running[j] })
	return running
}

// TerminateAll stops every registered process, blocking until each has been
// reaped. Used during daemon shutdown.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.procs))
	for id, h := range r.procs {
		handles = append(handles, h)
		delete(r.procs, id)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Terminate()
		h.Reap()
	}
}
