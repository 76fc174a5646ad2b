// Package process manages external analyzer child processes.
//
// It wraps exec.Cmd with the pieces the LSP engine needs: all three standard
// streams piped, exit tracking through a done channel, and forced
// termination. It knows nothing about JSON-RPC; framing lives in the lsp
// package.
package process

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// State represents the lifecycle state of a child process.
type State int

const (
	// StateRunning indicates the process is currently running.
	StateRunning State = iota
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was terminated by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// ErrSpawn indicates the child process could not be started.
var ErrSpawn = errors.New("process could not be started")

// Proc is a running analyzer process with piped standard streams.
//
// Proc is safe for concurrent use. The streams belong to the caller once
// Spawn returns; closing them does not kill the process.
type Proc struct {
	// ID uniquely identifies this process instance for logging.
	ID string

	// Stdin is the process's standard input.
	Stdin io.WriteCloser
	// Stdout is the process's standard output.
	Stdout io.ReadCloser
	// Stderr is the process's standard error.
	Stderr io.ReadCloser

	// Started is the time the process was spawned.
	Started time.Time

	cmd      *exec.Cmd
	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
}

// Option configures a spawn.
type Option func(*exec.Cmd)

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(c *exec.Cmd) {
		c.Dir = dir
	}
}

// WithEnv appends environment variables (KEY=VALUE form) to the child's
// environment, which otherwise inherits the parent's.
func WithEnv(env []string) Option {
	return func(c *exec.Cmd) {
		c.Env = append(os.Environ(), env...)
	}
}

// Spawn starts path with args and pipes all three standard streams.
//
// On failure every pipe already created is closed and the returned error
// wraps ErrSpawn.
func Spawn(path string, args []string, opts ...Option) (*Proc, error) {
	cmd := exec.Command(path, args...)
	for _, opt := range opts {
		opt(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "stdin pipe"), ErrSpawn)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, errors.Mark(errors.Wrap(err, "stdout pipe"), ErrSpawn)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, errors.Mark(errors.Wrap(err, "stderr pipe"), ErrSpawn)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, errors.Mark(errors.Wrapf(err, "start %s", path), ErrSpawn)
	}

	p := &Proc{
		ID:      uuid.NewString(),
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		Started: time.Now(),
		cmd:     cmd,
		done:    make(chan struct{}),
	}
	p.state.Store(int32(StateRunning))
	p.exitCode.Store(-1)

	go p.wait()
	return p, nil
}

// wait reaps the process and records its exit status.
func (p *Proc) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := StateExited
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		}
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)
}

// Done returns a channel closed when the process exits.
func (p *Proc) Done() <-chan struct{} {
	return p.done
}

// State returns the current process state.
func (p *Proc) State() State {
	return State(p.state.Load())
}

// Running reports whether the process is still alive.
func (p *Proc) Running() bool {
	return p.State() == StateRunning
}

// ExitCode returns the exit code, or -1 while the process is running.
func (p *Proc) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from reaping the process, if any.
func (p *Proc) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// PID returns the operating-system process id, or -1 if unavailable.
func (p *Proc) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Kill sends SIGKILL to the process. Safe to call after exit.
func (p *Proc) Kill() error {
	if !p.Running() || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// CloseStreams closes the piped streams without killing the process.
func (p *Proc) CloseStreams() {
	p.Stdin.Close()
	p.Stdout.Close()
	p.Stderr.Close()
}
