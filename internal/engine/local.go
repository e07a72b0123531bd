package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nimbusproxy/nimbus/internal/config"
)

const (
	localStopGrace = 5 * time.Second
	localProbation = 300 * time.Millisecond
)

// LocalEngine runs the engine binary as a direct, same-privilege child
// of the application. It is the fallback when the helper daemon is
// unavailable; it cannot touch system proxy settings.
type LocalEngine struct {
	opts Options

	mu       sync.Mutex
	status   ConnectionStatus
	cmd      *exec.Cmd
	waitDone chan struct{}
	tail     *tailBuffer
}

// NewLocalEngine creates a disconnected local engine.
func NewLocalEngine(opts Options) *LocalEngine {
	return &LocalEngine{
		opts:   opts,
		status: ConnectionStatus{State: StateDisconnected},
		tail:   newTailBuffer(50),
	}
}

func (e *LocalEngine) Type() Type { return TypeLocal }

// Status returns the current connection status.
func (e *LocalEngine) Status() ConnectionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Validate reports problems with the bundle.
func (e *LocalEngine) Validate(bundle config.Bundle) []error {
	return config.Validate(bundle)
}

// Start spawns the engine binary directly and watches for its exit.
func (e *LocalEngine) Start(ctx context.Context, bundle config.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	switch e.status.State {
	case StateDisconnected, StateError:
	default:
		st := e.status.State
		e.mu.Unlock()
		return &TransitionError{Op: "start", State: st}
	}
	e.status = ConnectionStatus{State: StateConnecting}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateConnecting})

	if errs := config.Validate(bundle); len(errs) > 0 {
		detail := errs[0].Error()
		e.fail(detail)
		return errs[0]
	}

	e.tail.Reset()
	cmd := exec.Command(bundle.CorePath, "-c", bundle.ConfigPath)
	cmd.Stdout = e.tail
	cmd.Stderr = e.tail
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		detail := fmt.Sprintf("spawn engine: %v", err)
		e.fail(detail)
		return fmt.Errorf("spawn engine: %w", err)
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.cmd = cmd
	e.waitDone = done
	e.mu.Unlock()

	go e.watch(cmd, done)

	select {
	case <-done:
		detail := fmt.Sprintf("engine exited during startup: %s", e.tail.Join())
		e.mu.Lock()
		e.cmd = nil
		e.waitDone = nil
		e.mu.Unlock()
		e.fail(detail)
		return fmt.Errorf("engine exited during startup: %s", e.tail.Join())
	case <-time.After(localProbation):
	}

	var ports []int
	if hint, ok := config.ProxyHint(bundle.ConfigPath); ok {
		ports = []int{hint.Port}
	}
	info := &ConnInfo{EngineType: TypeLocal, PID: cmd.Process.Pid, StartedAt: time.Now(), Ports: ports}
	e.mu.Lock()
	e.status = ConnectionStatus{State: StateConnected, Info: info}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateConnected, Info: info})
	return nil
}

// Stop terminates the child's process group, escalating after a grace
// period.
func (e *LocalEngine) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	switch e.status.State {
	case StateConnected:
	case StateError:
		e.status = ConnectionStatus{State: StateDisconnected}
		e.mu.Unlock()
		e.notify(ConnectionStatus{State: StateDisconnected})
		return nil
	default:
		st := e.status.State
		e.mu.Unlock()
		return &TransitionError{Op: "stop", State: st}
	}
	e.status = ConnectionStatus{State: StateDisconnecting}
	cmd := e.cmd
	done := e.waitDone
	e.cmd = nil
	e.waitDone = nil
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateDisconnecting})

	if cmd != nil && cmd.Process != nil {
		pgid := -cmd.Process.Pid
		_ = unix.Kill(pgid, unix.SIGTERM)
		select {
		case <-done:
		case <-time.After(localStopGrace):
			_ = unix.Kill(pgid, unix.SIGKILL)
			<-done
		}
	}

	e.mu.Lock()
	e.status = ConnectionStatus{State: StateDisconnected}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateDisconnected})
	return nil
}

// watch observes the child and maps an unexpected exit to the error
// state with the engine's last output.
func (e *LocalEngine) watch(cmd *exec.Cmd, done chan struct{}) {
	_ = cmd.Wait()
	close(done)

	e.mu.Lock()
	if e.waitDone != done || e.status.State != StateConnected {
		// Stop owns this exit, or a restart superseded it.
		e.mu.Unlock()
		return
	}
	e.cmd = nil
	e.waitDone = nil
	detail := fmt.Sprintf("engine exited unexpectedly (exit code %d)", cmd.ProcessState.ExitCode())
	if tail := e.tail.Join(); tail != "" {
		detail += ": " + tail
	}
	e.status = ConnectionStatus{State: StateError, Detail: detail}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateError, Detail: detail})
}

// fail moves connecting to error.
func (e *LocalEngine) fail(detail string) {
	e.mu.Lock()
	if e.status.State != StateConnecting {
		e.mu.Unlock()
		return
	}
	e.status = ConnectionStatus{State: StateError, Detail: detail}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateError, Detail: detail})
}

func (e *LocalEngine) notify(st ConnectionStatus) {
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(st)
	}
}

// tailBuffer keeps the most recent output lines from the child, enough
// to explain a failure.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
	carry []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carry = append(b.carry, p...)
	for {
		idx := bytes.IndexByte(b.carry, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(b.carry[:idx]), "\r")
		b.carry = b.carry[idx+1:]
		if strings.TrimSpace(line) != "" {
			b.lines = append(b.lines, line)
			if len(b.lines) > b.max {
				b.lines = b.lines[len(b.lines)-b.max:]
			}
		}
	}
	return len(p), nil
}

// Join returns the last few lines as one string for error details.
func (b *tailBuffer) Join() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.lines
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " / ")
}

func (b *tailBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.carry = nil
}
