package helperd

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

type procState int

const (
	stateIdle procState = iota
	stateStarting
	stateRunning
	stateStopping
)

// Supervisor owns the one engine child process and the one proxy
// snapshot. Start, Stop, and crash handling are mutually exclusive
// (opMu); Status is a pure snapshot read under the field mutex.
type Supervisor struct {
	proxy   ProxyApplier
	metrics *Metrics // nil disables

	opMu sync.Mutex // serializes start/stop/crash handling

	mu          sync.Mutex // guards the fields below
	settings    Settings
	state       procState
	cmd         *exec.Cmd
	pid         int
	configPath  string
	startTime   time.Time
	lastExit    *int
	errorReason string
	snapshot    *ProxySnapshot
	expectStop  bool
	waitDone    chan struct{} // closed when the current child is reaped
	ring        *lineRing
}

// NewSupervisor creates a supervisor in the idle state. metrics may be
// nil.
func NewSupervisor(settings Settings, proxy ProxyApplier, metrics *Metrics) *Supervisor {
	return &Supervisor{
		settings: settings,
		proxy:    proxy,
		metrics:  metrics,
		ring:     newLineRing(settings.LogBufferLines),
	}
}

// Start validates the paths, spawns the engine, waits out a short
// probation window, then applies the system proxy intent if present.
// Nothing is mutated on a precondition failure.
func (s *Supervisor) Start(configPath, corePath string, proxy *protocol.SystemProxy) (*protocol.StartData, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == stateRunning || s.state == stateStarting {
		pid := s.pid
		s.mu.Unlock()
		return nil, protocol.NewError(protocol.CodeAlreadyRunning, "engine already running (PID %d)", pid)
	}
	settings := s.settings
	s.mu.Unlock()

	if err := checkConfigPath(configPath); err != nil {
		return nil, err
	}
	if err := checkCorePath(corePath); err != nil {
		return nil, err
	}

	s.ring.Reset()
	cmd := exec.Command(corePath, coreArgs(settings.CoreArgs, configPath)...)
	cmd.Stdout = s.ring
	cmd.Stderr = s.ring
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, protocol.NewError(protocol.CodeStartFailed, "spawn %s: %v", corePath, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.state = stateStarting
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.configPath = configPath
	s.startTime = time.Now()
	s.lastExit = nil
	s.errorReason = ""
	s.expectStop = false
	s.waitDone = done
	s.mu.Unlock()

	go s.reap(cmd, done)

	// Probation: an engine that dies this quickly almost always hit a
	// config or port error, which the caller wants in the response.
	select {
	case <-done:
		s.mu.Lock()
		reason := s.errorReason
		s.clearChildLocked()
		s.mu.Unlock()
		return nil, protocol.NewError(protocol.CodeStartFailed, "engine exited during startup: %s", reason)
	case <-time.After(settings.startProbation()):
	}

	if proxy != nil && proxy.Enabled {
		snap, err := s.proxy.Capture()
		if err != nil {
			log.Printf("capture proxy state: %v (continuing without system proxy)", err)
		} else if err := s.proxy.Apply(*proxy); err != nil {
			log.Printf("apply system proxy: %v", err)
			if rerr := s.proxy.Restore(snap); rerr != nil {
				log.Printf("restore proxy state after failed apply: %v", rerr)
			}
		} else {
			s.mu.Lock()
			s.snapshot = snap
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.state = stateRunning
	pid := s.pid
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.EngineRunning.Set(1)
	}
	log.Printf("engine started (PID %d, config %s)", pid, configPath)
	return &protocol.StartData{PID: pid}, nil
}

// Stop restores the proxy snapshot, then terminates the child with a
// bounded grace period before escalating to SIGKILL. The proxy is
// guaranteed restored by the time Stop returns nil.
func (s *Supervisor) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return protocol.NewError(protocol.CodeNotRunning, "engine is not running")
	}
	s.state = stateStopping
	s.expectStop = true
	snap := s.snapshot
	s.snapshot = nil
	pid := s.pid
	done := s.waitDone
	grace := s.settings.stopGrace()
	s.mu.Unlock()

	if snap != nil {
		if err := s.proxy.Restore(snap); err != nil {
			log.Printf("restore system proxy: %v", err)
		}
	}

	// Signal the whole engine process group.
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		log.Printf("SIGTERM engine group %d: %v", pid, err)
	}
	select {
	case <-done:
	case <-time.After(grace):
		log.Printf("engine did not exit within %s, killing", grace)
		_ = unix.Kill(-pid, unix.SIGKILL)
		<-done
	}

	s.mu.Lock()
	s.clearChildLocked()
	// A requested stop is a normal exit: no crash detail survives it.
	s.lastExit = nil
	s.errorReason = ""
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.EngineRunning.Set(0)
	}
	log.Printf("engine stopped (was PID %d)", pid)
	return nil
}

// Status returns a point-in-time snapshot. Never blocks on child I/O.
func (s *Supervisor) Status() *protocol.StatusData {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRunning {
		return &protocol.StatusData{
			IsRunning:    false,
			LastExitCode: s.lastExit,
			ErrorReason:  s.errorReason,
		}
	}
	started := s.startTime
	return &protocol.StatusData{
		IsRunning:     true,
		PID:           s.pid,
		ConfigPath:    s.configPath,
		StartTime:     &started,
		UptimeSeconds: int64(time.Since(started).Seconds()),
	}
}

// Logs returns up to n recent engine output lines, oldest first.
func (s *Supervisor) Logs(n int) []string {
	return s.ring.Tail(n)
}

// Reload swaps in new tunables for future operations. The log buffer
// keeps its current contents and capacity until the next start.
func (s *Supervisor) Reload(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// reap waits for the child and routes its exit to expected-stop or
// crash handling. Registered at spawn time, independent of any stop or
// status call.
func (s *Supervisor) reap(cmd *exec.Cmd, done chan struct{}) {
	waitErr := cmd.Wait()
	exitCode := exitCodeOf(cmd, waitErr)

	s.mu.Lock()
	if s.waitDone == done {
		code := exitCode
		s.lastExit = &code
		if !s.expectStop {
			s.errorReason = crashReason(exitCode, s.ring.Tail(5))
		}
	}
	expected := s.expectStop || s.waitDone != done
	s.mu.Unlock()

	// Unblock Stop (or Start probation) before anything else.
	close(done)
	if expected {
		return
	}

	// Unexpected exit: crash handling is exclusive with start/stop.
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.waitDone != done {
		// A newer start or a racing stop already took over.
		s.mu.Unlock()
		return
	}
	snap := s.snapshot
	s.snapshot = nil
	reason := s.errorReason
	s.clearChildLocked()
	s.mu.Unlock()

	if snap != nil {
		if err := s.proxy.Restore(snap); err != nil {
			log.Printf("restore system proxy after crash: %v", err)
		}
	}
	if s.metrics != nil {
		s.metrics.EngineRunning.Set(0)
		s.metrics.EngineCrashes.Inc()
	}
	log.Printf("engine exited unexpectedly: %s", reason)
}

// clearChildLocked resets child bookkeeping to idle. Crash detail in
// lastExit/errorReason is preserved; callers clear it when appropriate.
func (s *Supervisor) clearChildLocked() {
	s.state = stateIdle
	s.cmd = nil
	s.pid = 0
	s.configPath = ""
	s.startTime = time.Time{}
	s.expectStop = false
	s.waitDone = nil
}

func coreArgs(template []string, configPath string) []string {
	args := make([]string, len(template))
	for i, a := range template {
		args[i] = strings.ReplaceAll(a, "{config}", configPath)
	}
	return args
}

func checkConfigPath(path string) error {
	if path == "" {
		return protocol.NewError(protocol.CodeInvalidParams, "configPath is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return protocol.NewError(protocol.CodeConfigNotFound, "config file not found: %s", path)
	}
	if os.IsPermission(err) {
		return protocol.NewError(protocol.CodePermissionDenied, "config file not readable: %s", path)
	}
	if err != nil {
		return protocol.NewError(protocol.CodeConfigNotFound, "config file %s: %v", path, err)
	}
	if info.IsDir() {
		return protocol.NewError(protocol.CodeConfigNotFound, "config path is a directory: %s", path)
	}
	return nil
}

func checkCorePath(path string) error {
	if path == "" {
		return protocol.NewError(protocol.CodeInvalidParams, "corePath is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return protocol.NewError(protocol.CodeCoreNotFound, "engine binary not found: %s", path)
	}
	if err != nil {
		return protocol.NewError(protocol.CodeCoreNotFound, "engine binary %s: %v", path, err)
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return protocol.NewError(protocol.CodeCoreNotFound, "engine binary not executable: %s", path)
	}
	return nil
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// crashReason builds the user-visible explanation for an unexpected
// exit, preferring the engine's own last words.
func crashReason(exitCode int, tail []string) string {
	var nonEmpty []string
	for _, line := range tail {
		if strings.TrimSpace(line) != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}
	if len(nonEmpty) > 0 {
		return fmt.Sprintf("exit code %d: %s", exitCode, strings.Join(nonEmpty, " / "))
	}
	return fmt.Sprintf("exit code %d", exitCode)
}
