package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nimbusproxy/nimbus/internal/config"
	"github.com/nimbusproxy/nimbus/internal/ipc"
	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// unavailableDetail is what the user sees instead of a raw transport
// error when the helper stops answering.
const unavailableDetail = "privileged helper service unavailable"

// defaultPollInterval paces the status poll while connected. Crash
// detection latency is bounded by it.
const defaultPollInterval = 3 * time.Second

// DaemonEngine runs the engine through the privileged helper daemon.
// It is the only writer of its ConnectionStatus.
type DaemonEngine struct {
	client       *ipc.Client
	opts         Options
	pollInterval time.Duration

	mu         sync.Mutex
	status     ConnectionStatus
	pollCancel context.CancelFunc
}

// NewDaemonEngine creates a disconnected daemon-backed engine.
func NewDaemonEngine(client *ipc.Client, opts Options) *DaemonEngine {
	return &DaemonEngine{
		client:       client,
		opts:         opts,
		pollInterval: defaultPollInterval,
		status:       ConnectionStatus{State: StateDisconnected},
	}
}

func (e *DaemonEngine) Type() Type { return TypeDaemon }

// Status returns the current connection status.
func (e *DaemonEngine) Status() ConnectionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Validate reports problems with the bundle without touching the
// daemon.
func (e *DaemonEngine) Validate(bundle config.Bundle) []error {
	return config.Validate(bundle)
}

// Start asks the daemon to launch the engine and begins polling its
// status. If the bundle's config requests a local proxy inbound and
// system proxy integration is enabled, the intent rides along.
func (e *DaemonEngine) Start(ctx context.Context, bundle config.Bundle) error {
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

	var proxy *protocol.SystemProxy
	var ports []int
	if hint, ok := config.ProxyHint(bundle.ConfigPath); ok {
		ports = []int{hint.Port}
		if e.opts.SystemProxy {
			proxy = hint
		}
	}

	data, err := e.client.Start(bundle.ConfigPath, bundle.CorePath, proxy)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, ipc.ErrUnavailable) {
			detail = unavailableDetail
		}
		e.fail(detail)
		return err
	}

	info := &ConnInfo{EngineType: TypeDaemon, PID: data.PID, StartedAt: time.Now(), Ports: ports}
	e.connect(info)
	return nil
}

// Stop tears the connection down. A daemon that already lost the
// engine (not-running) still counts as a clean disconnect.
func (e *DaemonEngine) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	switch e.status.State {
	case StateConnected:
	case StateError:
		// Nothing running under us; just clear the error.
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
	cancel := e.pollCancel
	e.pollCancel = nil
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateDisconnecting})

	if cancel != nil {
		cancel()
	}

	if err := e.client.Stop(); err != nil {
		if errors.Is(err, ipc.ErrUnavailable) {
			e.fail(unavailableDetail)
			return err
		}
		if protocol.AsCode(err) != protocol.CodeNotRunning {
			e.fail(err.Error())
			return err
		}
	}

	e.mu.Lock()
	e.status = ConnectionStatus{State: StateDisconnected}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateDisconnected})
	return nil
}

// Switch moves a connected engine to a new bundle as an explicit
// stop-then-start. Between the two calls there is a brief window with
// no engine and the system proxy already restored.
func (e *DaemonEngine) Switch(ctx context.Context, bundle config.Bundle) error {
	if err := e.Stop(ctx); err != nil {
		return err
	}
	return e.Start(ctx, bundle)
}

// SyncInitialState adopts whatever the daemon is already doing, so an
// application relaunch reflects a running engine without a reconnect.
// Called once after construction; a transport failure leaves the
// engine disconnected.
func (e *DaemonEngine) SyncInitialState() {
	st, err := e.client.Status()
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.status.State != StateDisconnected {
		e.mu.Unlock()
		return
	}
	if !st.IsRunning {
		if st.ErrorReason != "" {
			e.status = ConnectionStatus{State: StateError, Detail: st.ErrorReason}
			e.mu.Unlock()
			e.notify(ConnectionStatus{State: StateError, Detail: st.ErrorReason})
			return
		}
		e.mu.Unlock()
		return
	}

	info := &ConnInfo{EngineType: TypeDaemon, PID: st.PID}
	if st.StartTime != nil {
		info.StartedAt = *st.StartTime
	}
	if hint, ok := config.ProxyHint(st.ConfigPath); ok {
		info.Ports = []int{hint.Port}
	}
	e.status = ConnectionStatus{State: StateConnected, Info: info}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateConnected, Info: info})
	e.startPolling()
}

// connect publishes the connected state and starts the poll loop.
func (e *DaemonEngine) connect(info *ConnInfo) {
	e.mu.Lock()
	e.status = ConnectionStatus{State: StateConnected, Info: info}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateConnected, Info: info})
	e.startPolling()
}

func (e *DaemonEngine) startPolling() {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.status.State != StateConnected {
		e.mu.Unlock()
		cancel()
		return
	}
	e.pollCancel = cancel
	e.mu.Unlock()
	go e.poll(ctx)
}

// poll watches the daemon while connected. A daemon-reported crash
// becomes the error state with the daemon's reason verbatim; a
// transport failure becomes "service unavailable".
func (e *DaemonEngine) poll(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := e.client.Status()
		if err != nil {
			e.fail(unavailableDetail)
			return
		}
		if st.IsRunning {
			continue
		}
		if st.ErrorReason != "" {
			e.fail(st.ErrorReason)
			return
		}

		// Stopped out from under us without a crash (e.g. another
		// client issued stop): that is a disconnect, not an error.
		e.mu.Lock()
		if e.status.State == StateConnected {
			e.status = ConnectionStatus{State: StateDisconnected}
			e.pollCancel = nil
			e.mu.Unlock()
			e.notify(ConnectionStatus{State: StateDisconnected})
			return
		}
		e.mu.Unlock()
		return
	}
}

// fail moves connecting/connected to the error state. Any other state
// already superseded the failure.
func (e *DaemonEngine) fail(detail string) {
	e.mu.Lock()
	switch e.status.State {
	case StateConnecting, StateConnected, StateDisconnecting:
	default:
		e.mu.Unlock()
		return
	}
	e.status = ConnectionStatus{State: StateError, Detail: detail}
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}
	e.mu.Unlock()
	e.notify(ConnectionStatus{State: StateError, Detail: detail})
}

func (e *DaemonEngine) notify(st ConnectionStatus) {
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(st)
	}
}
