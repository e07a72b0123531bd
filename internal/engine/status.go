package engine

import (
	"fmt"
	"time"
)

// Type identifies how the engine process is being run.
type Type string

const (
	// TypeDaemon runs the engine through the privileged helper daemon.
	TypeDaemon Type = "daemon"
	// TypeLocal runs the engine as a same-privilege child process.
	TypeLocal Type = "local"
	// TypeTunnel runs the engine inside the OS VPN tunnel extension.
	TypeTunnel Type = "tunnel"
)

// State is the connection lifecycle position.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
	StateError         State = "error"
)

// ConnInfo describes a live connection.
type ConnInfo struct {
	EngineType Type
	PID        int
	StartedAt  time.Time
	Ports      []int
}

// ConnectionStatus is the observable value the application renders.
// Info is set only in StateConnected; Detail only in StateError.
type ConnectionStatus struct {
	State  State
	Info   *ConnInfo
	Detail string
}

// StatusFunc observes every status transition. Called outside the
// engine's lock, in transition order.
type StatusFunc func(ConnectionStatus)

// TransitionError reports an operation invoked in a state that does
// not permit it. Invalid transitions fail loudly, never no-op.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
