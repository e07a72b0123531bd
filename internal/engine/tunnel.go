package engine

import (
	"context"
	"errors"

	"github.com/nimbusproxy/nimbus/internal/config"
)

// ErrTunnelUnsupported is returned by the tunnel engine on platforms
// without the OS VPN extension.
var ErrTunnelUnsupported = errors.New("tunnel engine is not supported on this platform")

// TunnelEngine represents the OS VPN tunnel extension flavor. The
// extension itself lives outside this codebase; this type keeps the
// engine type set closed and reports unsupported where the extension
// is absent.
type TunnelEngine struct {
	opts Options
}

// NewTunnelEngine creates a tunnel engine placeholder.
func NewTunnelEngine(opts Options) *TunnelEngine {
	return &TunnelEngine{opts: opts}
}

func (e *TunnelEngine) Type() Type { return TypeTunnel }

func (e *TunnelEngine) Status() ConnectionStatus {
	return ConnectionStatus{State: StateDisconnected}
}

func (e *TunnelEngine) Validate(bundle config.Bundle) []error {
	return []error{ErrTunnelUnsupported}
}

func (e *TunnelEngine) Start(ctx context.Context, bundle config.Bundle) error {
	return ErrTunnelUnsupported
}

func (e *TunnelEngine) Stop(ctx context.Context) error {
	return ErrTunnelUnsupported
}
