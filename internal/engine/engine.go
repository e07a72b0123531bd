// Package engine abstracts the ways the proxy engine can be run: via
// the privileged helper daemon, as a same-privilege local process, or
// through the OS tunnel extension. Callers hold one Engine for the
// process lifetime and inject it where needed; there is no ambient
// shared instance.
package engine

import (
	"context"

	"github.com/nimbusproxy/nimbus/internal/config"
	"github.com/nimbusproxy/nimbus/internal/ipc"
)

// Engine is the capability contract shared by all engine flavors.
type Engine interface {
	Type() Type
	// Start brings the engine up with the given bundle. Fails with a
	// *TransitionError unless the engine is disconnected or errored.
	Start(ctx context.Context, bundle config.Bundle) error
	// Stop tears the engine down. From the error state it only clears
	// local state.
	Stop(ctx context.Context) error
	// Validate reports every problem with the bundle, without side
	// effects.
	Validate(bundle config.Bundle) []error
	// Status returns the current connection status.
	Status() ConnectionStatus
}

// Options configures engine construction.
type Options struct {
	// SystemProxy enables host proxy integration when the config
	// requests a local HTTP/HTTPS inbound. Daemon engine only; the
	// local engine lacks the privileges for it.
	SystemProxy bool
	// OnStatus observes every status transition.
	OnStatus StatusFunc
}

// Select picks the best available engine: the daemon-mediated one when
// the privileged helper answers, otherwise the same-privilege local
// fallback. Transport failures never bubble past this decision.
func Select(client *ipc.Client, opts Options) Engine {
	if client.IsAvailable() {
		return NewDaemonEngine(client, opts)
	}
	return NewLocalEngine(opts)
}
