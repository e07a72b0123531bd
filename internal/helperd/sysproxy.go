package helperd

import (
	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// ProxySnapshot captures host proxy settings as they were before the
// daemon applied a SystemProxy intent. Held in memory only; consumed
// (restored, then discarded) exactly once.
type ProxySnapshot struct {
	// Entries is platform-opaque: each applier stores whatever it
	// needs to put the host back exactly as it found it.
	Entries map[string]string
}

// ProxyApplier mutates host-level proxy configuration. Exactly one
// implementation is active per platform; tests substitute a fake.
type ProxyApplier interface {
	// Capture records the current host proxy settings.
	Capture() (*ProxySnapshot, error)
	// Apply points the host's HTTP/HTTPS proxy at the intent.
	Apply(p protocol.SystemProxy) error
	// Restore puts back a previously captured snapshot.
	Restore(s *ProxySnapshot) error
}

// noopApplier is used when the platform's proxy tooling is absent.
// Capture/Apply/Restore all succeed without touching anything, so an
// engine can still run (just without system proxy integration).
type noopApplier struct{}

func (noopApplier) Capture() (*ProxySnapshot, error) { return &ProxySnapshot{}, nil }
func (noopApplier) Apply(protocol.SystemProxy) error { return nil }
func (noopApplier) Restore(*ProxySnapshot) error     { return nil }
