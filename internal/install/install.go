// Package install manages the privileged helper daemon's lifecycle on
// the host: copying the binary into place, registering it with the
// platform boot manager, and reporting whether the installed service
// actually answers. Each install/uninstall is one elevation prompt.
package install

import (
	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// State describes the helper service as observed right now.
type State struct {
	// Installed means both the binary and the boot manifest are in
	// place.
	Installed bool
	// Running means the daemon answered a version round-trip.
	Running bool
	// Broken means artifacts exist but the daemon does not respond, or
	// only part of the artifacts survived. Never reported as running.
	Broken bool
	// Version is the running daemon's version, when reachable.
	Version string
}

// Prober is the slice of the IPC client Status needs.
type Prober interface {
	IsAvailable() bool
	Version() (*protocol.VersionData, error)
}

// Status combines on-disk artifacts with a live probe.
func Status(probe Prober) State {
	installed, partial := artifactState()
	return deriveState(installed, partial, probe)
}

func deriveState(installed, partial bool, probe Prober) State {
	st := State{Installed: installed}
	if partial {
		st.Broken = true
		return st
	}
	if !installed {
		return st
	}
	if !probe.IsAvailable() {
		st.Broken = true
		return st
	}
	v, err := probe.Version()
	if err != nil {
		st.Broken = true
		return st
	}
	st.Running = true
	st.Version = v.Version
	return st
}

// Reinstall is uninstall followed by install. Two prompts, never
// silent.
func Reinstall(helperBinary string) error {
	if err := Uninstall(); err != nil {
		return err
	}
	return Install(helperBinary)
}
