package main

import (
	"fmt"

	"github.com/nimbusproxy/nimbus/internal/version"
)

// VersionCmd prints version info for the CLI and, when reachable, the
// helper daemon.
type VersionCmd struct{}

func (c *VersionCmd) Run(globals *CLI) error {
	fmt.Printf("nimbus %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.Date)
	if v, err := helperClient(globals).Version(); err == nil {
		fmt.Printf("nimbus-helper %s (PID %d)\n", v.Version, v.PID)
	}
	return nil
}
