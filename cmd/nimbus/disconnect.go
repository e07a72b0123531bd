package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimbusproxy/nimbus/internal/engine"
	"github.com/nimbusproxy/nimbus/internal/ipc"
	"github.com/nimbusproxy/nimbus/internal/ui"
)

// DisconnectCmd stops the engine managed by the helper daemon and
// restores the system proxy.
type DisconnectCmd struct{}

func (c *DisconnectCmd) Run(globals *CLI) error {
	e := engine.NewDaemonEngine(helperClient(globals), engine.Options{})
	e.SyncInitialState()

	switch e.Status().State {
	case engine.StateConnected, engine.StateError:
	default:
		fmt.Println(ui.StepOK("Engine is not running"))
		return nil
	}

	if err := e.Stop(context.Background()); err != nil {
		if errors.Is(err, ipc.ErrUnavailable) {
			return fmt.Errorf("helper service stopped answering; check 'nimbus service status'")
		}
		return err
	}
	fmt.Println(ui.StepOK("Engine stopped, system proxy restored"))
	return nil
}
