package main

import (
	"errors"
	"fmt"

	"github.com/nimbusproxy/nimbus/internal/ipc"
)

// LogsCmd prints recent engine output captured by the helper daemon.
type LogsCmd struct {
	Lines int `short:"n" default:"50" help:"Number of lines to print."`
}

func (c *LogsCmd) Run(globals *CLI) error {
	lines, err := helperClient(globals).Logs(c.Lines)
	if err != nil {
		if errors.Is(err, ipc.ErrUnavailable) {
			return fmt.Errorf("helper service unavailable; install with 'nimbus service install'")
		}
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
