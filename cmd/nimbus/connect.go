package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimbusproxy/nimbus/internal/config"
	"github.com/nimbusproxy/nimbus/internal/engine"
	"github.com/nimbusproxy/nimbus/internal/tui"
	"github.com/nimbusproxy/nimbus/internal/ui"
)

// ConnectCmd starts the proxy engine with the given configuration.
type ConnectCmd struct {
	Config      string `arg:"" help:"Path to the engine configuration file." type:"existingfile"`
	Core        string `help:"Path to the engine binary (default: nimbus-core on PATH)."`
	SystemProxy bool   `help:"Point the host system proxy at the engine's local inbound."`
	Local       bool   `help:"Run the engine as a direct child instead of via the helper."`
}

func (c *ConnectCmd) Run(globals *CLI) error {
	corePath := c.Core
	if corePath == "" {
		found, err := exec.LookPath("nimbus-core")
		if err != nil {
			return fmt.Errorf("engine binary not found on PATH; pass --core")
		}
		corePath = found
	}
	bundle := config.Bundle{ConfigPath: c.Config, CorePath: corePath}

	opts := engine.Options{SystemProxy: c.SystemProxy}
	if globals.Verbose {
		opts.OnStatus = func(st engine.ConnectionStatus) {
			_, _ = fmt.Fprintln(os.Stderr, ui.StepRun(string(st.State)))
		}
	}

	client := helperClient(globals)
	e := engine.Select(client, opts)
	if e.Type() == engine.TypeLocal {
		_, _ = fmt.Fprintln(os.Stderr, ui.Warn(
			"helper service unavailable; running engine directly (no system proxy, stops with this command)"))
		if c.SystemProxy {
			return fmt.Errorf("--system-proxy needs the helper service; run 'nimbus service install' first")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	steps := []tui.Step{
		{
			Title: "Validating configuration",
			Run: func(ctx context.Context, sub func(string)) error {
				if errs := e.Validate(bundle); len(errs) > 0 {
					msgs := make([]string, 0, len(errs))
					for _, err := range errs {
						msgs = append(msgs, err.Error())
					}
					return errors.New(strings.Join(msgs, "; "))
				}
				sub("Configuration OK")
				return nil
			},
		},
		{
			Title: "Starting proxy engine",
			Run: func(ctx context.Context, sub func(string)) error {
				if err := e.Start(ctx, bundle); err != nil {
					if st := e.Status(); st.State == engine.StateError && st.Detail != "" {
						return errors.New(st.Detail)
					}
					return err
				}
				sub("Engine started")
				return nil
			},
		},
	}
	if err := tui.RunSteps(ctx, steps); err != nil {
		return err
	}

	st := e.Status()
	if st.Info != nil && len(st.Info.Ports) > 0 {
		fmt.Println(ui.StepOK(fmt.Sprintf("Proxy listening on port %d (PID %d)", st.Info.Ports[0], st.Info.PID)))
	}
	if c.SystemProxy {
		fmt.Println(ui.StepOK("System proxy configured; restored automatically on disconnect"))
	}

	if e.Type() != engine.TypeLocal {
		return nil
	}

	// The local engine lives only as long as this process.
	fmt.Println(ui.StepRun("Engine running. Press Ctrl-C to stop"))
	<-ctx.Done()
	fmt.Println()
	return e.Stop(context.Background())
}
