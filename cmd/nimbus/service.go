package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nimbusproxy/nimbus/internal/install"
	"github.com/nimbusproxy/nimbus/internal/tui"
	"github.com/nimbusproxy/nimbus/internal/ui"
)

// ServiceCmd manages the privileged helper service.
type ServiceCmd struct {
	Install   ServiceInstallCmd   `cmd:"" help:"Install and start the helper service (prompts for admin rights)."`
	Uninstall ServiceUninstallCmd `cmd:"" help:"Stop and remove the helper service."`
	Reinstall ServiceReinstallCmd `cmd:"" help:"Uninstall, then install the helper service."`
	Status    ServiceStatusCmd    `cmd:"" help:"Show the helper service state."`
}

// ServiceInstallCmd installs the helper daemon as a boot service.
type ServiceInstallCmd struct {
	Binary string `help:"Path to the nimbus-helper binary (default: next to this executable)."`
}

func (c *ServiceInstallCmd) Run(globals *CLI) error {
	helperBinary, err := resolveHelperBinary(c.Binary)
	if err != nil {
		return err
	}

	client := helperClient(globals)
	steps := []tui.Step{
		{
			Title: "Installing helper service",
			Run: func(ctx context.Context, sub func(string)) error {
				if err := install.Install(helperBinary); err != nil {
					return err
				}
				sub("Helper service installed")
				return nil
			},
		},
		{
			Title: "Waiting for helper to come up",
			Run: func(ctx context.Context, sub func(string)) error {
				if err := client.WaitForReady(15 * time.Second); err != nil {
					return err
				}
				sub("Helper is up")
				return nil
			},
		},
	}
	if err := tui.RunSteps(context.Background(), steps); err != nil {
		return err
	}
	fmt.Println(ui.StepOK("Helper service ready; run 'nimbus connect' to start the engine"))
	return nil
}

// ServiceUninstallCmd removes the helper service.
type ServiceUninstallCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt."`
}

func (c *ServiceUninstallCmd) Run(globals *CLI) error {
	if !c.Yes {
		var confirmed bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Remove the nimbus helper service?").
				Description("A running engine will be stopped and the system proxy restored.").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("confirmation prompt: %w", err)
		}
		if !confirmed {
			return nil
		}
	}

	if err := install.Uninstall(); err != nil {
		return err
	}
	fmt.Println(ui.StepOK("Helper service removed"))
	return nil
}

// ServiceReinstallCmd reinstalls the helper service, e.g. after a CLI
// upgrade shipped a newer helper binary.
type ServiceReinstallCmd struct {
	Binary string `help:"Path to the nimbus-helper binary (default: next to this executable)."`
}

func (c *ServiceReinstallCmd) Run(globals *CLI) error {
	helperBinary, err := resolveHelperBinary(c.Binary)
	if err != nil {
		return err
	}
	if err := install.Reinstall(helperBinary); err != nil {
		return err
	}
	if err := helperClient(globals).WaitForReady(15 * time.Second); err != nil {
		return err
	}
	fmt.Println(ui.StepOK("Helper service reinstalled"))
	return nil
}

// ServiceStatusCmd prints the helper service state.
type ServiceStatusCmd struct{}

func (c *ServiceStatusCmd) Run(globals *CLI) error {
	st := install.Status(helperClient(globals))
	switch {
	case st.Running:
		fmt.Println(ui.StepOK(fmt.Sprintf("Helper service running (version %s)", st.Version)))
	case st.Broken:
		_, _ = fmt.Fprintln(os.Stderr, ui.Error(
			"helper service installed but not responding; try 'nimbus service reinstall'"))
		return fmt.Errorf("helper service broken")
	case st.Installed:
		fmt.Println(ui.Warn("Helper service installed but not running"))
	default:
		fmt.Println("Helper service not installed; run 'nimbus service install'")
	}
	return nil
}

// resolveHelperBinary finds the nimbus-helper binary to install: the
// explicit flag, a sibling of the running executable, or PATH.
func resolveHelperBinary(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "nimbus-helper")
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	if found, err := exec.LookPath("nimbus-helper"); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("nimbus-helper binary not found; pass --binary")
}
