package install

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runRoot executes the script as root. Already-root processes run it
// directly; otherwise the platform's graphical elevation prompt is
// used, once for the whole script.
func runRoot(script string) error {
	f, err := os.CreateTemp("", "nimbus-install-*.sh")
	if err != nil {
		return fmt.Errorf("write install script: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.WriteString("#!/bin/sh\nset -e\n" + script); err != nil {
		_ = f.Close()
		return fmt.Errorf("write install script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write install script: %w", err)
	}
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("write install script: %w", err)
	}

	var cmd *exec.Cmd
	if os.Geteuid() == 0 {
		cmd = exec.Command("/bin/sh", path)
	} else {
		cmd = elevatedCommand(path)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("elevated install script: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
