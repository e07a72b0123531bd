//go:build linux

package install

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

const (
	serviceName = "nimbus-helperd"
	// ManifestPath is the systemd unit location.
	ManifestPath = "/etc/systemd/system/nimbus-helperd.service"
	// BinaryPath is where the helper binary is installed.
	BinaryPath = "/usr/local/bin/nimbus-helper"
)

func buildSystemdUnit(binaryPath string) string {
	return fmt.Sprintf(`[Unit]
Description=Nimbus privileged helper daemon
After=network.target

[Service]
Type=simple
ExecStart=%s
Restart=always
RestartSec=5
StandardOutput=append:%s
StandardError=append:%s

[Install]
WantedBy=multi-user.target
`, binaryPath, protocol.LogPath, protocol.LogPath)
}

// Install copies the helper binary, writes the systemd unit, and
// enables it, all inside one elevated script.
func Install(helperBinary string) error {
	if _, err := os.Stat(helperBinary); err != nil {
		return fmt.Errorf("helper binary: %w", err)
	}

	staged, err := os.CreateTemp("", "nimbus-unit-*.service")
	if err != nil {
		return fmt.Errorf("stage unit: %w", err)
	}
	defer func() { _ = os.Remove(staged.Name()) }()
	if _, err := staged.WriteString(buildSystemdUnit(BinaryPath)); err != nil {
		_ = staged.Close()
		return fmt.Errorf("stage unit: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("stage unit: %w", err)
	}

	script := fmt.Sprintf(`cp %q %q
chmod 755 %q
cp %q %q
chmod 644 %q
systemctl daemon-reload
systemctl enable --now %s
`, helperBinary, BinaryPath, BinaryPath,
		staged.Name(), ManifestPath, ManifestPath, serviceName)
	return runRoot(script)
}

// Uninstall stops the service and removes the artifacts.
func Uninstall() error {
	script := fmt.Sprintf(`systemctl disable --now %s 2>/dev/null || true
rm -f %q %q %q
systemctl daemon-reload
`, serviceName, ManifestPath, BinaryPath, protocol.SocketPath)
	return runRoot(script)
}

func elevatedCommand(scriptPath string) *exec.Cmd {
	return exec.Command("pkexec", "/bin/sh", scriptPath)
}

func artifactState() (installed, partial bool) {
	_, binErr := os.Stat(BinaryPath)
	_, manErr := os.Stat(ManifestPath)
	switch {
	case binErr == nil && manErr == nil:
		return true, false
	case binErr == nil || manErr == nil:
		return false, true
	default:
		return false, false
	}
}
