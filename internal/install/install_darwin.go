//go:build darwin

package install

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

const (
	daemonLabel = "app.nimbus.helperd"
	// ManifestPath is the LaunchDaemon plist location.
	ManifestPath = "/Library/LaunchDaemons/app.nimbus.helperd.plist"
	// BinaryPath is where the helper binary is installed.
	BinaryPath = "/Library/PrivilegedHelperTools/app.nimbus.helperd"
)

func buildPlist(binaryPath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, daemonLabel, binaryPath, protocol.LogPath, protocol.LogPath)
}

// Install copies the helper binary, writes the LaunchDaemon plist, and
// loads it, all inside one elevated script.
func Install(helperBinary string) error {
	if _, err := os.Stat(helperBinary); err != nil {
		return fmt.Errorf("helper binary: %w", err)
	}

	// The plist is staged in a user-writable temp file; the elevated
	// script moves it into place.
	staged, err := os.CreateTemp("", "nimbus-plist-*.plist")
	if err != nil {
		return fmt.Errorf("stage plist: %w", err)
	}
	defer func() { _ = os.Remove(staged.Name()) }()
	if _, err := staged.WriteString(buildPlist(BinaryPath)); err != nil {
		_ = staged.Close()
		return fmt.Errorf("stage plist: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("stage plist: %w", err)
	}

	script := fmt.Sprintf(`mkdir -p /Library/PrivilegedHelperTools
cp %q %q
chmod 755 %q
chown root:wheel %q
cp %q %q
chmod 644 %q
chown root:wheel %q
launchctl unload %q 2>/dev/null || true
launchctl load %q
`, helperBinary, BinaryPath, BinaryPath, BinaryPath,
		staged.Name(), ManifestPath, ManifestPath, ManifestPath,
		ManifestPath, ManifestPath)
	return runRoot(script)
}

// Uninstall unloads the LaunchDaemon and removes the artifacts.
func Uninstall() error {
	script := fmt.Sprintf(`launchctl unload %q 2>/dev/null || true
rm -f %q %q %q
`, ManifestPath, ManifestPath, BinaryPath, protocol.SocketPath)
	return runRoot(script)
}

func elevatedCommand(scriptPath string) *exec.Cmd {
	return exec.Command("osascript", "-e",
		fmt.Sprintf("do shell script \"/bin/sh %s\" with administrator privileges", scriptPath))
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
