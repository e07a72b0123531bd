package helperd

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultSettingsPath is where the daemon looks for its tunables.
const DefaultSettingsPath = "/etc/nimbus/helperd.toml"

// Settings holds the daemon's tunables. All fields have working
// defaults; a missing settings file is not an error.
type Settings struct {
	// MetricsAddr is a loopback address for the Prometheus endpoint.
	// Empty disables metrics.
	MetricsAddr string `toml:"metrics_addr"`

	// CoreArgs is the argv passed to the engine binary. The literal
	// "{config}" is replaced with the config path.
	CoreArgs []string `toml:"core_args"`

	StopGraceSeconds   int `toml:"stop_grace_seconds"`
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
	StartProbationMS   int `toml:"start_probation_ms"`
	LogBufferLines     int `toml:"log_buffer_lines"`
}

// DefaultSettings returns the built-in tunables.
func DefaultSettings() Settings {
	return Settings{
		CoreArgs:           []string{"-c", "{config}"},
		StopGraceSeconds:   5,
		IdleTimeoutSeconds: 30,
		StartProbationMS:   300,
		LogBufferLines:     200,
	}
}

// LoadSettings reads path and overlays it on the defaults. A missing
// file returns the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %q: %w", path, err)
	}
	return s.normalized(), nil
}

// normalized clamps nonsense values back to defaults.
func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.StopGraceSeconds <= 0 {
		s.StopGraceSeconds = def.StopGraceSeconds
	}
	if s.IdleTimeoutSeconds <= 0 {
		s.IdleTimeoutSeconds = def.IdleTimeoutSeconds
	}
	if s.StartProbationMS <= 0 {
		s.StartProbationMS = def.StartProbationMS
	}
	if s.LogBufferLines <= 0 {
		s.LogBufferLines = def.LogBufferLines
	}
	if len(s.CoreArgs) == 0 {
		s.CoreArgs = def.CoreArgs
	}
	return s
}

func (s Settings) stopGrace() time.Duration {
	return time.Duration(s.StopGraceSeconds) * time.Second
}

func (s Settings) idleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

func (s Settings) startProbation() time.Duration {
	return time.Duration(s.StartProbationMS) * time.Millisecond
}
