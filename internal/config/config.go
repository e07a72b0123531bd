// Package config handles the engine configuration bundle at its
// boundary: a config file path plus an engine binary path, produced
// elsewhere. The contents are opaque except for the local proxy hint.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// Bundle pairs an engine config file with the engine binary that
// consumes it.
type Bundle struct {
	ConfigPath string
	CorePath   string
}

// Validate checks that the bundle is usable without interpreting the
// config beyond "it parses". Returns one error per problem found.
func Validate(b Bundle) []error {
	var errs []error

	if b.ConfigPath == "" {
		errs = append(errs, fmt.Errorf("config path is empty"))
	} else if info, err := os.Stat(b.ConfigPath); err != nil {
		errs = append(errs, fmt.Errorf("config file: %w", err))
	} else if info.IsDir() {
		errs = append(errs, fmt.Errorf("config path %q is a directory", b.ConfigPath))
	} else if data, err := os.ReadFile(b.ConfigPath); err != nil {
		errs = append(errs, fmt.Errorf("config file: %w", err))
	} else {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			errs = append(errs, fmt.Errorf("config file %q: %w", b.ConfigPath, err))
		}
	}

	if b.CorePath == "" {
		errs = append(errs, fmt.Errorf("engine binary path is empty"))
	} else if info, err := os.Stat(b.CorePath); err != nil {
		errs = append(errs, fmt.Errorf("engine binary: %w", err))
	} else if info.IsDir() || info.Mode()&0111 == 0 {
		errs = append(errs, fmt.Errorf("engine binary %q is not executable", b.CorePath))
	}

	return errs
}

// proxyHintDoc is the only slice of the config schema this package
// knows about: whether the config asks for a local HTTP/HTTPS inbound.
type proxyHintDoc struct {
	MixedPort   int      `yaml:"mixed-port"`
	Port        int      `yaml:"port"`
	BindAddress string   `yaml:"bind-address"`
	Bypass      []string `yaml:"system-proxy-bypass"`
}

// ProxyHint reads configPath and, if the config requests a local
// HTTP/HTTPS proxy, returns the system proxy intent pointing at it.
// Returns false when the config has no local proxy inbound.
func ProxyHint(configPath string) (*protocol.SystemProxy, bool) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, false
	}
	var doc proxyHintDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false
	}

	port := doc.MixedPort
	if port == 0 {
		port = doc.Port
	}
	if port <= 0 || port > 65535 {
		return nil, false
	}

	host := doc.BindAddress
	if host == "" || host == "*" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return &protocol.SystemProxy{
		Enabled:       true,
		Host:          host,
		Port:          port,
		BypassDomains: doc.Bypass,
	}, true
}
