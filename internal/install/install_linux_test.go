//go:build linux

package install

import (
	"strings"
	"testing"
)

func TestSystemdUnitContent(t *testing.T) {
	unit := buildSystemdUnit("/usr/local/bin/nimbus-helper")
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/nimbus-helper") {
		t.Error("missing ExecStart with binary path")
	}
	if !strings.Contains(unit, "Restart=always") {
		t.Error("missing Restart=always")
	}
	if !strings.Contains(unit, "StandardOutput=append:/var/log/nimbus-helperd.log") {
		t.Error("missing log redirection")
	}
	if !strings.Contains(unit, "WantedBy=multi-user.target") {
		t.Error("missing WantedBy")
	}
}
