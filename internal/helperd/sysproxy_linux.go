//go:build linux

package helperd

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// gnomeApplier drives gsettings (org.gnome.system.proxy). On hosts
// without a GNOME session the constructor falls back to a no-op.
type gnomeApplier struct{}

func newProxyApplier() ProxyApplier {
	if _, err := exec.LookPath("gsettings"); err != nil {
		return noopApplier{}
	}
	return gnomeApplier{}
}

// proxyKeys lists every gsettings key the applier touches, so Capture
// and Restore stay in lockstep with Apply.
var proxyKeys = []struct{ schema, key string }{
	{"org.gnome.system.proxy", "mode"},
	{"org.gnome.system.proxy", "ignore-hosts"},
	{"org.gnome.system.proxy.http", "host"},
	{"org.gnome.system.proxy.http", "port"},
	{"org.gnome.system.proxy.https", "host"},
	{"org.gnome.system.proxy.https", "port"},
}

func (gnomeApplier) Capture() (*ProxySnapshot, error) {
	snap := &ProxySnapshot{Entries: make(map[string]string, len(proxyKeys))}
	for _, k := range proxyKeys {
		out, err := exec.Command("gsettings", "get", k.schema, k.key).Output()
		if err != nil {
			return nil, fmt.Errorf("gsettings get %s %s: %w", k.schema, k.key, err)
		}
		snap.Entries[k.schema+"/"+k.key] = strings.TrimSpace(string(out))
	}
	return snap, nil
}

func (gnomeApplier) Apply(p protocol.SystemProxy) error {
	if !p.Enabled {
		return nil
	}
	port := strconv.Itoa(p.Port)
	sets := [][]string{
		{"org.gnome.system.proxy.http", "host", "'" + p.Host + "'"},
		{"org.gnome.system.proxy.http", "port", port},
		{"org.gnome.system.proxy.https", "host", "'" + p.Host + "'"},
		{"org.gnome.system.proxy.https", "port", port},
		{"org.gnome.system.proxy", "mode", "'manual'"},
	}
	if len(p.BypassDomains) > 0 {
		quoted := make([]string, len(p.BypassDomains))
		for i, d := range p.BypassDomains {
			quoted[i] = "'" + d + "'"
		}
		sets = append(sets, []string{"org.gnome.system.proxy", "ignore-hosts", "[" + strings.Join(quoted, ", ") + "]"})
	}
	for _, s := range sets {
		if err := gsettingsSet(s[0], s[1], s[2]); err != nil {
			return err
		}
	}
	return nil
}

func (gnomeApplier) Restore(s *ProxySnapshot) error {
	if s == nil {
		return nil
	}
	for _, k := range proxyKeys {
		val, ok := s.Entries[k.schema+"/"+k.key]
		if !ok {
			continue
		}
		if err := gsettingsSet(k.schema, k.key, val); err != nil {
			return err
		}
	}
	return nil
}

func gsettingsSet(schema, key, value string) error {
	if out, err := exec.Command("gsettings", "set", schema, key, value).CombinedOutput(); err != nil {
		return fmt.Errorf("gsettings set %s %s: %w: %s", schema, key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
