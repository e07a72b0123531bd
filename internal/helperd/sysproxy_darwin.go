//go:build darwin

package helperd

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// darwinApplier drives networksetup for every active network service.
type darwinApplier struct{}

func newProxyApplier() ProxyApplier {
	if _, err := exec.LookPath("networksetup"); err != nil {
		return noopApplier{}
	}
	return darwinApplier{}
}

func (darwinApplier) Capture() (*ProxySnapshot, error) {
	services, err := listNetworkServices()
	if err != nil {
		return nil, err
	}
	snap := &ProxySnapshot{Entries: make(map[string]string)}
	for _, svc := range services {
		for _, kind := range []string{"webproxy", "securewebproxy"} {
			out, err := exec.Command("networksetup", "-get"+kind, svc).Output()
			if err != nil {
				return nil, fmt.Errorf("networksetup -get%s %q: %w", kind, svc, err)
			}
			snap.Entries[kind+":"+svc] = parseProxyState(string(out))
		}
		out, err := exec.Command("networksetup", "-getproxybypassdomains", svc).Output()
		if err != nil {
			return nil, fmt.Errorf("networksetup -getproxybypassdomains %q: %w", svc, err)
		}
		snap.Entries["bypass:"+svc] = strings.TrimSpace(string(out))
	}
	return snap, nil
}

func (darwinApplier) Apply(p protocol.SystemProxy) error {
	if !p.Enabled {
		return nil
	}
	services, err := listNetworkServices()
	if err != nil {
		return err
	}
	port := strconv.Itoa(p.Port)
	for _, svc := range services {
		for _, set := range []string{"-setwebproxy", "-setsecurewebproxy"} {
			if out, err := exec.Command("networksetup", set, svc, p.Host, port).CombinedOutput(); err != nil {
				return fmt.Errorf("networksetup %s %q: %w: %s", set, svc, err, strings.TrimSpace(string(out)))
			}
		}
		if len(p.BypassDomains) > 0 {
			args := append([]string{"-setproxybypassdomains", svc}, p.BypassDomains...)
			if out, err := exec.Command("networksetup", args...).CombinedOutput(); err != nil {
				return fmt.Errorf("networksetup -setproxybypassdomains %q: %w: %s", svc, err, strings.TrimSpace(string(out)))
			}
		}
	}
	return nil
}

func (darwinApplier) Restore(s *ProxySnapshot) error {
	if s == nil {
		return nil
	}
	services, err := listNetworkServices()
	if err != nil {
		return err
	}
	for _, svc := range services {
		for _, kind := range []string{"webproxy", "securewebproxy"} {
			state, ok := s.Entries[kind+":"+svc]
			if !ok {
				continue
			}
			if err := restoreProxyState(kind, svc, state); err != nil {
				return err
			}
		}
		if bypass, ok := s.Entries["bypass:"+svc]; ok {
			domains := parseBypassDomains(bypass)
			args := append([]string{"-setproxybypassdomains", svc}, domains...)
			if out, err := exec.Command("networksetup", args...).CombinedOutput(); err != nil {
				return fmt.Errorf("networksetup -setproxybypassdomains %q: %w: %s", svc, err, strings.TrimSpace(string(out)))
			}
		}
	}
	return nil
}

func listNetworkServices() ([]string, error) {
	out, err := exec.Command("networksetup", "-listallnetworkservices").Output()
	if err != nil {
		return nil, fmt.Errorf("networksetup -listallnetworkservices: %w", err)
	}
	var services []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// First line is a legend; disabled services are starred.
		if line == "" || strings.Contains(line, "asterisk") || strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}
	return services, nil
}

// parseProxyState flattens networksetup -getwebproxy output
// ("Enabled: Yes\nServer: h\nPort: p\n...") to "yes|h|p" or "no||".
func parseProxyState(out string) string {
	var enabled, server, port string
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch strings.TrimSpace(k) {
		case "Enabled":
			enabled = strings.ToLower(v)
		case "Server":
			server = v
		case "Port":
			port = v
		}
	}
	if enabled != "yes" {
		return "no||"
	}
	return "yes|" + server + "|" + port
}

func restoreProxyState(kind, svc, state string) error {
	parts := strings.SplitN(state, "|", 3)
	if len(parts) == 3 && parts[0] == "yes" {
		if out, err := exec.Command("networksetup", "-set"+kind, svc, parts[1], parts[2]).CombinedOutput(); err != nil {
			return fmt.Errorf("networksetup -set%s %q: %w: %s", kind, svc, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	if out, err := exec.Command("networksetup", "-set"+kind+"state", svc, "off").CombinedOutput(); err != nil {
		return fmt.Errorf("networksetup -set%sstate %q off: %w: %s", kind, svc, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func parseBypassDomains(out string) []string {
	if strings.Contains(out, "There aren't any") {
		return []string{"Empty"} // networksetup's own sentinel for "clear the list"
	}
	var domains []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			domains = append(domains, line)
		}
	}
	if len(domains) == 0 {
		return []string{"Empty"}
	}
	return domains
}
