//go:build darwin

package helperd

import "testing"

func TestParseProxyState(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			name: "enabled",
			out:  "Enabled: Yes\nServer: 127.0.0.1\nPort: 2080\nAuthenticated Proxy Enabled: 0\n",
			want: "yes|127.0.0.1|2080",
		},
		{
			name: "disabled",
			out:  "Enabled: No\nServer: \nPort: 0\n",
			want: "no||",
		},
		{
			name: "garbage",
			out:  "not networksetup output",
			want: "no||",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseProxyState(tt.out); got != tt.want {
				t.Errorf("parseProxyState = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBypassDomains(t *testing.T) {
	got := parseBypassDomains("localhost\n192.168.0.0/16\n")
	if len(got) != 2 || got[0] != "localhost" {
		t.Errorf("parseBypassDomains = %v", got)
	}

	// Empty list must restore as networksetup's clear sentinel.
	for _, out := range []string{"There aren't any bypass domains set on Wi-Fi.\n", "\n"} {
		got := parseBypassDomains(out)
		if len(got) != 1 || got[0] != "Empty" {
			t.Errorf("parseBypassDomains(%q) = %v, want [Empty]", out, got)
		}
	}
}
