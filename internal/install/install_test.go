package install

import (
	"errors"
	"testing"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

type fakeProbe struct {
	available bool
	version   string
	err       error
}

func (p fakeProbe) IsAvailable() bool { return p.available }

func (p fakeProbe) Version() (*protocol.VersionData, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &protocol.VersionData{Version: p.version, PID: 1}, nil
}

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name               string
		installed, partial bool
		probe              fakeProbe
		want               State
	}{
		{
			name: "not installed",
			want: State{},
		},
		{
			name:    "partial artifacts are broken",
			partial: true,
			want:    State{Broken: true},
		},
		{
			name:      "installed but silent",
			installed: true,
			probe:     fakeProbe{available: false},
			want:      State{Installed: true, Broken: true},
		},
		{
			name:      "ping ok but version fails",
			installed: true,
			probe:     fakeProbe{available: true, err: errors.New("boom")},
			want:      State{Installed: true, Broken: true},
		},
		{
			name:      "running",
			installed: true,
			probe:     fakeProbe{available: true, version: "1.2.3"},
			want:      State{Installed: true, Running: true, Version: "1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveState(tt.installed, tt.partial, tt.probe)
			if got != tt.want {
				t.Errorf("deriveState = %+v, want %+v", got, tt.want)
			}
		})
	}
}
