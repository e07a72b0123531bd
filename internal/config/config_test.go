package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateOK(t *testing.T) {
	b := Bundle{
		ConfigPath: writeFile(t, "c.yaml", "mixed-port: 2080\n", 0644),
		CorePath:   writeFile(t, "engine", "#!/bin/sh\n", 0755),
	}
	if errs := Validate(b); len(errs) != 0 {
		t.Errorf("errs = %v", errs)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	b := Bundle{ConfigPath: "/nonexistent/c.yaml", CorePath: "/nonexistent/engine"}
	if errs := Validate(b); len(errs) != 2 {
		t.Errorf("errs = %v, want 2 problems", errs)
	}
}

func TestValidateRejectsNonExecutableCore(t *testing.T) {
	b := Bundle{
		ConfigPath: writeFile(t, "c.yaml", "port: 1\n", 0644),
		CorePath:   writeFile(t, "engine", "", 0644),
	}
	errs := Validate(b)
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
}

func TestValidateRejectsBadYAML(t *testing.T) {
	b := Bundle{
		ConfigPath: writeFile(t, "c.yaml", "{broken", 0644),
		CorePath:   writeFile(t, "engine", "", 0755),
	}
	if errs := Validate(b); len(errs) != 1 {
		t.Errorf("errs = %v", errs)
	}
}

func TestProxyHintMixedPort(t *testing.T) {
	path := writeFile(t, "c.yaml", "mixed-port: 2080\nsystem-proxy-bypass:\n  - localhost\n", 0644)
	hint, ok := ProxyHint(path)
	if !ok {
		t.Fatal("expected a hint")
	}
	if hint.Host != "127.0.0.1" || hint.Port != 2080 || !hint.Enabled {
		t.Errorf("hint = %+v", hint)
	}
	if len(hint.BypassDomains) != 1 || hint.BypassDomains[0] != "localhost" {
		t.Errorf("bypass = %q", hint.BypassDomains)
	}
}

func TestProxyHintPlainPortAndBindAddress(t *testing.T) {
	path := writeFile(t, "c.yaml", "port: 8080\nbind-address: 192.168.1.5\n", 0644)
	hint, ok := ProxyHint(path)
	if !ok {
		t.Fatal("expected a hint")
	}
	if hint.Host != "192.168.1.5" || hint.Port != 8080 {
		t.Errorf("hint = %+v", hint)
	}
}

func TestProxyHintWildcardBindFallsBackToLoopback(t *testing.T) {
	path := writeFile(t, "c.yaml", "mixed-port: 2080\nbind-address: '0.0.0.0'\n", 0644)
	hint, ok := ProxyHint(path)
	if !ok || hint.Host != "127.0.0.1" {
		t.Errorf("hint = %+v ok=%v", hint, ok)
	}
}

func TestProxyHintAbsent(t *testing.T) {
	path := writeFile(t, "c.yaml", "log-level: info\n", 0644)
	if _, ok := ProxyHint(path); ok {
		t.Error("expected no hint without a proxy port")
	}
	if _, ok := ProxyHint("/nonexistent/c.yaml"); ok {
		t.Error("expected no hint for missing file")
	}
}
