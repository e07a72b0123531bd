package ui

import (
	"strings"
	"testing"
)

func TestStateDot(t *testing.T) {
	for _, state := range []string{"connected", "connecting", "disconnecting", "disconnected", "error", "bogus"} {
		if got := StateDot(state); !strings.Contains(got, "●") {
			t.Errorf("StateDot(%q) = %q, want to contain dot", state, got)
		}
	}
}

func TestSection(t *testing.T) {
	out := Section("Engine", "hello", 40)
	if !strings.Contains(out, "Engine") {
		t.Error("Section missing title")
	}
	if !strings.Contains(out, "hello") {
		t.Error("Section missing content")
	}
	// Rounded border characters
	if !strings.Contains(out, "╭") {
		t.Error("Section missing rounded border")
	}
}

func TestKV(t *testing.T) {
	got := KV([][2]string{
		{"State", "connected"},
		{"PID", "1234"},
	})
	if !strings.Contains(got, "State") || !strings.Contains(got, "connected") {
		t.Error("KV missing first pair")
	}
	if !strings.Contains(got, "PID") || !strings.Contains(got, "1234") {
		t.Error("KV missing second pair")
	}
	if len(strings.Split(got, "\n")) != 2 {
		t.Errorf("KV = %q, want two lines", got)
	}
}

func TestStepOK(t *testing.T) {
	got := StepOK("engine started")
	if !strings.Contains(got, "✔") {
		t.Error("StepOK missing checkmark")
	}
	if !strings.Contains(got, "engine started") {
		t.Error("StepOK missing message")
	}
}

func TestStepRun(t *testing.T) {
	got := StepRun("starting engine")
	if !strings.Contains(got, "○") {
		t.Error("StepRun missing circle")
	}
}

func TestStepFail(t *testing.T) {
	got := StepFail("connection refused")
	if !strings.Contains(got, "✘") {
		t.Error("StepFail missing cross")
	}
}

func TestWarn(t *testing.T) {
	got := Warn("system proxy unchanged")
	if !strings.Contains(got, "⚠") {
		t.Error("Warn missing warning symbol")
	}
	if !strings.Contains(got, "system proxy unchanged") {
		t.Error("Warn missing message")
	}
}

func TestError(t *testing.T) {
	got := Error("bad thing")
	if !strings.Contains(got, "✘") {
		t.Error("Error missing cross")
	}
}

func TestTable(t *testing.T) {
	headers := []string{"NAME", "STATE", "VERSION"}
	rows := [][]string{
		{"helperd", "running", "1.2.3"},
		{"engine", "stopped", ""},
	}
	got := Table(headers, rows)
	if !strings.Contains(got, "NAME") {
		t.Error("Table missing header")
	}
	if !strings.Contains(got, "helperd") {
		t.Error("Table missing row data")
	}
}
