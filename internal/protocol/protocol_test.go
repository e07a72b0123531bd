package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		Command:    CmdStart,
		ConfigPath: "/etc/nimbus/profile.yaml",
		CorePath:   "/usr/local/bin/engine",
		SystemProxy: &SystemProxy{
			Enabled:       true,
			Host:          "127.0.0.1",
			Port:          2080,
			BypassDomains: []string{"localhost", "*.local"},
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Request
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Command != CmdStart {
		t.Errorf("Command = %q, want %q", decoded.Command, CmdStart)
	}
	if decoded.ConfigPath != req.ConfigPath {
		t.Errorf("ConfigPath = %q, want %q", decoded.ConfigPath, req.ConfigPath)
	}
	if decoded.SystemProxy == nil {
		t.Fatal("SystemProxy is nil")
	}
	if decoded.SystemProxy.Port != 2080 {
		t.Errorf("Port = %d, want 2080", decoded.SystemProxy.Port)
	}
	if len(decoded.SystemProxy.BypassDomains) != 2 {
		t.Errorf("BypassDomains len = %d, want 2", len(decoded.SystemProxy.BypassDomains))
	}
}

func TestRequestOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(Request{Command: CmdStatus})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != 1 {
		t.Errorf("encoded fields = %v, want only command", m)
	}
}

func TestCommandValid(t *testing.T) {
	for _, c := range []Command{CmdStart, CmdStop, CmdStatus, CmdVersion, CmdPing, CmdLogs, CmdReload} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []Command{"", "restart", "START", "shutdown"} {
		if c.Valid() {
			t.Errorf("%q should not be valid", c)
		}
	}
}

func TestStatusRoundTrip(t *testing.T) {
	started := time.Now().Truncate(time.Second)
	resp, err := OKResponse(&StatusData{
		IsRunning:     true,
		PID:           4242,
		ConfigPath:    "/p/c.yaml",
		StartTime:     &started,
		UptimeSeconds: 17,
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	status, err := decoded.DecodeStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsRunning || status.PID != 4242 {
		t.Errorf("status = %+v", status)
	}
	if status.StartTime == nil || !status.StartTime.Equal(started) {
		t.Errorf("StartTime = %v, want %v", status.StartTime, started)
	}
	if status.LastExitCode != nil {
		t.Errorf("LastExitCode = %v, want absent", status.LastExitCode)
	}
}

func TestStoppedStatusHasNoOptionalFields(t *testing.T) {
	resp, err := OKResponse(&StatusData{IsRunning: false})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(resp.Data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != 1 {
		t.Errorf("encoded fields = %v, want only isRunning", m)
	}
}

func TestErrResponseKeepsCode(t *testing.T) {
	resp := ErrResponse(NewError(CodeConfigNotFound, "no such file: %s", "/p/c.yaml"))
	if resp.Code != CodeConfigNotFound {
		t.Errorf("Code = %d, want %d", resp.Code, CodeConfigNotFound)
	}
	err := resp.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Code != CodeConfigNotFound {
		t.Errorf("err = %v", err)
	}
	if AsCode(err) != CodeConfigNotFound {
		t.Errorf("AsCode = %d", AsCode(err))
	}
}

func TestErrResponsePlainError(t *testing.T) {
	resp := ErrResponse(errors.New("boom"))
	if resp.Code != CodeUnknown {
		t.Errorf("Code = %d, want %d", resp.Code, CodeUnknown)
	}
	if resp.Message != "boom" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestDecodeDataShapeMismatch(t *testing.T) {
	resp := &Response{Code: CodeOK, Data: json.RawMessage(`{"bogus":true}`)}
	if _, err := resp.DecodeStart(); err == nil {
		t.Error("expected decode error for mismatched payload")
	}
}

func TestDecodeDataOnErrorResponse(t *testing.T) {
	resp := &Response{Code: CodeNotRunning, Message: "engine is not running"}
	if _, err := resp.DecodeStatus(); err == nil {
		t.Error("expected error when decoding a failure response")
	} else if AsCode(err) != CodeNotRunning {
		t.Errorf("AsCode = %d, want %d", AsCode(err), CodeNotRunning)
	}
}

func TestErrorCodeStrings(t *testing.T) {
	cases := map[ErrorCode]string{
		CodeOK:               "ok",
		CodeInvalidCommand:   "invalid-command",
		CodeInvalidParams:    "invalid-params",
		CodeAlreadyRunning:   "already-running",
		CodeNotRunning:       "not-running",
		CodeStartFailed:      "start-failed",
		CodeConfigNotFound:   "config-not-found",
		CodeCoreNotFound:     "core-not-found",
		CodePermissionDenied: "permission-denied",
		ErrorCode(99):        "unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}
