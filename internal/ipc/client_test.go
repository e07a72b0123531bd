package ipc

import (
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// serveOnce accepts connections and answers every request with the
// response produced by respond.
func serveOnce(t *testing.T, sockPath string, respond func(protocol.Request) *protocol.Response) {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer func() { _ = conn.Close() }()
				var req protocol.Request
				if err := json.NewDecoder(conn).Decode(&req); err != nil {
					return
				}
				_ = json.NewEncoder(conn).Encode(respond(req))
			}(conn)
		}
	}()
}

func TestClientSocketAbsent(t *testing.T) {
	c := &Client{SocketPath: filepath.Join(t.TempDir(), "absent.sock"), Timeout: time.Second}
	_, err := c.Status()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if c.IsAvailable() {
		t.Error("IsAvailable = true with no socket")
	}
}

func TestClientTimeoutIsUnavailable(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "slow.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()
	// Accept but never respond.
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer func() { _ = conn.Close() }()
		}
	}()

	c := &Client{SocketPath: sockPath, Timeout: 200 * time.Millisecond}
	_, err = c.Status()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClientStatusRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "helperd.sock")
	serveOnce(t, sockPath, func(req protocol.Request) *protocol.Response {
		if req.Command != protocol.CmdStatus {
			t.Errorf("command = %q", req.Command)
		}
		resp, _ := protocol.OKResponse(&protocol.StatusData{IsRunning: true, PID: 777, ConfigPath: "/p/c.yaml"})
		return resp
	})

	c := &Client{SocketPath: sockPath, Timeout: time.Second}
	status, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsRunning || status.PID != 777 {
		t.Errorf("status = %+v", status)
	}
}

func TestClientDaemonErrorKeepsCode(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "helperd.sock")
	serveOnce(t, sockPath, func(req protocol.Request) *protocol.Response {
		return protocol.ErrResponse(protocol.NewError(protocol.CodeNotRunning, "engine is not running"))
	})

	c := &Client{SocketPath: sockPath, Timeout: time.Second}
	err := c.Stop()
	if errors.Is(err, ErrUnavailable) {
		t.Error("daemon-reported error must not look like a transport failure")
	}
	if protocol.AsCode(err) != protocol.CodeNotRunning {
		t.Errorf("code = %s, want not-running", protocol.AsCode(err))
	}
}

func TestClientStartSendsIntent(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "helperd.sock")
	serveOnce(t, sockPath, func(req protocol.Request) *protocol.Response {
		if req.ConfigPath != "/p/c.yaml" || req.CorePath != "/p/core" {
			t.Errorf("paths = %q %q", req.ConfigPath, req.CorePath)
		}
		if req.SystemProxy == nil || req.SystemProxy.Port != 2080 {
			t.Errorf("systemProxy = %+v", req.SystemProxy)
		}
		resp, _ := protocol.OKResponse(&protocol.StartData{PID: 4242})
		return resp
	})

	c := &Client{SocketPath: sockPath, Timeout: time.Second}
	data, err := c.Start("/p/c.yaml", "/p/core", &protocol.SystemProxy{Enabled: true, Host: "127.0.0.1", Port: 2080})
	if err != nil {
		t.Fatal(err)
	}
	if data.PID != 4242 {
		t.Errorf("PID = %d", data.PID)
	}
}

func TestClientWaitForReady(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "helperd.sock")
	c := &Client{SocketPath: sockPath, Timeout: time.Second}

	if err := c.WaitForReady(300 * time.Millisecond); err == nil {
		t.Error("expected timeout with no server")
	}

	serveOnce(t, sockPath, func(req protocol.Request) *protocol.Response {
		resp, _ := protocol.OKResponse(nil)
		return resp
	})
	if err := c.WaitForReady(2 * time.Second); err != nil {
		t.Errorf("WaitForReady: %v", err)
	}
}
