// Package ipc is the application-side client for the nimbus helper
// daemon. Every call is an independent connect/send/receive/close
// cycle, so a daemon restart between calls costs nothing.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// ErrUnavailable wraps every transport-level failure (socket absent,
// connection refused, timeout). Callers use errors.Is to distinguish
// "the privileged service is unreachable" from daemon-reported errors
// and fall back to a non-daemon engine instead of surfacing it.
var ErrUnavailable = errors.New("helper service unavailable")

// DefaultTimeout bounds one full request/response exchange.
const DefaultTimeout = 10 * time.Second

// Client talks to the helper daemon over its Unix socket.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

// NewClient returns a Client for the default socket path.
func NewClient() *Client {
	return &Client{SocketPath: protocol.SocketPath, Timeout: DefaultTimeout}
}

// Call performs one request/response exchange. A timeout means the
// outcome is unknown: the caller must re-query via Status rather than
// assume the command failed.
func (c *Client) Call(req protocol.Request) (*protocol.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("unix", c.SocketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, c.SocketPath, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	var resp protocol.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	return &resp, nil
}

// Start asks the daemon to launch the engine.
func (c *Client) Start(configPath, corePath string, proxy *protocol.SystemProxy) (*protocol.StartData, error) {
	resp, err := c.Call(protocol.Request{
		Command:     protocol.CmdStart,
		ConfigPath:  configPath,
		CorePath:    corePath,
		SystemProxy: proxy,
	})
	if err != nil {
		return nil, err
	}
	return resp.DecodeStart()
}

// Stop asks the daemon to terminate the engine.
func (c *Client) Stop() error {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdStop})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Status reads the daemon's engine snapshot.
func (c *Client) Status() (*protocol.StatusData, error) {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdStatus})
	if err != nil {
		return nil, err
	}
	return resp.DecodeStatus()
}

// Logs fetches up to n recent engine output lines.
func (c *Client) Logs(n int) ([]string, error) {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdLogs, TailLines: n})
	if err != nil {
		return nil, err
	}
	data, err := resp.DecodeLogs()
	if err != nil {
		return nil, err
	}
	return data.Lines, nil
}

// Version reads the daemon's build info.
func (c *Client) Version() (*protocol.VersionData, error) {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdVersion})
	if err != nil {
		return nil, err
	}
	return resp.DecodeVersion()
}

// Ping performs a minimal round-trip.
func (c *Client) Ping() error {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdPing})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Reload asks the daemon to re-read its settings file.
func (c *Client) Reload() error {
	resp, err := c.Call(protocol.Request{Command: protocol.CmdReload})
	if err != nil {
		return err
	}
	return resp.Err()
}

// IsAvailable reports whether the daemon answers a ping. Used by the
// engine fallback logic and the installer's status report.
func (c *Client) IsAvailable() bool {
	probe := *c
	probe.Timeout = 2 * time.Second
	return probe.Ping() == nil
}

// WaitForReady polls the daemon until it answers a ping or the timeout
// expires. Used right after installing the service.
func (c *Client) WaitForReady(timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("helper not ready within %s", timeout)
		case <-ticker.C:
			if c.IsAvailable() {
				return nil
			}
		}
	}
}
