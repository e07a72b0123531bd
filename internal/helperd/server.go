package helperd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// Handler is implemented by the Supervisor. The server does request
// validation and framing; all process and proxy mutual exclusion lives
// behind this interface.
type Handler interface {
	Start(configPath, corePath string, proxy *protocol.SystemProxy) (*protocol.StartData, error)
	Stop() error
	Status() *protocol.StatusData
	Logs(n int) []string
	Reload() error
}

// VersionInfo is returned for the "version" command.
type VersionInfo struct {
	Version string
	Commit  string
	BuiltAt string
}

// Server listens on the helper's Unix socket and dispatches one JSON
// request per exchange to the Handler. Connections are concurrent;
// each may carry several exchanges bounded by the idle timeout.
type Server struct {
	sockPath    string
	handler     Handler
	version     VersionInfo
	idleTimeout time.Duration
	metrics     *Metrics // nil disables

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates an IPC server. metrics may be nil.
func NewServer(sockPath string, handler Handler, version VersionInfo, idleTimeout time.Duration, metrics *Metrics) *Server {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	return &Server{
		sockPath:    sockPath,
		handler:     handler,
		version:     version,
		idleTimeout: idleTimeout,
		metrics:     metrics,
	}
}

// Start binds the socket and begins accepting connections in the
// background. A stale socket file is removed and the bind retried once
// before the error is reported as fatal.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.sockPath), 0755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		_ = os.Remove(s.sockPath)
		ln, err = net.Listen("unix", s.sockPath)
	}
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.sockPath, err)
	}
	s.listener = ln

	// The unprivileged application must be able to reach the
	// root-owned daemon. Local-machine trust boundary only.
	if err := os.Chmod(s.sockPath, 0666); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return // listener closed
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(conn)
			}()
		}
	}()
	return nil
}

// Stop closes the listener, waits for in-flight connections, and
// removes the socket file.
func (s *Server) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.sockPath)
}

func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		var req protocol.Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
				return
			}
			// Malformed payload gets a response, not a slammed door,
			// but the stream state is unrecoverable after it.
			_ = enc.Encode(protocol.ErrResponse(
				protocol.NewError(protocol.CodeInvalidParams, "malformed request: %v", err)))
			return
		}

		resp := s.dispatch(req)
		if s.metrics != nil {
			s.metrics.Requests.WithLabelValues(string(req.Command), strconv.Itoa(int(resp.Code))).Inc()
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req protocol.Request) *protocol.Response {
	if !req.Command.Valid() {
		return protocol.ErrResponse(
			protocol.NewError(protocol.CodeInvalidCommand, "unknown command %q", req.Command))
	}

	switch req.Command {
	case protocol.CmdPing:
		resp, _ := protocol.OKResponse(nil)
		return resp

	case protocol.CmdVersion:
		return s.respond(&protocol.VersionData{
			Version: s.version.Version,
			Commit:  s.version.Commit,
			BuiltAt: s.version.BuiltAt,
			PID:     os.Getpid(),
		})

	case protocol.CmdStart:
		if req.ConfigPath == "" || req.CorePath == "" {
			return protocol.ErrResponse(
				protocol.NewError(protocol.CodeInvalidParams, "start requires configPath and corePath"))
		}
		data, err := s.handler.Start(req.ConfigPath, req.CorePath, req.SystemProxy)
		if err != nil {
			return protocol.ErrResponse(err)
		}
		return s.respond(data)

	case protocol.CmdStop:
		if err := s.handler.Stop(); err != nil {
			return protocol.ErrResponse(err)
		}
		resp, _ := protocol.OKResponse(nil)
		return resp

	case protocol.CmdStatus:
		return s.respond(s.handler.Status())

	case protocol.CmdLogs:
		return s.respond(&protocol.LogsData{Lines: s.handler.Logs(req.TailLines)})

	case protocol.CmdReload:
		if err := s.handler.Reload(); err != nil {
			return protocol.ErrResponse(err)
		}
		resp, _ := protocol.OKResponse(nil)
		return resp
	}

	return protocol.ErrResponse(
		protocol.NewError(protocol.CodeInvalidCommand, "unknown command %q", req.Command))
}

func (s *Server) respond(v any) *protocol.Response {
	resp, err := protocol.OKResponse(v)
	if err != nil {
		return protocol.ErrResponse(err)
	}
	return resp
}
