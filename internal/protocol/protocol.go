// Package protocol defines the wire vocabulary shared by the nimbus
// helper daemon and its clients: one JSON request per connection, one
// JSON response back, newline-terminated, over the helper's Unix socket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SocketPath is where the helper daemon listens.
const SocketPath = "/var/run/nimbus/helperd.sock"

// LogPath is where the boot manifest redirects the daemon's output.
const LogPath = "/var/log/nimbus-helperd.log"

// Command is one of the closed set of operations a client may request.
type Command string

const (
	CmdStart   Command = "start"
	CmdStop    Command = "stop"
	CmdStatus  Command = "status"
	CmdVersion Command = "version"
	CmdPing    Command = "ping"
	CmdLogs    Command = "logs"
	CmdReload  Command = "reload"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case CmdStart, CmdStop, CmdStatus, CmdVersion, CmdPing, CmdLogs, CmdReload:
		return true
	}
	return false
}

// ErrorCode classifies a failed request. Code 0 is success.
type ErrorCode int

const (
	CodeOK               ErrorCode = 0
	CodeUnknown          ErrorCode = 1
	CodeInvalidCommand   ErrorCode = 2
	CodeInvalidParams    ErrorCode = 3
	CodeAlreadyRunning   ErrorCode = 4
	CodeNotRunning       ErrorCode = 5
	CodeStartFailed      ErrorCode = 6
	CodeConfigNotFound   ErrorCode = 7
	CodeCoreNotFound     ErrorCode = 8
	CodePermissionDenied ErrorCode = 9
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidCommand:
		return "invalid-command"
	case CodeInvalidParams:
		return "invalid-params"
	case CodeAlreadyRunning:
		return "already-running"
	case CodeNotRunning:
		return "not-running"
	case CodeStartFailed:
		return "start-failed"
	case CodeConfigNotFound:
		return "config-not-found"
	case CodeCoreNotFound:
		return "core-not-found"
	case CodePermissionDenied:
		return "permission-denied"
	default:
		return "unknown"
	}
}

// Error is a daemon-reported failure with its wire code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsCode extracts the wire code from err. Returns CodeUnknown for
// errors that did not originate from a Response.
func AsCode(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// SystemProxy asks the daemon to point the host's HTTP/HTTPS proxy at
// host:port while the engine runs. The daemon captures the prior proxy
// state before applying and restores it on stop or crash.
type SystemProxy struct {
	Enabled       bool     `json:"enabled"`
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	BypassDomains []string `json:"bypassDomains,omitempty"`
}

// Request is sent from a client to the daemon. ConfigPath and CorePath
// are required for "start"; TailLines caps "logs" output.
type Request struct {
	Command     Command      `json:"command"`
	ConfigPath  string       `json:"configPath,omitempty"`
	CorePath    string       `json:"corePath,omitempty"`
	SystemProxy *SystemProxy `json:"systemProxy,omitempty"`
	TailLines   int          `json:"tailLines,omitempty"`
}

// Response is sent back from the daemon. Code 0 means success; the
// shape of Data depends on the command that produced it.
type Response struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Err converts a non-zero response into an *Error. Returns nil for
// success responses.
func (r *Response) Err() error {
	if r.Code == CodeOK {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

// StatusData is the payload of a successful "status" response.
// IsRunning=true implies PID, ConfigPath, and StartTime are set;
// IsRunning=false implies they are absent, with LastExitCode and
// ErrorReason present only after an abnormal exit.
type StatusData struct {
	IsRunning     bool       `json:"isRunning"`
	PID           int        `json:"pid,omitempty"`
	ConfigPath    string     `json:"configPath,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	UptimeSeconds int64      `json:"uptimeSeconds,omitempty"`
	LastExitCode  *int       `json:"lastExitCode,omitempty"`
	ErrorReason   string     `json:"errorReason,omitempty"`
}

// StartData is the payload of a successful "start" response.
type StartData struct {
	PID int `json:"pid"`
}

// VersionData is the payload of a successful "version" response.
type VersionData struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	BuiltAt string `json:"builtAt,omitempty"`
	PID     int    `json:"pid"`
}

// LogsData is the payload of a successful "logs" response: the most
// recent engine output lines, oldest first.
type LogsData struct {
	Lines []string `json:"lines"`
}

// OKResponse builds a success response carrying v as its data payload.
// A nil v produces a bare success response.
func OKResponse(v any) (*Response, error) {
	resp := &Response{Code: CodeOK}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal response data: %w", err)
		}
		resp.Data = data
	}
	return resp, nil
}

// ErrResponse builds a failure response from an error. A *Error keeps
// its wire code; anything else maps to CodeUnknown.
func ErrResponse(err error) *Response {
	var pe *Error
	if errors.As(err, &pe) {
		return &Response{Code: pe.Code, Message: pe.Message}
	}
	return &Response{Code: CodeUnknown, Message: err.Error()}
}

// DecodeStatus decodes a "status" response payload.
func (r *Response) DecodeStatus() (*StatusData, error) {
	var d StatusData
	if err := r.decodeData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeStart decodes a "start" response payload.
func (r *Response) DecodeStart() (*StartData, error) {
	var d StartData
	if err := r.decodeData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeVersion decodes a "version" response payload.
func (r *Response) DecodeVersion() (*VersionData, error) {
	var d VersionData
	if err := r.decodeData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DecodeLogs decodes a "logs" response payload.
func (r *Response) DecodeLogs() (*LogsData, error) {
	var d LogsData
	if err := r.decodeData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Response) decodeData(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return errors.New("response has no data payload")
	}
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
