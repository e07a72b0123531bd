// Package helperd implements the root-privileged nimbus helper: a
// Unix-socket IPC server in front of a process supervisor that owns
// the one engine child process and the host's proxy settings.
package helperd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimbusproxy/nimbus/internal/protocol"
)

// Config holds everything the daemon needs to start.
type Config struct {
	SocketPath   string // default protocol.SocketPath
	SettingsPath string // default DefaultSettingsPath
	Version      VersionInfo
}

// Run starts the daemon and blocks until SIGINT/SIGTERM. This is the
// entry point for nimbus-helper; the boot manifest restarts it if it
// exits.
func Run(cfg Config) error {
	// Survive terminal close; the daemon is supervised by launchd or
	// systemd, not a shell.
	signal.Ignore(syscall.SIGHUP)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.SocketPath == "" {
		cfg.SocketPath = protocol.SocketPath
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = DefaultSettingsPath
	}

	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		// Bad settings are not fatal; the daemon must stay reachable.
		log.Printf("settings: %v (using defaults)", err)
		settings = DefaultSettings()
	}

	var metrics *Metrics
	if settings.MetricsAddr != "" {
		metrics = NewMetrics()
		if err := metrics.Serve(settings.MetricsAddr); err != nil {
			log.Printf("metrics: %v (disabled)", err)
		}
	}

	sup := NewSupervisor(settings, newProxyApplier(), metrics)
	h := &daemonHandler{sup: sup, settingsPath: cfg.SettingsPath}

	srv := NewServer(cfg.SocketPath, h, cfg.Version, settings.idleTimeout(), metrics)
	if err := srv.Start(); err != nil {
		// Fatal: the service supervisor will restart us.
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer srv.Stop()

	log.Printf("listening on %s (PID %d)", cfg.SocketPath, os.Getpid())

	<-ctx.Done()
	log.Println("shutting down")

	// Never exit with the proxy applied and no engine behind it.
	if err := sup.Stop(); err != nil {
		var pe *protocol.Error
		if !errors.As(err, &pe) || pe.Code != protocol.CodeNotRunning {
			log.Printf("stop engine on shutdown: %v", err)
		}
	}
	return nil
}

// daemonHandler adapts the Supervisor to the server's Handler
// interface and owns settings reload.
type daemonHandler struct {
	sup          *Supervisor
	settingsPath string
}

func (h *daemonHandler) Start(configPath, corePath string, proxy *protocol.SystemProxy) (*protocol.StartData, error) {
	return h.sup.Start(configPath, corePath, proxy)
}

func (h *daemonHandler) Stop() error { return h.sup.Stop() }

func (h *daemonHandler) Status() *protocol.StatusData { return h.sup.Status() }

func (h *daemonHandler) Logs(n int) []string { return h.sup.Logs(n) }

func (h *daemonHandler) Reload() error {
	settings, err := LoadSettings(h.settingsPath)
	if err != nil {
		return protocol.NewError(protocol.CodeInvalidParams, "reload settings: %v", err)
	}
	h.sup.Reload(settings)
	log.Printf("settings reloaded from %s", h.settingsPath)
	return nil
}
