// internal/browser/session/manager.go
package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/wait"
	"github.com/xkilldash9x/assure-cli/internal/config"
)

// Dialer opens a transport to a debugging endpoint.
type Dialer func(ctx context.Context, endpoint string, logger *zap.Logger) (protocol.Transport, error)

// DialChromedp is the production Dialer.
func DialChromedp(ctx context.Context, endpoint string, logger *zap.Logger) (protocol.Transport, error) {
	client, err := protocol.Dial(ctx, endpoint, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Session is the live binding to one browser process.
type Session struct {
	ID         string
	Executable string
	Endpoint   string
	Transport  protocol.Transport
	// Domains lists the protocol domains enabled on Transport, in order.
	Domains []string

	process     Process
	userDataDir string
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

// Manager creates and tears down browser sessions. It allows one active
// session at a time.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	launcher  Launcher
	dial      Dialer
	lookPath  func(string) (string, error)
	getenv    func(string) string
	stat      func(string) (os.FileInfo, error)
	mkdirTemp func() (string, error)
	removeAll func(string) error
	sleep     func(context.Context, time.Duration) error
	goos      string

	mu       sync.Mutex
	active   *Session
	starting bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option { return func(m *Manager) { m.launcher = l } }

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option { return func(m *Manager) { m.dial = d } }

// WithLookPath replaces PATH resolution.
func WithLookPath(f func(string) (string, error)) Option { return func(m *Manager) { m.lookPath = f } }

// WithGetenv replaces environment lookup.
func WithGetenv(f func(string) string) Option { return func(m *Manager) { m.getenv = f } }

// WithStat replaces file existence checks.
func WithStat(f func(string) (os.FileInfo, error)) Option { return func(m *Manager) { m.stat = f } }

// WithGOOS overrides the platform used for known install locations.
func WithGOOS(goos string) Option { return func(m *Manager) { m.goos = goos } }

// WithSleep replaces the delay used between connection attempts.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleep = f }
}

// WithTempDir replaces creation and removal of the profile directory.
func WithTempDir(mkdir func() (string, error), remove func(string) error) Option {
	return func(m *Manager) {
		m.mkdirTemp = mkdir
		m.removeAll = remove
	}
}

// NewManager creates a session manager.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		logger:    logger.Named("session"),
		launcher:  ExecLauncher{},
		dial:      DialChromedp,
		lookPath:  exec.LookPath,
		getenv:    os.Getenv,
		stat:      os.Stat,
		mkdirTemp: func() (string, error) { return os.MkdirTemp("", "assure-profile-*") },
		removeAll: os.RemoveAll,
		sleep:     wait.Sleep,
		goos:      runtime.GOOS,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// launchArgs returns the fixed flag set followed by configured extras.
func (m *Manager) launchArgs(headless bool, userDataDir string) []string {
	args := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		fmt.Sprintf("--remote-debugging-port=%d", m.cfg.DebugPort),
	}
	if headless {
		args = append([]string{"--headless=new"}, args...)
	}
	if userDataDir != "" {
		args = append(args, "--user-data-dir="+userDataDir)
	}
	args = append(args, m.cfg.Args...)
	return append(args, "about:blank")
}

// CreateSession launches a browser, connects to it and enables the domains
// the engine depends on. Every failure after the process starts kills it.
func (m *Manager) CreateSession(ctx context.Context, headless bool) (*Session, error) {
	m.mu.Lock()
	if m.active != nil || m.starting {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.starting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	executable, err := m.ResolveExecutable()
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	s := &Session{
		ID:         uuid.New().String(),
		Executable: executable,
		Endpoint:   fmt.Sprintf("ws://127.0.0.1:%d", m.cfg.DebugPort),
	}
	log := m.logger.With(zap.String("session_id", s.ID))

	if s.userDataDir, err = m.mkdirTemp(); err != nil {
		return nil, &LaunchError{Executable: executable, Err: fmt.Errorf("failed to create profile directory: %w", err)}
	}

	args := m.launchArgs(headless, s.userDataDir)
	log.Debug("Launching browser.", zap.String("executable", executable), zap.Strings("args", args))
	if s.process, err = m.launcher.Launch(ctx, executable, args); err != nil {
		m.teardown(s, log)
		return nil, &LaunchError{Executable: executable, Err: err}
	}
	log.Info("Browser started.", zap.Int("pid", s.process.Pid()), zap.Bool("headless", headless))

	if err := m.connect(ctx, s, log); err != nil {
		m.teardown(s, log)
		return nil, err
	}

	if err := m.enableDomains(ctx, s); err != nil {
		m.teardown(s, log)
		return nil, err
	}

	m.mu.Lock()
	m.active = s
	m.mu.Unlock()
	log.Info("Browser session ready.", zap.Strings("domains", s.Domains))
	return s, nil
}

// connect dials the debugging endpoint with a fixed retry budget.
func (m *Manager) connect(ctx context.Context, s *Session, log *zap.Logger) error {
	if err := m.sleep(ctx, m.cfg.StartupDelay); err != nil {
		return &ConnectionError{Endpoint: s.Endpoint, Attempts: 0, Err: err}
	}

	// The connection outlives individual attempts; it ends at CloseSession.
	connCtx, cancel := context.WithCancel(ctx)

	attempts := m.cfg.ConnectAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		transport, err := m.dial(connCtx, s.Endpoint, m.logger)
		if err == nil {
			s.Transport = transport
			s.cancel = cancel
			log.Debug("Connected to browser.", zap.String("endpoint", s.Endpoint), zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		log.Debug("Connection attempt failed.", zap.Int("attempt", attempt), zap.Int("max_attempts", attempts), zap.Error(err))

		if attempt < attempts {
			if err := m.sleep(ctx, m.cfg.ConnectBackoff); err != nil {
				cancel()
				return &ConnectionError{Endpoint: s.Endpoint, Attempts: attempt, Err: err}
			}
		}
	}
	cancel()
	return &ConnectionError{Endpoint: s.Endpoint, Attempts: attempts, Err: lastErr}
}

// enableDomains enables every domain or fails on the first error.
func (m *Manager) enableDomains(ctx context.Context, s *Session) error {
	steps := []struct {
		domain string
		enable func(context.Context) error
	}{
		{"Page", s.Transport.EnablePage},
		{"Runtime", s.Transport.EnableRuntime},
		{"DOM", s.Transport.EnableDOM},
		{"Network", s.Transport.EnableNetwork},
	}
	for _, step := range steps {
		if err := step.enable(ctx); err != nil {
			return &EnableError{Domain: step.domain, Err: err}
		}
		s.Domains = append(s.Domains, step.domain)
	}
	return nil
}

// Active returns the open session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// CloseSession closes the transport, kills the process and removes the
// profile directory. Failures are logged and never returned. Closing a
// session twice is a no-op.
func (m *Manager) CloseSession(s *Session) {
	if s == nil {
		return
	}
	m.teardown(s, m.logger.With(zap.String("session_id", s.ID)))

	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
}

func (m *Manager) teardown(s *Session, log *zap.Logger) {
	s.closeOnce.Do(func() {
		var errs error
		if s.Transport != nil {
			errs = multierr.Append(errs, s.Transport.Close())
		}
		if s.cancel != nil {
			s.cancel()
		}
		errs = multierr.Append(errs, terminate(s.process))
		if s.userDataDir != "" && !m.cfg.KeepUserDataDir {
			if err := m.removeAll(s.userDataDir); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to remove profile directory: %w", err))
			}
		}

		if errs != nil {
			log.Warn("Browser cleanup finished with errors.", zap.Errors("errors", multierr.Errors(errs)))
			return
		}
		log.Debug("Browser session closed.")
	})
}
