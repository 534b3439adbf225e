package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/assure-cli/internal/browser/browsertest"
	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/session"
	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const profileDir = "/tmp/assure-profile-test"

// fixture wires a Manager to fakes for every side effect.
type fixture struct {
	t        *testing.T
	cfg      config.BrowserConfig
	launcher *mocks.MockLauncher
	process  *mocks.MockProcess
	page     *browsertest.Transport

	mu       sync.Mutex
	sleeps   []time.Duration
	dials    int
	dialErrs []error
	removed  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.NewDefaultConfig().Browser()
	cfg.DebugPort = 9333
	cfg.ConnectAttempts = 3
	cfg.ExecutablePath = writeExecutable(t)
	return &fixture{
		t:        t,
		cfg:      cfg,
		launcher: new(mocks.MockLauncher),
		process:  new(mocks.MockProcess),
		page:     browsertest.New(),
	}
}

func (f *fixture) manager(logger *zap.Logger, opts ...session.Option) *session.Manager {
	if logger == nil {
		logger = zaptest.NewLogger(f.t)
	}
	base := []session.Option{
		session.WithLauncher(f.launcher),
		session.WithDialer(f.dial),
		session.WithGetenv(func(string) string { return "" }),
		session.WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
		session.WithSleep(f.sleep),
		session.WithTempDir(
			func() (string, error) { return profileDir, nil },
			f.remove,
		),
	}
	return session.NewManager(f.cfg, logger, append(base, opts...)...)
}

func (f *fixture) dial(ctx context.Context, endpoint string, _ *zap.Logger) (protocol.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if len(f.dialErrs) > 0 {
		err := f.dialErrs[0]
		f.dialErrs = f.dialErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.page, nil
}

func (f *fixture) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fixture) remove(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, dir)
	return nil
}

func (f *fixture) expectLaunch() *mock.Call {
	f.process.On("Pid").Return(4242)
	return f.launcher.On("Launch", mock.Anything, f.cfg.ExecutablePath, mock.Anything).Return(f.process, nil)
}

func (f *fixture) expectKill() {
	f.process.On("Kill").Return(nil).Once()
	f.process.On("Wait").Return(nil).Once()
}

func writeExecutable(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func TestCreateSession(t *testing.T) {
	t.Run("LaunchesConnectsAndEnables", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Args = []string{"--window-size=1280,800"}
		f.expectLaunch()
		m := f.manager(nil)

		s, err := m.CreateSession(context.Background(), true)
		require.NoError(t, err)

		assert.NotEmpty(t, s.ID)
		assert.Equal(t, f.cfg.ExecutablePath, s.Executable)
		assert.Equal(t, "ws://127.0.0.1:9333", s.Endpoint)
		assert.Equal(t, []string{"Page", "Runtime", "DOM", "Network"}, s.Domains)
		assert.Same(t, s, m.Active())
		assert.Equal(t, []time.Duration{f.cfg.StartupDelay}, f.sleeps)

		args := f.launcher.Calls[0].Arguments.Get(2).([]string)
		assert.Equal(t, "--headless=new", args[0])
		assert.Contains(t, args, "--remote-debugging-port=9333")
		assert.Contains(t, args, "--user-data-dir="+profileDir)
		assert.Contains(t, args, "--no-first-run")
		assert.Equal(t, "--window-size=1280,800", args[len(args)-2])
		assert.Equal(t, "about:blank", args[len(args)-1])

		f.expectKill()
		m.CloseSession(s)
		assert.Nil(t, m.Active())
		assert.True(t, f.page.Closed())
		assert.Equal(t, []string{profileDir}, f.removed)
		f.process.AssertExpectations(t)
	})

	t.Run("Headed", func(t *testing.T) {
		f := newFixture(t)
		f.expectLaunch()
		m := f.manager(nil)

		s, err := m.CreateSession(context.Background(), false)
		require.NoError(t, err)
		args := f.launcher.Calls[0].Arguments.Get(2).([]string)
		assert.NotContains(t, args, "--headless=new")

		f.expectKill()
		m.CloseSession(s)
	})

	t.Run("OneActiveSession", func(t *testing.T) {
		f := newFixture(t)
		f.expectLaunch()
		m := f.manager(nil)

		s, err := m.CreateSession(context.Background(), true)
		require.NoError(t, err)

		_, err = m.CreateSession(context.Background(), true)
		assert.ErrorIs(t, err, session.ErrSessionActive)
		f.launcher.AssertNumberOfCalls(t, "Launch", 1)

		f.expectKill()
		m.CloseSession(s)

		f.expectKill()
		s, err = m.CreateSession(context.Background(), true)
		require.NoError(t, err)
		m.CloseSession(s)
	})

	t.Run("RetriesUntilConnected", func(t *testing.T) {
		f := newFixture(t)
		f.dialErrs = []error{errors.New("connection refused"), errors.New("connection refused")}
		f.expectLaunch()
		m := f.manager(nil)

		s, err := m.CreateSession(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, 3, f.dials)
		assert.Equal(t, []time.Duration{f.cfg.StartupDelay, f.cfg.ConnectBackoff, f.cfg.ConnectBackoff}, f.sleeps)

		f.expectKill()
		m.CloseSession(s)
	})

	t.Run("RetryBudgetExhausted", func(t *testing.T) {
		f := newFixture(t)
		refused := errors.New("connection refused")
		f.dialErrs = []error{refused, refused, refused}
		f.expectLaunch()
		f.expectKill()
		m := f.manager(nil)

		_, err := m.CreateSession(context.Background(), true)
		var connErr *session.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, 3, connErr.Attempts)
		assert.ErrorIs(t, err, session.ErrConnectionFailed)
		assert.ErrorIs(t, err, refused)
		assert.Equal(t, 3, f.dials)
		assert.Nil(t, m.Active())
		assert.Equal(t, []string{profileDir}, f.removed)
		f.process.AssertExpectations(t)
	})

	t.Run("EnableFailureKillsBrowser", func(t *testing.T) {
		f := newFixture(t)
		f.page.EnableErr = map[string]error{"dom": errors.New("DOM agent unavailable")}
		f.expectLaunch()
		f.expectKill()
		m := f.manager(nil)

		_, err := m.CreateSession(context.Background(), true)
		var enableErr *session.EnableError
		require.ErrorAs(t, err, &enableErr)
		assert.Equal(t, "DOM", enableErr.Domain)
		assert.True(t, f.page.Closed())
		assert.Nil(t, m.Active())
		f.process.AssertExpectations(t)
	})

	t.Run("EnableFailureWithMockTransport", func(t *testing.T) {
		f := newFixture(t)
		transport := new(mocks.MockTransport)
		transport.On("EnablePage", mock.Anything).Return(nil)
		transport.On("EnableRuntime", mock.Anything).Return(errors.New("runtime disabled"))
		transport.On("Close").Return(nil).Once()
		f.expectLaunch()
		f.expectKill()
		m := f.manager(nil, session.WithDialer(func(context.Context, string, *zap.Logger) (protocol.Transport, error) {
			return transport, nil
		}))

		_, err := m.CreateSession(context.Background(), true)
		var enableErr *session.EnableError
		require.ErrorAs(t, err, &enableErr)
		assert.Equal(t, "Runtime", enableErr.Domain)
		transport.AssertExpectations(t)
		transport.AssertNotCalled(t, "EnableDOM", mock.Anything)
	})

	t.Run("LaunchFailure", func(t *testing.T) {
		f := newFixture(t)
		f.launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("permission denied"))
		m := f.manager(nil)

		_, err := m.CreateSession(context.Background(), true)
		var launchErr *session.LaunchError
		require.ErrorAs(t, err, &launchErr)
		assert.Equal(t, f.cfg.ExecutablePath, launchErr.Executable)
		assert.Equal(t, 0, f.dials)
		assert.Equal(t, []string{profileDir}, f.removed)
	})

	t.Run("ExecutableNotFound", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.ExecutablePath = ""
		m := f.manager(nil, session.WithGOOS("plan9"))

		_, err := m.CreateSession(context.Background(), true)
		assert.ErrorIs(t, err, session.ErrExecutableNotFound)
		var launchErr *session.LaunchError
		assert.ErrorAs(t, err, &launchErr)
		f.launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CanceledDuringStartup", func(t *testing.T) {
		f := newFixture(t)
		f.expectLaunch()
		f.expectKill()
		m := f.manager(nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.CreateSession(ctx, true)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, session.ErrConnectionFailed)
		assert.Equal(t, 0, f.dials)
	})
}

func TestCloseSession(t *testing.T) {
	t.Run("ErrorsAreLoggedNotReturned", func(t *testing.T) {
		f := newFixture(t)
		f.expectLaunch()
		core, logs := observer.New(zapcore.DebugLevel)
		m := f.manager(zap.New(core), session.WithTempDir(
			func() (string, error) { return profileDir, nil },
			func(string) error { return errors.New("directory busy") },
		))

		s, err := m.CreateSession(context.Background(), true)
		require.NoError(t, err)

		f.process.On("Kill").Return(errors.New("no such process")).Once()
		m.CloseSession(s)
		m.CloseSession(s)
		m.CloseSession(nil)

		warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("Browser cleanup finished with errors.").All()
		require.Len(t, warnings, 1)
		f.process.AssertNumberOfCalls(t, "Kill", 1)
		f.process.AssertNotCalled(t, "Wait")
		assert.Nil(t, m.Active())
	})

	t.Run("KeepUserDataDir", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.KeepUserDataDir = true
		f.expectLaunch()
		m := f.manager(nil)

		s, err := m.CreateSession(context.Background(), true)
		require.NoError(t, err)
		f.expectKill()
		m.CloseSession(s)
		assert.Empty(t, f.removed)
	})
}

func TestResolveExecutable(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(file, nil, 0o755))

	// statOnly reports the listed paths as files and everything else missing.
	statOnly := func(paths ...string) func(string) (os.FileInfo, error) {
		return func(p string) (os.FileInfo, error) {
			for _, want := range paths {
				if p == want {
					return os.Stat(file)
				}
			}
			if p == dir {
				return os.Stat(dir)
			}
			return nil, os.ErrNotExist
		}
	}
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	noPath := func(string) (string, error) { return "", errors.New("not found") }

	localApp := filepath.Join(`C:\Users\ada\AppData\Local`, "Google", "Chrome", "Application", "chrome.exe")

	tests := []struct {
		name       string
		exePath    string
		goos       string
		env        map[string]string
		files      []string
		lookPath   func(string) (string, error)
		want       string
		wantErr    error
		wantWarned bool
	}{
		{
			name:    "EnvWins",
			env:     map[string]string{session.EnvChromePath: "/opt/env/chrome"},
			files:   []string{"/opt/env/chrome", "/opt/cfg/chrome", "/usr/bin/chromium"},
			exePath: "/opt/cfg/chrome",
			goos:    "linux",
			want:    "/opt/env/chrome",
		},
		{
			name:       "MissingEnvFallsThroughToConfig",
			env:        map[string]string{session.EnvChromePath: "/opt/env/chrome"},
			files:      []string{"/opt/cfg/chrome"},
			exePath:    "/opt/cfg/chrome",
			goos:       "linux",
			want:       "/opt/cfg/chrome",
			wantWarned: true,
		},
		{
			name:       "EnvDirectoryIsNotAFile",
			env:        map[string]string{session.EnvChromePath: dir},
			files:      []string{"/usr/bin/chromium"},
			goos:       "linux",
			want:       "/usr/bin/chromium",
			wantWarned: true,
		},
		{
			name:       "MissingConfigFallsThroughToKnownPaths",
			exePath:    "/opt/cfg/chrome",
			files:      []string{"/usr/bin/google-chrome-stable"},
			goos:       "linux",
			want:       "/usr/bin/google-chrome-stable",
			wantWarned: true,
		},
		{
			name:  "Darwin",
			files: []string{"/Applications/Chromium.app/Contents/MacOS/Chromium"},
			goos:  "darwin",
			want:  "/Applications/Chromium.app/Contents/MacOS/Chromium",
		},
		{
			name:  "WindowsLocalAppData",
			env:   map[string]string{"LOCALAPPDATA": `C:\Users\ada\AppData\Local`},
			files: []string{localApp, `C:\Program Files\Google\Chrome\Application\chrome.exe`},
			goos:  "windows",
			want:  localApp,
		},
		{
			name: "PathLookup",
			goos: "linux",
			lookPath: func(name string) (string, error) {
				if name == "chromium" {
					return "/home/ada/bin/chromium", nil
				}
				return "", errors.New("not found")
			},
			want: "/home/ada/bin/chromium",
		},
		{
			name:    "NothingFound",
			goos:    "linux",
			wantErr: session.ErrExecutableNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			lookPath := tt.lookPath
			if lookPath == nil {
				lookPath = noPath
			}
			cfg := config.BrowserConfig{ExecutablePath: tt.exePath}
			m := session.NewManager(cfg, zap.New(core),
				session.WithGOOS(tt.goos),
				session.WithGetenv(env(tt.env)),
				session.WithStat(statOnly(tt.files...)),
				session.WithLookPath(lookPath),
			)

			got, err := m.ResolveExecutable()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarned, logs.Len() > 0)
		})
	}
}
