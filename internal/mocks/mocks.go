// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/assure-cli/internal/browser"
	"github.com/xkilldash9x/assure-cli/internal/browser/protocol"
	"github.com/xkilldash9x/assure-cli/internal/browser/session"
	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/otp"
	"github.com/xkilldash9x/assure-cli/internal/script"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutConfig {
	return m.Called().Get(0).(config.TimeoutConfig)
}

func (m *MockConfig) Input() config.InputConfig {
	return m.Called().Get(0).(config.InputConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	return m.Called().Get(0).(config.NetworkConfig)
}

func (m *MockConfig) OTP() config.OTPConfig {
	return m.Called().Get(0).(config.OTPConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	return m.Called().Get(0).(config.ReportConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) SetBrowserHeadless(b bool)   { m.Called(b) }
func (m *MockConfig) SetReportJUnitPath(p string) { m.Called(p) }

// -- Browser Mock --

// MockBrowser mocks executor.Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowser) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockBrowser) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockBrowser) TypeText(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *MockBrowser) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) GetTextContent(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) IsVisible(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowser) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (*browser.ElementHandle, error) {
	args := m.Called(ctx, selector, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*browser.ElementHandle), args.Error(1)
}

func (m *MockBrowser) WaitForElementVisibleAndClickable(ctx context.Context, selector string, timeout time.Duration) (*browser.ElementHandle, error) {
	args := m.Called(ctx, selector, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*browser.ElementHandle), args.Error(1)
}

func (m *MockBrowser) WaitForText(ctx context.Context, selector, substr string, timeout time.Duration) error {
	return m.Called(ctx, selector, substr, timeout).Error(0)
}

func (m *MockBrowser) WaitForURL(ctx context.Context, substr string, timeout time.Duration) error {
	return m.Called(ctx, substr, timeout).Error(0)
}

// -- OTP Mock --

// MockCodeResolver mocks executor.CodeResolver.
type MockCodeResolver struct {
	mock.Mock
}

func (m *MockCodeResolver) Resolve(ctx context.Context, src otp.Source) (string, error) {
	args := m.Called(ctx, src)
	return args.String(0), args.Error(1)
}

// -- Reporter Mock --

// MockReporter mocks executor.Reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) CommandStarted(cmd script.Command) { m.Called(cmd) }

func (m *MockReporter) CommandPassed(cmd script.Command, elapsed time.Duration) {
	m.Called(cmd, elapsed)
}

func (m *MockReporter) CommandFailed(cmd script.Command, elapsed time.Duration, err error) {
	m.Called(cmd, elapsed, err)
}

// -- Session Mocks --

// MockLauncher mocks session.Launcher.
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context, executable string, args []string) (session.Process, error) {
	a := m.Called(ctx, executable, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(session.Process), a.Error(1)
}

// MockProcess mocks session.Process.
type MockProcess struct {
	mock.Mock
}

func (m *MockProcess) Pid() int    { return m.Called().Int(0) }
func (m *MockProcess) Kill() error { return m.Called().Error(0) }
func (m *MockProcess) Wait() error { return m.Called().Error(0) }

// -- Transport Mock --

// MockTransport mocks protocol.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) EnablePage(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *MockTransport) EnableRuntime(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockTransport) EnableDOM(ctx context.Context) error     { return m.Called(ctx).Error(0) }
func (m *MockTransport) EnableNetwork(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockTransport) Navigate(ctx context.Context, url string) (protocol.NavigateResult, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(protocol.NavigateResult), args.Error(1)
}

func (m *MockTransport) SubscribeLoad(ctx context.Context) (<-chan struct{}, func()) {
	args := m.Called(ctx)
	return args.Get(0).(<-chan struct{}), args.Get(1).(func())
}

func (m *MockTransport) Evaluate(ctx context.Context, expression string) (protocol.RemoteValue, error) {
	args := m.Called(ctx, expression)
	return args.Get(0).(protocol.RemoteValue), args.Error(1)
}

func (m *MockTransport) CallFunctionOn(ctx context.Context, object protocol.ObjectID, function string) (protocol.RemoteValue, error) {
	args := m.Called(ctx, object, function)
	return args.Get(0).(protocol.RemoteValue), args.Error(1)
}

func (m *MockTransport) GetDocument(ctx context.Context) (protocol.NodeID, error) {
	args := m.Called(ctx)
	return args.Get(0).(protocol.NodeID), args.Error(1)
}

func (m *MockTransport) QuerySelector(ctx context.Context, root protocol.NodeID, selector string) (protocol.NodeID, error) {
	args := m.Called(ctx, root, selector)
	return args.Get(0).(protocol.NodeID), args.Error(1)
}

func (m *MockTransport) GetContentQuad(ctx context.Context, node protocol.NodeID) (protocol.Quad, error) {
	args := m.Called(ctx, node)
	return args.Get(0).(protocol.Quad), args.Error(1)
}

func (m *MockTransport) ResolveNode(ctx context.Context, node protocol.NodeID) (protocol.ObjectID, error) {
	args := m.Called(ctx, node)
	return args.Get(0).(protocol.ObjectID), args.Error(1)
}

func (m *MockTransport) Focus(ctx context.Context, node protocol.NodeID) error {
	return m.Called(ctx, node).Error(0)
}

func (m *MockTransport) DispatchMouseEvent(ctx context.Context, ev protocol.MouseEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockTransport) DispatchKeyEvent(ctx context.Context, ev protocol.KeyEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockTransport) SubscribeRequests(ctx context.Context, fn func(protocol.RequestEvent)) func() {
	return m.Called(ctx, fn).Get(0).(func())
}

func (m *MockTransport) Close() error { return m.Called().Error(0) }
