// Package mocks holds testify mocks for the driver contract and config.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// -- Config Mock --

// MockConfig mocks config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Wait() config.WaitConfig {
	args := m.Called()
	return args.Get(0).(config.WaitConfig)
}

func (m *MockConfig) Alert() config.AlertConfig {
	args := m.Called()
	return args.Get(0).(config.AlertConfig)
}

func (m *MockConfig) Interaction() config.InteractionConfig {
	args := m.Called()
	return args.Get(0).(config.InteractionConfig)
}

func (m *MockConfig) SetBrowserHeadless(b bool)           { m.Called(b) }
func (m *MockConfig) SetBrowserExecPath(p string)         { m.Called(p) }
func (m *MockConfig) SetWaitTimeout(d time.Duration)      { m.Called(d) }
func (m *MockConfig) SetWaitPollInterval(d time.Duration) { m.Called(d) }

// -- Driver Mocks --

// MockDriver mocks webdriver.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	args := m.Called(ctx, by)
	els, _ := args.Get(0).([]webdriver.Element)
	return els, args.Error(1)
}

func (m *MockDriver) ExecuteScript(ctx context.Context, script string, scriptArgs ...any) (any, error) {
	args := m.Called(ctx, script, scriptArgs)
	return args.Get(0), args.Error(1)
}

func (m *MockDriver) ExecuteAsyncScript(ctx context.Context, script string, scriptArgs ...any) (any, error) {
	args := m.Called(ctx, script, scriptArgs)
	return args.Get(0), args.Error(1)
}

func (m *MockDriver) AlertText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) AcceptAlert(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) DismissAlert(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) SendAlertText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockDriver) BrowserName() string {
	return m.Called().String(0)
}

// MockMobileDriver adds window and context switching, the shape of an
// embedded or hybrid-app browser session.
type MockMobileDriver struct {
	MockDriver
}

func (m *MockMobileDriver) WindowHandles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	handles, _ := args.Get(0).([]string)
	return handles, args.Error(1)
}

func (m *MockMobileDriver) SwitchToWindow(ctx context.Context, handle string) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *MockMobileDriver) CurrentContext(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockMobileDriver) SwitchContext(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

// MockElement mocks webdriver.Element.
type MockElement struct {
	mock.Mock
	// Handle is returned by ID without going through the mock.
	Handle string
}

func (m *MockElement) ID() string { return m.Handle }

func (m *MockElement) FindElements(ctx context.Context, by webdriver.By) ([]webdriver.Element, error) {
	args := m.Called(ctx, by)
	els, _ := args.Get(0).([]webdriver.Element)
	return els, args.Error(1)
}

func (m *MockElement) Click(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) SendKeys(ctx context.Context, keys string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockElement) IsDisplayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) GetAttribute(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) TagName(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

var (
	_ config.Interface          = (*MockConfig)(nil)
	_ webdriver.Driver          = (*MockDriver)(nil)
	_ webdriver.WindowSwitcher  = (*MockMobileDriver)(nil)
	_ webdriver.ContextSwitcher = (*MockMobileDriver)(nil)
	_ webdriver.Element         = (*MockElement)(nil)
)
