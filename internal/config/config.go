package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read side of the configuration handed to the engines.
// Tests swap in their own values through the setters.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Wait() WaitConfig
	Alert() AlertConfig
	Interaction() InteractionConfig

	SetBrowserHeadless(bool)
	SetBrowserExecPath(string)
	SetWaitTimeout(time.Duration)
	SetWaitPollInterval(time.Duration)
}

// Config holds the whole application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	WaitCfg        WaitConfig        `mapstructure:"wait" yaml:"wait"`
	AlertCfg       AlertConfig       `mapstructure:"alert" yaml:"alert"`
	InteractionCfg InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
}

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Wait() WaitConfig               { return c.WaitCfg }
func (c *Config) Alert() AlertConfig             { return c.AlertCfg }
func (c *Config) Interaction() InteractionConfig { return c.InteractionCfg }

func (c *Config) SetBrowserHeadless(b bool)           { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserExecPath(p string)         { c.BrowserCfg.ExecPath = p }
func (c *Config) SetWaitTimeout(d time.Duration)      { c.WaitCfg.Timeout = d }
func (c *Config) SetWaitPollInterval(d time.Duration) { c.WaitCfg.PollInterval = d }

// LoggerConfig controls the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig drives the Chrome allocator.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	Viewport          Viewport      `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// Viewport is the emulated window size.
type Viewport struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// WaitConfig supplies the default bounds for element waits. Individual calls
// may override both values.
type WaitConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// AlertConfig bounds the wait for a native dialog.
type AlertConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// InteractionConfig tunes the click/type/focus retry machinery.
type InteractionConfig struct {
	// PageLoadTimeout bounds the post-click wait for an alert or a finished
	// page load.
	PageLoadTimeout     time.Duration        `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	ScriptClickBrowsers []string             `mapstructure:"script_click_browsers" yaml:"script_click_browsers"`
	Classification      ClassificationConfig `mapstructure:"classification" yaml:"classification"`
}

// ClassificationConfig overrides the built-in driver error table. An empty
// rule list keeps the built-in table.
type ClassificationConfig struct {
	Version int          `mapstructure:"version" yaml:"version"`
	Rules   []RuleConfig `mapstructure:"rules" yaml:"rules"`
}

// RuleConfig maps a driver error message pattern to a class.
type RuleConfig struct {
	Pattern  string   `mapstructure:"pattern" yaml:"pattern"`
	Class    string   `mapstructure:"class" yaml:"class"`
	Browsers []string `mapstructure:"browsers" yaml:"browsers"`
}

// Canonical rule class names.
const (
	ClassRetryable   = "retryable"
	ClassFatal       = "fatal"
	ClassScriptClick = "script_click"
)

var ruleClasses = map[string]string{
	"retryable":                ClassRetryable,
	"retry":                    ClassRetryable,
	"fatal":                    ClassFatal,
	"script_click":             ClassScriptClick,
	"escalate":                 ClassScriptClick,
	"escalate_to_script_click": ClassScriptClick,
}

// CanonicalRuleClass maps a class name or alias, in any case, to its
// canonical name.
func CanonicalRuleClass(name string) (string, bool) {
	class, ok := ruleClasses[strings.ToLower(strings.TrimSpace(name))]
	return class, ok
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stepwise")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 800)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.debug", false)

	// -- Wait --
	v.SetDefault("wait.timeout", "10s")
	v.SetDefault("wait.poll_interval", "500ms")

	// -- Alert --
	v.SetDefault("alert.timeout", "2s")
	v.SetDefault("alert.poll_interval", "100ms")

	// -- Interaction --
	v.SetDefault("interaction.page_load_timeout", "10s")
	v.SetDefault("interaction.script_click_browsers", []string{"chrome", "chromium", "htmldom"})
	v.SetDefault("interaction.classification.version", 0)
}

// NewConfigFromViper decodes and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.WaitCfg.Timeout < 0 {
		return fmt.Errorf("wait.timeout must not be negative")
	}
	if c.WaitCfg.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be positive")
	}
	if c.AlertCfg.Timeout < 0 || c.AlertCfg.PollInterval <= 0 {
		return fmt.Errorf("alert.timeout must not be negative and alert.poll_interval must be positive")
	}
	if c.InteractionCfg.PageLoadTimeout < 0 {
		return fmt.Errorf("interaction.page_load_timeout must not be negative")
	}
	if c.BrowserCfg.Viewport.Width < 0 || c.BrowserCfg.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport dimensions must not be negative")
	}
	if err := c.InteractionCfg.Classification.Validate(); err != nil {
		return fmt.Errorf("interaction.classification invalid: %w", err)
	}
	return nil
}

// Validate checks that every rule compiles and names a known class.
func (cc *ClassificationConfig) Validate() error {
	for i, r := range cc.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("rule %d: pattern is required", i)
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("rule %d: bad pattern %q: %w", i, r.Pattern, err)
		}
		if _, ok := CanonicalRuleClass(r.Class); !ok {
			return fmt.Errorf("rule %d: unknown class %q (want retryable, fatal or script_click)", i, r.Class)
		}
	}
	if len(cc.Rules) > 0 && cc.Version <= 0 {
		return fmt.Errorf("version must be positive when rules are supplied")
	}
	return nil
}
