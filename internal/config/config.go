package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete signal-setup configuration
type Config struct {
	Backend      BackendConfig      `mapstructure:"backend" yaml:"backend"`
	Registration RegistrationConfig `mapstructure:"registration" yaml:"registration"`
	Captcha      CaptchaConfig      `mapstructure:"captcha" yaml:"captcha"`
	Link         LinkConfig         `mapstructure:"link" yaml:"link"`
	Stabilize    StabilizeConfig    `mapstructure:"stabilize" yaml:"stabilize"`
	Desktop      DesktopConfig      `mapstructure:"desktop" yaml:"desktop"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// BackendConfig controls how the containerized signal-cli service is invoked
type BackendConfig struct {
	// Runtime is the container runtime binary (default: "docker")
	Runtime string `mapstructure:"runtime" yaml:"runtime"`
	// Image is the signal-cli container image
	Image string `mapstructure:"image" yaml:"image"`
	// DataDir is the host directory mounted as the signal-cli data directory.
	// A leading "~" is expanded to the user's home directory.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// StartTimeoutSeconds bounds how long to wait for the runtime to become ready
	// after a start attempt
	StartTimeoutSeconds int `mapstructure:"start_timeout_seconds" yaml:"start_timeout_seconds"`
	// StartCommands are tried in order to start the runtime daemon when it is unreachable.
	// Each entry is a command line split on whitespace.
	StartCommands []string `mapstructure:"start_commands" yaml:"start_commands"`
}

// RegistrationConfig controls the registration retry policy
type RegistrationConfig struct {
	// RetryAttempts is the total number of register attempts on transient failures
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	// RetryDelaySeconds is the fixed delay between attempts
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	// LandlineWaitSeconds is the settling interval between the SMS and Voice
	// attempts in landline mode
	LandlineWaitSeconds int `mapstructure:"landline_wait_seconds" yaml:"landline_wait_seconds"`
}

// CaptchaConfig controls how the captcha token is obtained
type CaptchaConfig struct {
	// URL is the captcha page opened in the browser
	URL string `mapstructure:"url" yaml:"url"`
	// Helper is an optional command line that renders the captcha and prints
	// the signalcaptcha:// token on stdout
	Helper string `mapstructure:"helper" yaml:"helper"`
	// CallbackFile is where the captcha-callback handler drops the token.
	// Empty means <config dir>/captcha-token.
	CallbackFile string `mapstructure:"callback_file" yaml:"callback_file"`
	// TimeoutSeconds bounds the wait for a token
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// LinkConfig controls live QR polling
type LinkConfig struct {
	// IntervalSeconds is the sleep between polling iterations
	IntervalSeconds int `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	// Attempts is the number of polling iterations before giving up
	Attempts int `mapstructure:"attempts" yaml:"attempts"`
	// CaptureTimeoutSeconds bounds capturing and decoding one display
	CaptureTimeoutSeconds int `mapstructure:"capture_timeout_seconds" yaml:"capture_timeout_seconds"`
	// MaxDisplays caps the number of displays sampled per iteration
	MaxDisplays int `mapstructure:"max_displays" yaml:"max_displays"`
}

// StabilizeConfig controls the post-link synchronization pass
type StabilizeConfig struct {
	// Passes is the number of receive passes before sendContacts
	Passes int `mapstructure:"passes" yaml:"passes"`
	// ReceiveTimeoutSeconds is passed to receive --timeout
	ReceiveTimeoutSeconds int `mapstructure:"receive_timeout_seconds" yaml:"receive_timeout_seconds"`
	// MaxMessages is passed to receive --max-messages
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`
}

// DesktopConfig controls launching of the paired desktop application
type DesktopConfig struct {
	// LaunchCommands are tried in order until one starts the application
	LaunchCommands []string `mapstructure:"launch_commands" yaml:"launch_commands"`
	// ProcessPatterns are glob patterns matched against running process names
	ProcessPatterns []string `mapstructure:"process_patterns" yaml:"process_patterns"`
	// LaunchWaitLoops is how many times to check for the process after a launch
	LaunchWaitLoops int `mapstructure:"launch_wait_loops" yaml:"launch_wait_loops"`
	// LaunchWaitMs is the delay between process checks
	LaunchWaitMs int `mapstructure:"launch_wait_ms" yaml:"launch_wait_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is active (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level sets the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the maximum size of the log file before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

const (
	// DefaultImage is the signal-cli native container image
	DefaultImage = "registry.gitlab.com/packaging/signal-cli/signal-cli-native:latest"
	// DefaultCaptchaURL is the registration captcha page
	DefaultCaptchaURL = "https://signalcaptchas.org/registration/generate.html"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Runtime:             "docker",
			Image:               DefaultImage,
			DataDir:             "~/signal-cli-data",
			StartTimeoutSeconds: 90,
			StartCommands:       defaultStartCommands(runtime.GOOS),
		},
		Registration: RegistrationConfig{
			RetryAttempts:       3,
			RetryDelaySeconds:   8,
			LandlineWaitSeconds: 60,
		},
		Captcha: CaptchaConfig{
			URL:            DefaultCaptchaURL,
			Helper:         "",
			CallbackFile:   "", // Empty means <config dir>/captcha-token
			TimeoutSeconds: 600,
		},
		Link: LinkConfig{
			IntervalSeconds:       2,
			Attempts:              90,
			CaptureTimeoutSeconds: 12,
			MaxDisplays:           6,
		},
		Stabilize: StabilizeConfig{
			Passes:                3,
			ReceiveTimeoutSeconds: 12,
			MaxMessages:           100,
		},
		Desktop: DesktopConfig{
			LaunchCommands:  defaultLaunchCommands(runtime.GOOS),
			ProcessPatterns: []string{"Signal", "signal-desktop", "*Signal.app/*", "*signal-desktop*"},
			LaunchWaitLoops: 12,
			LaunchWaitMs:    500,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func defaultStartCommands(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open -a Docker"}
	case "linux":
		return []string{"systemctl --user start docker-desktop", "systemctl start docker"}
	default:
		return []string{}
	}
}

func defaultLaunchCommands(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open -a Signal", "open /Applications/Signal.app"}
	default:
		return []string{"signal-desktop", "signal"}
	}
}

// StartTimeout returns the runtime start timeout as a time.Duration
func (c *BackendConfig) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// ResolveDataDir returns DataDir with a leading "~" expanded
func (c *BackendConfig) ResolveDataDir() string {
	return ExpandHome(c.DataDir)
}

// RetryDelay returns the delay between register attempts
func (c *RegistrationConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// LandlineWait returns the landline settling interval
func (c *RegistrationConfig) LandlineWait() time.Duration {
	return time.Duration(c.LandlineWaitSeconds) * time.Second
}

// Timeout returns the captcha wait as a time.Duration
func (c *CaptchaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveCallbackFile returns the callback drop file path
func (c *CaptchaConfig) ResolveCallbackFile() string {
	if c.CallbackFile == "" {
		return filepath.Join(ConfigDir(), "captcha-token")
	}
	return ExpandHome(c.CallbackFile)
}

// Interval returns the polling interval as a time.Duration
func (c *LinkConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// CaptureTimeout returns the per-display capture budget
func (c *LinkConfig) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// ReceiveTimeout returns the receive pass timeout
func (c *StabilizeConfig) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutSeconds) * time.Second
}

// LaunchWait returns the delay between desktop process checks
func (c *DesktopConfig) LaunchWait() time.Duration {
	return time.Duration(c.LaunchWaitMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Backend defaults
	viper.SetDefault("backend.runtime", defaults.Backend.Runtime)
	viper.SetDefault("backend.image", defaults.Backend.Image)
	viper.SetDefault("backend.data_dir", defaults.Backend.DataDir)
	viper.SetDefault("backend.start_timeout_seconds", defaults.Backend.StartTimeoutSeconds)
	viper.SetDefault("backend.start_commands", defaults.Backend.StartCommands)

	// Registration defaults
	viper.SetDefault("registration.retry_attempts", defaults.Registration.RetryAttempts)
	viper.SetDefault("registration.retry_delay_seconds", defaults.Registration.RetryDelaySeconds)
	viper.SetDefault("registration.landline_wait_seconds", defaults.Registration.LandlineWaitSeconds)

	// Captcha defaults
	viper.SetDefault("captcha.url", defaults.Captcha.URL)
	viper.SetDefault("captcha.helper", defaults.Captcha.Helper)
	viper.SetDefault("captcha.callback_file", defaults.Captcha.CallbackFile)
	viper.SetDefault("captcha.timeout_seconds", defaults.Captcha.TimeoutSeconds)

	// Link defaults
	viper.SetDefault("link.interval_seconds", defaults.Link.IntervalSeconds)
	viper.SetDefault("link.attempts", defaults.Link.Attempts)
	viper.SetDefault("link.capture_timeout_seconds", defaults.Link.CaptureTimeoutSeconds)
	viper.SetDefault("link.max_displays", defaults.Link.MaxDisplays)

	// Stabilize defaults
	viper.SetDefault("stabilize.passes", defaults.Stabilize.Passes)
	viper.SetDefault("stabilize.receive_timeout_seconds", defaults.Stabilize.ReceiveTimeoutSeconds)
	viper.SetDefault("stabilize.max_messages", defaults.Stabilize.MaxMessages)

	// Desktop defaults
	viper.SetDefault("desktop.launch_commands", defaults.Desktop.LaunchCommands)
	viper.SetDefault("desktop.process_patterns", defaults.Desktop.ProcessPatterns)
	viper.SetDefault("desktop.launch_wait_loops", defaults.Desktop.LaunchWaitLoops)
	viper.SetDefault("desktop.launch_wait_ms", defaults.Desktop.LaunchWaitMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "signal-setup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signal-setup"
	}
	return filepath.Join(home, ".config", "signal-setup")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory holding the debug log
func LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
