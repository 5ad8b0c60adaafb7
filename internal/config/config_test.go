package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default backend config
	if cfg.Backend.Runtime != "docker" {
		t.Errorf("Backend.Runtime = %q, want %q", cfg.Backend.Runtime, "docker")
	}
	if cfg.Backend.Image != DefaultImage {
		t.Errorf("Backend.Image = %q, want %q", cfg.Backend.Image, DefaultImage)
	}
	if cfg.Backend.DataDir != "~/signal-cli-data" {
		t.Errorf("Backend.DataDir = %q, want %q", cfg.Backend.DataDir, "~/signal-cli-data")
	}
	if cfg.Backend.StartTimeoutSeconds != 90 {
		t.Errorf("Backend.StartTimeoutSeconds = %d, want 90", cfg.Backend.StartTimeoutSeconds)
	}

	// Verify default registration policy
	if cfg.Registration.RetryAttempts != 3 {
		t.Errorf("Registration.RetryAttempts = %d, want 3", cfg.Registration.RetryAttempts)
	}
	if cfg.Registration.RetryDelaySeconds != 8 {
		t.Errorf("Registration.RetryDelaySeconds = %d, want 8", cfg.Registration.RetryDelaySeconds)
	}
	if cfg.Registration.LandlineWaitSeconds != 60 {
		t.Errorf("Registration.LandlineWaitSeconds = %d, want 60", cfg.Registration.LandlineWaitSeconds)
	}

	// Verify default link polling
	if cfg.Link.IntervalSeconds != 2 {
		t.Errorf("Link.IntervalSeconds = %d, want 2", cfg.Link.IntervalSeconds)
	}
	if cfg.Link.Attempts != 90 {
		t.Errorf("Link.Attempts = %d, want 90", cfg.Link.Attempts)
	}
	if cfg.Link.MaxDisplays != 6 {
		t.Errorf("Link.MaxDisplays = %d, want 6", cfg.Link.MaxDisplays)
	}

	// Verify default stabilization
	if cfg.Stabilize.Passes != 3 {
		t.Errorf("Stabilize.Passes = %d, want 3", cfg.Stabilize.Passes)
	}
	if cfg.Stabilize.MaxMessages != 100 {
		t.Errorf("Stabilize.MaxMessages = %d, want 100", cfg.Stabilize.MaxMessages)
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if len(cfg.Desktop.LaunchCommands) == 0 {
		t.Error("Desktop.LaunchCommands should not be empty")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"StartTimeout", cfg.Backend.StartTimeout(), 90 * time.Second},
		{"RetryDelay", cfg.Registration.RetryDelay(), 8 * time.Second},
		{"LandlineWait", cfg.Registration.LandlineWait(), time.Minute},
		{"CaptchaTimeout", cfg.Captcha.Timeout(), 10 * time.Minute},
		{"Interval", cfg.Link.Interval(), 2 * time.Second},
		{"CaptureTimeout", cfg.Link.CaptureTimeout(), 12 * time.Second},
		{"ReceiveTimeout", cfg.Stabilize.ReceiveTimeout(), 12 * time.Second},
		{"LaunchWait", cfg.Desktop.LaunchWait(), 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDefaultCommandsPerPlatform(t *testing.T) {
	if got := defaultStartCommands("darwin"); len(got) != 1 || got[0] != "open -a Docker" {
		t.Errorf("defaultStartCommands(darwin) = %v", got)
	}
	if got := defaultStartCommands("linux"); len(got) != 2 {
		t.Errorf("defaultStartCommands(linux) = %v, want 2 entries", got)
	}
	if got := defaultStartCommands("windows"); len(got) != 0 {
		t.Errorf("defaultStartCommands(windows) = %v, want none", got)
	}
	if got := defaultLaunchCommands("linux"); got[0] != "signal-desktop" {
		t.Errorf("defaultLaunchCommands(linux)[0] = %q", got[0])
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/signal-cli-data", filepath.Join(home, "signal-cli-data")},
		{"/var/lib/signal", "/var/lib/signal"},
		{"~other/data", "~other/data"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ExpandHome(tt.in); got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)

		want := filepath.Join(xdg, "signal-setup")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
		if got := ConfigFile(); got != filepath.Join(want, "config.yaml") {
			t.Errorf("ConfigFile() = %q", got)
		}
		if got := LogDir(); got != filepath.Join(want, "logs") {
			t.Errorf("LogDir() = %q", got)
		}
	})

	t.Run("falls back to home config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		want := filepath.Join(home, ".config", "signal-setup")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestCaptchaConfig_ResolveCallbackFile(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg := CaptchaConfig{}
	if got := cfg.ResolveCallbackFile(); got != filepath.Join(xdg, "signal-setup", "captcha-token") {
		t.Errorf("ResolveCallbackFile() = %q", got)
	}

	cfg.CallbackFile = "/tmp/token"
	if got := cfg.ResolveCallbackFile(); got != "/tmp/token" {
		t.Errorf("ResolveCallbackFile() = %q, want /tmp/token", got)
	}
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("link.attempts", 5)
	viper.Set("backend.image", "example/signal-cli:test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Link.Attempts != 5 {
		t.Errorf("Link.Attempts = %d, want 5", cfg.Link.Attempts)
	}
	if cfg.Backend.Image != "example/signal-cli:test" {
		t.Errorf("Backend.Image = %q", cfg.Backend.Image)
	}
	if cfg.Registration.RetryAttempts != 3 {
		t.Errorf("Registration.RetryAttempts = %d, want default 3", cfg.Registration.RetryAttempts)
	}
}

func TestLoad_InvalidFallsBackInGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("link.interval_seconds", 0)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for zero interval")
	}

	cfg := Get()
	if cfg.Link.IntervalSeconds != 2 {
		t.Errorf("Get() should fall back to defaults, got interval %d", cfg.Link.IntervalSeconds)
	}
}
