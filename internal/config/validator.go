package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "link.interval_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Upper bounds for configured counts
const (
	maxRetryAttempts   = 20
	maxLinkAttempts    = 1000
	maxDisplays        = 16
	maxStabilizePasses = 10
	maxLogSizeMB       = 1000 // 1GB
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateRegistration()...)
	errors = append(errors, c.validateCaptcha()...)
	errors = append(errors, c.validateLink()...)
	errors = append(errors, c.validateStabilize()...)
	errors = append(errors, c.validateDesktop()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateBackend validates the BackendConfig
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Backend.Runtime) == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.runtime",
			Value:   c.Backend.Runtime,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.Backend.Image) == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.image",
			Value:   c.Backend.Image,
			Message: "must not be empty",
		})
	}
	if strings.TrimSpace(c.Backend.DataDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.data_dir",
			Value:   c.Backend.DataDir,
			Message: "must not be empty",
		})
	}
	if c.Backend.StartTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.start_timeout_seconds",
			Value:   c.Backend.StartTimeoutSeconds,
			Message: "must be positive",
		})
	}
	for i, line := range c.Backend.StartCommands {
		if len(strings.Fields(line)) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("backend.start_commands[%d]", i),
				Value:   line,
				Message: "must not be blank",
			})
		}
	}

	return errors
}

// validateRegistration validates the RegistrationConfig
func (c *Config) validateRegistration() []ValidationError {
	var errors []ValidationError

	if c.Registration.RetryAttempts < 1 || c.Registration.RetryAttempts > maxRetryAttempts {
		errors = append(errors, ValidationError{
			Field:   "registration.retry_attempts",
			Value:   c.Registration.RetryAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxRetryAttempts),
		})
	}
	if c.Registration.RetryDelaySeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "registration.retry_delay_seconds",
			Value:   c.Registration.RetryDelaySeconds,
			Message: "must be non-negative",
		})
	}
	if c.Registration.LandlineWaitSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "registration.landline_wait_seconds",
			Value:   c.Registration.LandlineWaitSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateCaptcha validates the CaptchaConfig
func (c *Config) validateCaptcha() []ValidationError {
	var errors []ValidationError

	if !strings.HasPrefix(c.Captcha.URL, "https://") && !strings.HasPrefix(c.Captcha.URL, "http://") {
		errors = append(errors, ValidationError{
			Field:   "captcha.url",
			Value:   c.Captcha.URL,
			Message: "must be an http(s) URL",
		})
	}
	if c.Captcha.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "captcha.timeout_seconds",
			Value:   c.Captcha.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLink validates the LinkConfig
func (c *Config) validateLink() []ValidationError {
	var errors []ValidationError

	if c.Link.IntervalSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "link.interval_seconds",
			Value:   c.Link.IntervalSeconds,
			Message: "must be positive",
		})
	}
	if c.Link.Attempts < 1 || c.Link.Attempts > maxLinkAttempts {
		errors = append(errors, ValidationError{
			Field:   "link.attempts",
			Value:   c.Link.Attempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxLinkAttempts),
		})
	}
	if c.Link.CaptureTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "link.capture_timeout_seconds",
			Value:   c.Link.CaptureTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Link.MaxDisplays < 1 || c.Link.MaxDisplays > maxDisplays {
		errors = append(errors, ValidationError{
			Field:   "link.max_displays",
			Value:   c.Link.MaxDisplays,
			Message: fmt.Sprintf("must be between 1 and %d", maxDisplays),
		})
	}

	return errors
}

// validateStabilize validates the StabilizeConfig
func (c *Config) validateStabilize() []ValidationError {
	var errors []ValidationError

	if c.Stabilize.Passes < 0 || c.Stabilize.Passes > maxStabilizePasses {
		errors = append(errors, ValidationError{
			Field:   "stabilize.passes",
			Value:   c.Stabilize.Passes,
			Message: fmt.Sprintf("must be between 0 and %d", maxStabilizePasses),
		})
	}
	if c.Stabilize.ReceiveTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stabilize.receive_timeout_seconds",
			Value:   c.Stabilize.ReceiveTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Stabilize.MaxMessages <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stabilize.max_messages",
			Value:   c.Stabilize.MaxMessages,
			Message: "must be positive",
		})
	}

	return errors
}

// validateDesktop validates the DesktopConfig
func (c *Config) validateDesktop() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Desktop.ProcessPatterns {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("desktop.process_patterns[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}
	if c.Desktop.LaunchWaitLoops < 0 {
		errors = append(errors, ValidationError{
			Field:   "desktop.launch_wait_loops",
			Value:   c.Desktop.LaunchWaitLoops,
			Message: "must be non-negative",
		})
	}
	if c.Desktop.LaunchWaitMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "desktop.launch_wait_ms",
			Value:   c.Desktop.LaunchWaitMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
