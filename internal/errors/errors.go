// Package errors provides centralized error definitions and error handling utilities
// for signal-setup. It defines the failure taxonomy shared by every stage of the
// onboarding flow, error constructors with context wrapping, and classification
// helpers that let the stage machines decide retry policy.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ExecutionError: a classified failure of one backend command
//   - StageError: a terminal failure of an onboarding stage, with remediation
//   - PreconditionError: a missing host capability (runtime, permission)
//   - DesktopError: the paired desktop application could not be launched
//
// Semantic errors represent common error conditions:
//   - ValidationError: user-correctable input (account, code, token, URI)
//   - TimeoutError: a bounded wait expired (link polling, stabilization)
//
// # Failure Classes
//
// Backend failures are classified, never retried, by the layer that observes
// them:
//   - ClassUnreachable: the backing service or its daemon is not running
//   - ClassTransient: an upstream 5xx-class or rate-limit response
//   - ClassRejected: the service rejected the input (bad token, code, QR)
//   - ClassTimeout: the command did not finish within its budget
//
// Checking errors:
//
//	var execErr *errors.ExecutionError
//	if errors.As(err, &execErr) && execErr.Class == errors.ClassTransient { ... }
//
//	if errors.IsTransient(err) { ... }
//	if errors.Is(err, errors.ErrLinkTimeout) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// FailureClass classifies a backend command failure.
type FailureClass int

const (
	// ClassUnreachable means the backing service could not be reached.
	ClassUnreachable FailureClass = iota + 1
	// ClassTransient means the service answered with a temporary failure.
	ClassTransient
	// ClassRejected means the service refused the supplied input.
	ClassRejected
	// ClassTimeout means the command exceeded its time budget.
	ClassTimeout
)

// String returns the string representation of the failure class.
func (c FailureClass) String() string {
	switch c {
	case ClassUnreachable:
		return "unreachable"
	case ClassTransient:
		return "transient"
	case ClassRejected:
		return "rejected"
	case ClassTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Backend-related sentinel errors
var (
	// ErrUnreachable indicates the backing service is not running.
	ErrUnreachable = New("backing service unreachable")
	// ErrTransient indicates a temporary upstream failure.
	ErrTransient = New("transient service failure")
	// ErrRejected indicates the service rejected the request input.
	ErrRejected = New("request rejected by service")
	// ErrRuntimeMissing indicates the container runtime is not installed.
	ErrRuntimeMissing = New("container runtime not installed")
	// ErrRuntimeStartFailed indicates the container runtime could not be started.
	ErrRuntimeStartFailed = New("container runtime could not be started")
)

// Flow-related sentinel errors
var (
	// ErrCaptchaUnavailable indicates no captcha token could be obtained.
	ErrCaptchaUnavailable = New("captcha token not captured")
	// ErrLinkTimeout indicates live QR polling exhausted its attempt budget.
	ErrLinkTimeout = New("no desktop link before the polling budget ran out")
	// ErrCapturePermission indicates the host refused screen capture.
	ErrCapturePermission = New("screen capture not permitted")
	// ErrDesktopLaunch indicates the desktop application could not be launched.
	ErrDesktopLaunch = New("desktop application launch failed")
	// ErrAborted indicates the user chose to stop the flow.
	ErrAborted = New("aborted by user")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SetupError is the base interface for all signal-setup errors.
type SetupError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ExecutionError is a classified failure of a single backend command.
//
// Example:
//
//	err := errors.NewExecutionError("register", errors.ClassTransient, cause)
//	err = err.WithOutput("StatusCode: 502")
//	fmt.Println(err) // "execution error [op=register, class=transient]: StatusCode: 502: <cause>"
type ExecutionError struct {
	baseError
	Operation string
	Class     FailureClass
	Output    string
}

// NewExecutionError creates a new ExecutionError. Transient and timeout
// failures are marked retryable.
func NewExecutionError(operation string, class FailureClass, cause error) *ExecutionError {
	return &ExecutionError{
		baseError: baseError{
			message:    fmt.Sprintf("%s command failed", operation),
			cause:      cause,
			severity:   SeverityError,
			retryable:  class == ClassTransient || class == ClassTimeout,
			userFacing: true,
		},
		Operation: operation,
		Class:     class,
	}
}

// WithOutput records the most meaningful line of the command output.
func (e *ExecutionError) WithOutput(output string) *ExecutionError {
	e.Output = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	prefix := fmt.Sprintf("execution error [op=%s, class=%s]", e.Operation, e.Class)
	msg := e.message
	if e.Output != "" {
		msg = e.Output
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is matches the class sentinel, or another execution error with the same
// operation and class.
func (e *ExecutionError) Is(target error) bool {
	if t, ok := target.(*ExecutionError); ok {
		return t.Operation == e.Operation && t.Class == e.Class
	}
	switch {
	case target == ErrUnreachable:
		return e.Class == ClassUnreachable
	case target == ErrTransient:
		return e.Class == ClassTransient
	case target == ErrRejected:
		return e.Class == ClassRejected
	case target == ErrTimeout:
		return e.Class == ClassTimeout
	}
	return false
}

// StageError is a terminal failure of one onboarding stage. It names the
// stage and the remediation the user should take.
//
// Example:
//
//	err := errors.NewStageError("Registering", "registration failed after 3 attempts", cause).
//		WithRemediation("request a fresh captcha token")
type StageError struct {
	baseError
	Stage       string
	Remediation string
}

// NewStageError creates a new StageError.
func NewStageError(stage, message string, cause error) *StageError {
	return &StageError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Stage: stage,
	}
}

// WithRemediation sets the remediation hint.
func (e *StageError) WithRemediation(hint string) *StageError {
	e.Remediation = hint
	return e
}

// WithSeverity sets the error severity.
func (e *StageError) WithSeverity(s Severity) *StageError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StageError) Error() string {
	prefix := fmt.Sprintf("%s failed", e.Stage)
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(": ")
	b.WriteString(e.message)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	if e.Remediation != "" {
		b.WriteString(". ")
		b.WriteString(e.Remediation)
	}
	return b.String()
}

// PreconditionError reports a host requirement that is not met. It is
// terminal and never retried.
type PreconditionError struct {
	baseError
	Requirement string
	Remediation string
}

// NewPreconditionError creates a new PreconditionError.
func NewPreconditionError(requirement, remediation string, cause error) *PreconditionError {
	return &PreconditionError{
		baseError: baseError{
			message:    requirement,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Requirement: requirement,
		Remediation: remediation,
	}
}

// Error returns the formatted error message.
func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed: %s", e.Requirement)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Remediation != "" {
		msg += ". " + e.Remediation
	}
	return msg
}

// DesktopError reports that the paired desktop application could not be
// started. Callers treat it as a warning; linking can continue once the
// user opens the application manually.
type DesktopError struct {
	baseError
	Attempted []string
}

// NewDesktopError creates a new DesktopError.
func NewDesktopError(attempted []string, cause error) *DesktopError {
	return &DesktopError{
		baseError: baseError{
			message:    "could not launch the desktop application",
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Attempted: attempted,
	}
}

// Error returns the formatted error message.
func (e *DesktopError) Error() string {
	msg := e.message
	if len(e.Attempted) > 0 {
		msg = fmt.Sprintf("%s [tried: %s]", msg, strings.Join(e.Attempted, "; "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is matches ErrDesktopLaunch.
func (e *DesktopError) Is(target error) bool {
	return target == ErrDesktopLaunch
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid, user-correctable input.
//
// Example:
//
//	err := errors.NewValidationError("account must start with '+'")
//	err = err.WithField("account").WithValue("336123")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is matches ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidInput
}

// TimeoutError represents a bounded wait that expired.
//
// Example:
//
//	err := errors.NewTimeoutError("live QR scan", 3*time.Minute).WithCause(errors.ErrLinkTimeout)
//	fmt.Println(err) // "timeout error: live QR scan (timeout: 3m0s): no desktop link ..."
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return target == ErrTimeout
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// ClassOf returns the failure class of the first ExecutionError in err's chain.
func ClassOf(err error) (FailureClass, bool) {
	var execErr *ExecutionError
	if As(err, &execErr) {
		return execErr.Class, true
	}
	return 0, false
}

// IsTransient reports whether err is a transient or timed-out backend failure.
func IsTransient(err error) bool {
	class, ok := ClassOf(err)
	return ok && (class == ClassTransient || class == ClassTimeout)
}

// IsUnreachable reports whether err is an unreachable-backend failure.
func IsUnreachable(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassUnreachable
}

// IsRejected reports whether the service rejected the request input.
func IsRejected(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassRejected
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pre *PreconditionError
	return As(err, &pre)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var setupErr SetupError
	if As(err, &setupErr) {
		return setupErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var setupErr SetupError
	if As(err, &setupErr) {
		return setupErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SetupError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var setupErr SetupError
	if As(err, &setupErr) {
		return setupErr.Severity()
	}
	return SeverityError
}

// Remediation returns the remediation hint carried by err, if any.
func Remediation(err error) string {
	var stageErr *StageError
	if As(err, &stageErr) && stageErr.Remediation != "" {
		return stageErr.Remediation
	}
	var pre *PreconditionError
	if As(err, &pre) {
		return pre.Remediation
	}
	return ""
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
