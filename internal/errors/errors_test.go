package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity and FailureClass Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailureClass_String(t *testing.T) {
	tests := []struct {
		class FailureClass
		want  string
	}{
		{ClassUnreachable, "unreachable"},
		{ClassTransient, "transient"},
		{ClassRejected, "rejected"},
		{ClassTimeout, "timeout"},
		{FailureClass(0), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.class.String(); got != tt.want {
				t.Errorf("FailureClass.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ExecutionError Tests
// -----------------------------------------------------------------------------

func TestNewExecutionError_Retryable(t *testing.T) {
	tests := []struct {
		class FailureClass
		want  bool
	}{
		{ClassUnreachable, false},
		{ClassTransient, true},
		{ClassRejected, false},
		{ClassTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			err := NewExecutionError("register", tt.class, nil)
			if err.IsRetryable() != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", err.IsRetryable(), tt.want)
			}
			if !err.IsUserFacing() {
				t.Error("IsUserFacing() = false, want true")
			}
		})
	}
}

func TestExecutionError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExecutionError
		want string
	}{
		{
			name: "without output",
			err:  NewExecutionError("verify", ClassRejected, nil),
			want: "execution error [op=verify, class=rejected]: verify command failed",
		},
		{
			name: "with output",
			err:  NewExecutionError("register", ClassTransient, nil).WithOutput("  StatusCode: 502\n"),
			want: "execution error [op=register, class=transient]: StatusCode: 502",
		},
		{
			name: "with cause",
			err:  NewExecutionError("addDevice", ClassTimeout, fmt.Errorf("deadline")),
			want: "execution error [op=addDevice, class=timeout]: addDevice command failed: deadline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionError_Is(t *testing.T) {
	err := NewExecutionError("register", ClassTransient, nil)

	if !errors.Is(err, ErrTransient) {
		t.Error("errors.Is(err, ErrTransient) = false, want true")
	}
	if errors.Is(err, ErrRejected) {
		t.Error("errors.Is(err, ErrRejected) = true, want false")
	}
	if !errors.Is(err, NewExecutionError("register", ClassTransient, errors.New("other cause"))) {
		t.Error("execution errors with the same operation and class should match")
	}
	for _, other := range []*ExecutionError{
		{},
		NewExecutionError("verify", ClassTransient, nil),
		NewExecutionError("register", ClassRejected, nil),
	} {
		if errors.Is(err, other) {
			t.Errorf("errors.Is(err, %v) = true, want false", other)
		}
	}

	wrapped := fmt.Errorf("attempt 2: %w", NewExecutionError("register", ClassTimeout, nil))
	if !errors.Is(wrapped, ErrTimeout) {
		t.Error("wrapped timeout should match ErrTimeout")
	}
}

func TestClassHelpers(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		transient   bool
		unreachable bool
		rejected    bool
	}{
		{"transient", NewExecutionError("register", ClassTransient, nil), true, false, false},
		{"timeout", NewExecutionError("register", ClassTimeout, nil), true, false, false},
		{"unreachable", NewExecutionError("register", ClassUnreachable, nil), false, true, false},
		{"rejected", fmt.Errorf("wrap: %w", NewExecutionError("verify", ClassRejected, nil)), false, false, true},
		{"plain", errors.New("boom"), false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.transient)
			}
			if got := IsUnreachable(tt.err); got != tt.unreachable {
				t.Errorf("IsUnreachable() = %v, want %v", got, tt.unreachable)
			}
			if got := IsRejected(tt.err); got != tt.rejected {
				t.Errorf("IsRejected() = %v, want %v", got, tt.rejected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// StageError Tests
// -----------------------------------------------------------------------------

func TestStageError_Error(t *testing.T) {
	cause := NewExecutionError("register", ClassTransient, nil)
	err := NewStageError("Registering", "gave up after 3 attempts", cause).
		WithRemediation("Request a new captcha token")

	got := err.Error()
	if !strings.HasPrefix(got, "Registering failed: gave up after 3 attempts: ") {
		t.Errorf("Error() = %q, missing stage prefix", got)
	}
	if !strings.HasSuffix(got, ". Request a new captcha token") {
		t.Errorf("Error() = %q, missing remediation", got)
	}
	if !errors.Is(err, ErrTransient) {
		t.Error("StageError should unwrap to its cause")
	}
	if Remediation(fmt.Errorf("outer: %w", err)) != "Request a new captcha token" {
		t.Errorf("Remediation() = %q", Remediation(err))
	}
}

func TestStageError_WithSeverity(t *testing.T) {
	err := NewStageError("Stabilizing", "sync incomplete", nil).WithSeverity(SeverityWarning)
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}
}

// -----------------------------------------------------------------------------
// PreconditionError Tests
// -----------------------------------------------------------------------------

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("docker is not installed", "Install Docker Desktop", ErrRuntimeMissing)

	want := "precondition failed: docker is not installed: container runtime not installed. Install Docker Desktop"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if !IsPrecondition(fmt.Errorf("wrap: %w", err)) {
		t.Error("IsPrecondition() = false, want true")
	}
	if !errors.Is(err, ErrRuntimeMissing) {
		t.Error("PreconditionError should unwrap to ErrRuntimeMissing")
	}
	if Remediation(err) != "Install Docker Desktop" {
		t.Errorf("Remediation() = %q", Remediation(err))
	}
}

// -----------------------------------------------------------------------------
// DesktopError Tests
// -----------------------------------------------------------------------------

func TestDesktopError(t *testing.T) {
	err := NewDesktopError([]string{"open -a Signal", "signal-desktop"}, nil)

	if !errors.Is(err, ErrDesktopLaunch) {
		t.Error("errors.Is(err, ErrDesktopLaunch) = false, want true")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
	want := "could not launch the desktop application [tried: open -a Signal; signal-desktop]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("account is required"),
			want: "validation error: account is required",
		},
		{
			name: "field and value",
			err:  NewValidationError("must start with '+'").WithField("account").WithValue("3361"),
			want: "validation error [field=account, value=3361]: must start with '+'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("ValidationError should match ErrInvalidInput")
			}
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("live QR scan", 3*time.Minute).WithCause(ErrLinkTimeout)

	if !errors.Is(err, ErrLinkTimeout) {
		t.Error("errors.Is(err, ErrLinkTimeout) = false, want true")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if !strings.Contains(err.Error(), "timeout: 3m0s") {
		t.Errorf("Error() = %q, missing duration", err.Error())
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"transient", NewExecutionError("r", ClassTransient, nil), true},
		{"rejected", NewExecutionError("r", ClassRejected, nil), false},
		{"wrapped timeout sentinel", fmt.Errorf("w: %w", ErrTimeout), true},
		{"validation", NewValidationError("bad"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("IsUserFacing(plain) = true")
	}
	if !IsUserFacing(NewStageError("Linking", "x", nil)) {
		t.Error("IsUserFacing(StageError) = false")
	}
}

func TestGetSeverity(t *testing.T) {
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v", GetSeverity(nil))
	}
	if GetSeverity(errors.New("x")) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v", GetSeverity(errors.New("x")))
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrapf(ErrAborted, "stage %s", "Linking")
	if err.Error() != "stage Linking: aborted by user" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrAborted) {
		t.Error("Wrapf should preserve the chain")
	}
}
