// Package register drives an account from an unregistered number to a
// verified, PIN-protected account ready for device linking.
//
// The [Machine] owns the retry policy: the backend only classifies failures,
// and the machine decides whether a failure is retried, recovered or
// terminal. Progress lives in an explicit [Session] passed to every stage.
package register

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/captcha"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
)

// Default retry policy
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 8 * time.Second
	DefaultLandlineWait  = 60 * time.Second
)

// Remediation hints attached to terminal registration failures.
const (
	hintRegistration = "Request a fresh captcha token and retry. If this persists the number or operator may be blocked, " +
		"or your IP may be rate-limited: try another network (e.g. a mobile hotspot) or another number"
	hintRejectedToken = "Captcha tokens are single-use and expire quickly; request a new one"
	hintVerification  = "Check the code (it expires after a few minutes) and the registration lock PIN, or register again for a new code"
	hintUnreachable   = "Start Docker and make sure `docker info` succeeds, then retry"
	hintPin           = "Re-run verify to generate and set a new registration lock PIN"
)

// PinConfirmFunc is called with a freshly generated PIN before it is set.
// Returning an error aborts PIN setup.
type PinConfirmFunc func(ctx context.Context, pin account.Pin) error

// Options configures a Machine.
type Options struct {
	Executor  backend.Executor
	Captcha   captcha.Acquirer
	Recoverer backend.Recoverer
	Clock     clock.Clock
	Logger    *logging.Logger

	RetryAttempts int
	RetryDelay    time.Duration
	LandlineWait  time.Duration

	PinConfirm PinConfirmFunc
	// GeneratePin overrides account.GeneratePin.
	GeneratePin func() (account.Pin, error)
}

// Machine runs the registration stages.
type Machine struct {
	exec        backend.Executor
	captcha     captcha.Acquirer
	recoverer   backend.Recoverer
	clock       clock.Clock
	logger      *logging.Logger
	attempts    int
	delay       time.Duration
	landline    time.Duration
	pinConfirm  PinConfirmFunc
	generatePin func() (account.Pin, error)
}

// NewMachine creates a Machine, filling in defaults for unset options.
func NewMachine(opts Options) *Machine {
	m := &Machine{
		exec:        opts.Executor,
		captcha:     opts.Captcha,
		recoverer:   opts.Recoverer,
		clock:       opts.Clock,
		logger:      opts.Logger,
		attempts:    opts.RetryAttempts,
		delay:       opts.RetryDelay,
		landline:    opts.LandlineWait,
		pinConfirm:  opts.PinConfirm,
		generatePin: opts.GeneratePin,
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	if m.attempts <= 0 {
		m.attempts = DefaultRetryAttempts
	}
	if m.delay < 0 {
		m.delay = 0
	}
	if m.landline < 0 {
		m.landline = 0
	}
	if m.generatePin == nil {
		m.generatePin = account.GeneratePin
	}
	return m
}

// SetPinConfirm replaces the PIN confirmation hook.
func (m *Machine) SetPinConfirm(fn PinConfirmFunc) { m.pinConfirm = fn }

func (m *Machine) log(s *Session) *logging.Logger {
	return m.logger.WithSession(s.ID).WithStage(s.State.String())
}

func (m *Machine) expect(s *Session, want State) error {
	if s.State != want {
		return errors.NewValidationError(fmt.Sprintf("session is %s, expected %s", s.State, want)).
			WithField("state")
	}
	return nil
}

// SetAccount validates raw and moves AwaitingAccount → AwaitingCaptcha.
func (m *Machine) SetAccount(s *Session, raw string) error {
	if err := m.expect(s, StateAwaitingAccount); err != nil {
		return err
	}
	acct, err := account.ParseAccount(raw)
	if err != nil {
		return err
	}
	s.Account = acct
	s.advance(StateAwaitingCaptcha, m.clock.Now())
	m.log(s).Info("account accepted", "account", logging.MaskAccount(acct.String()))
	return nil
}

// ObtainCaptcha asks the captcha acquirer for a token and moves
// AwaitingCaptcha → Registering. A missing token leaves the session in
// AwaitingCaptcha so the caller may try again.
func (m *Machine) ObtainCaptcha(ctx context.Context, s *Session) (account.CaptchaToken, error) {
	if err := m.expect(s, StateAwaitingCaptcha); err != nil {
		return "", err
	}
	if m.captcha == nil {
		return "", errors.ErrCaptchaUnavailable
	}

	tok, err := m.captcha.Acquire(ctx)
	if err != nil {
		m.log(s).Warn("captcha not captured", "error", err)
		return "", err
	}
	if err := m.UseToken(s, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// UseToken records that a captcha token is available and moves
// AwaitingCaptcha → Registering.
func (m *Machine) UseToken(s *Session, tok account.CaptchaToken) error {
	if err := m.expect(s, StateAwaitingCaptcha); err != nil {
		return err
	}
	if _, err := account.ParseCaptchaToken(tok.String()); err != nil {
		return err
	}
	s.advance(StateRegistering, m.clock.Now())
	m.log(s).Debug("captcha token observed", "token", logging.Redact(tok.String()))
	return nil
}

// Register requests a verification code and moves Registering →
// AwaitingVerification, or → Failed once the retry policy gives up.
func (m *Machine) Register(ctx context.Context, s *Session, tok account.CaptchaToken, mode account.Mode) error {
	if err := m.expect(s, StateRegistering); err != nil {
		return err
	}
	s.Mode = mode
	logger := m.log(s).With("mode", mode.String())
	logger.Info("registration started")

	var err error
	switch mode {
	case account.ModeVoice:
		err = m.registerWithRetry(ctx, s, tok, true)
	case account.ModeLandline:
		err = m.registerLandline(ctx, s, tok)
	default:
		err = m.registerWithRetry(ctx, s, tok, false)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.fail(s, errors.Join(errors.ErrCanceled, ctxErr))
		}
		logger.Error("registration failed", "attempts", s.Attempts, "error", err)
		return m.fail(s, err)
	}

	s.advance(StateAwaitingVerification, m.clock.Now())
	logger.Info("verification code requested", "attempts", s.Attempts)
	return nil
}

// registerWithRetry issues register up to m.attempts times, sleeping
// m.delay between attempts while the failure is transient.
func (m *Machine) registerWithRetry(ctx context.Context, s *Session, tok account.CaptchaToken, voice bool) error {
	logger := m.log(s)
	var lastErr error

	for attempt := 1; attempt <= m.attempts; attempt++ {
		s.Attempts++
		_, err := backend.ExecuteRecovering(ctx, m.exec, m.recoverer, s.Account, backend.Register(tok, voice))
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !errors.IsTransient(err) {
			return stageFailure(StateRegistering, "registration failed", err)
		}

		logger.Warn("transient registration failure",
			"attempt", attempt,
			"max_attempts", m.attempts,
			"error", err,
		)
		if attempt < m.attempts {
			if err := m.clock.Sleep(ctx, m.delay); err != nil {
				return err
			}
		}
	}

	return errors.NewStageError(StateRegistering.String(),
		fmt.Sprintf("registration failed after %d attempts", m.attempts), lastErr).
		WithRemediation(hintRegistration)
}

// registerLandline issues an SMS request, waits for the landline delay, then
// requests a voice call with the normal retry policy. Numbers without SMS only
// accept a voice call after an SMS request, so a rejected or transient SMS
// outcome is ignored. An unreachable backend fails the stage at once.
func (m *Machine) registerLandline(ctx context.Context, s *Session, tok account.CaptchaToken) error {
	logger := m.log(s)

	s.Attempts++
	if _, err := backend.ExecuteRecovering(ctx, m.exec, m.recoverer, s.Account, backend.Register(tok, false)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.IsUnreachable(err) {
			return stageFailure(StateRegistering, "registration failed", err)
		}
		logger.Info("sms request failed, continuing with voice", "error", err)
	}

	logger.Info("waiting before voice request", "wait", m.landline.String())
	if err := m.clock.Sleep(ctx, m.landline); err != nil {
		return err
	}

	return m.registerWithRetry(ctx, s, tok, true)
}

// Verify submits the verification code. With existingPin set the session
// moves straight to AwaitingLink; otherwise a new PIN is generated and set
// (SettingPin → AwaitingLink). Verification is never retried: codes are
// single-use.
func (m *Machine) Verify(ctx context.Context, s *Session, code account.VerificationCode, existingPin account.Pin) error {
	if err := m.expect(s, StateAwaitingVerification); err != nil {
		return err
	}
	logger := m.log(s)

	if _, err := backend.ExecuteRecovering(ctx, m.exec, m.recoverer, s.Account, backend.Verify(code, existingPin)); err != nil {
		logger.Error("verification failed", "error", err)
		return m.fail(s, stageFailure(StateAwaitingVerification, "verification failed", err))
	}
	logger.Info("account verified", "existing_pin", existingPin != "")

	if existingPin != "" {
		s.UsedExistingPin = true
		s.advance(StateAwaitingLink, m.clock.Now())
		return nil
	}

	s.advance(StateSettingPin, m.clock.Now())
	return m.setPin(ctx, s)
}

// setPin generates the registration-lock PIN, lets the caller confirm it
// was saved, and sets it.
func (m *Machine) setPin(ctx context.Context, s *Session) error {
	logger := m.log(s)

	pin, err := m.generatePin()
	if err != nil {
		return m.fail(s, errors.NewStageError(StateSettingPin.String(), "could not generate a PIN", err))
	}
	s.Pin = pin

	if m.pinConfirm != nil {
		if err := m.pinConfirm(ctx, pin); err != nil {
			return m.fail(s, errors.NewStageError(StateSettingPin.String(), "PIN not confirmed", err).
				WithRemediation(hintPin))
		}
	}

	if _, err := backend.ExecuteRecovering(ctx, m.exec, m.recoverer, s.Account, backend.SetPin(pin)); err != nil {
		logger.Error("setting registration lock PIN failed", "error", err)
		return m.fail(s, stageFailure(StateSettingPin, "could not set the registration lock PIN", err).
			WithRemediation(hintPin))
	}

	s.PinSet = true
	s.advance(StateAwaitingLink, m.clock.Now())
	logger.Info("registration lock PIN set", "pin", logging.Redact(string(pin)))
	return nil
}

func (m *Machine) fail(s *Session, err error) error {
	s.Fail(err, m.clock.Now())
	return err
}

// stageFailure wraps err in a StageError whose remediation fits its class.
func stageFailure(stage State, msg string, err error) *errors.StageError {
	se := errors.NewStageError(stage.String(), msg, err)
	if hint := errors.Remediation(err); hint != "" {
		return se.WithRemediation(hint)
	}
	switch {
	case errors.IsUnreachable(err):
		return se.WithRemediation(hintUnreachable)
	case stage == StateAwaitingVerification:
		return se.WithRemediation(hintVerification)
	case errors.IsRejected(err):
		return se.WithRemediation(hintRejectedToken)
	case errors.IsTransient(err):
		return se.WithRemediation(hintRegistration)
	}
	return se
}
