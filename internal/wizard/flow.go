package wizard

import (
	"context"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/tui/prompt"
)

var modeOptions = []string{
	"SMS",
	"Voice call",
	"Landline (SMS request, then a voice call)",
}

var modes = []account.Mode{account.ModeSMS, account.ModeVoice, account.ModeLandline}

// Choices offered after a failed registration
const (
	retrySameToken = iota
	retryNewToken
	retryGiveUp
)

var registerRetryOptions = []string{
	"Retry with the same captcha token",
	"Solve a new captcha",
	"Give up",
}

// Run executes the whole onboarding flow. The returned session records how
// far the flow got, also when an error is returned.
func (c *Controller) Run(ctx context.Context) (*register.Session, error) {
	s := register.NewSession(c.now())
	logger := c.logger.WithSession(s.ID)
	logger.Info("onboarding started")

	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}

	c.print.step("Account")
	raw, err := c.prompter.Input(ctx, prompt.Question{
		Text:        "Phone number to register",
		Placeholder: "+33612345678",
		Hint:        "International format, starting with +",
		Validate:    validateAccount,
	})
	if err != nil {
		return s, err
	}
	if err := c.machine.SetAccount(s, raw); err != nil {
		return s, err
	}
	logger = logger.WithAccount(s.Account.String())

	choice, err := c.prompter.Select(ctx, "How should the verification code be delivered?", modeOptions)
	if err != nil {
		return s, err
	}

	if err := c.register(ctx, s, modes[choice]); err != nil {
		return s, err
	}
	if err := c.verify(ctx, s); err != nil {
		return s, err
	}
	c.print.success("%s is registered", s.Account)

	linkNow, err := c.prompter.Confirm(ctx, "Link a desktop client now?", true)
	if err != nil {
		return s, err
	}
	if !linkNow {
		c.print.info("Link later with: signal-setup link-desktop-live --account %s", s.Account)
		logger.Info("onboarding finished without linking")
		return s, nil
	}

	if err := c.link(ctx, s); err != nil {
		return s, err
	}
	if s.Linked {
		c.stabilize(ctx, s)
		c.showLinkedDevices(ctx, s)
	}

	c.print.summary(s)
	logger.Info("onboarding finished", "state", s.State.String(), "linked", s.Linked)
	return s, nil
}

// register obtains a captcha token and requests a verification code. After
// a failure the user may retry with the same token, solve a new captcha or
// give up.
func (c *Controller) register(ctx context.Context, s *register.Session, mode account.Mode) error {
	tok, err := c.obtainCaptcha(ctx, s)
	if err != nil {
		return err
	}

	for {
		c.print.step("Requesting a verification code by %s", mode)
		err := c.machine.Register(ctx, s, tok, mode)
		if err == nil {
			c.print.success("Verification code requested")
			return nil
		}
		c.print.failure(err)
		if ctx.Err() != nil {
			return err
		}

		choice, perr := c.prompter.Select(ctx, "Registration failed. What next?", registerRetryOptions)
		if perr != nil {
			return perr
		}
		switch choice {
		case retrySameToken:
			if rerr := s.Reopen(register.StateRegistering, c.now()); rerr != nil {
				return rerr
			}
		case retryNewToken:
			if rerr := s.Reopen(register.StateAwaitingCaptcha, c.now()); rerr != nil {
				return rerr
			}
			if tok, err = c.obtainCaptcha(ctx, s); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// obtainCaptcha asks the machine for a token until one arrives or the user
// stops retrying.
func (c *Controller) obtainCaptcha(ctx context.Context, s *register.Session) (account.CaptchaToken, error) {
	for {
		c.print.step("Captcha")
		c.print.muted("Solve the captcha in the browser window that opens. The token is picked up automatically.")
		tok, err := c.machine.ObtainCaptcha(ctx, s)
		if err == nil {
			c.print.success("Captcha token received")
			return tok, nil
		}
		if ctx.Err() != nil || errors.Is(err, errors.ErrAborted) {
			return "", err
		}
		c.print.failure(err)

		again, perr := c.prompter.Confirm(ctx, "Try the captcha again?", true)
		if perr != nil {
			return "", perr
		}
		if !again {
			return "", err
		}
	}
}

// verify reads the code and an optional existing PIN and submits them. A
// rejected code may be entered again.
func (c *Controller) verify(ctx context.Context, s *register.Session) error {
	for {
		c.print.step("Verification")
		rawCode, err := c.prompter.Input(ctx, prompt.Question{
			Text:        "Verification code",
			Placeholder: "123-456",
			Validate:    validateCode,
		})
		if err != nil {
			return err
		}
		code, err := account.ParseVerificationCode(rawCode)
		if err != nil {
			return err
		}

		rawPin, err := c.prompter.Input(ctx, prompt.Question{
			Text:     "Existing registration lock PIN",
			Hint:     "Only if this number already has one. Leave empty to generate a new PIN.",
			Secret:   true,
			Validate: validateOptionalPin,
		})
		if err != nil {
			return err
		}
		var existing account.Pin
		if rawPin != "" {
			if existing, err = account.ParsePin(rawPin); err != nil {
				return err
			}
		}

		err = c.machine.Verify(ctx, s, code, existing)
		if err == nil {
			if s.PinSet {
				c.print.success("Registration lock PIN set")
			}
			return nil
		}
		c.print.failure(err)
		if ctx.Err() != nil || s.FailedStage != register.StateAwaitingVerification {
			return err
		}

		again, perr := c.prompter.Confirm(ctx, "Enter the code again?", true)
		if perr != nil {
			return perr
		}
		if !again {
			return err
		}
		if rerr := s.Reopen(register.StateAwaitingVerification, c.now()); rerr != nil {
			return rerr
		}
	}
}

// confirmPin shows the generated PIN and waits until the user says it is
// saved.
func (c *Controller) confirmPin(ctx context.Context, pin account.Pin) error {
	c.print.pin(pin)
	for {
		saved, err := c.prompter.Confirm(ctx, "Have you saved this PIN?", false)
		if err != nil {
			return err
		}
		if saved {
			return nil
		}
		c.print.warn("without this PIN the number cannot be re-registered while the lock is active. Save it before continuing")
	}
}

func validateAccount(s string) error {
	_, err := account.ParseAccount(s)
	return err
}

func validateCode(s string) error {
	_, err := account.ParseVerificationCode(s)
	return err
}

func validateOptionalPin(s string) error {
	if s == "" {
		return nil
	}
	_, err := account.ParsePin(s)
	return err
}
