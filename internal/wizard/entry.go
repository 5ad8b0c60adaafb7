package wizard

import (
	"context"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/register"
)

// Captcha acquires a captcha token on its own.
func (c *Controller) Captcha(ctx context.Context) (account.CaptchaToken, error) {
	if c.captcha == nil {
		return "", errors.ErrCaptchaUnavailable
	}
	return c.captcha.Acquire(ctx)
}

// Register requests a verification code for acct. An empty token is
// obtained through the captcha flow first.
func (c *Controller) Register(ctx context.Context, acct account.Account, tok account.CaptchaToken, mode account.Mode) (*register.Session, error) {
	s := register.ResumeSession(acct, register.StateAwaitingCaptcha, c.now())
	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}

	if tok == "" {
		got, err := c.obtainCaptcha(ctx, s)
		if err != nil {
			return s, err
		}
		tok = got
	} else if err := c.machine.UseToken(s, tok); err != nil {
		return s, err
	}

	if err := c.machine.Register(ctx, s, tok, mode); err != nil {
		c.print.failure(err)
		return s, err
	}
	c.print.success("Verification code requested by %s", mode)
	return s, nil
}

// Verify submits code for acct. Without existingPin a new registration lock
// PIN is generated, shown and set.
func (c *Controller) Verify(ctx context.Context, acct account.Account, code account.VerificationCode, existingPin account.Pin) (*register.Session, error) {
	s := register.ResumeSession(acct, register.StateAwaitingVerification, c.now())
	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}

	if err := c.machine.Verify(ctx, s, code, existingPin); err != nil {
		c.print.failure(err)
		return s, err
	}
	switch {
	case s.PinSet:
		c.print.success("%s verified and protected with a new registration lock PIN", acct)
	case s.UsedExistingPin:
		c.print.success("%s verified with the existing registration lock PIN", acct)
	}
	return s, nil
}

// LinkLive launches the desktop client, polls the screens for its QR code,
// runs the post-link sync once linked and lists the linked devices.
func (c *Controller) LinkLive(ctx context.Context, acct account.Account, interval time.Duration, attempts int) (*register.Session, error) {
	s := register.ResumeSession(acct, register.StateAwaitingLink, c.now())
	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}
	c.launchDesktop(ctx)

	c.print.step("Scanning for the desktop QR code")
	c.print.muted("Scanning every %s, up to %d times.", interval, attempts)
	linked, err := c.poller.LinkSession(ctx, s, interval, attempts)
	if err != nil {
		c.print.failure(err)
		return s, err
	}
	c.print.success("Desktop linked from %s on scan %d", linked.Display, linked.Iteration)

	c.stabilize(ctx, s)
	c.showLinkedDevices(ctx, s)
	return s, nil
}

// ListDevices returns and prints the devices linked to acct.
func (c *Controller) ListDevices(ctx context.Context, acct account.Account) ([]account.DeviceRecord, error) {
	if err := c.ensureRuntime(ctx); err != nil {
		return nil, err
	}

	res, err := backend.ExecuteRecovering(ctx, c.exec, c.recoverer, acct, backend.ListDevices())
	if err != nil {
		c.print.failure(err)
		return nil, err
	}
	devices, err := backend.ParseDevices(res.Stdout)
	if err != nil {
		return nil, err
	}
	c.print.devices(devices)
	return devices, nil
}

// LinkFromImage links the QR code in a screenshot file.
func (c *Controller) LinkFromImage(ctx context.Context, acct account.Account, path string) (*register.Session, error) {
	s := register.ResumeSession(acct, register.StateAwaitingLink, c.now())
	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}

	if err := c.linkImage(ctx, s, path); err != nil {
		c.print.failure(err)
		return s, err
	}
	c.stabilize(ctx, s)
	c.showLinkedDevices(ctx, s)
	return s, nil
}

// LinkFromURI links a device-link URI copied from the desktop client.
func (c *Controller) LinkFromURI(ctx context.Context, acct account.Account, uri string) (*register.Session, error) {
	s := register.ResumeSession(acct, register.StateAwaitingLink, c.now())
	payload, err := account.ParseQrPayload(uri)
	if err != nil {
		return s, err
	}
	if err := c.ensureRuntime(ctx); err != nil {
		return s, err
	}

	if err := c.linkPayload(ctx, s, payload); err != nil {
		c.print.failure(err)
		return s, err
	}
	c.stabilize(ctx, s)
	c.showLinkedDevices(ctx, s)
	return s, nil
}
