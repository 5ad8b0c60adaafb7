package wizard

import (
	"context"
	"strings"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/link"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/screen"
	"github.com/Iron-Ham/signal-setup/internal/tui/prompt"
)

// Choices offered when live linking did not succeed
const (
	linkRetryLive = iota
	linkScreenshot
	linkPasteURI
	linkOpenSettings
	linkSkip
)

var linkFailureOptions = []string{
	"Retry the live scan",
	"Decode a screenshot of the QR code",
	"Paste the link URI",
	"Open Screen Recording settings",
	"Skip linking for now",
}

// progressEvery is how often the poller reports an idle scan.
const progressEvery = 15

// link pairs the desktop client with the session's account. It returns nil
// when the user skips linking; s.Linked tells whether a device was linked.
func (c *Controller) link(ctx context.Context, s *register.Session) error {
	c.launchDesktop(ctx)

	c.print.step("Linking the desktop client")
	c.print.info("In the desktop app choose to link a new device and keep the QR code visible on screen.")
	c.print.muted("Scanning every %s, up to %d times.", c.interval, c.attempts)

	runLive := true
	for {
		if runLive {
			linked, err := c.poller.LinkSession(ctx, s, c.interval, c.attempts)
			if err == nil {
				c.print.success("Desktop linked from %s on scan %d", linked.Display, linked.Iteration)
				return nil
			}
			c.print.failure(err)
			if ctx.Err() != nil {
				return err
			}
		}
		runLive = false

		choice, err := c.prompter.Select(ctx, "The desktop client is not linked yet. What next?", linkFailureOptions)
		if err != nil {
			return err
		}

		switch choice {
		case linkRetryLive:
			runLive = true

		case linkScreenshot:
			path, err := c.prompter.Input(ctx, prompt.Question{
				Text:     "Path to the screenshot",
				Hint:     "PNG or JPEG showing the desktop app's QR code",
				Validate: requireValue,
			})
			if err != nil {
				return err
			}
			if err := c.linkImage(ctx, s, path); err != nil {
				c.print.failure(err)
				continue
			}
			return nil

		case linkPasteURI:
			raw, err := c.prompter.Input(ctx, prompt.Question{
				Text:     "Link URI",
				Hint:     "Starts with " + account.LinkScheme,
				Validate: validatePayload,
			})
			if err != nil {
				return err
			}
			payload, err := account.ParseQrPayload(raw)
			if err != nil {
				return err
			}
			if err := c.linkPayload(ctx, s, payload); err != nil {
				c.print.failure(err)
				continue
			}
			return nil

		case linkOpenSettings:
			if c.desktop == nil {
				continue
			}
			if err := c.desktop.OpenScreenRecordingSettings(ctx); err != nil {
				c.print.failure(err)
				continue
			}
			c.print.info("Allow screen recording for your terminal, restart it if asked, then retry the scan.")

		default:
			c.print.info("Skipping. Link later with: signal-setup link-desktop-live --account %s", s.Account)
			return nil
		}
	}
}

// linkImage decodes the QR code in a screenshot file and links it.
func (c *Controller) linkImage(ctx context.Context, s *register.Session, path string) error {
	payload, found, err := screen.DecodeFile(path, c.decoder)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewValidationError("no device-link QR code found in the image").
			WithField("image").WithValue(path)
	}
	return c.linkPayload(ctx, s, payload)
}

func (c *Controller) linkPayload(ctx context.Context, s *register.Session, payload account.QrPayload) error {
	if err := c.poller.Submit(ctx, s.Account, payload); err != nil {
		return err
	}
	link.MarkLinked(s, c.now())
	c.print.success("Desktop linked")
	return nil
}

// launchDesktop starts the desktop client. Failing to is only a warning:
// the user can open it by hand.
func (c *Controller) launchDesktop(ctx context.Context) {
	if c.desktop == nil {
		return
	}
	if err := c.desktop.Launch(ctx); err != nil {
		c.logger.Warn("desktop launch failed", "error", err)
		c.print.warn("%v. Open the desktop app manually", err)
	}
}

// stabilize runs the post-link sync. Its failure is reported as a warning
// and never undoes the link.
func (c *Controller) stabilize(ctx context.Context, s *register.Session) {
	if c.stabilizer == nil {
		return
	}
	c.print.step("Syncing with the new device")
	c.print.muted("Keeping the account online for up to %s so the desktop app can finish its initial sync.", c.stabilizer.Window())
	if err := c.stabilizer.StabilizeSession(ctx, s); err != nil {
		c.print.warn("%v", err)
		return
	}
	c.print.success("Initial sync done")
}

// showLinkedDevices lists the account's devices after a link so the user can
// see the new one. A failure is only a warning.
func (c *Controller) showLinkedDevices(ctx context.Context, s *register.Session) {
	res, err := backend.ExecuteRecovering(ctx, c.exec, c.recoverer, s.Account, backend.ListDevices())
	if err == nil {
		var devices []account.DeviceRecord
		if devices, err = backend.ParseDevices(res.Stdout); err == nil {
			c.print.devices(devices)
			return
		}
	}
	c.logger.Warn("listing linked devices failed", "account", s.Account.String(), "error", err)
	c.print.warn("could not list linked devices: %v", err)
}

func (c *Controller) onIteration(it link.Iteration) {
	switch {
	case it.Submitted != "" && it.Err != nil:
		c.print.warn("scan %d/%d found a QR code but linking failed: %v", it.N, it.Max, it.Err)
	case it.Err != nil:
		c.print.muted("Scan %d/%d: %v", it.N, it.Max, it.Err)
	case it.N == 1 || it.N%progressEvery == 0:
		c.print.muted("Scan %d/%d: waiting for the QR code", it.N, it.Max)
	}
}

func requireValue(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.NewValidationError("a value is required")
	}
	return nil
}

func validatePayload(s string) error {
	_, err := account.ParseQrPayload(s)
	return err
}
