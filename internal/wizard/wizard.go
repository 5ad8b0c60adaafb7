// Package wizard runs the onboarding flow end to end: registration,
// verification, PIN setup, desktop linking and the post-link sync. The same
// Controller also backs the standalone commands, which each run one part of
// the flow against an existing account.
package wizard

import (
	"context"
	"io"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/captcha"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/link"
	"github.com/Iron-Ham/signal-setup/internal/logging"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/screen"
	"github.com/Iron-Ham/signal-setup/internal/tui/prompt"
)

// Runtime reports whether the backing container runtime is usable,
// starting it once if needed.
type Runtime interface {
	Ensure(ctx context.Context) error
}

// Desktop starts the desktop client and opens host settings.
type Desktop interface {
	Launch(ctx context.Context) error
	OpenScreenRecordingSettings(ctx context.Context) error
}

// Options wires a Controller.
type Options struct {
	Prompter   prompt.Prompter
	Out        io.Writer
	Machine    *register.Machine
	Captcha    captcha.Acquirer
	Poller     *link.Poller
	Stabilizer *link.Stabilizer
	Executor   backend.Executor
	Recoverer  backend.Recoverer
	Runtime    Runtime
	Desktop    Desktop
	Decoder    screen.Decoder
	Clock      clock.Clock
	Logger     *logging.Logger

	LinkInterval time.Duration
	LinkAttempts int
}

// Controller sequences the stages and handles every user interaction.
type Controller struct {
	prompter   prompt.Prompter
	print      *printer
	machine    *register.Machine
	captcha    captcha.Acquirer
	poller     *link.Poller
	stabilizer *link.Stabilizer
	exec       backend.Executor
	recoverer  backend.Recoverer
	runtime    Runtime
	desktop    Desktop
	decoder    screen.Decoder
	clock      clock.Clock
	logger     *logging.Logger
	interval   time.Duration
	attempts   int
}

// New creates a Controller. It installs itself as the machine's PIN
// confirmation hook and as the poller and stabilizer progress observer.
func New(opts Options) *Controller {
	c := &Controller{
		prompter:   opts.Prompter,
		print:      newPrinter(opts.Out),
		machine:    opts.Machine,
		captcha:    opts.Captcha,
		poller:     opts.Poller,
		stabilizer: opts.Stabilizer,
		exec:       opts.Executor,
		recoverer:  opts.Recoverer,
		runtime:    opts.Runtime,
		desktop:    opts.Desktop,
		decoder:    opts.Decoder,
		clock:      opts.Clock,
		logger:     opts.Logger,
		interval:   opts.LinkInterval,
		attempts:   opts.LinkAttempts,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	if c.decoder == nil {
		c.decoder = screen.NewQRDecoder()
	}
	if c.interval <= 0 {
		c.interval = link.DefaultInterval
	}
	if c.attempts <= 0 {
		c.attempts = link.DefaultAttempts
	}

	if c.machine != nil {
		c.machine.SetPinConfirm(c.confirmPin)
	}
	if c.poller != nil {
		c.poller.OnIteration(c.onIteration)
	}
	if c.stabilizer != nil {
		c.stabilizer.OnPass(func(pass, total int) {
			c.print.muted("Receive pass %d/%d", pass, total)
		})
	}
	return c
}

func (c *Controller) ensureRuntime(ctx context.Context) error {
	if c.runtime == nil {
		return nil
	}
	if err := c.runtime.Ensure(ctx); err != nil {
		c.print.failure(err)
		return err
	}
	return nil
}

func (c *Controller) now() time.Time { return c.clock.Now() }
