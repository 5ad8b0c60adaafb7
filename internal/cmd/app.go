package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/captcha"
	"github.com/Iron-Ham/signal-setup/internal/config"
	"github.com/Iron-Ham/signal-setup/internal/container"
	"github.com/Iron-Ham/signal-setup/internal/desktop"
	"github.com/Iron-Ham/signal-setup/internal/link"
	"github.com/Iron-Ham/signal-setup/internal/logging"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/screen"
	"github.com/Iron-Ham/signal-setup/internal/tui/prompt"
	"github.com/Iron-Ham/signal-setup/internal/wizard"
)

// appOptions tweaks how newApp wires the components for one command.
type appOptions struct {
	// quiet sends every prompt and progress line to stderr so stdout only
	// carries the command's result.
	quiet bool
	// noHelper leaves the configured captcha helper out of the captcha
	// chain. The captcha-token command sets it so a helper that runs
	// `signal-setup captcha-token` cannot recurse.
	noHelper bool
}

// app holds the wired components for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	controller *wizard.Controller
}

// newApp loads the configuration and wires the backend, captcha chain,
// screen sampler, link poller, stabilizer and prompter into a
// wizard.Controller.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.quiet {
		out = cmd.ErrOrStderr()
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	runner := backend.NewExecRunner()

	rt := container.New(container.Options{
		Binary:        cfg.Backend.Runtime,
		StartCommands: cfg.Backend.StartCommands,
		StartTimeout:  cfg.Backend.StartTimeout(),
		Runner:        runner,
		Logger:        logger,
	})
	exec := backend.NewDockerExecutor(backend.DockerOptions{
		Runtime: cfg.Backend.Runtime,
		Image:   cfg.Backend.Image,
		DataDir: cfg.Backend.ResolveDataDir(),
		Runner:  runner,
		Logger:  logger,
	})

	launcher, err := desktop.NewLauncher(desktop.Options{
		Runner:          runner,
		Logger:          logger,
		LaunchCommands:  cfg.Desktop.LaunchCommands,
		ProcessPatterns: cfg.Desktop.ProcessPatterns,
		WaitLoops:       cfg.Desktop.LaunchWaitLoops,
		WaitInterval:    cfg.Desktop.LaunchWait(),
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	prompter := newPrompter(cmd.InOrStdin(), out)
	acquirer := newCaptchaChain(cfg, runner, launcher, prompter, opts.noHelper)

	machine := register.NewMachine(register.Options{
		Executor:      exec,
		Captcha:       acquirer,
		Recoverer:     rt,
		Logger:        logger,
		RetryAttempts: cfg.Registration.RetryAttempts,
		RetryDelay:    cfg.Registration.RetryDelay(),
		LandlineWait:  cfg.Registration.LandlineWait(),
	})

	decoder := screen.NewQRDecoder()
	sampler := screen.NewSampler(
		screen.NewPlatformCapturer(runner, cfg.Link.MaxDisplays),
		decoder,
		cfg.Link.CaptureTimeout(),
		logger,
	)
	poller := link.NewPoller(link.PollerOptions{
		Executor:  exec,
		Sampler:   sampler,
		Recoverer: rt,
		Logger:    logger,
	})
	stabilizer := link.NewStabilizer(link.StabilizerOptions{
		Executor:       exec,
		Recoverer:      rt,
		Logger:         logger,
		Passes:         cfg.Stabilize.Passes,
		ReceiveTimeout: cfg.Stabilize.ReceiveTimeout(),
		MaxMessages:    cfg.Stabilize.MaxMessages,
	})

	controller := wizard.New(wizard.Options{
		Prompter:     prompter,
		Out:          out,
		Machine:      machine,
		Captcha:      acquirer,
		Poller:       poller,
		Stabilizer:   stabilizer,
		Executor:     exec,
		Recoverer:    rt,
		Runtime:      rt,
		Desktop:      launcher,
		Decoder:      decoder,
		Logger:       logger,
		LinkInterval: cfg.Link.Interval(),
		LinkAttempts: cfg.Link.Attempts,
	})

	logger.Debug("command started",
		"command", cmd.CommandPath(),
		"flags", describeFlags(cmd.Flags()),
		"data_dir", cfg.Backend.ResolveDataDir(),
		"image", cfg.Backend.Image,
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		controller: controller,
	}, nil
}

// Close flushes the debug log.
func (a *app) Close() error {
	return a.logger.Close()
}

// newLogger opens the rotated debug log. When logging is disabled or the log
// cannot be opened, log output is discarded.
func newLogger(cfg *config.Config, warn io.Writer) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	logger, err := logging.NewLogger(config.LogDir(), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(warn, "Warning: debug logging disabled: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// newPrompter picks the interactive prompter on a terminal and the line
// prompter otherwise.
func newPrompter(in io.Reader, out io.Writer) prompt.Prompter {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return prompt.NewTeaPrompter(in, out)
	}
	return prompt.NewLinePrompter(in, out)
}

// newCaptchaChain races the browser callback against the optional helper,
// bounded by the configured timeout, and falls back to asking the user to
// paste the token.
func newCaptchaChain(cfg *config.Config, runner backend.Runner, launcher *desktop.Launcher, prompter prompt.Prompter, noHelper bool) captcha.Acquirer {
	var auto captcha.Acquirer = &captcha.CallbackAcquirer{
		URL:  cfg.Captcha.URL,
		File: cfg.Captcha.ResolveCallbackFile(),
		Open: launcher.OpenURL,
	}
	if cfg.Captcha.Helper != "" && !noHelper {
		auto = captcha.First(auto, &captcha.HelperAcquirer{
			Command: cfg.Captcha.Helper,
			Runner:  runner,
		})
	}

	paste := &captcha.PromptAcquirer{
		Ask: func(ctx context.Context) (string, error) {
			return prompter.Input(ctx, prompt.Question{
				Text:        "Paste the captcha link",
				Placeholder: "signalcaptcha://...",
				Hint:        fmt.Sprintf("Solve the captcha at %s, then copy the link behind \"Open Signal\"", cfg.Captcha.URL),
				Validate: func(s string) error {
					_, err := account.ParseCaptchaToken(s)
					return err
				},
			})
		},
	}

	return captcha.Chain(captcha.WithTimeout(auto, cfg.Captcha.Timeout()), paste)
}
