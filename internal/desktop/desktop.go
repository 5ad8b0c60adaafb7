// Package desktop starts the desktop messaging client that is going to be
// linked, and opens URLs and system settings on the host.
package desktop

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
	"github.com/Iron-Ham/signal-setup/internal/screen"
)

// firstWait is the initial delay between running checks after a launch.
const firstWait = 120 * time.Millisecond

// Runner runs short host commands and spawns long-lived ones.
type Runner interface {
	backend.Runner
	backend.Spawner
}

// Options configures a Launcher.
type Options struct {
	Runner          Runner
	Clock           clock.Clock
	Logger          *logging.Logger
	LaunchCommands  []string // Command lines tried in order
	ProcessPatterns []string // Globs matched against running process names and command lines
	WaitLoops       int
	WaitInterval    time.Duration // Upper bound of the backoff between running checks
	GOOS            string
}

// Launcher detects and launches the desktop client.
type Launcher struct {
	runner    Runner
	clock     clock.Clock
	logger    *logging.Logger
	commands  []string
	patterns  []glob.Glob
	waitLoops int
	waitMax   time.Duration
	goos      string
}

// NewLauncher compiles the process patterns and returns a Launcher.
func NewLauncher(opts Options) (*Launcher, error) {
	l := &Launcher{
		runner:    opts.Runner,
		clock:     opts.Clock,
		logger:    opts.Logger,
		commands:  opts.LaunchCommands,
		waitLoops: opts.WaitLoops,
		waitMax:   opts.WaitInterval,
		goos:      opts.GOOS,
	}
	if l.runner == nil {
		l.runner = backend.NewExecRunner()
	}
	if l.clock == nil {
		l.clock = clock.Real()
	}
	if l.logger == nil {
		l.logger = logging.NopLogger()
	}
	if l.goos == "" {
		l.goos = runtime.GOOS
	}
	if l.waitMax <= 0 {
		l.waitMax = 500 * time.Millisecond
	}

	for _, p := range opts.ProcessPatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid process pattern %q: %w", p, err)
		}
		l.patterns = append(l.patterns, g)
	}
	return l, nil
}

// Running reports whether a process matching one of the patterns is alive.
func (l *Launcher) Running(ctx context.Context) (bool, error) {
	if len(l.patterns) == 0 {
		return false, nil
	}
	out, err := l.runner.Run(ctx, backend.Command{Name: "ps", Args: []string{"-A", "-o", "comm=", "-o", "args="}})
	if err != nil {
		return false, fmt.Errorf("failed to list processes: %w", err)
	}
	if out.ExitCode != 0 {
		return false, fmt.Errorf("ps exited with status %d", out.ExitCode)
	}

	for _, line := range strings.Split(out.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if l.matches(line) {
			return true, nil
		}
	}
	return false, nil
}

// matches checks the process name, its base name and the full command line.
func (l *Launcher) matches(line string) bool {
	comm := strings.Fields(line)[0]
	candidates := []string{comm, filepath.Base(comm), line}
	for _, g := range l.patterns {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

// Launch makes sure the desktop client is running. Each launch command is
// spawned in turn and given the configured wait to show up in the process
// list. If none works a DesktopError lists what was tried.
func (l *Launcher) Launch(ctx context.Context) error {
	if running, err := l.Running(ctx); err == nil && running {
		l.logger.Debug("desktop client already running")
		return nil
	}

	var tried []string
	var lastErr error
	for _, line := range l.commands {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		tried = append(tried, line)

		if err := l.runner.Spawn(backend.Command{Name: fields[0], Args: fields[1:]}); err != nil {
			l.logger.Debug("desktop launch command failed", "command", line, "error", err)
			lastErr = err
			continue
		}

		up, err := l.waitRunning(ctx)
		if err != nil {
			return err
		}
		if up {
			l.logger.Info("desktop client launched", "command", line)
			return nil
		}
	}

	l.logger.Warn("could not launch the desktop client", "tried", tried)
	return errors.NewDesktopError(tried, lastErr)
}

// waitRunning polls Running with a doubling backoff capped at waitMax.
func (l *Launcher) waitRunning(ctx context.Context) (bool, error) {
	wait := min(firstWait, l.waitMax)
	for range l.waitLoops {
		if running, err := l.Running(ctx); err == nil && running {
			return true, nil
		}
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return false, err
		}
		wait = min(wait*2, l.waitMax)
	}
	running, err := l.Running(ctx)
	return err == nil && running, nil
}

// OpenURL opens url with the host's default handler.
func (l *Launcher) OpenURL(ctx context.Context, url string) error {
	name := "xdg-open"
	if l.goos == "darwin" {
		name = "open"
	}
	out, err := l.runner.Run(ctx, backend.Command{Name: name, Args: []string{url}})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("%s exited with status %d: %s", name, out.ExitCode, backend.SummarizeOutput(out))
	}
	return nil
}

// OpenScreenRecordingSettings opens the Screen Recording privacy settings.
// It is only available on macOS.
func (l *Launcher) OpenScreenRecordingSettings(ctx context.Context) error {
	if l.goos != "darwin" {
		return fmt.Errorf("screen recording settings are only available on macOS")
	}
	return l.OpenURL(ctx, screen.ScreenRecordingSettingsURL)
}
