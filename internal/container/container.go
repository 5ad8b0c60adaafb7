// Package container checks that the container runtime backing signal-cli is
// available and makes a single attempt to start it when it is not.
package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
)

const (
	initialPoll = 150 * time.Millisecond
	maxPoll     = time.Second
	probeBudget = 15 * time.Second
)

// Options configures a Runtime.
type Options struct {
	Binary        string   // e.g. "docker"
	StartCommands []string // Command lines tried in order to start the daemon
	StartTimeout  time.Duration
	Runner        backend.Runner
	Clock         clock.Clock
	Logger        *logging.Logger
}

// Runtime probes and starts the container runtime daemon. It implements
// backend.Recoverer.
type Runtime struct {
	binary        string
	startCommands []string
	startTimeout  time.Duration
	runner        backend.Runner
	clock         clock.Clock
	logger        *logging.Logger
}

// New creates a Runtime.
func New(opts Options) *Runtime {
	r := &Runtime{
		binary:        opts.Binary,
		startCommands: opts.StartCommands,
		startTimeout:  opts.StartTimeout,
		runner:        opts.Runner,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if r.binary == "" {
		r.binary = "docker"
	}
	if r.runner == nil {
		r.runner = backend.NewExecRunner()
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = logging.NopLogger()
	}
	if r.startTimeout <= 0 {
		r.startTimeout = 90 * time.Second
	}
	return r
}

// Ready reports whether the daemon answers `<binary> info`. A missing binary
// is returned as a PreconditionError.
func (r *Runtime) Ready(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()

	out, err := r.runner.Run(probeCtx, backend.Command{
		Name: r.binary,
		Args: []string{"info", "--format", "{{.ServerVersion}}"},
	})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, r.missing(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		// A hung probe counts as not ready.
		return false, nil
	}
	return out.ExitCode == 0 && strings.TrimSpace(out.Stdout) != "", nil
}

// Ensure returns nil when the daemon is ready, otherwise makes one start
// attempt and waits for readiness.
func (r *Runtime) Ensure(ctx context.Context) error {
	ready, err := r.Ready(ctx)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}
	return r.Recover(ctx)
}

// Recover implements backend.Recoverer: it tries each start command until
// one launches, then polls readiness until the start timeout runs out.
func (r *Runtime) Recover(ctx context.Context) error {
	r.logger.Info("container runtime unreachable, attempting start", "runtime", r.binary)
	tried := r.start(ctx)

	deadline := r.clock.Now().Add(r.startTimeout)
	wait := initialPoll
	for {
		ready, err := r.Ready(ctx)
		if err != nil {
			return err
		}
		if ready {
			r.logger.Info("container runtime ready", "runtime", r.binary)
			return nil
		}
		if !r.clock.Now().Before(deadline) {
			break
		}
		if err := r.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		wait = min(wait*2, maxPoll)
	}

	r.logger.Warn("container runtime did not become ready", "runtime", r.binary, "tried", tried)
	return errors.NewPreconditionError(
		fmt.Sprintf("%s daemon did not become ready within %s", r.binary, r.startTimeout),
		"Start Docker manually and retry",
		errors.ErrRuntimeStartFailed,
	)
}

// start runs the configured start commands until one exits cleanly.
func (r *Runtime) start(ctx context.Context) []string {
	var tried []string
	for _, line := range r.startCommands {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		tried = append(tried, line)
		out, err := r.runner.Run(ctx, backend.Command{Name: fields[0], Args: fields[1:]})
		if err == nil && out.ExitCode == 0 {
			r.logger.Debug("start command succeeded", "command", line)
			return tried
		}
		r.logger.Debug("start command failed", "command", line, "exit_code", out.ExitCode, "error", err)
	}
	return tried
}

func (r *Runtime) missing(cause error) error {
	return errors.NewPreconditionError(
		fmt.Sprintf("%s is not installed", r.binary),
		"Install Docker Desktop (or Docker Engine) and try again",
		errors.Join(errors.ErrRuntimeMissing, cause),
	)
}
