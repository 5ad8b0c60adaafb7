// Package backend runs signal-cli operations inside a container and
// classifies their failures. It never retries: callers that understand the
// stage semantics decide what a Transient or Unreachable failure means.
package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
)

// Executor runs exactly one backend operation per call.
type Executor interface {
	Execute(ctx context.Context, acct account.Account, req Request) (*Result, error)
}

// containerDataDir is where signal-cli keeps its account state inside the image.
const containerDataDir = "/var/lib/signal-cli"

// DockerOptions configures a DockerExecutor.
type DockerOptions struct {
	Runtime string // Container runtime binary, e.g. "docker"
	Image   string
	DataDir string // Host directory mounted at /var/lib/signal-cli
	Runner  Runner
	Logger  *logging.Logger
	// MapUser runs the container as the invoking user so files in DataDir
	// stay owned by them. Defaults to true on Linux.
	MapUser *bool
}

// DockerExecutor implements Executor with `docker run --rm -i`.
type DockerExecutor struct {
	runtime string
	image   string
	dataDir string
	runner  Runner
	logger  *logging.Logger
	mapUser bool
	now     func() time.Time
}

// NewDockerExecutor creates a DockerExecutor.
func NewDockerExecutor(opts DockerOptions) *DockerExecutor {
	e := &DockerExecutor{
		runtime: opts.Runtime,
		image:   opts.Image,
		dataDir: opts.DataDir,
		runner:  opts.Runner,
		logger:  opts.Logger,
		mapUser: runtime.GOOS == "linux",
		now:     time.Now,
	}
	if e.runtime == "" {
		e.runtime = "docker"
	}
	if e.runner == nil {
		e.runner = NewExecRunner()
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	if opts.MapUser != nil {
		e.mapUser = *opts.MapUser
	}
	return e
}

// DataDir returns the host data directory.
func (e *DockerExecutor) DataDir() string {
	return e.dataDir
}

// Execute implements Executor.
func (e *DockerExecutor) Execute(ctx context.Context, acct account.Account, req Request) (*Result, error) {
	if err := os.MkdirAll(e.dataDir, 0o700); err != nil {
		return nil, errors.NewPreconditionError(
			fmt.Sprintf("data directory %s is not writable", e.dataDir),
			"Pass a writable directory with --data-dir",
			err,
		)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := e.command(acct, req)
	log := e.logger.With("op", string(req.Op))
	log.Debug("running backend command", "secret", req.Secret())

	start := e.now()
	out, err := e.runner.Run(ctx, cmd)
	elapsed := e.now().Sub(start)

	if err != nil {
		return nil, e.runError(ctx, req, out, err)
	}
	if out.ExitCode != 0 {
		class := Classify(out)
		summary := SummarizeOutput(out)
		log.Warn("backend command failed",
			"exit_code", out.ExitCode,
			"class", class.String(),
			"output", summary,
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, errors.NewExecutionError(string(req.Op), class,
			fmt.Errorf("exit status %d", out.ExitCode)).WithOutput(summary)
	}

	log.Debug("backend command succeeded", "duration_ms", elapsed.Milliseconds())
	return &Result{Stdout: out.Stdout, Stderr: out.Stderr, Duration: elapsed}, nil
}

// runError classifies failures that happened before or instead of a normal exit.
func (e *DockerExecutor) runError(ctx context.Context, req Request, out Output, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return errors.NewPreconditionError(
			fmt.Sprintf("%s is not installed", e.runtime),
			"Install Docker (or set backend.runtime) and try again",
			errors.Join(errors.ErrRuntimeMissing, err),
		)
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Warn("backend command timed out", "op", string(req.Op))
		return errors.NewExecutionError(string(req.Op), errors.ClassTimeout, err).
			WithOutput(SummarizeOutput(out))
	case errors.Is(ctx.Err(), context.Canceled):
		return errors.Join(errors.ErrCanceled, ctx.Err())
	default:
		return errors.NewExecutionError(string(req.Op), errors.ClassUnreachable, err)
	}
}

// command builds the container invocation for req.
func (e *DockerExecutor) command(acct account.Account, req Request) Command {
	args := []string{
		"run", "--rm", "-i",
		"--volume", e.dataDir + ":" + containerDataDir,
		"--tmpfs", "/tmp:exec",
	}
	if e.mapUser {
		args = append(args, "--user", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()))
	}

	if req.Secret() {
		args = append(args,
			"--env", "SIGNAL_ACCOUNT="+acct.String(),
			"--entrypoint", "sh",
			e.image,
			"-c", req.Script,
		)
		return Command{
			Name:  e.runtime,
			Args:  args,
			Stdin: strings.Join(req.Stdin, "\n") + "\n",
		}
	}

	args = append(args, e.image, "-o", "json", "-a", acct.String(), string(req.Op))
	args = append(args, req.Args...)
	return Command{Name: e.runtime, Args: args}
}
