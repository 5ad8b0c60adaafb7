package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is one host process invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin string
	Env   []string // Extra KEY=VALUE pairs appended to the current environment
}

// String renders the command line for logs. Stdin is never included.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output is what a finished process produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner starts host processes. A non-zero exit is reported through
// Output.ExitCode with a nil error; the error is reserved for processes that
// could not be started or were interrupted by ctx.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// DefaultGracePeriod is how long a cancelled process group gets between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 3 * time.Second

// ExecRunner runs commands with os/exec. Each command gets its own process
// group, and cancelling ctx terminates the whole group.
type ExecRunner struct {
	GracePeriod time.Duration
}

// NewExecRunner returns an ExecRunner with the default grace period.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{GracePeriod: DefaultGracePeriod}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	configureProcessGroup(cmd, r.GracePeriod)

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	out.ExitCode = -1
	return out, err
}

// Spawner starts processes that outlive the operation that launched them,
// such as a desktop application.
type Spawner interface {
	Spawn(cmd Command) error
}

// Spawn implements Spawner. The process is started in its own session with
// no stdio attached and reaped in the background.
func (r *ExecRunner) Spawn(c Command) error {
	cmd := exec.Command(c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
