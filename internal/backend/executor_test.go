package backend_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/testutil"
)

const testAccount = "+33612345678"

func newExecutor(t *testing.T, runner backend.Runner) (*backend.DockerExecutor, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "signal-cli-data")
	mapUser := false
	return backend.NewDockerExecutor(backend.DockerOptions{
		Runtime: "docker",
		Image:   "example/signal-cli:test",
		DataDir: dataDir,
		Runner:  runner,
		MapUser: &mapUser,
	}), dataDir
}

func TestDockerExecutor_CommandLine(t *testing.T) {
	runner := &testutil.FakeRunner{}
	executor, dataDir := newExecutor(t, runner)

	_, err := executor.Execute(context.Background(), testAccount, backend.Register("signalcaptcha://tok", true))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cmds := runner.Commands()
	if len(cmds) != 1 {
		t.Fatalf("ran %d commands, want 1", len(cmds))
	}
	want := []string{
		"run", "--rm", "-i",
		"--volume", dataDir + ":/var/lib/signal-cli",
		"--tmpfs", "/tmp:exec",
		"example/signal-cli:test",
		"-o", "json", "-a", testAccount,
		"register", "--captcha", "signalcaptcha://tok", "--voice",
	}
	if cmds[0].Name != "docker" {
		t.Errorf("Name = %q, want docker", cmds[0].Name)
	}
	if !slices.Equal(cmds[0].Args, want) {
		t.Errorf("Args =\n  %v\nwant\n  %v", cmds[0].Args, want)
	}
	if cmds[0].Stdin != "" {
		t.Errorf("Stdin = %q, want empty", cmds[0].Stdin)
	}
}

func TestDockerExecutor_MapsUser(t *testing.T) {
	runner := &testutil.FakeRunner{}
	mapUser := true
	executor := backend.NewDockerExecutor(backend.DockerOptions{
		Image:   "img",
		DataDir: t.TempDir(),
		Runner:  runner,
		MapUser: &mapUser,
	})

	if _, err := executor.Execute(context.Background(), testAccount, backend.ListDevices()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	args := runner.Commands()[0].Args
	i := slices.Index(args, "--user")
	if i < 0 || i+1 >= len(args) || !strings.Contains(args[i+1], ":") {
		t.Errorf("expected --user uid:gid in %v", args)
	}
}

func TestDockerExecutor_SecretsOnStdin(t *testing.T) {
	runner := &testutil.FakeRunner{}
	executor, _ := newExecutor(t, runner)

	pin := "12345678901234567890"
	if _, err := executor.Execute(context.Background(), testAccount, backend.SetPin("12345678901234567890")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cmd := runner.Commands()[0]
	if strings.Contains(strings.Join(cmd.Args, " "), pin) {
		t.Fatal("PIN leaked onto the command line")
	}
	if cmd.Stdin != pin+"\n" {
		t.Errorf("Stdin = %q, want PIN line", cmd.Stdin)
	}
	if !slices.Contains(cmd.Args, "SIGNAL_ACCOUNT="+testAccount) {
		t.Errorf("account env missing from %v", cmd.Args)
	}
	if i := slices.Index(cmd.Args, "--entrypoint"); i < 0 || cmd.Args[i+1] != "sh" {
		t.Errorf("expected sh entrypoint in %v", cmd.Args)
	}
}

func TestDockerExecutor_Classification(t *testing.T) {
	tests := []struct {
		name      string
		response  testutil.RunResponse
		wantClass errors.FailureClass
	}{
		{
			name:      "transient 502",
			response:  testutil.RunResponse{Output: backend.Output{ExitCode: 1, Stderr: "StatusCode: 502"}},
			wantClass: errors.ClassTransient,
		},
		{
			name:      "rejected",
			response:  testutil.RunResponse{Output: backend.Output{ExitCode: 3, Stderr: "Invalid captcha"}},
			wantClass: errors.ClassRejected,
		},
		{
			name:      "daemon down",
			response:  testutil.RunResponse{Output: backend.Output{ExitCode: 125, Stderr: "Cannot connect to the Docker daemon"}},
			wantClass: errors.ClassUnreachable,
		},
		{
			name:      "deadline",
			response:  testutil.RunResponse{Err: context.DeadlineExceeded},
			wantClass: errors.ClassTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &testutil.FakeRunner{Default: tt.response}
			executor, _ := newExecutor(t, runner)

			_, err := executor.Execute(context.Background(), testAccount, backend.Register("signalcaptcha://t", false))
			class, ok := errors.ClassOf(err)
			if !ok {
				t.Fatalf("error %v is not an ExecutionError", err)
			}
			if class != tt.wantClass {
				t.Errorf("class = %v, want %v", class, tt.wantClass)
			}
		})
	}
}

func TestDockerExecutor_RuntimeMissing(t *testing.T) {
	runner := &testutil.FakeRunner{Default: testutil.RunResponse{
		Err: &exec.Error{Name: "docker", Err: exec.ErrNotFound},
	}}
	executor, _ := newExecutor(t, runner)

	_, err := executor.Execute(context.Background(), testAccount, backend.ListDevices())
	if !errors.IsPrecondition(err) {
		t.Fatalf("error = %v, want PreconditionError", err)
	}
	if !errors.Is(err, errors.ErrRuntimeMissing) {
		t.Error("error should match ErrRuntimeMissing")
	}
}

func TestDockerExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &testutil.FakeRunner{Handler: func(ctx context.Context, cmd backend.Command) (backend.Output, error) {
		cancel()
		return backend.Output{ExitCode: -1}, ctx.Err()
	}}
	executor, _ := newExecutor(t, runner)

	_, err := executor.Execute(ctx, testAccount, backend.ListDevices())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if _, ok := errors.ClassOf(err); ok {
		t.Error("cancellation must not be classified as a backend failure")
	}
}

func TestDockerExecutor_ReceiveDeadline(t *testing.T) {
	runner := &testutil.FakeRunner{Handler: func(ctx context.Context, cmd backend.Command) (backend.Output, error) {
		if _, ok := ctx.Deadline(); !ok {
			return backend.Output{ExitCode: 1, Stderr: "no deadline"}, nil
		}
		return backend.Output{}, nil
	}}
	executor, _ := newExecutor(t, runner)

	if _, err := executor.Execute(context.Background(), testAccount, backend.Receive(12*time.Second, 100)); err != nil {
		t.Fatalf("receive should run under a deadline: %v", err)
	}
}

func TestDockerExecutor_CreatesDataDir(t *testing.T) {
	runner := &testutil.FakeRunner{}
	executor, dataDir := newExecutor(t, runner)

	if _, err := executor.Execute(context.Background(), testAccount, backend.ListDevices()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if executor.DataDir() != dataDir {
		t.Errorf("DataDir() = %q", executor.DataDir())
	}
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func ExampleRegister() {
	req := backend.Register("signalcaptcha://token", false)
	fmt.Println(req.Op, req.Args)
	// Output: register [--captcha signalcaptcha://token]
}
