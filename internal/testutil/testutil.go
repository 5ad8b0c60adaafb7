// Package testutil provides test doubles shared by the signal-setup tests:
// a recording process runner and a scripted backend executor.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// RunResponse is one scripted runner reply.
type RunResponse struct {
	Output backend.Output
	Err    error
}

// FakeRunner implements backend.Runner. Responses are consumed in order;
// once exhausted, Default is returned. Every command is recorded.
type FakeRunner struct {
	mu        sync.Mutex
	Responses []RunResponse
	Default   RunResponse
	// Handler, when set, takes precedence over Responses.
	Handler  func(ctx context.Context, cmd backend.Command) (backend.Output, error)
	// SpawnErr, when set, decides the result of Spawn.
	SpawnErr func(cmd backend.Command) error
	commands []backend.Command
	spawned  []backend.Command
}

// Run implements backend.Runner.
func (r *FakeRunner) Run(ctx context.Context, cmd backend.Command) (backend.Output, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	handler := r.Handler
	var resp RunResponse
	if len(r.Responses) > 0 {
		resp = r.Responses[0]
		r.Responses = r.Responses[1:]
	} else {
		resp = r.Default
	}
	r.mu.Unlock()

	if handler != nil {
		return handler(ctx, cmd)
	}
	return resp.Output, resp.Err
}

// Spawn implements backend.Spawner.
func (r *FakeRunner) Spawn(cmd backend.Command) error {
	r.mu.Lock()
	r.spawned = append(r.spawned, cmd)
	spawnErr := r.SpawnErr
	r.mu.Unlock()

	if spawnErr != nil {
		return spawnErr(cmd)
	}
	return nil
}

// Spawned returns every command spawned so far.
func (r *FakeRunner) Spawned() []backend.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]backend.Command, len(r.spawned))
	copy(out, r.spawned)
	return out
}

// Commands returns every command run so far.
func (r *FakeRunner) Commands() []backend.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]backend.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Reply is one scripted executor outcome.
type Reply struct {
	Result *backend.Result
	Err    error
}

// OK is a successful reply with the given stdout.
func OK(stdout string) Reply {
	return Reply{Result: &backend.Result{Stdout: stdout}}
}

// Fail is a classified failure reply.
func Fail(op backend.Operation, class errors.FailureClass) Reply {
	return Reply{Err: errors.NewExecutionError(string(op), class, fmt.Errorf("scripted failure"))}
}

// Call records one Execute invocation.
type Call struct {
	Account account.Account
	Request backend.Request
}

// ScriptedExecutor implements backend.Executor. Replies are queued per
// operation; an operation with an empty queue succeeds with empty output.
type ScriptedExecutor struct {
	mu      sync.Mutex
	replies map[backend.Operation][]Reply
	calls   []Call
}

// NewScriptedExecutor returns an executor with no scripted replies.
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{replies: make(map[backend.Operation][]Reply)}
}

// On queues replies for op.
func (e *ScriptedExecutor) On(op backend.Operation, replies ...Reply) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies[op] = append(e.replies[op], replies...)
	return e
}

// Execute implements backend.Executor.
func (e *ScriptedExecutor) Execute(ctx context.Context, acct account.Account, req backend.Request) (*backend.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, Call{Account: acct, Request: req})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queue := e.replies[req.Op]
	if len(queue) == 0 {
		return &backend.Result{}, nil
	}
	reply := queue[0]
	e.replies[req.Op] = queue[1:]
	return reply.Result, reply.Err
}

// Calls returns every recorded invocation.
func (e *ScriptedExecutor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Ops returns the operation of every recorded invocation, in order.
func (e *ScriptedExecutor) Ops() []backend.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops := make([]backend.Operation, len(e.calls))
	for i, c := range e.calls {
		ops[i] = c.Request.Op
	}
	return ops
}

// Count returns how many times op was executed.
func (e *ScriptedExecutor) Count(op backend.Operation) int {
	n := 0
	for _, got := range e.Ops() {
		if got == op {
			n++
		}
	}
	return n
}

// CountingRecoverer implements backend.Recoverer and counts invocations.
type CountingRecoverer struct {
	mu    sync.Mutex
	Err   error
	calls int
}

// Recover implements backend.Recoverer.
func (r *CountingRecoverer) Recover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.Err
}

// Calls returns the number of Recover invocations.
func (r *CountingRecoverer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
