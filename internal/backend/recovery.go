package backend

import (
	"context"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// Recoverer brings an unreachable backing service back, e.g. by starting the
// container runtime and waiting until it answers.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// RecoverFunc adapts a function to Recoverer.
type RecoverFunc func(ctx context.Context) error

// Recover implements Recoverer.
func (f RecoverFunc) Recover(ctx context.Context) error { return f(ctx) }

// ExecuteRecovering runs req once. If it fails as Unreachable and rec is not
// nil, rec gets exactly one chance to recover before req is retried once.
// Any other outcome is returned as is.
func ExecuteRecovering(ctx context.Context, exec Executor, rec Recoverer, acct account.Account, req Request) (*Result, error) {
	res, err := exec.Execute(ctx, acct, req)
	if err == nil || rec == nil || !errors.IsUnreachable(err) {
		return res, err
	}

	if recErr := rec.Recover(ctx); recErr != nil {
		return nil, errors.Join(err, recErr)
	}
	return exec.Execute(ctx, acct, req)
}
