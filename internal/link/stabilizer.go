package link

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
	"github.com/Iron-Ham/signal-setup/internal/register"
)

// Default stabilization policy
const (
	DefaultPasses         = 3
	DefaultReceiveTimeout = 12 * time.Second
	DefaultMaxMessages    = 100
)

// StabilizerOptions configures a Stabilizer.
type StabilizerOptions struct {
	Executor       backend.Executor
	Recoverer      backend.Recoverer
	Clock          clock.Clock
	Logger         *logging.Logger
	Passes         int
	ReceiveTimeout time.Duration
	MaxMessages    int
	// OnPass, when set, is called before each receive pass.
	OnPass func(pass, total int)
}

// Stabilizer drives the post-link sync: a few receive passes so the primary
// answers the new device's sync requests, then a contact list push.
type Stabilizer struct {
	exec           backend.Executor
	recoverer      backend.Recoverer
	clock          clock.Clock
	logger         *logging.Logger
	passes         int
	receiveTimeout time.Duration
	maxMessages    int
	onPass         func(pass, total int)
}

// NewStabilizer creates a Stabilizer. Passes may be zero to skip the receive
// passes; negative values and unset limits select the defaults.
func NewStabilizer(opts StabilizerOptions) *Stabilizer {
	st := &Stabilizer{
		exec:           opts.Executor,
		recoverer:      opts.Recoverer,
		clock:          opts.Clock,
		logger:         opts.Logger,
		passes:         opts.Passes,
		receiveTimeout: opts.ReceiveTimeout,
		maxMessages:    opts.MaxMessages,
		onPass:         opts.OnPass,
	}
	if st.clock == nil {
		st.clock = clock.Real()
	}
	if st.logger == nil {
		st.logger = logging.NopLogger()
	}
	if st.passes < 0 {
		st.passes = DefaultPasses
	}
	if st.receiveTimeout <= 0 {
		st.receiveTimeout = DefaultReceiveTimeout
	}
	if st.maxMessages <= 0 {
		st.maxMessages = DefaultMaxMessages
	}
	return st
}

// OnPass replaces the pass observer.
func (st *Stabilizer) OnPass(fn func(pass, total int)) { st.onPass = fn }

// Passes returns the configured number of receive passes.
func (st *Stabilizer) Passes() int { return st.passes }

// Window returns the longest time the receive passes can take.
func (st *Stabilizer) Window() time.Duration {
	return time.Duration(st.passes) * st.receiveTimeout
}

// Stabilize runs the receive passes, stopping at the first failure, then
// sends the contact list regardless. Failures are reported as a warning
// level StageError; they never undo the link.
func (st *Stabilizer) Stabilize(ctx context.Context, acct account.Account) error {
	logger := st.logger.WithStage(register.StateStabilizing.String()).WithAccount(acct.String())
	var failures []error

	for pass := 1; pass <= st.passes; pass++ {
		if st.onPass != nil {
			st.onPass(pass, st.passes)
		}
		_, err := backend.ExecuteRecovering(ctx, st.exec, st.recoverer, acct, backend.Receive(st.receiveTimeout, st.maxMessages))
		if err != nil {
			logger.Warn("receive pass failed", "pass", pass, "passes", st.passes, "error", err)
			failures = append(failures, fmt.Errorf("receive pass %d/%d: %w", pass, st.passes, err))
			break
		}
		logger.Debug("receive pass complete", "pass", pass)
	}

	if ctx.Err() == nil {
		if _, err := backend.ExecuteRecovering(ctx, st.exec, st.recoverer, acct, backend.SendContacts()); err != nil {
			logger.Warn("contacts sync failed", "error", err)
			failures = append(failures, fmt.Errorf("sendContacts: %w", err))
		}
	} else {
		failures = append(failures, fmt.Errorf("sendContacts skipped: %w", ctx.Err()))
	}

	if len(failures) == 0 {
		logger.Info("post-link sync complete")
		return nil
	}
	return errors.NewStageError(register.StateStabilizing.String(), "initial sync incomplete", errors.Join(failures...)).
		WithRemediation("The desktop app may still finish syncing after a restart; keep this account online with `signal-cli receive` if it stays on 'Syncing contacts and groups'").
		WithSeverity(errors.SeverityWarning)
}

// StabilizeSession runs Stabilize for a linked session and always finishes
// in Done with Linked still set. The returned error is the sync warning, if
// any.
func (st *Stabilizer) StabilizeSession(ctx context.Context, s *register.Session) error {
	if !s.Linked {
		return errors.NewValidationError("session has no linked device").WithField("state")
	}
	s.Advance(register.StateStabilizing, st.clock.Now())
	err := st.Stabilize(ctx, s.Account)
	s.Advance(register.StateDone, st.clock.Now())
	return err
}
