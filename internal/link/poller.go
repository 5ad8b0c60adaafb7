// Package link pairs a desktop client with a registered account: the
// [Poller] watches the screen for the pairing QR code and submits it, and
// the [Stabilizer] keeps the account online long enough for the new device
// to finish its initial sync.
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
	"github.com/Iron-Ham/signal-setup/internal/screen"
)

// Default polling budget
const (
	DefaultInterval = 2 * time.Second
	DefaultAttempts = 90
)

// Sampler inspects every display once.
type Sampler interface {
	SampleAll(ctx context.Context) ([]screen.Sample, error)
}

// Linked describes a successful device link.
type Linked struct {
	Payload   account.QrPayload
	Display   screen.Display
	Iteration int
}

// Iteration reports the outcome of one polling iteration.
type Iteration struct {
	N         int
	Max       int
	Samples   []screen.Sample
	Submitted account.QrPayload
	Err       error
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Executor  backend.Executor
	Sampler   Sampler
	Recoverer backend.Recoverer
	Clock     clock.Clock
	Logger    *logging.Logger
	// OnIteration, when set, is called after every iteration that did not
	// link.
	OnIteration func(Iteration)
}

// Poller runs the live QR linking loop.
type Poller struct {
	exec        backend.Executor
	sampler     Sampler
	recoverer   backend.Recoverer
	clock       clock.Clock
	logger      *logging.Logger
	onIteration func(Iteration)
}

// NewPoller creates a Poller.
func NewPoller(opts PollerOptions) *Poller {
	p := &Poller{
		exec:        opts.Executor,
		sampler:     opts.Sampler,
		recoverer:   opts.Recoverer,
		clock:       opts.Clock,
		logger:      opts.Logger,
		onIteration: opts.OnIteration,
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.logger == nil {
		p.logger = logging.NopLogger()
	}
	return p
}

// OnIteration replaces the iteration observer.
func (p *Poller) OnIteration(fn func(Iteration)) { p.onIteration = fn }

// Run samples the screens up to maxAttempts times, interval apart, and
// links the first accepted payload. Rejected payloads are remembered and not
// resubmitted; rejections and transient failures keep polling within the
// same budget. A capture precondition failing on every display, or a link
// failure that is neither rejected nor transient, ends polling early.
func (p *Poller) Run(ctx context.Context, acct account.Account, interval time.Duration, maxAttempts int) (*Linked, error) {
	if interval <= 0 {
		return nil, errors.NewValidationError("poll interval must be positive").WithField("interval").WithValue(interval)
	}
	if maxAttempts <= 0 {
		return nil, errors.NewValidationError("poll attempts must be positive").WithField("attempts").WithValue(maxAttempts)
	}

	logger := p.logger.WithStage(register.StateAwaitingLink.String()).WithAccount(acct.String())
	rejected := make(map[account.QrPayload]bool)

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(errors.ErrCanceled, err)
		}

		iter := Iteration{N: n, Max: maxAttempts}
		samples, err := p.sampler.SampleAll(ctx)
		iter.Samples = samples

		switch {
		case ctx.Err() != nil:
			return nil, errors.Join(errors.ErrCanceled, ctx.Err())

		case err != nil:
			if errors.IsPrecondition(err) {
				return nil, err
			}
			logger.Warn("screen sampling failed", "iteration", n, "error", err)
			iter.Err = err

		case screen.PreconditionFailure(samples) != nil:
			return nil, screen.PreconditionFailure(samples)

		default:
			sample, ok := firstUnrejected(samples, rejected)
			if !ok {
				break
			}
			iter.Submitted = sample.Payload
			logger.Info("link QR detected", "iteration", n, "display", sample.Display.Index)

			_, err := backend.ExecuteRecovering(ctx, p.exec, p.recoverer, acct, backend.LinkDevice(sample.Payload))
			if err == nil {
				logger.Info("device linked", "iteration", n)
				return &Linked{Payload: sample.Payload, Display: sample.Display, Iteration: n}, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(errors.ErrCanceled, ctxErr)
			}
			iter.Err = err

			switch {
			case errors.IsRejected(err):
				rejected[sample.Payload] = true
				logger.Warn("link payload rejected, waiting for a fresh QR code", "iteration", n, "error", err)
			case errors.IsTransient(err):
				logger.Warn("link attempt failed, will retry", "iteration", n, "error", err)
			default:
				logger.Error("link attempt failed", "iteration", n, "error", err)
				return nil, err
			}
		}

		if p.onIteration != nil {
			p.onIteration(iter)
		}
		if n < maxAttempts {
			if err := p.clock.Sleep(ctx, interval); err != nil {
				return nil, errors.Join(errors.ErrCanceled, err)
			}
		}
	}

	logger.Warn("no desktop link before the polling budget ran out", "attempts", maxAttempts)
	return nil, errors.NewTimeoutError(
		fmt.Sprintf("live QR scan (%d attempts)", maxAttempts),
		interval*time.Duration(maxAttempts),
	).WithCause(errors.ErrLinkTimeout)
}

func firstUnrejected(samples []screen.Sample, rejected map[account.QrPayload]bool) (screen.Sample, bool) {
	for _, s := range samples {
		if s.Found && !rejected[s.Payload] {
			return s, true
		}
	}
	return screen.Sample{}, false
}

// Submit links payload directly, for a QR code decoded from a screenshot
// file or a URI pasted by the user.
func (p *Poller) Submit(ctx context.Context, acct account.Account, payload account.QrPayload) error {
	if !account.IsLinkPayload(string(payload)) {
		return errors.NewValidationError("link URI must start with " + account.LinkScheme).
			WithField("uri")
	}
	_, err := backend.ExecuteRecovering(ctx, p.exec, p.recoverer, acct, backend.LinkDevice(payload))
	if err != nil {
		p.logger.WithAccount(acct.String()).Error("link attempt failed", "error", err)
		return err
	}
	return nil
}

// LinkSession runs Run for a session in AwaitingLink and moves it to Linked
// on success. On failure the session stays in AwaitingLink so another
// linking method can be tried.
func (p *Poller) LinkSession(ctx context.Context, s *register.Session, interval time.Duration, maxAttempts int) (*Linked, error) {
	if s.State != register.StateAwaitingLink {
		return nil, errors.NewValidationError(fmt.Sprintf("session is %s, expected %s", s.State, register.StateAwaitingLink)).
			WithField("state")
	}
	linked, err := p.Run(ctx, s.Account, interval, maxAttempts)
	if err != nil {
		return nil, err
	}
	MarkLinked(s, p.clock.Now())
	return linked, nil
}

// MarkLinked records a successful link on the session.
func MarkLinked(s *register.Session, now time.Time) {
	s.Linked = true
	s.Advance(register.StateLinked, now)
}
