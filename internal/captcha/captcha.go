// Package captcha obtains the signalcaptcha:// token that every registration
// attempt requires.
//
// An [Acquirer] yields at most one token per call and never judges whether
// the token will be accepted; that is discovered by the registration attempt
// itself. Concrete acquirers cover an external helper process, a browser
// round-trip through the OS URL handler, and manual paste. [First] and
// [Chain] compose them.
package captcha

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// Acquirer produces a captcha token.
type Acquirer interface {
	Acquire(ctx context.Context) (account.CaptchaToken, error)
}

// AcquirerFunc adapts a function to the Acquirer interface.
type AcquirerFunc func(ctx context.Context) (account.CaptchaToken, error)

// Acquire calls f.
func (f AcquirerFunc) Acquire(ctx context.Context) (account.CaptchaToken, error) { return f(ctx) }

// ExtractToken returns the last line of output that carries the captcha
// scheme prefix.
func ExtractToken(output string) (account.CaptchaToken, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		tok, err := account.ParseCaptchaToken(lines[i])
		if err == nil {
			return tok, true
		}
	}
	return "", false
}

// WithTimeout bounds a.
func WithTimeout(a Acquirer, d time.Duration) Acquirer {
	return AcquirerFunc(func(ctx context.Context) (account.CaptchaToken, error) {
		if d <= 0 {
			return a.Acquire(ctx)
		}
		bounded, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		tok, err := a.Acquire(bounded)
		if err != nil && ctx.Err() == nil && errors.Is(bounded.Err(), context.DeadlineExceeded) {
			return "", unavailable(errors.NewTimeoutError("captcha", d).WithCause(err))
		}
		return tok, err
	})
}

type outcome struct {
	token account.CaptchaToken
	err   error
}

// First runs every acquirer concurrently and returns the first token. The
// others are cancelled and waited for before returning.
func First(acquirers ...Acquirer) Acquirer {
	return AcquirerFunc(func(ctx context.Context) (account.CaptchaToken, error) {
		if len(acquirers) == 0 {
			return "", unavailable(nil)
		}

		raceCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan outcome, len(acquirers))
		var wg conc.WaitGroup
		for _, a := range acquirers {
			wg.Go(func() {
				tok, err := a.Acquire(raceCtx)
				results <- outcome{token: tok, err: err}
			})
		}

		var errs []error
		for range acquirers {
			r := <-results
			if r.err == nil {
				cancel()
				wg.Wait()
				return r.token, nil
			}
			errs = append(errs, r.err)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return "", errors.Join(errors.ErrCanceled, err)
		}
		return "", unavailable(errors.Join(errs...))
	})
}

// Chain tries each acquirer in order until one succeeds. Cancellation of ctx
// stops the chain.
func Chain(acquirers ...Acquirer) Acquirer {
	return AcquirerFunc(func(ctx context.Context) (account.CaptchaToken, error) {
		var errs []error
		for _, a := range acquirers {
			tok, err := a.Acquire(ctx)
			if err == nil {
				return tok, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", errors.Join(errors.ErrCanceled, ctxErr)
			}
			errs = append(errs, err)
		}
		return "", unavailable(errors.Join(errs...))
	})
}

// Static returns an acquirer that always yields tok. Used when a token was
// supplied on the command line.
func Static(tok account.CaptchaToken) Acquirer {
	return AcquirerFunc(func(context.Context) (account.CaptchaToken, error) {
		return tok, nil
	})
}

// Once returns an acquirer that only consults a the first time; subsequent
// calls fail. It keeps a command-line token from being replayed after the
// service has rejected it.
func Once(a Acquirer) Acquirer {
	var mu sync.Mutex
	used := false
	return AcquirerFunc(func(ctx context.Context) (account.CaptchaToken, error) {
		mu.Lock()
		if used {
			mu.Unlock()
			return "", unavailable(errors.New("token already used"))
		}
		used = true
		mu.Unlock()
		return a.Acquire(ctx)
	})
}

func unavailable(cause error) error {
	if cause == nil {
		return errors.ErrCaptchaUnavailable
	}
	if errors.Is(cause, errors.ErrCaptchaUnavailable) {
		return cause
	}
	return errors.Join(errors.ErrCaptchaUnavailable, cause)
}
