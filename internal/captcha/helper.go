package captcha

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/util"
)

// HelperAcquirer runs an external helper (typically an embedded webview
// that intercepts the signalcaptcha:// navigation) and reads the token from
// its stdout.
type HelperAcquirer struct {
	Command string // Command line, split on whitespace
	Runner  backend.Runner
}

// Acquire implements Acquirer.
func (h *HelperAcquirer) Acquire(ctx context.Context) (account.CaptchaToken, error) {
	fields := strings.Fields(h.Command)
	if len(fields) == 0 {
		return "", unavailable(errors.New("no captcha helper configured"))
	}
	runner := h.Runner
	if runner == nil {
		runner = backend.NewExecRunner()
	}

	out, err := runner.Run(ctx, backend.Command{Name: fields[0], Args: fields[1:]})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", unavailable(fmt.Errorf("captcha helper failed to start: %w", err))
	}
	if out.ExitCode != 0 {
		return "", unavailable(fmt.Errorf("captcha helper exited with status %d: %s", out.ExitCode, util.FirstLine(out.Stderr)))
	}

	tok, ok := ExtractToken(out.Stdout)
	if !ok {
		return "", unavailable(errors.New("captcha helper did not return a token"))
	}
	return tok, nil
}
