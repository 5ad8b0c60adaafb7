package captcha

import (
	"context"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

// PromptAcquirer asks the user to paste the token by hand.
type PromptAcquirer struct {
	// Ask returns the raw line the user entered.
	Ask func(ctx context.Context) (string, error)
}

// Acquire implements Acquirer. The pasted value must carry the
// signalcaptcha:// prefix.
func (p *PromptAcquirer) Acquire(ctx context.Context) (account.CaptchaToken, error) {
	raw, err := p.Ask(ctx)
	if err != nil {
		return "", err
	}
	tok, err := account.ParseCaptchaToken(raw)
	if err != nil {
		return "", unavailable(err)
	}
	return tok, nil
}
