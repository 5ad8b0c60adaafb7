package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// accountValue is a pflag.Value that only accepts valid account numbers.
type accountValue struct {
	acct account.Account
}

var _ pflag.Value = (*accountValue)(nil)

func (v *accountValue) String() string { return v.acct.String() }

func (v *accountValue) Set(raw string) error {
	acct, err := account.ParseAccount(raw)
	if err != nil {
		return err
	}
	v.acct = acct
	return nil
}

func (v *accountValue) Type() string { return "account" }

var accountFlag accountValue

// intervalValue is a pflag.Value for scan intervals. A bare integer is a
// number of seconds; anything else is parsed as a Go duration such as "2s".
type intervalValue struct {
	d time.Duration
}

var _ pflag.Value = (*intervalValue)(nil)

func (v *intervalValue) String() string {
	if v.d == 0 {
		return "0"
	}
	return v.d.String()
}

func (v *intervalValue) Set(raw string) error {
	raw = strings.TrimSpace(raw)
	var d time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(raw); err != nil {
		return errors.NewValidationError("must be a number of seconds or a duration such as 2s").WithField("interval").WithValue(raw)
	}
	if d < 0 {
		return errors.NewValidationError("must not be negative").WithField("interval").WithValue(raw)
	}
	v.d = d
	return nil
}

func (v *intervalValue) Type() string { return "seconds" }

// requireAccount returns the --account value, failing when it was not given.
func requireAccount() (account.Account, error) {
	if accountFlag.acct == "" {
		return "", errors.NewValidationError("--account is required for this command").WithField("account")
	}
	return accountFlag.acct, nil
}

// modeFromFlags maps the register delivery flags to a registration mode.
func modeFromFlags(voice, landline bool) account.Mode {
	switch {
	case landline:
		return account.ModeLandline
	case voice:
		return account.ModeVoice
	default:
		return account.ModeSMS
	}
}

// describeFlags lists the flags of fs that were set explicitly, for logging.
func describeFlags(fs *pflag.FlagSet) []string {
	var set []string
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "pin" || f.Name == "token" {
			set = append(set, fmt.Sprintf("--%s=<redacted>", f.Name))
			return
		}
		set = append(set, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
	})
	return set
}
