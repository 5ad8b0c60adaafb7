// Package account holds the value types exchanged between the onboarding
// stages: the account number, captcha token, registration mode, verification
// code, registration-lock PIN, linked device records and QR payloads.
package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/errors"
)

const (
	// CaptchaScheme prefixes every captcha token.
	CaptchaScheme = "signalcaptcha://"
	// LinkScheme prefixes every device-link QR payload.
	LinkScheme = "sgnl://linkdevice"

	// PinLength is the number of decimal digits in a generated PIN.
	PinLength = 20
	pinGroup  = 4

	minAccountDigits = 7
	maxAccountDigits = 15
	minCodeDigits    = 3
	maxCodeDigits    = 10
)

// Account is an E.164 phone number, e.g. "+33612345678".
type Account string

// ParseAccount validates an account number. Surrounding whitespace is ignored.
func ParseAccount(raw string) (Account, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.NewValidationError("account is required").WithField("account")
	}
	if !strings.HasPrefix(s, "+") {
		return "", errors.NewValidationError("account must be in E.164 format and start with '+'").
			WithField("account").WithValue(s)
	}
	digits := s[1:]
	if !allDigits(digits) || len(digits) < minAccountDigits || len(digits) > maxAccountDigits {
		return "", errors.NewValidationError(
			fmt.Sprintf("account must be '+' followed by %d-%d digits", minAccountDigits, maxAccountDigits)).
			WithField("account").WithValue(s)
	}
	return Account(s), nil
}

// String returns the account number.
func (a Account) String() string { return string(a) }

// CaptchaToken is the opaque token produced by solving the registration captcha.
type CaptchaToken string

// ParseCaptchaToken accepts a raw token, tolerating surrounding whitespace
// and quotes copied along with it.
func ParseCaptchaToken(raw string) (CaptchaToken, error) {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if !strings.HasPrefix(s, CaptchaScheme) || len(s) == len(CaptchaScheme) {
		return "", errors.NewValidationError("captcha token must start with " + CaptchaScheme).
			WithField("token")
	}
	return CaptchaToken(s), nil
}

// String returns the token.
func (t CaptchaToken) String() string { return string(t) }

// Mode selects how the verification code is delivered.
type Mode int

const (
	// ModeSMS delivers the code by text message.
	ModeSMS Mode = iota
	// ModeVoice delivers the code by phone call.
	ModeVoice
	// ModeLandline attempts SMS, waits, then requests a voice call.
	ModeLandline
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSMS:
		return "sms"
	case ModeVoice:
		return "voice"
	case ModeLandline:
		return "landline"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sms", "":
		return ModeSMS, nil
	case "voice":
		return ModeVoice, nil
	case "landline", "sip":
		return ModeLandline, nil
	default:
		return ModeSMS, errors.NewValidationError("mode must be one of: sms, voice, landline").
			WithField("mode").WithValue(s)
	}
}

// VerificationCode is the numeric code delivered to the account holder.
type VerificationCode string

// ParseVerificationCode strips "-" and space separators and validates the
// remaining digits.
func ParseVerificationCode(raw string) (VerificationCode, error) {
	s := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(raw))
	if !allDigits(s) || len(s) < minCodeDigits || len(s) > maxCodeDigits {
		return "", errors.NewValidationError(
			fmt.Sprintf("verification code must be %d-%d digits", minCodeDigits, maxCodeDigits)).
			WithField("code")
	}
	return VerificationCode(s), nil
}

// Pin is a registration-lock PIN.
type Pin string

// GeneratePin returns a PinLength-digit PIN drawn from crypto/rand.
func GeneratePin() (Pin, error) {
	var b strings.Builder
	b.Grow(PinLength)
	ten := big.NewInt(10)
	for i := 0; i < PinLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate PIN: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return Pin(b.String()), nil
}

// ParsePin validates a user-supplied existing PIN. Registration-lock PINs
// are at least 4 characters.
func ParsePin(raw string) (Pin, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 4 {
		return "", errors.NewValidationError("PIN must be at least 4 characters").WithField("pin")
	}
	return Pin(s), nil
}

// Formatted groups the PIN in blocks of four separated by dashes.
func (p Pin) Formatted() string {
	s := string(p)
	var parts []string
	for len(s) > pinGroup {
		parts = append(parts, s[:pinGroup])
		s = s[pinGroup:]
	}
	parts = append(parts, s)
	return strings.Join(parts, "-")
}

// QrPayload is a decoded device-link URI.
type QrPayload string

// ParseQrPayload validates a device-link URI.
func ParseQrPayload(raw string) (QrPayload, error) {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if !IsLinkPayload(s) {
		return "", errors.NewValidationError("link URI must start with " + LinkScheme).WithField("uri")
	}
	return QrPayload(s), nil
}

// IsLinkPayload reports whether s looks like a device-link URI.
func IsLinkPayload(s string) bool {
	return strings.HasPrefix(s, LinkScheme)
}

// DeviceRecord describes one device linked to the account.
type DeviceRecord struct {
	ID       int
	Name     string
	Created  time.Time
	LastSeen time.Time
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
