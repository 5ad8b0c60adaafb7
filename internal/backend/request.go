package backend

import (
	"strconv"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

// Operation names a signal-cli subcommand.
type Operation string

// Operations issued by the onboarding flow
const (
	OpRegister     Operation = "register"
	OpVerify       Operation = "verify"
	OpSetPin       Operation = "setPin"
	OpListDevices  Operation = "listDevices"
	OpLinkDevice   Operation = "addDevice"
	OpReceive      Operation = "receive"
	OpSendContacts Operation = "sendContacts"
)

// Request is a single backend invocation. Build requests with the typed
// constructors below; they are validated by the caller beforehand.
type Request struct {
	Op Operation
	// Args are appended after the operation name.
	Args []string
	// Script, when set, replaces the normal invocation with an sh script
	// inside the container. Secrets referenced by the script are read from
	// Stdin so they never reach the process list.
	Script string
	// Stdin lines fed to the script.
	Stdin []string
	// Timeout bounds this invocation. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Result is the captured output of a successful invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Register requests a verification code for the account.
func Register(token account.CaptchaToken, voice bool) Request {
	args := []string{"--captcha", token.String()}
	if voice {
		args = append(args, "--voice")
	}
	return Request{Op: OpRegister, Args: args}
}

const (
	verifyScript    = `read -r SIGNAL_VERIFY_CODE; exec signal-cli -o json -a "$SIGNAL_ACCOUNT" verify "$SIGNAL_VERIFY_CODE"`
	verifyPinScript = `read -r SIGNAL_VERIFY_CODE; read -r SIGNAL_PIN; exec signal-cli -o json -a "$SIGNAL_ACCOUNT" verify "$SIGNAL_VERIFY_CODE" --pin "$SIGNAL_PIN"`
	setPinScript    = `read -r SIGNAL_PIN; exec signal-cli -o json -a "$SIGNAL_ACCOUNT" setPin "$SIGNAL_PIN"`
)

// Verify submits the verification code, with the existing registration-lock
// PIN when the account has one.
func Verify(code account.VerificationCode, pin account.Pin) Request {
	if pin != "" {
		return Request{
			Op:     OpVerify,
			Script: verifyPinScript,
			Stdin:  []string{string(code), string(pin)},
		}
	}
	return Request{
		Op:     OpVerify,
		Script: verifyScript,
		Stdin:  []string{string(code)},
	}
}

// SetPin enables registration lock with the given PIN.
func SetPin(pin account.Pin) Request {
	return Request{
		Op:     OpSetPin,
		Script: setPinScript,
		Stdin:  []string{string(pin)},
	}
}

// ListDevices lists the devices linked to the account.
func ListDevices() Request {
	return Request{Op: OpListDevices}
}

// LinkDevice links the device that presented the given QR payload.
func LinkDevice(uri account.QrPayload) Request {
	return Request{Op: OpLinkDevice, Args: []string{"--uri", string(uri)}}
}

// receiveGrace is added to a receive pass's own timeout to bound the whole
// invocation, including container startup.
const receiveGrace = 30 * time.Second

// Receive drains pending messages for at most timeout.
func Receive(timeout time.Duration, maxMessages int) Request {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	return Request{
		Op: OpReceive,
		Args: []string{
			"--timeout", strconv.Itoa(secs),
			"--max-messages", strconv.Itoa(maxMessages),
		},
		Timeout: timeout + receiveGrace,
	}
}

// SendContacts pushes the contact and group lists to linked devices.
func SendContacts() Request {
	return Request{Op: OpSendContacts}
}

// Secret reports whether the request carries secrets on stdin.
func (r Request) Secret() bool {
	return r.Script != ""
}
