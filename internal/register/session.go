package register

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

// State is a stage of the onboarding session.
type State int

// Session states, in flow order
const (
	StateAwaitingAccount State = iota
	StateAwaitingCaptcha
	StateRegistering
	StateAwaitingVerification
	StateSettingPin
	StateAwaitingLink
	StateLinked
	StateStabilizing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateAwaitingAccount:      "AwaitingAccount",
	StateAwaitingCaptcha:      "AwaitingCaptcha",
	StateRegistering:          "Registering",
	StateAwaitingVerification: "AwaitingVerification",
	StateSettingPin:           "SettingPin",
	StateAwaitingLink:         "AwaitingLink",
	StateLinked:               "Linked",
	StateStabilizing:          "Stabilizing",
	StateDone:                 "Done",
	StateFailed:               "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Session carries onboarding progress for one account. It is created per
// flow and passed explicitly to every stage; nothing about it is global.
type Session struct {
	ID      string
	Account account.Account
	Mode    account.Mode
	State   State
	Started time.Time
	History []Transition

	// Attempts counts registration commands issued in this session.
	Attempts int
	// Pin holds the generated registration-lock PIN, if any.
	Pin account.Pin
	// PinSet is true once the backend accepted Pin.
	PinSet bool
	// UsedExistingPin is true when verification used the user's own PIN.
	UsedExistingPin bool
	// Linked stays true once a device link succeeded, whatever happens after.
	Linked bool

	// FailedStage and Err describe the terminal failure.
	FailedStage State
	Err         error
}

// NewSession starts a session awaiting an account.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:      uuid.NewString(),
		State:   StateAwaitingAccount,
		Started: now,
	}
}

// ResumeSession starts a session for acct directly at state. Standalone
// commands use it to run a single stage.
func ResumeSession(acct account.Account, state State, now time.Time) *Session {
	s := NewSession(now)
	s.Account = acct
	s.advance(state, now)
	return s
}

// Advance moves the session to the next state. Callers outside this package
// use it for the linking stages.
func (s *Session) Advance(to State, now time.Time) {
	s.advance(to, now)
}

func (s *Session) advance(to State, now time.Time) {
	s.History = append(s.History, Transition{From: s.State, To: to, At: now})
	s.State = to
}

// Fail records err as the terminal failure of the current stage.
func (s *Session) Fail(err error, now time.Time) {
	s.FailedStage = s.State
	s.Err = err
	s.advance(StateFailed, now)
}

// Reopen leaves the Failed state so a stage can be retried, e.g. after the
// user chose to try again with a new captcha token.
func (s *Session) Reopen(to State, now time.Time) error {
	if s.State != StateFailed {
		return fmt.Errorf("session is %s, not Failed", s.State)
	}
	s.Err = nil
	s.advance(to, now)
	return nil
}

// Path returns every state entered, starting with AwaitingAccount.
func (s *Session) Path() []State {
	path := make([]State, 0, len(s.History)+1)
	path = append(path, StateAwaitingAccount)
	for _, t := range s.History {
		path = append(path, t.To)
	}
	return path
}

// Visited reports whether the session ever entered state.
func (s *Session) Visited(state State) bool {
	return slices.Contains(s.Path(), state)
}
