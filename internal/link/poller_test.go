package link

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/clock"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/register"
	"github.com/Iron-Ham/signal-setup/internal/screen"
	"github.com/Iron-Ham/signal-setup/internal/testutil"
)

const (
	testAccount = account.Account("+33612345678")
	qrA         = account.QrPayload("sgnl://linkdevice?uuid=aaa&pub_key=AAA")
	qrB         = account.QrPayload("sgnl://linkdevice?uuid=bbb&pub_key=BBB")
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// scriptedSampler returns one scripted round per SampleAll call and repeats
// the last round once exhausted.
type scriptedSampler struct {
	rounds [][]screen.Sample
	errs   []error
	calls  int
}

func (s *scriptedSampler) SampleAll(ctx context.Context) ([]screen.Sample, error) {
	i := min(s.calls, len(s.rounds)-1)
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.rounds[i], err
}

func notFound(n int) []screen.Sample {
	out := make([]screen.Sample, n)
	for i := range out {
		out[i] = screen.Sample{Display: screen.Display{Index: i + 1}}
	}
	return out
}

func found(n, at int, payload account.QrPayload) []screen.Sample {
	out := notFound(n)
	out[at].Found = true
	out[at].Payload = payload
	return out
}

func newPoller(exec backend.Executor, sampler Sampler, clk clock.Clock) *Poller {
	return NewPoller(PollerOptions{Executor: exec, Sampler: sampler, Clock: clk})
}

func linkURIs(calls []testutil.Call) []string {
	var out []string
	for _, c := range calls {
		if c.Request.Op == backend.OpLinkDevice {
			out = append(out, c.Request.Args[1])
		}
	}
	return out
}

// interval=2s, attempts=3, displays [NotFound, NotFound, Found].
func TestPoller_LinksOnThirdIteration(t *testing.T) {
	exec := testutil.NewScriptedExecutor()
	sampler := &scriptedSampler{rounds: [][]screen.Sample{notFound(1), notFound(1), found(1, 0, qrA)}}
	fake := clock.Fake(epoch)

	linked, err := newPoller(exec, sampler, fake).Run(context.Background(), testAccount, 2*time.Second, 3)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Iteration != 3 || linked.Payload != qrA {
		t.Errorf("Run() = %+v, want qrA on iteration 3", linked)
	}
	if got := linkURIs(exec.Calls()); !slices.Equal(got, []string{string(qrA)}) {
		t.Errorf("link requests = %v, want exactly one for qrA", got)
	}
	if got := fake.Sleeps(); !slices.Equal(got, []time.Duration{2 * time.Second, 2 * time.Second}) {
		t.Errorf("sleeps = %v, want [2s 2s]", got)
	}
}

func TestPoller_NeverFoundTimesOut(t *testing.T) {
	for _, attempts := range []int{1, 4, 90} {
		t.Run(fmt.Sprintf("%d attempts", attempts), func(t *testing.T) {
			exec := testutil.NewScriptedExecutor()
			sampler := &scriptedSampler{rounds: [][]screen.Sample{notFound(2)}}
			fake := clock.Fake(epoch)

			_, err := newPoller(exec, sampler, fake).Run(context.Background(), testAccount, 2*time.Second, attempts)
			if !errors.Is(err, errors.ErrLinkTimeout) {
				t.Fatalf("Run() error = %v, want ErrLinkTimeout", err)
			}
			var te *errors.TimeoutError
			if !errors.As(err, &te) {
				t.Errorf("Run() error = %T, want *TimeoutError", err)
			}
			if sampler.calls != attempts {
				t.Errorf("sampled %d times, want %d", sampler.calls, attempts)
			}
			if len(fake.Sleeps()) != attempts-1 {
				t.Errorf("slept %d times, want %d (none after the last iteration)", len(fake.Sleeps()), attempts-1)
			}
			if len(exec.Calls()) != 0 {
				t.Errorf("backend called without a payload: %v", exec.Ops())
			}
		})
	}
}

func TestPoller_FirstFoundDisplayWins(t *testing.T) {
	exec := testutil.NewScriptedExecutor()
	round := notFound(3)
	round[1] = screen.Sample{Display: screen.Display{Index: 2}, Found: true, Payload: qrA}
	round[2] = screen.Sample{Display: screen.Display{Index: 3}, Found: true, Payload: qrB}
	sampler := &scriptedSampler{rounds: [][]screen.Sample{round}}

	linked, err := newPoller(exec, sampler, clock.Fake(epoch)).Run(context.Background(), testAccount, time.Second, 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Iteration != 1 || linked.Display.Index != 2 || linked.Payload != qrA {
		t.Errorf("Run() = %+v, want display 2 on iteration 1", linked)
	}
	if n := len(exec.Calls()); n != 1 {
		t.Errorf("issued %d link requests, want 1", n)
	}
}

func TestPoller_RejectedPayloadNotResubmitted(t *testing.T) {
	exec := testutil.NewScriptedExecutor().
		On(backend.OpLinkDevice, testutil.Fail(backend.OpLinkDevice, errors.ClassRejected))
	sampler := &scriptedSampler{rounds: [][]screen.Sample{
		found(1, 0, qrA),
		found(1, 0, qrA),
		found(1, 0, qrB),
	}}
	var seen []Iteration
	p := newPoller(exec, sampler, clock.Fake(epoch))
	p.OnIteration(func(it Iteration) { seen = append(seen, it) })

	linked, err := p.Run(context.Background(), testAccount, time.Second, 5)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Payload != qrB || linked.Iteration != 3 {
		t.Errorf("Run() = %+v, want qrB on iteration 3", linked)
	}
	if got := linkURIs(exec.Calls()); !slices.Equal(got, []string{string(qrA), string(qrB)}) {
		t.Errorf("link requests = %v, want qrA once then qrB", got)
	}
	if len(seen) != 2 || !errors.IsRejected(seen[0].Err) || seen[1].Submitted != "" {
		t.Errorf("iterations = %+v", seen)
	}
}

func TestPoller_RejectionsConsumeBudget(t *testing.T) {
	exec := testutil.NewScriptedExecutor()
	for range 3 {
		exec.On(backend.OpLinkDevice, testutil.Fail(backend.OpLinkDevice, errors.ClassRejected))
	}
	sampler := &scriptedSampler{rounds: [][]screen.Sample{
		found(1, 0, "sgnl://linkdevice?uuid=1"),
		found(1, 0, "sgnl://linkdevice?uuid=2"),
		found(1, 0, "sgnl://linkdevice?uuid=3"),
	}}

	_, err := newPoller(exec, sampler, clock.Fake(epoch)).Run(context.Background(), testAccount, time.Second, 3)
	if !errors.Is(err, errors.ErrLinkTimeout) {
		t.Fatalf("Run() error = %v, want ErrLinkTimeout", err)
	}
	if sampler.calls != 3 {
		t.Errorf("sampled %d times, want 3", sampler.calls)
	}
}

func TestPoller_TransientLinkFailureKeepsPolling(t *testing.T) {
	exec := testutil.NewScriptedExecutor().
		On(backend.OpLinkDevice, testutil.Fail(backend.OpLinkDevice, errors.ClassTransient))
	sampler := &scriptedSampler{rounds: [][]screen.Sample{found(1, 0, qrA)}}

	linked, err := newPoller(exec, sampler, clock.Fake(epoch)).Run(context.Background(), testAccount, time.Second, 3)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Iteration != 2 {
		t.Errorf("linked on iteration %d, want 2", linked.Iteration)
	}
}

func TestPoller_TerminalFailures(t *testing.T) {
	perm := screen.PermissionError(fmt.Errorf("could not create image from display"))

	tests := []struct {
		name    string
		sampler *scriptedSampler
		exec    *testutil.ScriptedExecutor
		check   func(error) bool
		samples int
	}{
		{
			name:    "permission refused on every display",
			sampler: &scriptedSampler{rounds: [][]screen.Sample{{{Err: perm}, {Err: perm}}}},
			exec:    testutil.NewScriptedExecutor(),
			check:   func(err error) bool { return errors.Is(err, errors.ErrCapturePermission) },
			samples: 1,
		},
		{
			name: "enumeration precondition",
			sampler: &scriptedSampler{
				rounds: [][]screen.Sample{nil},
				errs:   []error{errors.NewPreconditionError("no active display found", "", nil)},
			},
			exec:    testutil.NewScriptedExecutor(),
			check:   errors.IsPrecondition,
			samples: 1,
		},
		{
			name:    "backend unreachable",
			sampler: &scriptedSampler{rounds: [][]screen.Sample{found(1, 0, qrA)}},
			exec: testutil.NewScriptedExecutor().
				On(backend.OpLinkDevice, testutil.Fail(backend.OpLinkDevice, errors.ClassUnreachable)),
			check:   errors.IsUnreachable,
			samples: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPoller(tt.exec, tt.sampler, clock.Fake(epoch)).Run(context.Background(), testAccount, time.Second, 10)
			if !tt.check(err) {
				t.Errorf("Run() error = %v", err)
			}
			if tt.sampler.calls != tt.samples {
				t.Errorf("sampled %d times, want %d", tt.sampler.calls, tt.samples)
			}
		})
	}
}

func TestPoller_OneDisplayRefusedStillPolls(t *testing.T) {
	perm := screen.PermissionError(nil)
	round := []screen.Sample{{Err: perm}, {Display: screen.Display{Index: 2}, Found: true, Payload: qrA}}
	exec := testutil.NewScriptedExecutor()

	linked, err := newPoller(exec, &scriptedSampler{rounds: [][]screen.Sample{round}}, clock.Fake(epoch)).
		Run(context.Background(), testAccount, time.Second, 3)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Display.Index != 2 {
		t.Errorf("linked display %d, want 2", linked.Display.Index)
	}
}

func TestPoller_SamplingErrorIsNotFound(t *testing.T) {
	sampler := &scriptedSampler{
		rounds: [][]screen.Sample{nil, found(1, 0, qrA)},
		errs:   []error{fmt.Errorf("system_profiler hung")},
	}
	linked, err := newPoller(testutil.NewScriptedExecutor(), sampler, clock.Fake(epoch)).
		Run(context.Background(), testAccount, time.Second, 3)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if linked.Iteration != 2 {
		t.Errorf("linked on iteration %d, want 2", linked.Iteration)
	}
}

func TestPoller_RejectsZeroBudget(t *testing.T) {
	p := newPoller(testutil.NewScriptedExecutor(), &scriptedSampler{rounds: [][]screen.Sample{nil}}, clock.Fake(epoch))

	if _, err := p.Run(context.Background(), testAccount, 0, 3); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("interval 0: error = %v", err)
	}
	if _, err := p.Run(context.Background(), testAccount, time.Second, 0); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("attempts 0: error = %v", err)
	}
}

func TestPoller_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := clock.Fake(epoch)
	fake.OnSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	sampler := &scriptedSampler{rounds: [][]screen.Sample{notFound(1)}}

	_, err := newPoller(testutil.NewScriptedExecutor(), sampler, fake).Run(ctx, testAccount, time.Second, 10)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errors.ErrCanceled) {
		t.Fatalf("Run() error = %v, want cancellation", err)
	}
	if sampler.calls != 2 {
		t.Errorf("sampled %d times, want 2", sampler.calls)
	}
}

func TestPoller_Submit(t *testing.T) {
	exec := testutil.NewScriptedExecutor()
	p := newPoller(exec, nil, clock.Fake(epoch))

	if err := p.Submit(context.Background(), testAccount, qrA); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := p.Submit(context.Background(), testAccount, "https://signal.org"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Submit(bad) error = %v", err)
	}
	if got := linkURIs(exec.Calls()); !slices.Equal(got, []string{string(qrA)}) {
		t.Errorf("link requests = %v", got)
	}
}

func TestPoller_LinkSession(t *testing.T) {
	sampler := &scriptedSampler{rounds: [][]screen.Sample{found(1, 0, qrA)}}
	p := newPoller(testutil.NewScriptedExecutor(), sampler, clock.Fake(epoch))

	s := register.ResumeSession(testAccount, register.StateAwaitingLink, epoch)
	if _, err := p.LinkSession(context.Background(), s, time.Second, 3); err != nil {
		t.Fatalf("LinkSession() error = %v", err)
	}
	if !s.Linked || s.State != register.StateLinked {
		t.Errorf("session Linked=%v State=%s", s.Linked, s.State)
	}

	early := register.ResumeSession(testAccount, register.StateRegistering, epoch)
	if _, err := p.LinkSession(context.Background(), early, time.Second, 3); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("LinkSession() from Registering error = %v", err)
	}
}
