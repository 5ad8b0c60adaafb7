package backend_test

import (
	"context"
	"testing"

	"github.com/Iron-Ham/signal-setup/internal/backend"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/testutil"
)

func TestExecuteRecovering(t *testing.T) {
	tests := []struct {
		name         string
		replies      []testutil.Reply
		recoverErr   error
		nilRecoverer bool
		wantCalls    int
		wantRecovers int
		wantErr      bool
		wantClass    errors.FailureClass
	}{
		{
			name:      "success needs no recovery",
			replies:   []testutil.Reply{testutil.OK("")},
			wantCalls: 1,
		},
		{
			name: "unreachable then recovered",
			replies: []testutil.Reply{
				testutil.Fail(backend.OpListDevices, errors.ClassUnreachable),
				testutil.OK(""),
			},
			wantCalls:    2,
			wantRecovers: 1,
		},
		{
			name: "still unreachable after recovery",
			replies: []testutil.Reply{
				testutil.Fail(backend.OpListDevices, errors.ClassUnreachable),
				testutil.Fail(backend.OpListDevices, errors.ClassUnreachable),
			},
			wantCalls:    2,
			wantRecovers: 1,
			wantErr:      true,
			wantClass:    errors.ClassUnreachable,
		},
		{
			name: "recovery fails",
			replies: []testutil.Reply{
				testutil.Fail(backend.OpListDevices, errors.ClassUnreachable),
			},
			recoverErr:   errors.ErrRuntimeStartFailed,
			wantCalls:    1,
			wantRecovers: 1,
			wantErr:      true,
			wantClass:    errors.ClassUnreachable,
		},
		{
			name: "rejected is not recovered",
			replies: []testutil.Reply{
				testutil.Fail(backend.OpListDevices, errors.ClassRejected),
			},
			wantCalls: 1,
			wantErr:   true,
			wantClass: errors.ClassRejected,
		},
		{
			name: "no recoverer",
			replies: []testutil.Reply{
				testutil.Fail(backend.OpListDevices, errors.ClassUnreachable),
			},
			nilRecoverer: true,
			wantCalls:    1,
			wantErr:      true,
			wantClass:    errors.ClassUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := testutil.NewScriptedExecutor().On(backend.OpListDevices, tt.replies...)
			rec := &testutil.CountingRecoverer{Err: tt.recoverErr}

			var recoverer backend.Recoverer = rec
			if tt.nilRecoverer {
				recoverer = nil
			}

			_, err := backend.ExecuteRecovering(context.Background(), executor, recoverer, testAccount, backend.ListDevices())
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := executor.Count(backend.OpListDevices); got != tt.wantCalls {
				t.Errorf("executions = %d, want %d", got, tt.wantCalls)
			}
			if rec.Calls() != tt.wantRecovers {
				t.Errorf("recoveries = %d, want %d", rec.Calls(), tt.wantRecovers)
			}
			if tt.wantErr {
				if class, _ := errors.ClassOf(err); class != tt.wantClass {
					t.Errorf("class = %v, want %v", class, tt.wantClass)
				}
			}
			if tt.recoverErr != nil && !errors.Is(err, tt.recoverErr) {
				t.Errorf("error should carry the recovery failure")
			}
		})
	}
}

func TestRecoverFunc(t *testing.T) {
	called := false
	rec := backend.RecoverFunc(func(ctx context.Context) error {
		called = true
		return nil
	})
	if err := rec.Recover(context.Background()); err != nil || !called {
		t.Errorf("RecoverFunc did not run: %v", err)
	}
}
