package exec_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	btwdexec "github.com/btwd/btwd/internal/exec"
	"github.com/btwd/btwd/internal/registry"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T, body string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	r, err := registry.Load(path)
	require.NoError(t, err)
	return r
}

const safeCommand = `
commands:
  - id: say_hello
    argv_template: ["echo", "hello"]
    dangerous: false
`

const dangerousCommand = `
commands:
  - id: shutdown
    argv_template: ["true"]
    dangerous: true
`

func TestDryRunNeverSpawns(t *testing.T) {
	reg := loadRegistry(t, safeCommand)
	ex := btwdexec.New(reg, btwdexec.Config{DryRun: true})

	outcome, err := ex.Execute("say_hello", registry.TypedBindings{})
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeDryRun, outcome.Kind)
	require.Equal(t, []string{"echo", "hello"}, outcome.Argv)
}

func TestUnknownCommandIsReported(t *testing.T) {
	reg := loadRegistry(t, safeCommand)
	ex := btwdexec.New(reg, btwdexec.Config{DryRun: true})

	outcome, err := ex.Execute("does_not_exist", registry.TypedBindings{})
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeUnknownCommand, outcome.Kind)
}

func TestDangerousCommandRequiresConfirmation(t *testing.T) {
	reg := loadRegistry(t, dangerousCommand)
	var helperCalled bool
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun: true,
		Helper: func(requestID, title, body string) error {
			helperCalled = true
			require.NotEmpty(t, requestID)
			return nil
		},
	})

	outcome, err := ex.Execute("shutdown", registry.TypedBindings{})
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeAwaitingConfirmation, outcome.Kind)
	require.True(t, helperCalled)
	require.NotEmpty(t, outcome.RequestID)

	_, hasPending := ex.PendingDeadline()
	require.True(t, hasPending)
}

func TestAffirmativeReplyDispatchesAsDryRun(t *testing.T) {
	reg := loadRegistry(t, dangerousCommand)
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun: true,
		Helper: func(requestID, title, body string) error { return nil },
	})

	_, err := ex.Execute("shutdown", registry.TypedBindings{})
	require.NoError(t, err)

	outcome, err := ex.Resolve(true, false)
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeDryRun, outcome.Kind)
}

func TestTimeoutCancelsPendingConfirmation(t *testing.T) {
	reg := loadRegistry(t, dangerousCommand)
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun:              true,
		Helper:              func(requestID, title, body string) error { return nil },
		ConfirmationTimeout: time.Millisecond,
	})

	_, err := ex.Execute("shutdown", registry.TypedBindings{})
	require.NoError(t, err)

	outcome, err := ex.Resolve(true, true)
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeCancelled, outcome.Kind)
}

func TestSecondDangerousCommandCancelsTheFirstPending(t *testing.T) {
	reg := loadRegistry(t, `
commands:
  - id: a
    argv_template: ["true"]
    dangerous: true
  - id: b
    argv_template: ["false"]
    dangerous: true
`)
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun: true,
		Helper: func(requestID, title, body string) error { return nil },
	})

	first, err := ex.Execute("a", registry.TypedBindings{})
	require.NoError(t, err)
	_, err = ex.Execute("b", registry.TypedBindings{})
	require.NoError(t, err)

	deadline, ok := ex.PendingDeadline()
	require.True(t, ok)
	require.False(t, deadline.IsZero())

	// Resolving now must resolve "b", not the superseded "a".
	outcome, err := ex.Resolve(true, false)
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeDryRun, outcome.Kind)
	require.Equal(t, []string{"false"}, outcome.Argv)
	require.NotEqual(t, first.RequestID, "")
}

func TestSpoolReplyDispatchesAsDryRun(t *testing.T) {
	reg := loadRegistry(t, dangerousCommand)
	replies := make(chan string, 1)
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun:       true,
		Helper:       func(requestID, title, body string) error { return nil },
		PollSpool:    func(requestID string) (string, bool) { return <-replies, true },
		PollInterval: time.Millisecond,
	})

	_, err := ex.Execute("shutdown", registry.TypedBindings{})
	require.NoError(t, err)

	replies <- "yes"

	select {
	case outcome := <-ex.Replies():
		require.Equal(t, btwdexec.OutcomeDryRun, outcome.Kind)
	case <-time.After(time.Second):
		t.Fatal("spool reply was never delivered")
	}

	_, hasPending := ex.PendingDeadline()
	require.False(t, hasPending)
}

func TestStaleSpoolReplyIsDiscardedAfterSupersedingCommand(t *testing.T) {
	reg := loadRegistry(t, `
commands:
  - id: a
    argv_template: ["true"]
    dangerous: true
  - id: b
    argv_template: ["true"]
    dangerous: true
`)
	var mu sync.Mutex
	var releasedID string
	ex := btwdexec.New(reg, btwdexec.Config{
		DryRun: true,
		Helper: func(requestID, title, body string) error { return nil },
		PollSpool: func(requestID string) (string, bool) {
			mu.Lock()
			defer mu.Unlock()
			if requestID == releasedID {
				return "yes", true
			}
			return "", false
		},
		PollInterval: time.Millisecond,
	})

	first, err := ex.Execute("a", registry.TypedBindings{})
	require.NoError(t, err)
	_, err = ex.Execute("b", registry.TypedBindings{})
	require.NoError(t, err)

	mu.Lock()
	releasedID = first.RequestID
	mu.Unlock()

	select {
	case outcome := <-ex.Replies():
		t.Fatalf("stale reply for superseded request must not surface, got %v", outcome)
	case <-time.After(50 * time.Millisecond):
	}

	_, hasPending := ex.PendingDeadline()
	require.True(t, hasPending)
}

func TestRealSpawnRunsAndReturnsPID(t *testing.T) {
	reg := loadRegistry(t, safeCommand)
	ex := btwdexec.New(reg, btwdexec.Config{DryRun: false})

	outcome, err := ex.Execute("say_hello", registry.TypedBindings{})
	require.NoError(t, err)
	require.Equal(t, btwdexec.OutcomeSpawned, outcome.Kind)
	require.Greater(t, outcome.PID, 0)
}
