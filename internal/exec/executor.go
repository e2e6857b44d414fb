// Package exec implements the Safe Executor: argv substitution, the
// confirmation protocol for dangerous commands, and a fire-and-forget
// child process spawn. No shell is ever involved.
package exec

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/btwd/btwd/internal/btwderr"
	"github.com/btwd/btwd/internal/registry"
	"github.com/google/uuid"
)

// OutcomeKind tags what Execute produced.
type OutcomeKind string

const (
	OutcomeSpawned              OutcomeKind = "spawned"
	OutcomeDryRun               OutcomeKind = "dry_run"
	OutcomeAwaitingConfirmation OutcomeKind = "awaiting_confirmation"
	OutcomeCancelled            OutcomeKind = "cancelled"
	OutcomeUnknownCommand       OutcomeKind = "unknown_command"
)

// Outcome is the result of one Execute call.
type Outcome struct {
	Kind      OutcomeKind
	PID       int
	Argv      []string
	RequestID string
}

// ConfirmationHelper invokes the external confirmation program (§6): it
// receives {request_id, title, body} and is responsible for prompting the
// user and writing the spool file; the executor only polls for the
// result.
type ConfirmationHelper func(requestID, title, body string) error

// SpoolReader polls the well-known spool file for a confirmation reply.
// Returns ("", false) while no reply has arrived yet.
type SpoolReader func(requestID string) (reply string, ok bool)

// Config tunes the executor's confirmation protocol.
type Config struct {
	ConfirmationTimeout time.Duration // default 10s
	DryRun              bool
	Helper              ConfirmationHelper
	PollSpool           SpoolReader
	PollInterval        time.Duration // default 150ms
}

// pendingConfirmation mirrors spec.md §3's Pending Confirmation.
type pendingConfirmation struct {
	requestID string
	commandID string
	bindings  registry.TypedBindings
	deadline  time.Time
}

// Executor serialises execution: at most one in flight, at most one
// pending confirmation, both owned exclusively by the orchestrator's
// single consumer thread (guarded here defensively with a mutex). The
// spool-polling goroutine spawned per pending confirmation is the one
// piece of auxiliary I/O spec.md §5 permits off that thread; it only
// ever delivers a result back onto replies, never touches state
// directly.
type Executor struct {
	registry *registry.Registry
	cfg      Config

	mu      sync.Mutex
	pending *pendingConfirmation

	replies chan Outcome
}

// New constructs an Executor bound to reg.
func New(reg *registry.Registry, cfg Config) *Executor {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 150 * time.Millisecond
	}
	return &Executor{registry: reg, cfg: cfg, replies: make(chan Outcome, 1)}
}

// Replies delivers an Outcome whenever the spool poller resolves a
// pending confirmation before its deadline (the deadline itself is
// handled separately by the orchestrator's own timer against
// PendingDeadline). The orchestrator selects on this alongside the frame
// channel and the confirmation timer.
func (e *Executor) Replies() <-chan Outcome {
	return e.replies
}

// Execute runs the protocol from spec.md §4.G for one resolved command
// intent. typedBindings must already have passed registry validation.
func (e *Executor) Execute(commandID string, typedBindings registry.TypedBindings) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	descriptor, ok := e.registry.Get(commandID)
	if !ok {
		return Outcome{Kind: OutcomeUnknownCommand}, nil
	}

	argv, err := registry.BuildArgv(descriptor, typedBindings)
	if err != nil {
		return Outcome{}, fmt.Errorf("exec: building argv: %w", err)
	}

	if descriptor.Dangerous {
		return e.beginConfirmation(descriptor.ID, typedBindings, argv)
	}

	return e.dispatch(descriptor, argv)
}

func (e *Executor) beginConfirmation(commandID string, bindings registry.TypedBindings, argv []string) (Outcome, error) {
	requestID := uuid.NewString()

	title := "Confirm action"
	body := fmt.Sprintf("Run %q?", commandID)
	if e.cfg.Helper != nil {
		if err := e.cfg.Helper(requestID, title, body); err != nil {
			return Outcome{}, fmt.Errorf("exec: invoking confirmation helper: %w", err)
		}
	}

	// A second dangerous command while one is pending cancels the first
	// (spec.md §3): simply overwrite e.pending. The earlier request's
	// poller (if still running) keeps polling its own spool file until its
	// deadline; if a reply arrives, resolveSpoolReply sees the requestID
	// mismatch and discards it as stale.
	deadline := time.Now().Add(e.cfg.ConfirmationTimeout)
	e.pending = &pendingConfirmation{
		requestID: requestID,
		commandID: commandID,
		bindings:  bindings,
		deadline:  deadline,
	}

	if e.cfg.PollSpool != nil {
		go e.pollSpool(requestID, deadline)
	}

	return Outcome{Kind: OutcomeAwaitingConfirmation, RequestID: requestID, Argv: argv}, nil
}

// pollSpool is the auxiliary-I/O goroutine spec.md §5 calls out
// separately from the orchestrator's single consumer thread: it polls
// the confirmation helper's spool file (§6) until a reply appears or the
// deadline passes, then hands any reply to resolveSpoolReply.
func (e *Executor) pollSpool(requestID string, deadline time.Time) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if reply, ok := e.cfg.PollSpool(requestID); ok {
			e.resolveSpoolReply(requestID, reply)
			return
		}
		if !time.Now().Before(deadline) {
			return
		}
		<-ticker.C
	}
}

// resolveSpoolReply dispatches a spool reply for requestID, discarding it
// if the pending confirmation it names is no longer the current one
// (spec.md §5: "stale replies are discarded").
func (e *Executor) resolveSpoolReply(requestID, reply string) {
	e.mu.Lock()
	if e.pending == nil || e.pending.requestID != requestID {
		e.mu.Unlock()
		return
	}
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	outcome := Outcome{Kind: OutcomeCancelled}
	if reply == "yes" {
		if descriptor, ok := e.registry.Get(pending.commandID); !ok {
			outcome = Outcome{Kind: OutcomeUnknownCommand}
		} else if argv, err := registry.BuildArgv(descriptor, pending.bindings); err == nil {
			if dispatched, err := e.dispatch(descriptor, argv); err == nil {
				outcome = dispatched
			}
		}
	}

	select {
	case e.replies <- outcome:
	default:
	}
}

// Resolve is called by the orchestrator when the AwaitingConfirmation
// deadline elapses, or (in the unlikely event the spool poller hasn't
// already consumed it) a ConfirmationReply intent arrives by some other
// route. affirmative is ignored when timedOut is true.
func (e *Executor) Resolve(affirmative bool, timedOut bool) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return Outcome{Kind: OutcomeCancelled}, nil
	}
	pending := e.pending
	e.pending = nil

	if timedOut || time.Now().After(pending.deadline) {
		return Outcome{Kind: OutcomeCancelled}, nil
	}
	if !affirmative {
		return Outcome{Kind: OutcomeCancelled}, nil
	}

	descriptor, ok := e.registry.Get(pending.commandID)
	if !ok {
		return Outcome{Kind: OutcomeUnknownCommand}, nil
	}
	argv, err := registry.BuildArgv(descriptor, pending.bindings)
	if err != nil {
		return Outcome{}, fmt.Errorf("exec: building argv: %w", err)
	}
	return e.dispatch(descriptor, argv)
}

// PendingDeadline reports whether a confirmation is outstanding and, if
// so, its deadline, for the orchestrator's timeout timer.
func (e *Executor) PendingDeadline() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return time.Time{}, false
	}
	return e.pending.deadline, true
}

// minimalEnv is the inherited-environment allowlist passed to spawned
// children: enough to run graphical/audio tooling, nothing credential
// bearing.
var minimalEnv = []string{"PATH", "HOME", "USER", "LANG", "XDG_RUNTIME_DIR", "DISPLAY", "WAYLAND_DISPLAY", "PULSE_SERVER"}

func (e *Executor) dispatch(descriptor *registry.Descriptor, argv []string) (Outcome, error) {
	if e.cfg.DryRun {
		return Outcome{Kind: OutcomeDryRun, Argv: argv}, nil
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = filteredEnv()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return Outcome{}, btwderr.New(btwderr.SpawnFailure, err)
	}

	// Fire-and-forget: reap the child without blocking the caller so a
	// long- or short-lived process never leaves a zombie behind.
	go func() { _ = cmd.Wait() }()

	return Outcome{Kind: OutcomeSpawned, PID: cmd.Process.Pid, Argv: argv}, nil
}

func filteredEnv() []string {
	env := make([]string, 0, len(minimalEnv))
	for _, key := range minimalEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}
