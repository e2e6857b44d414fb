// Package orchestrator implements the pipeline state machine from
// spec.md §4.I: it owns the single consumer thread that runs the Wake
// Detector, Utterance Capturer, ASR Client, Intent Router, Safe Executor,
// and Answer Path as one sequential pipeline driven off the Audio
// Source's frame channel.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/btwd/btwd/internal/answer"
	"github.com/btwd/btwd/internal/asr"
	"github.com/btwd/btwd/internal/audio"
	btwdexec "github.com/btwd/btwd/internal/exec"
	"github.com/btwd/btwd/internal/intent"
	"github.com/btwd/btwd/internal/osd"
	"github.com/btwd/btwd/internal/player"
	"github.com/btwd/btwd/internal/tts"
	"github.com/btwd/btwd/internal/utterance"
	"github.com/btwd/btwd/internal/wake"
)

// State is one of spec.md §4.I's seven states.
type State string

const (
	StateIdle                 State = "idle"
	StateCapturing            State = "capturing"
	StateTranscribing         State = "transcribing"
	StateRouting              State = "routing"
	StateExecuting            State = "executing"
	StateAnswering            State = "answering"
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// Config wires every collaborator component into the state machine.
// Notifier, TTSClient, and Player are optional: when nil, the
// corresponding sink is simply skipped (speech_output.enabled / ui.osd
// false, or the sink could not be set up at startup).
type Config struct {
	AudioSource *audio.Source
	WakeDetect  *wake.Detector
	Capturer    *utterance.Capturer
	ASRClient   *asr.Client
	Router      *intent.Router
	Executor    *btwdexec.Executor
	AnswerPath  *answer.Path

	Notifier  *osd.Notifier
	TTSClient *tts.Client
	Player    *player.Player

	OSDEnabled           bool
	SpeechOutputEnabled  bool
	ListeningNotification bool
	OSDTimeout           time.Duration
}

// Orchestrator runs Config's components as the composed state machine.
type Orchestrator struct {
	cfg Config

	state               State
	confirmationPending bool
	droppedWakeEvents   uint64
}

// New constructs an Orchestrator in the initial Idle state.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, state: StateIdle}
}

// State reports the current state, for diagnostics and tests.
func (o *Orchestrator) State() State {
	return o.state
}

// Run drives the pipeline until ctx is cancelled or the frame channel
// closes (audio device shutdown).
func (o *Orchestrator) Run(ctx context.Context) error {
	frames := o.cfg.AudioSource.Frames()

	var replies <-chan btwdexec.Outcome
	if o.cfg.Executor != nil {
		replies = o.cfg.Executor.Replies()
	}

	var confirmationTimer *time.Timer
	defer func() {
		if confirmationTimer != nil {
			confirmationTimer.Stop()
		}
	}()

	for {
		var timeoutC <-chan time.Time
		if o.confirmationPending {
			if deadline, ok := o.cfg.Executor.PendingDeadline(); ok {
				if confirmationTimer == nil {
					confirmationTimer = time.NewTimer(time.Until(deadline))
				}
				timeoutC = confirmationTimer.C
			}
		} else if confirmationTimer != nil {
			confirmationTimer.Stop()
			confirmationTimer = nil
		}

		select {
		case <-ctx.Done():
			return nil

		case <-timeoutC:
			confirmationTimer = nil
			o.confirmationPending = false
			outcome, err := o.cfg.Executor.Resolve(false, true)
			if err != nil {
				log.Printf("executor: resolving timed-out confirmation: %v", err)
			}
			o.logOutcome(outcome)
			o.state = StateIdle

		case outcome := <-replies:
			// A Yes/No click on the desktop notification resolved via the
			// confirmation spool file (spec.md §6), ahead of the deadline.
			o.confirmationPending = false
			o.logOutcome(outcome)
			o.state = StateIdle

		case f, ok := <-frames:
			if !ok {
				return nil
			}
			o.handleFrame(ctx, f)
		}
	}
}

func (o *Orchestrator) handleFrame(ctx context.Context, f audio.Frame) {
	switch o.state {
	case StateIdle, StateAwaitingConfirmation:
		o.cfg.WakeDetect.AcceptFrame(f.Samples)
		o.cfg.Capturer.Observe(f)

		select {
		case event := <-o.cfg.WakeDetect.Events():
			o.onWake(ctx, event)
		default:
		}

	case StateCapturing:
		done, result, err := o.cfg.Capturer.Feed(f)
		if !done {
			return
		}
		if err != nil {
			if err == utterance.ErrNoSpeech {
				log.Println("capture: no speech detected, returning to idle")
			} else {
				log.Printf("capture: aborted: %v", err)
			}
			o.state = boolToState(o.confirmationPending)
			return
		}
		o.runPipeline(ctx, result)

	default:
		// Frames arriving during Transcribing/Routing/Executing/Answering
		// are dropped: those states only exist transiently inside
		// runPipeline, which runs synchronously on this same goroutine, so
		// in practice this branch is unreachable during steady-state
		// operation.
	}
}

// onWake admits a detected keyword only from Idle. Wake events arriving
// during AwaitingConfirmation (or any other non-Idle state) are dropped
// and counted, per spec.md §5 — a pending confirmation is resolved only
// by the confirmation spool file or its deadline, never by a fresh
// wake+capture cycle.
func (o *Orchestrator) onWake(ctx context.Context, event wake.Event) {
	if o.state != StateIdle {
		o.droppedWakeEvents++
		return
	}
	log.Printf("🎙️ wake word detected: %q", event.Keyword)
	o.cfg.Capturer.Begin()
	o.state = StateCapturing
}

// runPipeline executes Transcribing → Routing → {Executing, Answering,
// AwaitingConfirmation} synchronously, then returns the orchestrator to
// Idle (or back to AwaitingConfirmation if a new dangerous command
// superseded an outstanding one).
func (o *Orchestrator) runPipeline(ctx context.Context, utt *utterance.Result) {
	o.state = StateTranscribing
	transcript, err := o.cfg.ASRClient.Transcribe(ctx, utt.WAV)
	if err != nil {
		if err == asr.ErrNoSpeech {
			log.Println("asr: empty transcript, returning to idle")
		} else {
			log.Printf("asr: failed: %v", err)
			o.notify("Sorry, I couldn't reach speech recognition.")
		}
		o.state = boolToState(o.confirmationPending)
		return
	}
	log.Printf("🧠 transcript: %q", transcript)

	o.state = StateRouting
	resolved, err := o.cfg.Router.Route(ctx, transcript, o.confirmationPending)
	if err != nil {
		log.Printf("❌ intent: routing failed: %v", err)
		o.notify("Sorry, something went wrong understanding that.")
		o.state = boolToState(o.confirmationPending)
		return
	}

	switch resolved.Kind {
	case intent.KindConfirmationReply:
		o.confirmationPending = false
		o.state = StateExecuting
		outcome, err := o.cfg.Executor.Resolve(resolved.Affirmative, false)
		if err != nil {
			log.Printf("exec: resolving confirmation: %v", err)
		}
		o.logOutcome(outcome)
		o.state = StateIdle

	case intent.KindCommand:
		o.state = StateExecuting
		outcome, err := o.cfg.Executor.Execute(resolved.CommandID, resolved.Bindings)
		if err != nil {
			log.Printf("exec: %v", err)
			o.notify("Sorry, I couldn't run that command.")
			o.state = StateIdle
			return
		}
		o.logOutcome(outcome)
		if outcome.Kind == btwdexec.OutcomeAwaitingConfirmation {
			o.confirmationPending = true
			o.state = StateAwaitingConfirmation
			return
		}
		o.state = StateIdle

	case intent.KindQuestion:
		o.state = StateAnswering
		ans := o.cfg.AnswerPath.Answer(ctx, resolved.QuestionText)
		o.deliverAnswer(ctx, ans)
		o.state = StateIdle

	default: // KindUnknown
		log.Printf("intent: unknown (%s)", resolved.Diagnostic)
		o.notify("Sorry, I didn't understand that.")
		o.state = boolToState(o.confirmationPending)
	}
}

func boolToState(confirmationPending bool) State {
	if confirmationPending {
		return StateAwaitingConfirmation
	}
	return StateIdle
}

func (o *Orchestrator) logOutcome(outcome btwdexec.Outcome) {
	switch outcome.Kind {
	case btwdexec.OutcomeSpawned:
		log.Printf("exec: spawned pid=%d argv=%v", outcome.PID, outcome.Argv)
	case btwdexec.OutcomeDryRun:
		log.Printf("exec: dry-run argv=%v", outcome.Argv)
	case btwdexec.OutcomeAwaitingConfirmation:
		log.Printf("exec: awaiting confirmation request_id=%s", outcome.RequestID)
	case btwdexec.OutcomeCancelled:
		log.Println("exec: cancelled")
	case btwdexec.OutcomeUnknownCommand:
		log.Println("exec: unknown command")
	}
}

// deliverAnswer fans the Answer out to OSD and TTS in parallel. TTS never
// receives the trailing source marker (spec.md §4.H.5).
func (o *Orchestrator) deliverAnswer(ctx context.Context, a answer.Answer) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if o.cfg.OSDEnabled && o.cfg.Notifier != nil {
			if err := o.cfg.Notifier.Notify("btwd", a.DisplayText, o.cfg.OSDTimeout); err != nil {
				log.Printf("osd: notify failed: %v", err)
			}
		}
	}()

	o.speak(ctx, a.SpokenText)
	<-done
}

func (o *Orchestrator) notify(message string) {
	if o.cfg.OSDEnabled && o.cfg.Notifier != nil {
		if err := o.cfg.Notifier.Notify("btwd", message, o.cfg.OSDTimeout); err != nil {
			log.Printf("osd: notify failed: %v", err)
		}
	}
	o.speak(context.Background(), message)
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if !o.cfg.SpeechOutputEnabled || o.cfg.TTSClient == nil || o.cfg.Player == nil {
		return
	}
	wavBytes, err := o.cfg.TTSClient.Synthesize(ctx, text)
	if err != nil {
		log.Printf("tts: synthesize failed: %v", err)
		return
	}
	if err := o.cfg.Player.Play(ctx, wavBytes); err != nil {
		log.Printf("player: playback failed: %v", err)
	}
}

// DroppedWakeEvents reports how many wake events were suppressed because
// a confirmation was pending (spec.md §5). The wake detector is fed frames
// only in Idle and AwaitingConfirmation, so no wake event is detected, and
// none is counted, while Capturing or in any later pipeline state.
func (o *Orchestrator) DroppedWakeEvents() uint64 {
	return o.droppedWakeEvents
}

// String satisfies fmt.Stringer for State.
func (s State) String() string { return string(s) }
