// Package intent implements the deterministic transcript → intent
// mapping. A classifier LLM proposes a structured guess, but its output
// is never trusted directly: every proposed command id and binding is
// re-validated against the command registry before it can reach the
// executor.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/btwd/btwd/internal/llm"
	"github.com/btwd/btwd/internal/registry"
)

// Kind tags the resolved intent.
type Kind string

const (
	KindCommand            Kind = "command"
	KindQuestion           Kind = "question"
	KindConfirmationReply  Kind = "confirmation_reply"
	KindUnknown            Kind = "unknown"
)

// Intent is the tagged variant the orchestrator branches on.
type Intent struct {
	Kind Kind

	CommandID string
	Bindings  registry.TypedBindings

	QuestionText string

	Affirmative bool

	// Diagnostic explains why Kind is Unknown, for logging only.
	Diagnostic string
}

var affirmativeWords = map[string]bool{
	"yes": true, "yeah": true, "confirm": true, "do it": true,
}

var negativeWords = map[string]bool{
	"no": true, "cancel": true, "stop": true,
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// Router resolves a transcript into an Intent, given whether a
// confirmation is currently pending.
type Router struct {
	registry   *registry.Registry
	classifier llm.Provider
}

// New constructs a Router bound to a registry and a classifier backend.
func New(reg *registry.Registry, classifier llm.Provider) *Router {
	return &Router{registry: reg, classifier: classifier}
}

// Route implements the resolution order from spec.md §4.E: confirmation
// reply short-circuit first, then the classifier, with every classifier
// proposal re-validated against the registry before it is trusted.
func (r *Router) Route(ctx context.Context, transcript string, confirmationPending bool) (Intent, error) {
	normalized := strings.ToLower(strings.TrimSpace(transcript))
	normalized = strings.TrimSpace(punctuation.ReplaceAllString(normalized, ""))

	if confirmationPending {
		if affirmativeWords[normalized] {
			return Intent{Kind: KindConfirmationReply, Affirmative: true}, nil
		}
		if negativeWords[normalized] {
			return Intent{Kind: KindConfirmationReply, Affirmative: false}, nil
		}
	}

	proposal, err := r.classify(ctx, transcript)
	if err != nil {
		return Intent{}, err
	}

	switch proposal.Type {
	case "question":
		text := strings.TrimSpace(proposal.Text)
		if text == "" {
			return Intent{Kind: KindUnknown, Diagnostic: "classifier returned an empty question"}, nil
		}
		return Intent{Kind: KindQuestion, QuestionText: text}, nil

	case "command":
		descriptor, ok := r.registry.Get(proposal.ID)
		if !ok {
			return Intent{Kind: KindUnknown, Diagnostic: fmt.Sprintf("classifier proposed unknown command id %q", proposal.ID)}, nil
		}
		typed, err := r.registry.ValidateBindings(descriptor.ID, proposal.Bindings)
		if err != nil {
			return Intent{Kind: KindUnknown, Diagnostic: fmt.Sprintf("binding validation failed: %v", err)}, nil
		}
		return Intent{Kind: KindCommand, CommandID: descriptor.ID, Bindings: typed}, nil

	default:
		return Intent{Kind: KindUnknown, Diagnostic: "classifier returned an unrecognised proposal"}, nil
	}
}

// classifierProposal is the structured JSON shape the classifier must
// emit, validated only for shape here — semantic validation happens in
// Route against the registry.
type classifierProposal struct {
	Type     string         `json:"type"` // "command" | "question" | "unknown"
	ID       string         `json:"id,omitempty"`
	Bindings map[string]any `json:"bindings,omitempty"`
	Text     string         `json:"text,omitempty"`
}

const classifierSystemPrompt = `You are an intent classifier for a voice assistant. You are given a
transcript and a list of allowed commands with their parameters. Reply
with a single JSON object and nothing else, one of:
  {"type":"command","id":"<command id>","bindings":{"<param>":<value>,...}}
  {"type":"question","text":"<the question, restated if needed>"}
  {"type":"unknown"}
Only propose a command id from the provided list. Never invent a command
or parameter. If the transcript does not clearly match a listed command
or ask a factual question, reply {"type":"unknown"}.`

func (r *Router) classify(ctx context.Context, transcript string) (classifierProposal, error) {
	userPrompt := buildUserPrompt(transcript, r.registry.List())

	raw, err := r.classifier.Complete(ctx, classifierSystemPrompt, userPrompt)
	if err != nil {
		return classifierProposal{}, fmt.Errorf("intent: classifier call failed: %w", err)
	}

	raw = extractJSON(raw)
	var proposal classifierProposal
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		// A malformed reply degrades to Unknown rather than propagating an
		// LlmFailure: the classifier is a hint, not a dependency the
		// pipeline needs to complete.
		return classifierProposal{Type: "unknown"}, nil
	}
	return proposal, nil
}

func buildUserPrompt(transcript string, commands []*registry.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript: %q\n\nAllowed commands:\n", transcript)
	for _, c := range commands {
		fmt.Fprintf(&b, "- id=%q description=%q parameters=[", c.ID, c.Description)
		for i, p := range c.Parameters {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s:%s", p.Name, p.Kind)
		}
		b.WriteString("]\n")
	}
	return b.String()
}

// extractJSON trims any leading/trailing prose a model adds despite
// instructions, keeping only the outermost JSON object.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
