// Package answer implements the Answer Path (spec.md §4.H): search and
// summarize, producing an Answer whose display text carries the trailing
// source marker and whose spoken text does not. Delivering the Answer to
// OSD and TTS is done by the orchestrator, not by this package.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/btwd/btwd/internal/llm"
	"github.com/btwd/btwd/internal/search"
)

// Answer is the spec.md §3 Answer tagged type.
type Answer struct {
	SpokenText  string
	DisplayText string
	SourceTag   string
}

const summarizerSystemPrompt = `You answer a user's spoken question using only the provided search
snippets. Produce a single factual paragraph, no more than four
sentences, suitable to be read aloud. Do not mention the snippets or
sources explicitly; do not add caveats about your own knowledge.`

// Config tunes the Answer Path.
type Config struct {
	SearchEnabled   bool
	SearchProvider  string // e.g. "duckduckgo", surfaced in the source marker
	SummarizerName  string // e.g. "ollama" or "openai", surfaced in the source marker
	SearchTimeout   time.Duration
}

// Path composes a search client and a summarizer into the Answer Path.
type Path struct {
	cfg        Config
	searcher   *search.Client
	summarizer llm.Provider
}

// New constructs a Path. searcher is nil when search is disabled or no
// search credential is configured (spec.md §4.H.1); in that case Answer
// always returns the short "I don't know" fallback.
func New(cfg Config, searcher *search.Client, summarizer llm.Provider) *Path {
	return &Path{cfg: cfg, searcher: searcher, summarizer: summarizer}
}

const iDontKnow = "I don't know."

// Answer produces a response to question, per the four-step protocol in
// spec.md §4.H.
func (p *Path) Answer(ctx context.Context, question string) Answer {
	if !p.cfg.SearchEnabled || p.searcher == nil {
		return Answer{SpokenText: iDontKnow, DisplayText: iDontKnow}
	}

	results, err := p.searcher.Search(ctx, question)
	if err != nil || len(results) == 0 {
		return Answer{SpokenText: iDontKnow, DisplayText: iDontKnow}
	}

	summary, err := p.summarize(ctx, question, results)
	if err != nil {
		return Answer{SpokenText: iDontKnow, DisplayText: iDontKnow}
	}

	sourceTag := fmt.Sprintf("%s/%s", p.cfg.SearchProvider, p.cfg.SummarizerName)
	return Answer{
		SpokenText:  summary,
		DisplayText: summary + "\n:source: " + sourceTag,
		SourceTag:   sourceTag,
	}
}

func (p *Path) summarize(ctx context.Context, question string, results []search.Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSnippets:\n", question)
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
	}

	reply, err := p.summarizer.Complete(ctx, summarizerSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("answer: summarizer call failed: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("answer: summarizer returned an empty reply")
	}
	return reply, nil
}
