package answer_test

import (
	"context"
	"testing"

	"github.com/btwd/btwd/internal/answer"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	reply string
	err   error
}

func (f *fakeSummarizer) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.reply, f.err
}
func (f *fakeSummarizer) HealthCheck(ctx context.Context) error { return nil }

func TestAnswerWithSearchDisabledReturnsIDontKnow(t *testing.T) {
	p := answer.New(answer.Config{SearchEnabled: false}, nil, &fakeSummarizer{reply: "should not be used"})
	got := p.Answer(context.Background(), "what time is it")
	require.Equal(t, "I don't know.", got.SpokenText)
	require.Empty(t, got.SourceTag)
}

func TestNilSearcherWithSearchEnabledReturnsIDontKnow(t *testing.T) {
	// search is nil but enabled=true still degrades safely to "I don't
	// know" rather than panicking, covering the nil-searcher guard.
	p := answer.New(answer.Config{SearchEnabled: true, SearchProvider: "duckduckgo", SummarizerName: "ollama"}, nil, &fakeSummarizer{reply: "paris is the capital of france"})
	got := p.Answer(context.Background(), "what is the capital of france")
	require.Equal(t, "I don't know.", got.SpokenText)
	require.NotContains(t, got.SpokenText, ":source:")
}
