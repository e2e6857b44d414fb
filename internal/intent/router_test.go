package intent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/btwd/btwd/internal/intent"
	"github.com/btwd/btwd/internal/registry"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	reply string
	err   error
}

func (f *fakeClassifier) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.reply, f.err
}

func (f *fakeClassifier) HealthCheck(ctx context.Context) error { return nil }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	body := `
commands:
  - id: set_volume
    argv_template: ["wpctl", "set-volume", "{level}"]
    description: "set output volume"
    parameters:
      - name: level
        kind: float
        constraint: { min: 0, max: 1.5 }
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	r, err := registry.Load(path)
	require.NoError(t, err)
	return r
}

func TestConfirmationReplyShortCircuitsTheClassifier(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: "THIS SHOULD NEVER BE CALLED"}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "yes", true)
	require.NoError(t, err)
	require.Equal(t, intent.KindConfirmationReply, got.Kind)
	require.True(t, got.Affirmative)

	got, err = r.Route(context.Background(), "no thanks", true)
	require.NoError(t, err)
	// "no thanks" isn't an exact match in the small whitelist, so it must
	// fall through to the classifier rather than matching loosely.
	require.NotEqual(t, intent.KindConfirmationReply, got.Kind)
}

func TestUnknownCommandIDDowngradesToUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: `{"type":"command","id":"rm_rf_root","bindings":{}}`}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "delete everything", false)
	require.NoError(t, err)
	require.Equal(t, intent.KindUnknown, got.Kind)
	require.NotEmpty(t, got.Diagnostic)
}

func TestOutOfRangeBindingDowngradesToUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: `{"type":"command","id":"set_volume","bindings":{"level":9}}`}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "set volume to 9", false)
	require.NoError(t, err)
	require.Equal(t, intent.KindUnknown, got.Kind)
}

func TestValidCommandProposalResolves(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: `{"type":"command","id":"set_volume","bindings":{"level":0.5}}`}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "set volume to half", false)
	require.NoError(t, err)
	require.Equal(t, intent.KindCommand, got.Kind)
	require.Equal(t, "set_volume", got.CommandID)
	require.InDelta(t, 0.5, got.Bindings["level"], 1e-9)
}

func TestQuestionProposalResolves(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: `{"type":"question","text":"what is the capital of france"}`}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "what is the capital of france", false)
	require.NoError(t, err)
	require.Equal(t, intent.KindQuestion, got.Kind)
	require.Equal(t, "what is the capital of france", got.QuestionText)
}

func TestMalformedClassifierReplyDowngradesToUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	classifier := &fakeClassifier{reply: "not json at all"}
	r := intent.New(reg, classifier)

	got, err := r.Route(context.Background(), "gibberish", false)
	require.NoError(t, err)
	require.Equal(t, intent.KindUnknown, got.Kind)
}
