package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btwd/btwd/internal/registry"
	"github.com/stretchr/testify/require"
)

func writeAllowList(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validAllowList = `
commands:
  - id: set_volume
    argv_template: ["wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "{level}"]
    dangerous: false
    description: "set the system output volume"
    parameters:
      - name: level
        kind: float
        constraint: { min: 0, max: 1.5 }
  - id: shutdown
    argv_template: ["systemctl", "poweroff"]
    dangerous: true
    description: "power off the machine"
`

func TestLoadValidAllowList(t *testing.T) {
	path := writeAllowList(t, validAllowList)
	r, err := registry.Load(path)
	require.NoError(t, err)
	require.Len(t, r.List(), 2)

	d, ok := r.Get("set_volume")
	require.True(t, ok)
	require.False(t, d.Dangerous)

	d, ok = r.Get("shutdown")
	require.True(t, ok)
	require.True(t, d.Dangerous)
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	path := writeAllowList(t, `
commands:
  - id: dup
    argv_template: ["true"]
  - id: dup
    argv_template: ["false"]
`)
	_, err := registry.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnboundSlot(t *testing.T) {
	path := writeAllowList(t, `
commands:
  - id: bad
    argv_template: ["echo", "{missing}"]
`)
	_, err := registry.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnreferencedParameter(t *testing.T) {
	path := writeAllowList(t, `
commands:
  - id: bad
    argv_template: ["echo", "hello"]
    parameters:
      - name: unused
        kind: string
        constraint: { regex: ".*" }
`)
	_, err := registry.Load(path)
	require.Error(t, err)
}

func TestValidateBindingsCoercesAndChecksRange(t *testing.T) {
	path := writeAllowList(t, validAllowList)
	r, err := registry.Load(path)
	require.NoError(t, err)

	typed, err := r.ValidateBindings("set_volume", map[string]any{"level": "0.5"})
	require.NoError(t, err)
	require.InDelta(t, 0.5, typed["level"], 1e-9)

	_, err = r.ValidateBindings("set_volume", map[string]any{"level": "9"})
	require.Error(t, err)
}

func TestBuildArgvSubstitutesLiterally(t *testing.T) {
	path := writeAllowList(t, validAllowList)
	r, err := registry.Load(path)
	require.NoError(t, err)

	d, _ := r.Get("set_volume")
	typed, err := r.ValidateBindings("set_volume", map[string]any{"level": 0.75})
	require.NoError(t, err)

	argv, err := registry.BuildArgv(d, typed)
	require.NoError(t, err)
	require.Equal(t, []string{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "0.75"}, argv)
}

const suffixedSlotAllowList = `
commands:
  - id: set_volume_percent
    argv_template: ["wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "{percent}%"]
    dangerous: false
    description: "set the system output volume by percent"
    parameters:
      - name: percent
        kind: int
        constraint: { min: 0, max: 100 }
`

func TestLoadAcceptsSlotEmbeddedWithinAToken(t *testing.T) {
	path := writeAllowList(t, suffixedSlotAllowList)
	r, err := registry.Load(path)
	require.NoError(t, err)

	d, ok := r.Get("set_volume_percent")
	require.True(t, ok)

	typed, err := r.ValidateBindings("set_volume_percent", map[string]any{"percent": 30})
	require.NoError(t, err)

	argv, err := registry.BuildArgv(d, typed)
	require.NoError(t, err)
	require.Equal(t, []string{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "30%"}, argv)
}
