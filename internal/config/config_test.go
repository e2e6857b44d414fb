package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btwd/btwd/internal/config"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesYamlThenEnvThenFlags(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
allow_list_path: /etc/btwd/commands.yaml
wake_word:
  ppn_path: /opt/models/keywords.txt
  model_path: /opt/models/kws
llm:
  provider: ollama
`)
	envPath := writeFile(t, dir, ".env", "WAKE_WORD_ACCESS_KEY=abc123\nOLLAMA_HOST=http://localhost:11434\n")

	cfg, err := config.Load(configPath, envPath, []string{"-dry-run"})
	require.NoError(t, err)
	require.Equal(t, "/etc/btwd/commands.yaml", cfg.AllowListPath)
	require.Equal(t, "abc123", cfg.WakeWordAccessKey)
	require.Equal(t, "http://localhost:11434", cfg.LLMCredential)
	require.True(t, cfg.Execution.DryRun)
}

func TestLoadFailsWithoutWakeWordAccessKey(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
allow_list_path: /etc/btwd/commands.yaml
wake_word:
  ppn_path: /opt/models/keywords.txt
  model_path: /opt/models/kws
`)
	envPath := writeFile(t, dir, ".env", "OLLAMA_HOST=http://localhost:11434\n")

	_, err := config.Load(configPath, envPath, nil)
	require.Error(t, err)
}

func TestLoadRejectsUnknownLLMProvider(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
allow_list_path: /etc/btwd/commands.yaml
wake_word:
  ppn_path: /opt/models/keywords.txt
  model_path: /opt/models/kws
llm:
  provider: carrier-pigeon
`)
	envPath := writeFile(t, dir, ".env", "WAKE_WORD_ACCESS_KEY=abc123\n")

	_, err := config.Load(configPath, envPath, nil)
	require.Error(t, err)
}

func TestDefaultConfigCarriesSpecDefaults(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, 10, cfg.Execution.ConfirmationTimeoutSeconds)
	require.Equal(t, float32(0.6), cfg.WakeWord.Sensitivity)
	require.Equal(t, "ollama", cfg.LLM.Provider)
}
