package tracetalk_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/tracetalk/tracetalk"
)

func TestConfigValidateEmpty(t *testing.T) {
	cfg := &tracetalk.Config{}
	gt.B(t, errors.Is(cfg.Validate(), tracetalk.ErrNoProviders)).True()
}

func TestConfigValidateMissingID(t *testing.T) {
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{Priority: 1},
	}}
	gt.B(t, errors.Is(cfg.Validate(), tracetalk.ErrInvalidConfig)).True()
}

func TestConfigValidatePriorityTie(t *testing.T) {
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{ID: "claude", Priority: 1},
		{ID: "gpt", Priority: 1},
	}}
	gt.B(t, errors.Is(cfg.Validate(), tracetalk.ErrInvalidConfig)).True()
}

func TestConfigValidateDuplicateID(t *testing.T) {
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{ID: "claude", Priority: 1},
		{ID: "claude", Model: "claude-3-haiku-20240307", Priority: 2},
	}}
	gt.B(t, errors.Is(cfg.Validate(), tracetalk.ErrInvalidConfig)).True()
}

func TestConfigSorted(t *testing.T) {
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{ID: "gemini", Priority: 3},
		{ID: "claude", Priority: 1},
		{ID: "gpt", Priority: 2},
	}}
	gt.NoError(t, cfg.Validate())

	sorted := cfg.Sorted()
	gt.Equal(t, sorted[0].ID, "claude")
	gt.Equal(t, sorted[1].ID, "gpt")
	gt.Equal(t, sorted[2].ID, "gemini")

	// Sorted must not reorder the original slice.
	gt.Equal(t, cfg.Providers[0].ID, "gemini")
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracetalk.yml")
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{ID: "claude", Model: "claude-sonnet-4-20250514", CredentialEnv: "ANTHROPIC_API_KEY", Priority: 1},
		{ID: "gpt", Priority: 2},
	}}

	gt.NoError(t, cfg.Save(path))

	loaded := gt.R1(tracetalk.LoadConfig(path)).NoError(t)
	gt.Equal(t, loaded.Providers, cfg.Providers)
}

func TestConfigFileNeverHoldsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracetalk.yml")
	cfg := &tracetalk.Config{Providers: []tracetalk.ProviderSpec{
		{ID: "claude", CredentialEnv: "ANTHROPIC_API_KEY", Priority: 1},
	}}
	gt.NoError(t, cfg.Save(path))

	data := gt.R1(os.ReadFile(path)).NoError(t)
	gt.B(t, strings.Contains(string(data), "credential_env")).True()
	gt.B(t, strings.Contains(string(data), "api_key:")).False()
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := tracetalk.LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	gt.Error(t, err)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	gt.NoError(t, os.WriteFile(path, []byte("providers: []\n"), 0600))

	_, err := tracetalk.LoadConfig(path)
	gt.B(t, errors.Is(err, tracetalk.ErrNoProviders)).True()
}
