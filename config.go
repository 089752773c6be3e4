package tracetalk

import (
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// ProviderSpec declares one backend in the provider priority list. The
// credential itself is never stored here; CredentialEnv names the
// environment variable (or secret reference) the surrounding glue
// resolves it from.
type ProviderSpec struct {
	// ID selects the adapter: "claude", "gpt" or "gemini".
	ID string `yaml:"id"`

	// Model overrides the adapter's default model.
	Model string `yaml:"model,omitempty"`

	// CredentialEnv names the environment variable holding the API key
	// (or, for gemini, the GCP project ID).
	CredentialEnv string `yaml:"credential_env,omitempty"`

	// Priority ranks the provider; lower is tried first. The order
	// must be total: ties are a configuration error.
	Priority int `yaml:"priority"`
}

// Config is the declarative provider configuration produced by the
// config wizard and consumed when a session is constructed.
type Config struct {
	Providers []ProviderSpec `yaml:"providers"`
}

// Validate checks that at least one provider is configured, that each
// provider appears once, and that the priority order is total.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return goerr.Wrap(ErrNoProviders, "config has no providers")
	}

	seen := make(map[int]string, len(c.Providers))
	ids := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return goerr.Wrap(ErrInvalidConfig, "provider without id")
		}
		// IDs key session state (disabled providers, answer provenance),
		// so a duplicate entry cannot behave independently.
		if _, ok := ids[p.ID]; ok {
			return goerr.Wrap(ErrInvalidConfig, "duplicate provider id", goerr.V("id", p.ID))
		}
		ids[p.ID] = struct{}{}
		if prev, ok := seen[p.Priority]; ok {
			return goerr.Wrap(ErrInvalidConfig, "priority tie",
				goerr.V("priority", p.Priority), goerr.V("providers", []string{prev, p.ID}))
		}
		seen[p.Priority] = p.ID
	}
	return nil
}

// Sorted returns the provider specs in priority order, lowest first.
func (c *Config) Sorted() []ProviderSpec {
	sorted := make([]ProviderSpec, len(c.Providers))
	copy(sorted, c.Providers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// LoadConfig reads and validates a YAML provider configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write config file", goerr.V("path", path))
	}
	return nil
}
