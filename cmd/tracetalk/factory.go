package main

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/tracetalk/tracetalk"
	"github.com/tracetalk/tracetalk/llm"
	"github.com/tracetalk/tracetalk/llm/claude"
	"github.com/tracetalk/tracetalk/llm/gemini"
	"github.com/tracetalk/tracetalk/llm/gpt"
)

// Default credential environment variables per provider, used when the
// config does not name one.
var defaultCredentialEnv = map[string]string{
	claude.ProviderID: "ANTHROPIC_API_KEY",
	gpt.ProviderID:    "OPENAI_API_KEY",
	gemini.ProviderID: "GOOGLE_CLOUD_PROJECT",
}

// buildProvider resolves the credential from the environment and
// constructs the adapter for one provider spec. The core library only
// ever sees the resolved credential.
func buildProvider(ctx context.Context, spec tracetalk.ProviderSpec) (llm.Provider, error) {
	envName := spec.CredentialEnv
	if envName == "" {
		envName = defaultCredentialEnv[spec.ID]
	}
	credential := os.Getenv(envName)
	if credential == "" {
		return nil, goerr.New("credential is not set",
			goerr.V("provider", spec.ID), goerr.V("env", envName))
	}

	switch spec.ID {
	case claude.ProviderID:
		var opts []claude.Option
		if spec.Model != "" {
			opts = append(opts, claude.WithModel(spec.Model))
		}
		return claude.New(ctx, credential, opts...)

	case gpt.ProviderID:
		var opts []gpt.Option
		if spec.Model != "" {
			opts = append(opts, gpt.WithModel(spec.Model))
		}
		return gpt.New(ctx, credential, opts...)

	case gemini.ProviderID:
		var opts []gemini.Option
		if spec.Model != "" {
			opts = append(opts, gemini.WithModel(spec.Model))
		}
		return gemini.New(ctx, credential, os.Getenv("GOOGLE_CLOUD_LOCATION"), opts...)

	default:
		return nil, goerr.New("unknown provider id", goerr.V("id", spec.ID))
	}
}
