package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tracetalk/tracetalk"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "interactively write the provider configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Value:   "tracetalk.yml",
				Usage:   "where to write the config file",
			},
		},
		Action: runConfig,
	}
}

// runConfig is a small wizard: the user lists providers in preference
// order and optionally overrides the model per provider. API keys are
// never written to the file; only the environment variable names are.
func runConfig(ctx context.Context, cmd *cli.Command) error {
	reader := bufio.NewReader(os.Stdin)

	infoColor.Println("tracetalk configuration")
	fmt.Println("available providers: claude, gpt, gemini")
	fmt.Print("providers in preference order (comma separated) [claude,gpt]: ")

	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		line = "claude,gpt"
	}

	var cfg tracetalk.Config
	for i, id := range strings.Split(line, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		fmt.Printf("model for %s (empty for default): ", id)
		model, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		cfg.Providers = append(cfg.Providers, tracetalk.ProviderSpec{
			ID:       id,
			Model:    strings.TrimSpace(model),
			Priority: i + 1,
		})
	}

	path := cmd.String("path")
	if err := cfg.Save(path); err != nil {
		return err
	}

	okColor.Printf("wrote %s\n", path)
	fmt.Println("set credentials via environment variables:")
	for _, spec := range cfg.Providers {
		env := spec.CredentialEnv
		if env == "" {
			env = defaultCredentialEnv[spec.ID]
		}
		fmt.Printf("  %s: %s\n", spec.ID, env)
	}
	return nil
}
