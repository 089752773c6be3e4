package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/tracetalk/tracetalk"
	"github.com/tracetalk/tracetalk/trace"
)

var (
	infoColor   = color.New(color.FgCyan)
	errColor    = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
	promptColor = color.New(color.FgYellow)
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:  "ask",
		Usage: "start an interactive Q&A session over an exported trace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "trace",
				Aliases:  []string{"t"},
				Usage:    "path to an exported trace file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "tracetalk.yml",
				Usage:   "path to the provider config file",
			},
			&cli.BoolFlag{
				Name:  "show-trace",
				Usage: "print the human-readable trace before asking",
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	tr, err := loadTrace(cmd.String("trace"))
	if err != nil {
		return err
	}

	cfg, err := tracetalk.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if cmd.Bool("show-trace") {
		fmt.Println(tr.Render())
	}

	session, err := tracetalk.NewSessionFromConfig(ctx, tr, cfg, buildProvider)
	if err != nil {
		return err
	}

	infoColor.Println("tracetalk - ask about your program's execution (empty line to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("\n? ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer, err := session.Ask(ctx, question)
		if err != nil {
			var exhausted *tracetalk.ExhaustedError
			if errors.As(err, &exhausted) {
				errColor.Println("every provider failed for this question:")
				for _, attempt := range exhausted.Attempts {
					fmt.Printf("  %s: %v\n", attempt.Provider, attempt.Err)
				}
				// The session survives; let the user re-ask.
				continue
			}
			return err
		}

		okColor.Printf("\n[%s]\n", answer.Provider)
		fmt.Println(answer.Text)
	}

	return scanner.Err()
}

func loadTrace(path string) (*trace.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open trace file", goerr.V("path", path))
	}
	defer f.Close()
	return trace.Load(f)
}
