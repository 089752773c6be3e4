package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// Credentials may live in a local .env; missing file is fine.
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "tracetalk",
		Usage: "ask an AI about what your program actually did",
		Commands: []*cli.Command{
			askCommand(),
			viewCommand(),
			configCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
