package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "print the human-readable rendering of an exported trace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "trace",
				Aliases:  []string{"t"},
				Usage:    "path to an exported trace file",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tr, err := loadTrace(cmd.String("trace"))
			if err != nil {
				return err
			}
			fmt.Println(tr.Render())
			return nil
		},
	}
}
