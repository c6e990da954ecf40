package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/output"
)

// errReported marks a failure already shown to the user.
var errReported = errors.New("analysis failed")

func summaryCmd() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Print the three instruction counts for one class file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail on the first method that cannot be decoded",
			},
		},
		Action: runSummaryCmd,
	}
}

func runSummaryCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("summary takes exactly one file, got %d", c.Args().Len())
	}
	path := c.Args().First()

	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := result.Config
	if c.IsSet("strict") {
		cfg.Analysis.Strict = c.Bool("strict")
	}

	a, err := newAnalyzer(c, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fr, err := a.AnalyzeFile(c.Context, path)
	if err != nil {
		output.WriteAnalysisError(c.App.Writer, err, cfg.Output.Color && !color.NoColor)
		return errReported
	}
	if err := output.WriteCounts(c.App.Writer, fr.Counts); err != nil {
		return err
	}
	for _, w := range fr.Warnings {
		color.New(color.FgYellow).Fprintf(c.App.ErrWriter, "warning: %s\n", w)
	}
	return nil
}
