package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/output"
	"github.com/panbanda/classmeter/internal/progress"
	"github.com/panbanda/classmeter/internal/scanner"
	"github.com/panbanda/classmeter/pkg/analyzer"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Count instructions in class files and directories",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "methods",
				Usage: "Show one row per method instead of per file",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail a file on the first method that cannot be decoded",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of files analysed concurrently (0 = 2x CPUs)",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := result.Config
	if c.IsSet("strict") {
		cfg.Analysis.Strict = c.Bool("strict")
	}
	if c.IsSet("workers") {
		if c.Int("workers") < 0 {
			return fmt.Errorf("--workers must be >= 0 (got %d)", c.Int("workers"))
		}
		cfg.Analysis.Workers = c.Int("workers")
	}

	showProgress := interactive(c.App.ErrWriter) && !cfg.Output.Verbose

	var spinner *progress.Bar
	if showProgress {
		spinner = progress.NewSpinner(c.App.ErrWriter, "Scanning for class files...")
	}
	files, err := scanner.NewScanner(cfg).ScanPaths(getPaths(c))
	spinner.FinishSuccess()
	if err != nil {
		return fmt.Errorf("failed to scan: %w", err)
	}
	if len(files) == 0 {
		color.New(color.FgYellow).Fprintln(c.App.ErrWriter, "No class files found")
		return nil
	}

	a, err := newAnalyzer(c, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progress.Stderr("Analyzing class files...", len(files), showProgress)
	ctx := analyzer.WithTracker(c.Context, bar.Tracker())
	analysis, err := a.Analyze(ctx, files)
	if err != nil {
		bar.FinishError(err)
		return fmt.Errorf("analysis failed: %w", err)
	}
	bar.FinishSuccess()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(output.AnalysisReport(analysis, c.Bool("methods"))); err != nil {
		return err
	}
	if n := analysis.Summary.FailedFiles; n > 0 && len(analysis.Files) == 0 {
		return fmt.Errorf("all %d files failed to analyze", n)
	}
	return nil
}
