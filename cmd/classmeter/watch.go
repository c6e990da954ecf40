package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/output"
	"github.com/panbanda/classmeter/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for class file changes and print their counts",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a changed file is analyzed",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := result.Config

	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absPath)
	}

	a, err := newAnalyzer(c, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := watch.NewWatcher(absPath, cfg,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithOutput(c.App.Writer),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	colored := cfg.Output.Color && !color.NoColor
	watcher.SetCallback(func(ctx context.Context, changedPath string) {
		rel, err := filepath.Rel(absPath, changedPath)
		if err != nil {
			rel = changedPath
		}
		color.New(color.Bold).Fprintln(c.App.Writer, rel)

		fr, err := a.AnalyzeFile(ctx, changedPath)
		if err != nil {
			output.WriteAnalysisError(c.App.Writer, err, colored)
			return
		}
		_ = output.WriteCounts(c.App.Writer, fr.Counts)
		fmt.Fprintln(c.App.Writer)
	})

	err = watcher.Start(c.Context)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.Writer, "\nStopping watch...")
		return nil
	}
	return err
}
