package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/cache"
	"github.com/panbanda/classmeter/internal/output"
	"github.com/panbanda/classmeter/pkg/analyzer/opcount"
	"github.com/panbanda/classmeter/pkg/config"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads the config named by --config, or searches the standard
// locations, and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}

	cfg := result.Config
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// newLogger returns a console logger on w: debug level when verbose,
// warnings only otherwise.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// openCache opens the result cache described by cfg.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	c, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
	}
	return c, nil
}

// newAnalyzer builds an opcount analyzer from cfg with caching and logging.
func newAnalyzer(c *cli.Context, cfg *config.Config) (*opcount.Analyzer, error) {
	fileCache, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	opts := opcount.FromConfig(cfg.Analysis)
	opts = append(opts,
		opcount.WithCache(fileCache),
		opcount.WithLogger(newLogger(c.App.ErrWriter, cfg.Output.Verbose)),
	)
	return opcount.New(opts...), nil
}

// newFormatter writes to --output when set, otherwise to the app's writer.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := output.ParseFormat(cfg.Output.Format)
	colored := cfg.Output.Color && !color.NoColor
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, colored)
	}
	return output.NewWriterFormatter(format, c.App.Writer, colored), nil
}

// messages returns a text formatter for status lines on the app's writer.
func messages(c *cli.Context) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, c.App.Writer, !color.NoColor)
}

// interactive reports whether w is a terminal.
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
