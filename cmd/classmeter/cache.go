package main

import (
	"github.com/urfave/cli/v2"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Result cache management",
		Subcommands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Remove every cached result",
				Action: runCacheClear,
			},
		},
	}
}

func runCacheClear(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := result.Config
	// --no-cache must not stop an explicit clear.
	cfg.Cache.Enabled = true

	fileCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	if err := fileCache.Clear(); err != nil {
		return err
	}
	messages(c).Success("Cache cleared: %s", cfg.Cache.Dir)
	return nil
}
