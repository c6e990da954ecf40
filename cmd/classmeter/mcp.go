package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes classmeter's
bytecode analysis as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "classmeter": {
        "command": "classmeter",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_class_files   Instruction counts for class files and directories
  - summarize_class       Three-line count summary for a single class file
  - describe_opcode       Mnemonic, category and operand width of an opcode`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}
	server := mcpserver.NewServer(version, result.Config)
	return server.Run(c.Context)
}

func runMCPManifestCmd(c *cli.Context) error {
	manifest, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return fmt.Errorf("failed to generate manifest: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(manifest))
	return nil
}
