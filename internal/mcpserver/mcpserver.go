// Package mcpserver exposes bytecode instruction counting over the Model
// Context Protocol.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/classmeter/pkg/config"
)

// Server wraps the MCP server and registers the classmeter tools.
type Server struct {
	server *mcp.Server
	config *config.Config
}

// NewServer creates a new MCP server. A nil cfg uses the defaults.
func NewServer(version string, cfg *config.Config) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "classmeter",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, config: cfg}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_class_files",
		Description: describeAnalyzeClassFiles(),
	}, s.handleAnalyzeClassFiles)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_class",
		Description: describeSummarizeClass(),
	}, s.handleSummarizeClass)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "describe_opcode",
		Description: describeDescribeOpcode(),
	}, s.handleDescribeOpcode)
}
