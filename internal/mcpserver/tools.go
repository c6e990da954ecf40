package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/classmeter/internal/output"
	"github.com/panbanda/classmeter/internal/scanner"
	"github.com/panbanda/classmeter/pkg/analyzer/opcount"
	"github.com/panbanda/classmeter/pkg/bytecode"
)

// AnalyzeInput is the input for analyze_class_files.
type AnalyzeInput struct {
	Paths          []string `json:"paths,omitempty" jsonschema:"Class files or directories to analyze. Defaults to current directory if empty."`
	Format         string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	Strict         bool     `json:"strict,omitempty" jsonschema:"Fail a file on the first method that cannot be decoded instead of skipping the method."`
	IncludeMethods bool     `json:"include_methods,omitempty" jsonschema:"Include per-method counts for every file."`
}

// SummarizeInput is the input for summarize_class.
type SummarizeInput struct {
	Path string `json:"path" jsonschema:"Path to a single .class file."`
}

// OpcodeInput is the input for describe_opcode.
type OpcodeInput struct {
	Opcode string `json:"opcode" jsonschema:"Mnemonic such as goto_w, or a decimal or 0x-prefixed opcode number."`
}

// OpcodeInfo describes one opcode.
type OpcodeInfo struct {
	Opcode       uint8  `json:"opcode" toon:"opcode"`
	Hex          string `json:"hex" toon:"hex"`
	Mnemonic     string `json:"mnemonic" toon:"mnemonic"`
	Category     string `json:"category" toon:"category"`
	OperandBytes int    `json:"operand_bytes" toon:"operand_bytes"`
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input AnalyzeInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text)
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) analyzerOptions(strict bool) []opcount.Option {
	opts := opcount.FromConfig(s.config.Analysis)
	if strict {
		opts = append(opts, opcount.WithStrict(true))
	}
	return opts
}

func (s *Server) handleAnalyzeClassFiles(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	files, err := scanner.NewScanner(s.config).ScanPaths(getPaths(input))
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no class files found")
	}

	a := opcount.New(s.analyzerOptions(input.Strict)...)
	defer a.Close()

	result, err := a.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}

	if !input.IncludeMethods {
		for i := range result.Files {
			result.Files[i].Methods = nil
		}
	}
	return toolResult(result, getFormat(input))
}

func (s *Server) handleSummarizeClass(ctx context.Context, req *mcp.CallToolRequest, input SummarizeInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}

	res, err := opcount.New(s.analyzerOptions(false)...).AnalyzeFile(ctx, input.Path)
	if err != nil {
		return toolError("Error analyzing file: " + err.Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Class: %s\n", res.ClassName)
	b.WriteString(res.Counts.String())
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return textResult(b.String())
}

// parseOpcode accepts a mnemonic, a decimal number or a 0x-prefixed number.
func parseOpcode(s string) (bytecode.Opcode, error) {
	s = strings.TrimSpace(s)
	if op, ok := bytecode.Lookup(strings.ToLower(s)); ok {
		return op, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown opcode %q", s)
	}
	op := bytecode.Opcode(n)
	if !op.Defined() {
		return 0, fmt.Errorf("opcode 0x%02x is not defined", n)
	}
	return op, nil
}

func describeOpcode(op bytecode.Opcode) OpcodeInfo {
	width, ok := op.OperandWidth()
	if !ok {
		width = -1
	}
	return OpcodeInfo{
		Opcode:       uint8(op),
		Hex:          fmt.Sprintf("0x%02x", uint8(op)),
		Mnemonic:     op.String(),
		Category:     opcount.Classify(op).String(),
		OperandBytes: width,
	}
}

func (s *Server) handleDescribeOpcode(ctx context.Context, req *mcp.CallToolRequest, input OpcodeInput) (*mcp.CallToolResult, any, error) {
	op, err := parseOpcode(input.Opcode)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(describeOpcode(op), output.FormatTOON)
}
