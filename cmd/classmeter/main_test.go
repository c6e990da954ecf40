package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/classmeter/internal/testutil"
	"github.com/panbanda/classmeter/pkg/analyzer/opcount"
)

// iload_1; ifeq +6; goto +3; return
var loopCode = []byte{0x1b, 0x99, 0x00, 0x06, 0xa7, 0x00, 0x03, 0xb1}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	err := app.Run(append([]string{"classmeter"}, args...))
	return stdout.String(), stderr.String(), err
}

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			app := &cli.App{
				Action: func(c *cli.Context) error {
					got = getPaths(c)
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"classmeter"}, tt.args...)))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSummaryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Loop.class")
	testutil.WriteFile(t, path, testutil.NewClass("Loop").Method("run", "(I)V", loopCode).Bytes())

	stdout, _, err := run(t, "--no-cache", "summary", path)
	require.NoError(t, err)
	assert.Equal(t, "Variable declarations: 1\nConditional branches: 1\nLoop opcodes: 1\n", stdout)
}

func TestSummaryCommand_Error(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bad.class")
	testutil.WriteFile(t, path, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00})

	stdout, _, err := run(t, "--no-cache", "summary", path)
	require.ErrorIs(t, err, errReported)
	assert.True(t, strings.HasPrefix(stdout, "Error analyzing file: "), stdout)
	assert.Equal(t, 1, strings.Count(stdout, "\n"))
}

func TestSummaryCommand_RequiresOneFile(t *testing.T) {
	_, _, err := run(t, "--no-cache", "summary")
	assert.Error(t, err)
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateFileTree(t, dir, map[string][]byte{
		"a/Loop.class":  testutil.NewClass("a/Loop").Method("run", "(I)V", loopCode).Bytes(),
		"a/Empty.class": testutil.NewClass("a/Empty").Method("<init>", "()V", []byte{0xb1}).Bytes(),
		"notes.txt":     []byte("not a class"),
	})

	stdout, _, err := run(t, "--no-cache", "--format", "json", "analyze", dir)
	require.NoError(t, err)

	var analysis opcount.Analysis
	require.NoError(t, json.Unmarshal([]byte(stdout), &analysis), stdout)
	assert.Equal(t, 2, analysis.Summary.TotalFiles)
	assert.Equal(t, 0, analysis.Summary.FailedFiles)
	assert.Equal(t, opcount.Counts{VariableAccesses: 1, ConditionalBranches: 1, LoopMarkers: 1}, analysis.Summary.Counts)
}

func TestAnalyzeCommand_Text(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "Loop.class"),
		testutil.NewClass("Loop").Method("run", "(I)V", loopCode).Bytes())

	stdout, _, err := run(t, "--no-cache", "analyze", "--methods", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run(I)V")
	assert.Contains(t, stdout, "Distinct opcodes: 4")
}

func TestAnalyzeCommand_OutputFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "Loop.class"),
		testutil.NewClass("Loop").Method("run", "(I)V", loopCode).Bytes())
	out := filepath.Join(t.TempDir(), "report.md")

	stdout, _, err := run(t, "--no-cache", "-f", "markdown", "-o", out, "analyze", dir)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.FileExists(t, out)
}

func TestAnalyzeCommand_NoClassFiles(t *testing.T) {
	_, stderr, err := run(t, "--no-cache", "analyze", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stderr, "No class files found")
}

func TestAnalyzeCommand_AllFailed(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "Bad.class"), []byte("nope"))

	_, _, err := run(t, "--no-cache", "--format", "json", "analyze", dir)
	assert.Error(t, err)
}

func TestAnalyzeCommand_InvalidFormat(t *testing.T) {
	_, _, err := run(t, "--no-cache", "--format", "xml", "analyze", t.TempDir())
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "classmeter.toml")
	testutil.WriteFile(t, good, []byte("[analysis]\nstrict = true\n"))
	bad := filepath.Join(dir, "bad.toml")
	testutil.WriteFile(t, bad, []byte("[analysis]\nworkers = -1\n"))

	stdout, _, err := run(t, "--config", good, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Configuration from: "+good)
	assert.Contains(t, stdout, "strict = true")

	stdout, _, err = run(t, "--config", good, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid")

	stdout, _, err = run(t, "--config", bad, "config", "validate")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, stdout, "analysis.workers")
}

func TestCacheClearCommand(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "classmeter.toml")
	testutil.WriteFile(t, cfgPath, []byte("[cache]\ndir = \""+filepath.ToSlash(cacheDir)+"\"\n"))
	testutil.WriteFile(t, filepath.Join(dir, "Loop.class"),
		testutil.NewClass("Loop").Method("run", "(I)V", loopCode).Bytes())

	_, _, err := run(t, "--config", cfgPath, "-f", "json", "analyze", filepath.Join(dir, "Loop.class"))
	require.NoError(t, err)
	assert.NotEmpty(t, testutil.ListFiles(t, cacheDir))

	stdout, _, err := run(t, "--config", cfgPath, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cache cleared")
	assert.NoDirExists(t, cacheDir)
}

func TestMCPManifestCommand(t *testing.T) {
	stdout, _, err := run(t, "mcp", "manifest")
	require.NoError(t, err)

	var manifest map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &manifest))
	assert.Equal(t, "io.github.panbanda/classmeter", manifest["name"])
}
