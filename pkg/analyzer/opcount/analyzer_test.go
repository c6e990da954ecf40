package opcount

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/classmeter/internal/cache"
	"github.com/panbanda/classmeter/internal/testutil"
	"github.com/panbanda/classmeter/pkg/analyzer"
	"github.com/panbanda/classmeter/pkg/classfile"
	"github.com/panbanda/classmeter/pkg/config"
)

func writeProject(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"a/One.class": testutil.NewClass("a/One").
			Method("m", "()V", []byte{0x3c, 0xb1}).
			Bytes(),
		"a/Three.class": testutil.NewClass("a/Three").
			Method("m", "()V", []byte{0x3c, 0x3d, 0x3e, 0x99, 0x00, 0x00, 0xa7, 0x00, 0x00}).
			Bytes(),
		"b/Broken.class": []byte("not a class file"),
	}
	testutil.CreateFileTree(t, dir, files)
	return dir, []string{
		filepath.Join(dir, "a/One.class"),
		filepath.Join(dir, "a/Three.class"),
		filepath.Join(dir, "b/Broken.class"),
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	_, paths := writeProject(t)

	a := New(WithWorkers(2))
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, analysis.Files, 2)
	assert.Equal(t, paths[0], analysis.Files[0].Path, "input order is kept")
	assert.Equal(t, "a/Three", analysis.Files[1].ClassName)

	require.Len(t, analysis.Errors, 1)
	assert.Equal(t, paths[2], analysis.Errors[0].Path)
	assert.Contains(t, analysis.Errors[0].Error, classfile.ErrNotAClassFile.Error())

	s := analysis.Summary
	assert.Equal(t, 2, s.TotalFiles)
	assert.Equal(t, 1, s.FailedFiles)
	assert.Equal(t, 2, s.TotalMethods)
	assert.Equal(t, Counts{VariableAccesses: 4, ConditionalBranches: 1, LoopMarkers: 1}, s.Counts)
	assert.Equal(t, Distribution{Total: 4, Mean: 2, P90: 3, Max: 3}, s.VariableAccesses)
	assert.Equal(t, 1, s.LoopMarkers.Max)
	// istore_1 istore_2 istore_3 ifeq goto return
	assert.Equal(t, 6, s.DistinctOpcodes)
}

func TestAnalyzer_ProgressTracking(t *testing.T) {
	_, paths := writeProject(t)

	var ticks int
	tracker := analyzer.NewTracker(func(analyzer.Progress) {
		ticks++
	})
	ctx := analyzer.WithTracker(context.Background(), tracker)

	_, err := New(WithWorkers(1)).Analyze(ctx, paths)
	require.NoError(t, err)
	assert.Equal(t, 3, tracker.Total())
	assert.Equal(t, 3, tracker.Current())
	assert.Equal(t, 3, ticks)
}

func TestAnalyzer_Cancelled(t *testing.T) {
	_, paths := writeProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	analysis, err := New().Analyze(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, analysis)
	assert.Empty(t, analysis.Files)
	assert.Len(t, analysis.Errors, 3)
}

func TestAnalyzer_MaxFileSize(t *testing.T) {
	_, paths := writeProject(t)

	analysis, err := New(WithMaxFileSize(8)).Analyze(context.Background(), paths)
	require.NoError(t, err)
	assert.Empty(t, analysis.Files)
	assert.Len(t, analysis.Errors, 3)
	assert.Contains(t, analysis.Errors[0].Error, "exceeds size limit")
}

func TestAnalyzer_Cache(t *testing.T) {
	_, paths := writeProject(t)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 1, true)
	require.NoError(t, err)

	a := New(WithCache(c))
	first, err := a.AnalyzeFile(context.Background(), paths[1])
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := a.AnalyzeFile(context.Background(), paths[1])
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, first.DistinctOpcodes, second.DistinctOpcodes)
	assert.Equal(t, first.Opcodes(), second.Opcodes())

	// A different policy must not reuse the entry.
	strict, err := New(WithCache(c), WithStrict(true)).AnalyzeFile(context.Background(), paths[1])
	require.NoError(t, err)
	assert.False(t, strict.Cached)

	// Changed content invalidates the entry.
	testutil.WriteFile(t, paths[1], testutil.NewClass("a/Three").Method("m", "()V", []byte{0xb1}).Bytes())
	third, err := a.AnalyzeFile(context.Background(), paths[1])
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, Counts{}, third.Counts)
}

func TestAnalyzer_Empty(t *testing.T) {
	analysis, err := New().Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.Files)
	assert.Zero(t, analysis.Summary.TotalFiles)
	assert.Equal(t, Distribution{}, analysis.Summary.LoopMarkers)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.Strict = true
	cfg.Analysis.Workers = 3
	cfg.Analysis.MaxFileSize = 1024

	o := newOptions(FromConfig(cfg.Analysis))
	assert.True(t, o.strict)
	assert.Equal(t, 3, o.workers)
	assert.Equal(t, int64(1024), o.maxFileSize)

	assert.NotEqual(t, New().fingerprint, New(FromConfig(cfg.Analysis)...).fingerprint)
}
