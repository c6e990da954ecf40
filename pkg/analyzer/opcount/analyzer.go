package opcount

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/classmeter/internal/cache"
	"github.com/panbanda/classmeter/internal/fileproc"
	"github.com/panbanda/classmeter/pkg/analyzer"
)

// Ensure Analyzer implements analyzer.FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// cacheVersion is mixed into cache keys; bump it when Result changes shape.
const cacheVersion = "opcount/1"

// Analyzer analyses many class files concurrently.
type Analyzer struct {
	opts        options
	fingerprint string
}

// New creates a new opcode-count analyzer.
func New(opts ...Option) *Analyzer {
	o := newOptions(opts)
	return &Analyzer{
		opts:        o,
		fingerprint: cache.Fingerprint(cacheVersion, "strict="+strconv.FormatBool(o.strict)),
	}
}

// AnalyzeFile analyses a single file, consulting the cache if configured.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*FileResult, error) {
	content, err := fileproc.ReadFile(path, a.opts.maxFileSize)
	if err != nil {
		return nil, err
	}
	fr, err := a.analyzeContent(ctx, path, content)
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

// Analyze analyses files on a worker pool. Files that fail are listed in
// Analysis.Errors; the returned error is only set when ctx is cancelled.
// Progress is tracked via context using analyzer.WithTracker.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Analysis, error) {
	opts := fileproc.Options{Workers: a.opts.workers, MaxFileSize: a.opts.maxFileSize}
	results, errs := fileproc.MapFiles(ctx, files, opts, a.analyzeContent)

	analysis := buildAnalysis(results, errs)
	if err := ctx.Err(); err != nil {
		return analysis, err
	}
	return analysis, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}

// cachedResult is the on-disk form of a Result.
type cachedResult struct {
	Result  Result `json:"result"`
	Opcodes []byte `json:"opcodes"`
}

func (a *Analyzer) cacheKey(path string) string {
	return path + "#" + a.fingerprint
}

func (a *Analyzer) analyzeContent(ctx context.Context, path string, content []byte) (FileResult, error) {
	log := a.opts.logger.With().Str("file", path).Logger()

	var hash string
	if a.opts.cache.Enabled() {
		hash = cache.HashBytes(content)
		if fr, ok := a.fromCache(path, hash); ok {
			log.Debug().Msg("cache hit")
			return fr, nil
		}
	}

	res, err := AnalyzeContext(ctx, content, WithStrict(a.opts.strict))
	if err != nil {
		log.Debug().Err(err).Msg("analysis failed")
		return FileResult{}, err
	}
	for _, w := range res.Warnings {
		log.Warn().Str("method", w.Method).Int("offset", w.Offset).Msg(w.Message)
	}

	if a.opts.cache.Enabled() {
		if err := a.toCache(path, hash, res); err != nil {
			log.Debug().Err(err).Msg("cache write failed")
		}
	}

	log.Debug().
		Int("methods", len(res.Methods)).
		Int("variable_accesses", res.Counts.VariableAccesses).
		Int("conditional_branches", res.Counts.ConditionalBranches).
		Int("loop_markers", res.Counts.LoopMarkers).
		Msg("analyzed")
	return FileResult{Path: path, Result: *res}, nil
}

func (a *Analyzer) fromCache(path, hash string) (FileResult, bool) {
	data, ok := a.opts.cache.Get(a.cacheKey(path), hash)
	if !ok {
		return FileResult{}, false
	}
	var entry cachedResult
	if err := json.Unmarshal(data, &entry); err != nil {
		return FileResult{}, false
	}
	set := roaring.New()
	if err := set.UnmarshalBinary(entry.Opcodes); err != nil {
		return FileResult{}, false
	}
	entry.Result.opcodes = set.ToArray()
	return FileResult{Path: path, Cached: true, Result: entry.Result}, true
}

func (a *Analyzer) toCache(path, hash string, res *Result) error {
	ops, err := roaring.BitmapOf(res.opcodes...).ToBytes()
	if err != nil {
		return err
	}
	data, err := json.Marshal(cachedResult{Result: *res, Opcodes: ops})
	if err != nil {
		return err
	}
	return a.opts.cache.Set(a.cacheKey(path), hash, data)
}

// buildAnalysis aggregates file results into an Analysis.
func buildAnalysis(results []FileResult, errs *fileproc.ProcessingErrors) *Analysis {
	analysis := &Analysis{Files: results}
	if analysis.Files == nil {
		analysis.Files = []FileResult{}
	}

	if errs != nil {
		for _, pe := range errs.Errors {
			analysis.Errors = append(analysis.Errors, FileError{Path: pe.Path, Error: pe.Err.Error()})
		}
		sort.Slice(analysis.Errors, func(i, j int) bool {
			return analysis.Errors[i].Path < analysis.Errors[j].Path
		})
	}

	analysis.Summary = summarize(results)
	analysis.Summary.FailedFiles = len(analysis.Errors)
	return analysis
}

func summarize(results []FileResult) Summary {
	s := Summary{TotalFiles: len(results)}
	union := roaring.New()

	vars := make([]float64, 0, len(results))
	conds := make([]float64, 0, len(results))
	loops := make([]float64, 0, len(results))

	for _, fr := range results {
		s.TotalMethods += len(fr.Methods)
		for _, m := range fr.Methods {
			if m.Skipped {
				s.SkippedMethods++
			}
		}
		s.Counts.Merge(fr.Counts)
		union.AddMany(fr.opcodes)

		vars = append(vars, float64(fr.Counts.VariableAccesses))
		conds = append(conds, float64(fr.Counts.ConditionalBranches))
		loops = append(loops, float64(fr.Counts.LoopMarkers))
	}

	s.DistinctOpcodes = int(union.GetCardinality())
	s.VariableAccesses = distribution(vars)
	s.ConditionalBranches = distribution(conds)
	s.LoopMarkers = distribution(loops)
	return s
}

func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sort.Float64s(values)
	return Distribution{
		Total: int(floats.Sum(values)),
		Mean:  stat.Mean(values, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, values, nil),
		Max:   int(values[len(values)-1]),
	}
}
