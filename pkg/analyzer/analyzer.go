// Package analyzer holds the contracts shared by file analyzers and the
// worker pool that drives them.
package analyzer

import "context"

// FileAnalyzer analyzes a batch of files.
//
// Analyze reports per-file failures inside T and returns an error only
// when the whole run could not complete, such as on cancellation. A
// Tracker carried by ctx receives a Done call for every input file.
type FileAnalyzer[T any] interface {
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
