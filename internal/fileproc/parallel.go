// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/classmeter/pkg/analyzer"
)

// ErrFileTooLarge is returned for files above the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count. n <= 0 means 2x NumCPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// ReadFile reads path, rejecting files larger than maxSize bytes.
// A maxSize of 0 disables the limit.
func ReadFile(path string, maxSize int64) ([]byte, error) {
	if maxSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, info.Size(), maxSize)
		}
	}
	return os.ReadFile(path)
}

// Options controls MapFiles.
type Options struct {
	// Workers is the pool size; <= 0 means 2x NumCPU.
	Workers int
	// MaxFileSize skips files above this many bytes; 0 disables the limit.
	MaxFileSize int64
}

// MapFiles reads every file and calls fn with its content on a bounded
// worker pool. Results keep the order of files; failed files are left out
// and reported in the returned ProcessingErrors, which is nil when every
// file succeeded.
//
// Cancellation is checked before each file. Progress is reported to the
// tracker carried by ctx, if any.
func MapFiles[T any](ctx context.Context, files []string, opts Options, fn func(ctx context.Context, path string, content []byte) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	slots := make([]T, len(files))
	done := make([]bool, len(files))
	errs := &ProcessingErrors{}

	process := func(ctx context.Context, i int, path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := ReadFile(path, opts.MaxFileSize)
		if err != nil {
			return err
		}
		result, err := fn(ctx, path, content)
		if err != nil {
			return err
		}
		slots[i] = result
		done[i] = true
		return nil
	}

	p := pool.New().WithMaxGoroutines(Workers(opts.Workers)).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			err := process(ctx, i, path)
			if err != nil {
				errs.Add(path, err)
			}
			if tracker != nil {
				tracker.Done(path, err)
			}
			return nil // Don't stop pool on individual file errors
		})
	}
	_ = p.Wait()

	results := make([]T, 0, len(files))
	for i, ok := range done {
		if ok {
			results = append(results, slots[i])
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
