package opcount

import (
	"github.com/rs/zerolog"

	"github.com/panbanda/classmeter/internal/cache"
	"github.com/panbanda/classmeter/pkg/config"
)

type options struct {
	strict      bool
	workers     int
	maxFileSize int64
	cache       *cache.Cache
	logger      zerolog.Logger
}

// Option configures Analyze and Analyzer. The single-buffer functions only
// honour WithStrict.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrict makes the first method decode error fail the whole file
// instead of skipping the method with a warning.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithWorkers sets the number of files analysed concurrently (<= 0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(o *options) {
		o.maxFileSize = maxSize
	}
}

// WithCache reuses results for files whose content has not changed.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// FromConfig returns the options set by an [analysis] config section.
func FromConfig(cfg config.AnalysisConfig) []Option {
	return []Option{
		WithStrict(cfg.Strict),
		WithWorkers(cfg.Workers),
		WithMaxFileSize(cfg.MaxFileSize),
	}
}
