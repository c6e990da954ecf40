// Package progress draws terminal progress bars for long analyses.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/panbanda/classmeter/pkg/analyzer"
)

// Bar wraps a progress bar for file processing.
type Bar struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	label string
}

// NewSpinner creates a spinner for operations with unknown total count,
// such as directory scanning.
func NewSpinner(w io.Writer, label string) *Bar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Bar{bar: bar, out: w, label: label}
}

// NewBar creates a progress bar with the given label and total count.
func NewBar(w io.Writer, label string, total int) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar, out: w, label: label}
}

// Stderr returns a bar on stderr, or nil when disabled.
func Stderr(label string, total int, enabled bool) *Bar {
	if !enabled {
		return nil
	}
	return NewBar(os.Stderr, label, total)
}

// Tracker returns an analyzer.Tracker that advances the bar as files
// finish. A nil Bar yields a tracker that only counts.
func (b *Bar) Tracker() *analyzer.Tracker {
	if b == nil {
		return analyzer.NewTracker(nil)
	}
	return analyzer.NewTracker(func(p analyzer.Progress) {
		if p.Failed > 0 {
			b.bar.Describe(fmt.Sprintf("%s (%d failed)", b.label, p.Failed))
		}
		_ = b.bar.Add(1)
	})
}

// Current returns the number of steps completed.
func (b *Bar) Current() int64 {
	if b == nil {
		return 0
	}
	return b.bar.State().CurrentNum
}

// FinishSuccess clears the bar completely (no output).
func (b *Bar) FinishSuccess() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (b *Bar) FinishError(err error) {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	fmt.Fprintf(b.out, "  %s error: %v\n", b.label, err)
}
