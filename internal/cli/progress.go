package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// buildProgress reports walker progress with a terminal progress bar. It
// satisfies analyzer.ProgressReporter; Increment is called concurrently by
// the parallel walker and progressbar handles its own locking.
type buildProgress struct {
	quiet bool
	bar   *progressbar.ProgressBar
}

func newBuildProgress(quiet bool) *buildProgress {
	return &buildProgress{quiet: quiet}
}

func (p *buildProgress) Start(total int) {
	if p.quiet {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Analyzing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (p *buildProgress) Increment() {
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *buildProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
