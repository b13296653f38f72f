package ui

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"

	"github.com/spherical/pdf-pages/pkg/extractor"
)

// ProgressBar wraps a progressbar instance for per-page progress display.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar with the given total and description.
func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	_ = p.bar.Set64(current)
}

// SetTotal updates the total value of the progress bar.
func (p *ProgressBar) SetTotal(total int64) {
	p.bar.ChangeMax64(total)
}

// Restart reuses the bar for a new run of total steps.
func (p *ProgressBar) Restart(total int64, description string) {
	p.bar.Reset()
	p.bar.Describe(description)
	p.SetTotal(total)
}

// Finish completes the progress bar.
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// UpdateMessage updates the spinner's message.
func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}

// TrackProgress renders pipeline events until events is closed. Sequential
// runs get one bar per stage; parallel runs interleave stages, so a single
// spinner summarizes both. Without a terminal only stage transitions are
// printed, and only in verbose mode.
func TrackProgress(events <-chan extractor.StreamEvent, parallel bool) {
	if !interactive() {
		for e := range events {
			if verboseFlag && e.Type == extractor.EventStageComplete {
				Message("  %s stage: %d pages", e.Stage, e.TotalPages)
			}
		}
		return
	}

	if parallel {
		trackWithSpinner(events)
		return
	}

	// One bar is reused for every stage.
	var (
		bar   *ProgressBar
		stage extractor.Stage
	)
	for e := range events {
		switch e.Type {
		case extractor.EventPageDone:
			switch {
			case bar == nil:
				bar = NewProgressBar(int64(e.TotalPages), stageLabel(e.Stage))
			case e.Stage != stage:
				bar.Restart(int64(e.TotalPages), stageLabel(e.Stage))
			}
			stage = e.Stage
			bar.Set(int64(e.PageNumber))
		case extractor.EventStageComplete, extractor.EventError:
			if bar != nil && e.Stage == stage {
				bar.Finish()
			}
		}
	}
}

func stageLabel(stage extractor.Stage) string {
	return fmt.Sprintf("%-7s", stage)
}

func trackWithSpinner(events <-chan extractor.StreamEvent) {
	s := NewSpinner("Extracting...")
	s.Start()
	defer s.Stop()

	done := map[extractor.Stage]int{}
	total := 0
	for e := range events {
		if e.Type != extractor.EventPageDone {
			continue
		}
		done[e.Stage] = e.PageNumber
		total = e.TotalPages
		s.UpdateMessage(fmt.Sprintf("images %d/%d, text %d/%d",
			done[extractor.StageImages], total, done[extractor.StageText], total))
	}
}
