package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/pdf-pages/pkg/extractor"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + time.Minute, "2h 1m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestTable(t *testing.T) {
	var out bytes.Buffer
	InitUI(true, false)
	SetOutput(&out, &out)

	Table([]string{"Metric", "Value"}, [][]string{{"Pages", "3"}})

	assert.Equal(t, "Metric  Value\n------  -----\nPages   3\n", out.String())
}

func TestTrackProgress_NonInteractiveVerbose(t *testing.T) {
	var out bytes.Buffer
	InitUI(true, true)
	SetOutput(&out, &out)
	t.Cleanup(func() { InitUI(true, false) })

	events := make(chan extractor.StreamEvent, 4)
	events <- extractor.StreamEvent{Type: extractor.EventPageDone, Stage: extractor.StageImages, PageNumber: 1, TotalPages: 2}
	events <- extractor.StreamEvent{Type: extractor.EventStageComplete, Stage: extractor.StageImages, TotalPages: 2}
	close(events)

	TrackProgress(events, false)

	assert.Equal(t, "  images stage: 2 pages\n", out.String())
}

func TestWarningAndKeyValue(t *testing.T) {
	var out bytes.Buffer
	InitUI(true, false)
	SetOutput(&out, &out)

	Warning("pages %v", []int{2, 3})
	KeyValue("Key policy", "union")

	assert.Equal(t, "⚠ pages [2 3]\n  Key policy: union\n", out.String())
}

func TestProgressBar_RestartReusesBar(t *testing.T) {
	var out bytes.Buffer
	InitUI(true, false)
	SetOutput(&out, &out)

	bar := NewProgressBar(2, "images")
	bar.Set(2)
	bar.Restart(5, "text")
	bar.Set(1)
	bar.Finish()

	assert.Contains(t, out.String(), "images")
	assert.Contains(t, out.String(), "text")
	assert.Contains(t, out.String(), "5/5")
}
