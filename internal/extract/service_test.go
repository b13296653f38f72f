package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
	"github.com/spherical/pdf-pages/internal/pdftest"
	"github.com/spherical/pdf-pages/internal/record"
)

type fakeImages struct {
	out   domain.ImageMap
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeImages) Extract(ctx context.Context, pdfPath string, onPage domain.PageFunc) (domain.ImageMap, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.out.Pages() {
		if onPage != nil {
			onPage(p, len(f.out))
		}
	}
	return f.out, nil
}

type fakeText struct {
	out   domain.TextMap
	err   error
	calls int
	block bool
}

func (f *fakeText) Extract(ctx context.Context, pdfPath string, onPage domain.PageFunc) (domain.TextMap, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, domain.ExtractionError("cancelled", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.out.Pages() {
		if onPage != nil {
			onPage(p, len(f.out))
		}
	}
	return f.out, nil
}

func newTestService(t *testing.T, images *fakeImages, text *fakeText, parallel bool) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(images, text, Options{
		ImagesDir:  filepath.Join(dir, "output", "images"),
		OutputPath: filepath.Join(dir, "output", "content.json"),
		Format:     record.FormatJSON,
		Parallel:   parallel,
	}, nil), dir
}

func inputPDF(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "input.pdf", pdftest.Page{Text: "x"}, pdftest.Page{})
}

func drain(ch chan domain.StreamEvent) []domain.StreamEvent {
	close(ch)
	var events []domain.StreamEvent
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestProcess_Success(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			images := &fakeImages{out: domain.ImageMap{1: {"output/images/page1_image1.jpeg"}, 2: {}}}
			text := &fakeText{out: domain.TextMap{1: "Hello World", 2: ""}}
			svc, _ := newTestService(t, images, text, parallel)

			eventCh := make(chan domain.StreamEvent, 64)
			result, err := svc.Process(context.Background(), inputPDF(t), eventCh)
			require.NoError(t, err)

			assert.NotEmpty(t, result.RunID)
			assert.Equal(t, 1, result.ImageCount)
			assert.Equal(t, domain.OutputDocument{
				{Page: 1, Text: "Hello World", Images: []string{"output/images/page1_image1.jpeg"}},
				{Page: 2, Text: "", Images: []string{}},
			}, result.Document)

			written, err := record.Read(result.OutputPath, record.FormatJSON)
			require.NoError(t, err)
			assert.Equal(t, result.Document, written)

			events := drain(eventCh)
			require.NotEmpty(t, events)
			assert.Equal(t, domain.EventStart, events[0].Type)
			assert.Equal(t, domain.EventComplete, events[len(events)-1].Type)

			pageEvents := map[domain.Stage]int{}
			for _, e := range events {
				if e.Type == domain.EventPageDone {
					pageEvents[e.Stage]++
				}
				assert.False(t, e.Timestamp.IsZero())
			}
			assert.Equal(t, 2, pageEvents[domain.StageImages])
			assert.Equal(t, 2, pageEvents[domain.StageText])
		})
	}
}

func TestProcess_TextAuthoritative(t *testing.T) {
	images := &fakeImages{out: domain.ImageMap{1: {}, 2: {"p2.png"}, 3: {"p3.png"}}}
	text := &fakeText{out: domain.TextMap{1: "a", 2: "b"}}
	svc, _ := newTestService(t, images, text, false)

	result, err := svc.Process(context.Background(), inputPDF(t), nil)
	require.NoError(t, err)

	require.Len(t, result.Document, 2)
	assert.Equal(t, 2, result.Document[1].Page)
	assert.Equal(t, []string{"p2.png"}, result.Document[1].Images)
}

func TestProcess_InvalidInputTouchesNothing(t *testing.T) {
	images := &fakeImages{out: domain.ImageMap{}}
	text := &fakeText{out: domain.TextMap{}}
	svc, dir := newTestService(t, images, text, false)

	eventCh := make(chan domain.StreamEvent, 8)
	_, err := svc.Process(context.Background(), filepath.Join(dir, "missing.pdf"), eventCh)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentOpen))

	assert.Zero(t, images.calls)
	assert.Zero(t, text.calls)
	_, statErr := os.Stat(filepath.Join(dir, "output"))
	assert.True(t, os.IsNotExist(statErr))

	events := drain(eventCh)
	assert.Equal(t, domain.EventError, events[len(events)-1].Type)
}

func TestProcess_StageFailureAborts(t *testing.T) {
	tests := []struct {
		name     string
		images   *fakeImages
		text     *fakeText
		errType  domain.ErrorType
		textRuns int
	}{
		{
			name:     "image write failure stops before text",
			images:   &fakeImages{err: domain.ImageWriteError("disk full", errors.New("ENOSPC"))},
			text:     &fakeText{out: domain.TextMap{1: ""}},
			errType:  domain.ErrorTypeImageWrite,
			textRuns: 0,
		},
		{
			name:     "text open failure",
			images:   &fakeImages{out: domain.ImageMap{1: {}}},
			text:     &fakeText{err: domain.DocumentOpenError("open", errors.New("bad xref"))},
			errType:  domain.ErrorTypeDocumentOpen,
			textRuns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.images, tt.text, false)

			_, err := svc.Process(context.Background(), inputPDF(t), nil)
			require.Error(t, err)
			assert.Equal(t, tt.errType, domain.TypeOf(err))
			assert.Equal(t, tt.textRuns, tt.text.calls)

			_, statErr := os.Stat(svc.opts.OutputPath)
			assert.True(t, os.IsNotExist(statErr), "no output document on failure")
		})
	}
}

func TestProcess_ParallelCancelsSibling(t *testing.T) {
	images := &fakeImages{err: domain.ImageWriteError("disk full", errors.New("ENOSPC"))}
	text := &fakeText{block: true}
	svc, _ := newTestService(t, images, text, true)

	_, err := svc.Process(context.Background(), inputPDF(t), nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeImageWrite))
}

func TestProcess_SerializationFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	svc := NewService(
		&fakeImages{out: domain.ImageMap{1: {}}},
		&fakeText{out: domain.TextMap{1: "a"}},
		Options{OutputPath: filepath.Join(blocker, "content.json")},
		nil,
	)

	_, err := svc.Process(context.Background(), inputPDF(t), nil)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeSerialization))
}

func TestEventSink_FullChannelLogsOnce(t *testing.T) {
	var logs bytes.Buffer
	sink := newEventSink(make(chan domain.StreamEvent, 1), observability.NewLogger(observability.LogConfig{
		Level: "debug", Format: "json", Output: &logs,
	}))

	for i := 0; i < 5; i++ {
		sink.emit(domain.StreamEvent{Type: domain.EventPageDone, PageNumber: i + 1})
	}

	assert.Equal(t, int64(4), sink.dropped.Load())
	assert.Equal(t, 1, strings.Count(logs.String(), "Event channel full"))

	newEventSink(nil, observability.Nop()).emit(domain.StreamEvent{Type: domain.EventStart})
}

func TestProcess_StageLogsCarryRunID(t *testing.T) {
	var logs bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "json", Output: &logs})
	dir := t.TempDir()
	svc := NewService(
		&fakeImages{out: domain.ImageMap{1: {}}},
		&fakeText{out: domain.TextMap{1: "a"}},
		Options{OutputPath: filepath.Join(dir, "content.json")},
		logger,
	)

	result, err := svc.Process(context.Background(), inputPDF(t), nil)
	require.NoError(t, err)

	stageLines := 0
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["message"] == "stage finished" {
			stageLines++
			assert.Equal(t, result.RunID, entry["run_id"])
		}
	}
	assert.Equal(t, 2, stageLines)
}

func TestProcess_ReportsMismatch(t *testing.T) {
	images := &fakeImages{out: domain.ImageMap{1: {}, 3: {"p3.png"}}}
	text := &fakeText{out: domain.TextMap{1: "a", 2: "b"}}
	svc, _ := newTestService(t, images, text, false)

	result, err := svc.Process(context.Background(), inputPDF(t), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.PageMismatch{TextOnly: []int{2}, ImageOnly: []int{3}}, result.Mismatch)
}
