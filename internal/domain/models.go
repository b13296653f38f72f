package domain

import (
	"fmt"
	"sort"
	"time"
)

// Document represents the source PDF file being processed
type Document struct {
	FilePath   string
	TotalPages int
}

// ExtractedImage is one embedded raster object written for a page.
type ExtractedImage struct {
	PageNumber int
	Index      int    // 1-based, discovery order within the page
	Data       []byte // raw bytes as reported by the reader
	Extension  string
	Path       string
}

// ImageFileName returns the on-disk name for the index-th image of page.
func ImageFileName(page, index int, ext string) string {
	return fmt.Sprintf("page%d_image%d.%s", page, index, ext)
}

// ImageMap maps a page number to the ordered paths of its extracted images.
type ImageMap map[int][]string

// TextMap maps a page number to its trimmed plain text.
type TextMap map[int]string

// Pages returns the page numbers of m in ascending order.
func (m ImageMap) Pages() []int {
	return sortedKeys(m)
}

// Pages returns the page numbers of m in ascending order.
func (m TextMap) Pages() []int {
	return sortedKeys(m)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// PageRecord is the unit of output. Field order is part of the output format.
type PageRecord struct {
	Page   int      `json:"page" yaml:"page"`
	Text   string   `json:"text" yaml:"text"`
	Images []string `json:"images" yaml:"images"`
}

// OutputDocument is the ordered sequence of page records.
type OutputDocument []PageRecord

// PageMismatch lists pages seen by only one of the extraction stages.
type PageMismatch struct {
	TextOnly  []int
	ImageOnly []int
}

// Empty reports whether both stages saw the same pages.
func (m PageMismatch) Empty() bool {
	return len(m.TextOnly) == 0 && len(m.ImageOnly) == 0
}

// Result is what a completed run produced.
type Result struct {
	RunID      string
	Source     Document
	Mismatch   PageMismatch
	OutputPath string
	ImagesDir  string
	Document   OutputDocument
	ImageCount int
	Duration   time.Duration
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart         EventType = "start"
	EventStageStart    EventType = "stage_start"
	EventPageDone      EventType = "page_done"
	EventStageComplete EventType = "stage_complete"
	EventError         EventType = "error"
	EventComplete      EventType = "complete"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageImages Stage = "images"
	StageText   Stage = "text"
	StageBuild  Stage = "build"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	Stage      Stage       `json:"stage,omitempty"`
	PageNumber int         `json:"page_number,omitempty"`
	TotalPages int         `json:"total_pages,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
