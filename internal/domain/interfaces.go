package domain

import "context"

// PageFunc is called after a page has been handled by an extraction stage.
// It may be nil.
type PageFunc func(page, total int)

// ImageExtractor writes the embedded images of a PDF to disk
type ImageExtractor interface {
	// Extract returns, for every page 1..N, the paths of the images written for it
	Extract(ctx context.Context, pdfPath string, onPage PageFunc) (ImageMap, error)
}

// TextExtractor reads per-page plain text from a PDF
type TextExtractor interface {
	// Extract returns, for every page 1..N, the page's trimmed text
	Extract(ctx context.Context, pdfPath string, onPage PageFunc) (TextMap, error)
}

// Pipeline orchestrates extraction and record building
type Pipeline interface {
	Process(ctx context.Context, pdfPath string, eventCh chan<- StreamEvent) (*Result, error)
}
