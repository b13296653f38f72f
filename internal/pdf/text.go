package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
)

// TextOptions configures a text extractor.
type TextOptions struct {
	// Strict turns a page extraction error into a failed run instead of an empty page.
	Strict bool
	Logger *observability.Logger
}

// NewTextExtractor returns the extractor for the named engine ("fitz" or "plain").
func NewTextExtractor(engine string, opts TextOptions) (domain.TextExtractor, error) {
	switch engine {
	case "fitz", "":
		return NewFitzText(opts), nil
	case "plain":
		return NewPlainText(opts), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown text engine %q", engine), nil)
	}
}

// pageReader is one open read session over a document.
type pageReader interface {
	numPages() int
	// pageText returns the raw text of the 1-based page.
	pageText(page int) (string, error)
	close()
}

// FitzText extracts reading-order text with MuPDF's structured text layer.
type FitzText struct {
	textStage
}

// NewFitzText creates a go-fitz backed text extractor.
func NewFitzText(opts TextOptions) *FitzText {
	return &FitzText{textStage: newTextStage("fitz", opts, openFitz)}
}

type fitzReader struct {
	doc *fitz.Document
}

func openFitz(path string) (pageReader, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &fitzReader{doc: doc}, nil
}

func (r *fitzReader) numPages() int { return r.doc.NumPage() }

func (r *fitzReader) pageText(page int) (string, error) {
	return r.doc.Text(page - 1)
}

func (r *fitzReader) close() { _ = r.doc.Close() }

// textStage holds the engine-independent loop shared by the text extractors.
type textStage struct {
	engine    string
	open      func(path string) (pageReader, error)
	strict    bool
	validator *Validator
	logger    *observability.Logger
}

func newTextStage(engine string, opts TextOptions, open func(string) (pageReader, error)) textStage {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return textStage{
		engine:    engine,
		open:      open,
		strict:    opts.Strict,
		validator: NewValidator(logger),
		logger:    logger.WithStage(string(domain.StageText)).With().Str("engine", engine).Logger(),
	}
}

// Extract implements domain.TextExtractor.
func (s textStage) Extract(ctx context.Context, pdfPath string, onPage domain.PageFunc) (domain.TextMap, error) {
	if err := s.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}

	reader, err := s.open(pdfPath)
	if err != nil {
		return nil, domain.DocumentOpenError("Failed to open PDF", err)
	}
	defer reader.close()

	total := reader.numPages()
	texts := make(domain.TextMap, total)
	empty := 0

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := s.safePageText(reader, page)
		if err != nil {
			if s.strict {
				return nil, domain.ExtractionError(fmt.Sprintf("Failed to extract text of page %d", page), err)
			}
			s.logger.Debug().Err(err).Int("page", page).Msg("text extraction failed, page left empty")
			raw = ""
		}

		text := strings.TrimSpace(raw)
		if text == "" {
			empty++
		}
		texts[page] = text

		if onPage != nil {
			onPage(page, total)
		}
	}

	s.logger.Info().Int("pages", total).Int("empty_pages", empty).Msg("text extraction complete")
	return texts, nil
}

// safePageText converts a reader panic on a malformed page into an error.
func (s textStage) safePageText(r pageReader, page int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic reading page %d: %v", page, rec)
		}
	}()
	return r.pageText(page)
}
