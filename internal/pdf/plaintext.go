package pdf

import (
	"fmt"
	"os"

	lpdf "github.com/ledongthuc/pdf"
)

// PlainText extracts text with the pure-Go ledongthuc/pdf reader. It needs
// no MuPDF but follows content-stream order rather than reconstructed layout.
type PlainText struct {
	textStage
}

// NewPlainText creates a ledongthuc/pdf backed text extractor.
func NewPlainText(opts TextOptions) *PlainText {
	return &PlainText{textStage: newTextStage("plain", opts, openPlain)}
}

type plainReader struct {
	file  *os.File
	r     *lpdf.Reader
	fonts map[string]*lpdf.Font
}

func openPlain(path string) (reader pageReader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader, err = nil, fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &plainReader{file: f, r: r, fonts: make(map[string]*lpdf.Font)}, nil
}

func (p *plainReader) numPages() int { return p.r.NumPage() }

func (p *plainReader) pageText(page int) (string, error) {
	pg := p.r.Page(page)
	if pg.V.IsNull() {
		return "", nil
	}

	// Fonts are shared across pages; cache them for the session.
	for _, name := range pg.Fonts() {
		if _, ok := p.fonts[name]; !ok {
			font := pg.Font(name)
			p.fonts[name] = &font
		}
	}
	return pg.GetPlainText(p.fonts)
}

func (p *plainReader) close() { _ = p.file.Close() }
