package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// largeFileSize is the size above which a warning is logged.
const largeFileSize = 100 * 1024 * 1024 // 100MB

// Validator provides input validation for PDF files
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *observability.Logger) *Validator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Validator{logger: logger}
}

// ValidatePDFPath checks that path names a readable file starting with a PDF
// header, whatever its extension. Every failure is a DocumentOpenError.
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.DocumentOpenError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DocumentOpenError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.DocumentOpenError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.DocumentOpenError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	// The header decides; the name is only a hint.
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		v.logger.Debug().Str("path", path).Str("extension", ext).Msg("input has no .pdf extension, checking header")
	}

	if info.Size() > largeFileSize {
		v.logger.Warn().Int64("size_mb", info.Size()/(1024*1024)).Str("path", path).
			Msg("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.DocumentOpenError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer file.Close()

	header := make([]byte, 1024)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return domain.DocumentOpenError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	// The header may be preceded by junk bytes; readers accept it within the first KB.
	if !bytes.Contains(header[:n], pdfMagic) {
		return domain.DocumentOpenError(fmt.Sprintf("missing PDF header: %s", path), nil)
	}

	return nil
}
