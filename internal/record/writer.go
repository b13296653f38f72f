package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf-pages/internal/domain"
)

// Format is an output serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const indent = 4

// Encode serializes doc to w. Both formats keep record fields in
// page, text, images order. JSON is indented by four spaces; YAML is block
// style with each record as a "- page: N" sequence item.
func Encode(w io.Writer, doc domain.OutputDocument, format Format) error {
	if doc == nil {
		doc = domain.OutputDocument{}
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(indent)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Write serializes doc to path, creating parent directories and replacing
// any existing file.
func Write(path string, doc domain.OutputDocument, format Format) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.SerializationError(fmt.Sprintf("Failed to create directory %s", dir), err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return domain.SerializationError(fmt.Sprintf("Failed to create %s", path), err)
	}

	w := bufio.NewWriter(f)
	if err := Encode(w, doc, format); err != nil {
		f.Close()
		return domain.SerializationError(fmt.Sprintf("Failed to encode %s", path), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return domain.SerializationError(fmt.Sprintf("Failed to write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return domain.SerializationError(fmt.Sprintf("Failed to close %s", path), err)
	}
	return nil
}

// Read parses a document written by Write.
func Read(path string, format Format) (domain.OutputDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc domain.OutputDocument
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
