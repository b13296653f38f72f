// Package pdftest writes small, valid PDF files for tests.
//
// Pages carry Helvetica text and DCTDecode image XObjects. Identical image
// payloads are stored once and referenced from every page that uses them.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Page describes one page of a generated document.
type Page struct {
	// Text is drawn line by line; empty means the page has no text operators.
	Text string
	// Images are JPEG payloads drawn on the page, in order.
	Images [][]byte
}

// JPEG encodes a solid w×h image.
func JPEG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Write stores a generated document as dir/name and returns its path.
func Write(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	data, err := Bytes(pages...)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

// Bytes renders pages into a complete PDF file.
func Bytes(pages ...Page) ([]byte, error) {
	b := &builder{}

	// Fixed objects: 1 catalog, 2 page tree, 3 font.
	b.reserve(3)

	imageObjs := map[string]int{}
	pageObjs := make([]int, 0, len(pages))

	for _, p := range pages {
		names := make([]string, 0, len(p.Images))
		refs := make([]int, 0, len(p.Images))
		for _, data := range p.Images {
			objNr, ok := imageObjs[string(data)]
			if !ok {
				var err error
				objNr, err = b.addImage(data)
				if err != nil {
					return nil, err
				}
				imageObjs[string(data)] = objNr
			}
			names = append(names, fmt.Sprintf("Im%d", len(names)+1))
			refs = append(refs, objNr)
		}

		content := pageContent(p.Text, names)
		contentObj := b.add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		var xobjects strings.Builder
		for i, name := range names {
			fmt.Fprintf(&xobjects, " /%s %d 0 R", name, refs[i])
		}
		resources := "<< /Font << /F1 3 0 R >>"
		if len(names) > 0 {
			resources += " /XObject <<" + xobjects.String() + " >>"
		}
		resources += " >>"

		pageObjs = append(pageObjs, b.add(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R >>",
			resources, contentObj)))
	}

	kids := make([]string, len(pageObjs))
	for i, nr := range pageObjs {
		kids[i] = fmt.Sprintf("%d 0 R", nr)
	}
	b.set(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.set(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageObjs)))
	b.set(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	return b.render(), nil
}

func pageContent(text string, images []string) string {
	var c strings.Builder
	if text != "" {
		c.WriteString("BT\n/F1 18 Tf\n20 TL\n72 720 Td\n")
		for i, line := range strings.Split(text, "\n") {
			if i > 0 {
				c.WriteString("T*\n")
			}
			fmt.Fprintf(&c, "(%s) Tj\n", escape(line))
		}
		c.WriteString("ET\n")
	}
	for i, name := range images {
		y := 400 - i*110
		fmt.Fprintf(&c, "q\n100 0 0 100 72 %d cm\n/%s Do\nQ\n", y, name)
	}
	return c.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

type builder struct {
	objs [][]byte
}

func (b *builder) reserve(n int) {
	for i := 0; i < n; i++ {
		b.objs = append(b.objs, nil)
	}
}

func (b *builder) set(objNr int, body string) {
	b.objs[objNr-1] = []byte(body)
}

func (b *builder) add(body string) int {
	b.objs = append(b.objs, []byte(body))
	return len(b.objs)
}

func (b *builder) addImage(data []byte) (int, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("image payload is not a JPEG: %w", err)
	}
	cs := "/DeviceRGB"
	if cfg.ColorModel == color.GrayModel {
		cs = "/DeviceGray"
	}
	var obj bytes.Buffer
	fmt.Fprintf(&obj, "<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace %s /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
		cfg.Width, cfg.Height, cs, len(data))
	obj.Write(data)
	obj.WriteString("\nendstream")
	b.objs = append(b.objs, obj.Bytes())
	return len(b.objs), nil
}

func (b *builder) render() []byte {
	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(b.objs)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, xref)
	return out.Bytes()
}
