package pdftest

import (
	"bytes"
	"image/color"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_XrefOffsetsPointAtObjects(t *testing.T) {
	jpg := JPEG(t, 4, 4, color.RGBA{R: 200, A: 255})
	data, err := Bytes(Page{Text: "Hello (World)", Images: [][]byte{jpg}}, Page{})
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
	require.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))

	entries := regexp.MustCompile(`(\d{10}) 00000 n `).FindAllSubmatch(data, -1)
	// catalog, pages, font, image, 2 contents, 2 pages
	require.Len(t, entries, 8)
	for i, m := range entries {
		off, err := strconv.Atoi(string(m[1]))
		require.NoError(t, err)
		want := strconv.Itoa(i+1) + " 0 obj"
		assert.True(t, bytes.HasPrefix(data[off:], []byte(want)), "object %d not at offset %d", i+1, off)
	}

	assert.Contains(t, string(data), `(Hello \(World\)) Tj`)
	assert.Contains(t, string(data), "/Count 2")
}

func TestBytes_SharedImageStoredOnce(t *testing.T) {
	jpg := JPEG(t, 2, 2, color.Gray{Y: 128})
	data, err := Bytes(Page{Images: [][]byte{jpg}}, Page{Images: [][]byte{jpg}})
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(data, []byte("/Subtype /Image")))
}

func TestBytes_RejectsNonJPEG(t *testing.T) {
	_, err := Bytes(Page{Images: [][]byte{[]byte("not a jpeg")}})
	assert.Error(t, err)
}
