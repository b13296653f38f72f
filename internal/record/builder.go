// Package record joins per-page text and images into the output document
// and serializes it.
package record

import (
	"sort"

	"github.com/spherical/pdf-pages/internal/domain"
)

// KeyPolicy decides which page numbers make it into the output document.
type KeyPolicy string

const (
	// KeysText treats the text mapping as authoritative. Pages that only
	// the image stage saw are dropped.
	KeysText KeyPolicy = "text"
	// KeysUnion keeps every page either stage saw.
	KeysUnion KeyPolicy = "union"
	// KeysIntersect keeps only pages both stages saw.
	KeysIntersect KeyPolicy = "intersect"
)

// Mismatch lists pages seen by only one of the stages.
type Mismatch = domain.PageMismatch

// Compare returns the pages on which text and images disagree.
func Compare(text domain.TextMap, images domain.ImageMap) Mismatch {
	var m Mismatch
	for _, p := range text.Pages() {
		if _, ok := images[p]; !ok {
			m.TextOnly = append(m.TextOnly, p)
		}
	}
	for _, p := range images.Pages() {
		if _, ok := text[p]; !ok {
			m.ImageOnly = append(m.ImageOnly, p)
		}
	}
	return m
}

// Build joins text and images on page number, ascending. Pages without an
// image entry get an empty list; pages without a text entry (only reachable
// under KeysUnion) get empty text.
func Build(text domain.TextMap, images domain.ImageMap, policy KeyPolicy) domain.OutputDocument {
	pages := selectPages(text, images, policy)

	doc := make(domain.OutputDocument, 0, len(pages))
	for _, p := range pages {
		paths := images[p]
		if paths == nil {
			paths = []string{}
		}
		doc = append(doc, domain.PageRecord{
			Page:   p,
			Text:   text[p],
			Images: paths,
		})
	}
	return doc
}

func selectPages(text domain.TextMap, images domain.ImageMap, policy KeyPolicy) []int {
	switch policy {
	case KeysUnion:
		seen := make(map[int]struct{}, len(text)+len(images))
		for p := range text {
			seen[p] = struct{}{}
		}
		for p := range images {
			seen[p] = struct{}{}
		}
		pages := make([]int, 0, len(seen))
		for p := range seen {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		return pages
	case KeysIntersect:
		var pages []int
		for _, p := range text.Pages() {
			if _, ok := images[p]; ok {
				pages = append(pages, p)
			}
		}
		return pages
	default:
		return text.Pages()
	}
}
