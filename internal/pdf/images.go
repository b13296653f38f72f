package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/pdf-pages/internal/domain"
	"github.com/spherical/pdf-pages/internal/observability"
)

// pdfcpu otherwise creates a config directory under the user's home on first use.
var disableConfigDir sync.Once

// extAliases maps pdfcpu file types onto the extensions MuPDF reports.
var extAliases = map[string]string{
	"jpg": "jpeg",
	"tif": "tiff",
}

// ImageExtractor writes embedded images using pdfcpu's object model.
type ImageExtractor struct {
	imagesDir string
	validator *Validator
	logger    *observability.Logger
}

// NewImageExtractor returns an extractor writing into imagesDir.
func NewImageExtractor(imagesDir string, logger *observability.Logger) *ImageExtractor {
	disableConfigDir.Do(api.DisableConfigDir)
	if logger == nil {
		logger = observability.Nop()
	}
	return &ImageExtractor{
		imagesDir: imagesDir,
		validator: NewValidator(logger),
		logger:    logger.WithStage(string(domain.StageImages)),
	}
}

// Extract implements domain.ImageExtractor.
func (e *ImageExtractor) Extract(ctx context.Context, pdfPath string, onPage domain.PageFunc) (domain.ImageMap, error) {
	if err := e.validator.ValidatePDFPath(pdfPath); err != nil {
		return nil, err
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, domain.DocumentOpenError("Failed to open PDF", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, domain.DocumentOpenError("Failed to parse PDF", err)
	}

	if err := os.MkdirAll(e.imagesDir, 0o755); err != nil {
		return nil, domain.ImageWriteError(fmt.Sprintf("Failed to create images directory %s", e.imagesDir), err)
	}

	total := pdfCtx.PageCount
	images := make(domain.ImageMap, total)
	written := 0

	for pageNr := 1; pageNr <= total; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageLog := e.logger.With().Int("page", pageNr).Logger()
		extracted, err := e.extractPage(pdfCtx, pageNr, pageLog)
		if err != nil {
			return nil, err
		}

		paths := make([]string, 0, len(extracted))
		for _, img := range extracted {
			if err := os.WriteFile(img.Path, img.Data, 0o644); err != nil {
				return nil, domain.ImageWriteError(fmt.Sprintf("Failed to write %s", img.Path), err)
			}
			paths = append(paths, img.Path)
		}
		images[pageNr] = paths
		written += len(paths)

		pageLog.Debug().Int("images", len(paths)).Msg("page images written")
		if onPage != nil {
			onPage(pageNr, total)
		}
	}

	e.logger.Info().Int("pages", total).Int("images", written).Str("dir", e.imagesDir).Msg("image extraction complete")
	return images, nil
}

// extractPage resolves every image referenced by pageNr, in the order the
// page paints them, and assigns each its output path.
func (e *ImageExtractor) extractPage(pdfCtx *model.Context, pageNr int, log *observability.Logger) ([]domain.ExtractedImage, error) {
	byObj, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
	if err != nil {
		return nil, domain.ExtractionError(fmt.Sprintf("Failed to extract images of page %d", pageNr), err)
	}

	rank, err := drawOrder(pdfCtx, pageNr)
	if err != nil {
		log.Debug().Err(err).Msg("content order unavailable, ordering images by object number")
	}

	objNrs := make([]int, 0, len(byObj))
	for objNr := range byObj {
		objNrs = append(objNrs, objNr)
	}
	sortByDrawOrder(objNrs, rank)

	out := make([]domain.ExtractedImage, 0, len(objNrs))
	for _, objNr := range objNrs {
		img := byObj[objNr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, domain.ExtractionError(fmt.Sprintf("Failed to read image object %d on page %d", objNr, pageNr), err)
		}

		index := len(out) + 1
		ext := NormalizeExtension(img.FileType)
		out = append(out, domain.ExtractedImage{
			PageNumber: pageNr,
			Index:      index,
			Data:       data,
			Extension:  ext,
			Path:       filepath.Join(e.imagesDir, domain.ImageFileName(pageNr, index, ext)),
		})
	}
	return out, nil
}

// sortByDrawOrder orders objNrs by rank; unranked objects follow in ascending
// object number.
func sortByDrawOrder(objNrs []int, rank map[int]int) {
	sort.Slice(objNrs, func(i, j int) bool {
		ri, iok := rank[objNrs[i]]
		rj, jok := rank[objNrs[j]]
		switch {
		case iok && jok && ri != rj:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return objNrs[i] < objNrs[j]
		}
	})
}

// NormalizeExtension lower-cases a reader file type, strips a leading dot
// and maps aliases (jpg, tif) to the names MuPDF uses.
func NormalizeExtension(fileType string) string {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
	if alias, ok := extAliases[ext]; ok {
		return alias
	}
	if ext == "" {
		return "bin"
	}
	return ext
}
