// Package pdfengine is an in-process document engine built on an hOCR text model,
// page raster images and, optionally, the source PDF.
//
// Page space for every page is the unit system of its hOCR page bbox with the origin at
// the top-left corner. Exports are produced with fpdf: the preview export keeps the
// source pages and draws translucent overlays on a toggleable layer, the permanent
// export rebuilds every page from its image with the redacted pixels painted black and
// re-creates the invisible text layer without the redacted words.
//
// Key Features:
//
// - Word and line geometry, case-insensitive literal search with per-line quads
// - Page rendering at any scale from the page images
// - Document information and existing /Redact annotations read from PDF bytes
// - Preview and permanent redaction exports with metadata stripping
//
// Main Functions:
//
// - New: Creates an engine from hOCR, page images and an optional source PDF
// - Redacted: Returns the hOCR model with every redacted word removed
// - DetectLayers: Lists optional content layers of a PDF
package pdfengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

// ErrNoPageImages is returned when an operation needs page rasters the engine was not given.
var ErrNoPageImages = errors.New("page images are required")

// Engine implements engine.Engine. It is not safe for concurrent use; reach it through
// an engine.Worker.
type Engine struct {
	doc    hocr.HOCR
	images [][]byte
	source []byte
	cfg    Config
	lines  [][]engine.Line
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine. It accepts either raw hOCR data ([]byte) or a parsed
// hOCR struct (hocr.HOCR or *hocr.HOCR). images holds one raster per page and may be
// nil; source holds the original PDF and may be nil.
func New(hocrInput interface{}, images [][]byte, source []byte, cfg Config) (*Engine, error) {
	var doc hocr.HOCR
	var err error

	switch h := hocrInput.(type) {
	case []byte:
		doc, err = hocr.ParseHOCR(h)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HOCR data: %w", err)
		}
	case hocr.HOCR:
		doc = h
	case *hocr.HOCR:
		if h == nil {
			return nil, fmt.Errorf("HOCR struct is nil")
		}
		doc = *h
	default:
		return nil, fmt.Errorf("unsupported HOCR input type: %T", hocrInput)
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("HOCR data contains no pages")
	}
	if len(images) > 0 {
		if len(images) < len(doc.Pages) {
			return nil, fmt.Errorf("not enough images (%d) for HOCR pages (%d)",
				len(images), len(doc.Pages))
		}
		for i, img := range images {
			if len(img) == 0 {
				return nil, fmt.Errorf("image %d is empty", i+1)
			}
			if _, err := detectImageType(img); err != nil {
				return nil, fmt.Errorf("image %d has invalid format: %w", i+1, err)
			}
		}
	}

	e := &Engine{doc: doc, images: images, source: source, cfg: cfg}
	e.lines = make([][]engine.Line, len(doc.Pages))
	for i, p := range doc.Pages {
		e.lines[i] = pageLines(p)
	}
	return e, nil
}

// HOCR returns the engine's text model.
func (e *Engine) HOCR() hocr.HOCR { return e.doc }

// PageCount returns the number of pages.
func (e *Engine) PageCount(ctx context.Context) (int, error) {
	return len(e.doc.Pages), nil
}

// PageBounds returns the page bbox.
func (e *Engine) PageBounds(ctx context.Context, index int) (geom.Box, error) {
	if err := e.checkPage(index); err != nil {
		return geom.Box{}, err
	}
	return e.doc.Pages[index].BBox.Box(), nil
}

// PageWords returns the words of a page in reading order.
func (e *Engine) PageWords(ctx context.Context, index int) ([]engine.Word, error) {
	if err := e.checkPage(index); err != nil {
		return nil, err
	}
	var words []engine.Word
	for _, l := range e.lines[index] {
		words = append(words, l.Words...)
	}
	return words, nil
}

// PageLines returns the text lines of a page in reading order.
func (e *Engine) PageLines(ctx context.Context, index int) ([]engine.Line, error) {
	if err := e.checkPage(index); err != nil {
		return nil, err
	}
	return e.lines[index], nil
}

// Metadata returns the document information of the source PDF. An engine without a
// source PDF has no metadata.
func (e *Engine) Metadata(ctx context.Context) (map[string]string, error) {
	if len(e.source) == 0 {
		return map[string]string{}, nil
	}
	return parseInfo(e.source), nil
}

func (e *Engine) checkPage(index int) error {
	if index < 0 || index >= len(e.doc.Pages) {
		return fmt.Errorf("page %d of %d: %w", index, len(e.doc.Pages), engine.ErrPageOutOfRange)
	}
	return nil
}

// pageLines converts the hOCR lines of a page, numbering them in reading order.
func pageLines(p hocr.Page) []engine.Line {
	var lines []engine.Line
	for _, hl := range p.TextLines() {
		ordinal := len(lines)
		line := engine.Line{}
		var texts []string
		for _, w := range hl.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			line.Words = append(line.Words, engine.Word{Text: text, BBox: w.BBox.Box(), Line: ordinal})
			texts = append(texts, text)
		}
		if len(line.Words) == 0 {
			continue
		}
		line.Text = strings.Join(texts, " ")
		line.BBox = hl.BBox.Box()
		if line.BBox.Width() <= 0 || line.BBox.Height() <= 0 {
			line.BBox = line.Words[0].BBox
			for _, w := range line.Words[1:] {
				line.BBox = line.BBox.Extend(w.BBox)
			}
		}
		lines = append(lines, line)
	}
	return lines
}
