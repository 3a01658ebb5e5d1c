package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/redactra/pkg/engine"
)

// ExportDocument produces a new PDF with the annotations applied. A preview keeps the
// original page content and overlays the regions on a layer; a permanent export burns
// the regions into the page images and drops the words beneath them. Metadata fields
// named in strip are left out, every other field of the source is carried over.
func (e *Engine) ExportDocument(ctx context.Context, anns []engine.Annotation, permanent bool, strip []string) ([]byte, error) {
	for _, a := range anns {
		if err := e.checkPage(a.PageIndex); err != nil {
			return nil, fmt.Errorf("annotation: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := e.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range strip {
		for k := range meta {
			if strings.EqualFold(k, strings.TrimSpace(key)) {
				delete(meta, k)
			}
		}
	}

	rects := pageRects(anns)
	var pdf *fpdf.Fpdf
	switch {
	case permanent:
		if len(e.images) == 0 {
			return nil, fmt.Errorf("permanent export: %w", ErrNoPageImages)
		}
		pdf, err = createRedactedPDF(e.Redacted(anns), e.images, rects, e.cfg)
	case len(e.source) > 0:
		pdf, err = modifyExistingPDF(e.source, e.doc, rects, e.cfg)
	case len(e.images) > 0:
		pdf, err = createPreviewPDF(e.doc, e.images, rects, e.cfg)
	default:
		return nil, fmt.Errorf("preview export needs a source PDF or %w", ErrNoPageImages)
	}
	if err != nil {
		return nil, err
	}

	applyMetadata(pdf, meta)
	pdf.SetCompression(e.cfg.Compress)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	e.cfg.logger().Debug("exported document",
		"permanent", permanent,
		"annotations", len(anns),
		"metadata", len(meta),
		"bytes", buf.Len())
	return buf.Bytes(), nil
}

// applyMetadata copies the kept information fields to the output. fpdf always writes
// creation and modification dates; when they were stripped the export time is used.
// fpdf only writes the standard Info keys, so custom fields go into the XMP packet as
// pdfx properties, where Metadata reads them back.
func applyMetadata(pdf *fpdf.Fpdf, meta map[string]string) {
	setters := map[string]func(string, bool){
		"Title":    pdf.SetTitle,
		"Author":   pdf.SetAuthor,
		"Subject":  pdf.SetSubject,
		"Keywords": pdf.SetKeywords,
		"Creator":  pdf.SetCreator,
		"Producer": pdf.SetProducer,
	}
	var custom []string
	for k, v := range meta {
		if set, ok := setters[k]; ok {
			set(v, true)
			continue
		}
		switch k {
		case "CreationDate", "ModDate", "Trapped":
		default:
			if xmlName(k) {
				custom = append(custom, k)
			}
		}
	}
	if len(custom) > 0 {
		sort.Strings(custom)
		pdf.SetXmpMetadata(customXMP(custom, meta))
	}
	if t, ok := parsePDFDate(meta["CreationDate"]); ok {
		pdf.SetCreationDate(t)
	}
	if t, ok := parsePDFDate(meta["ModDate"]); ok {
		pdf.SetModificationDate(t)
	}
}
