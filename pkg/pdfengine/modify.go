package pdfengine

import (
	"bytes"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

// modifyExistingPDF imports the source pages and overlays the preview rectangles. The
// text layer is added unless the source already carries one.
func modifyExistingPDF(
	inputPDFData []byte,
	doc hocr.HOCR,
	rects map[int][]geom.Rect,
	cfg Config,
) (pdf *fpdf.Fpdf, err error) {
	// gofpdi panics on input it cannot parse
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to import source PDF: %v", r)
		}
	}()

	pdf = fpdf.New("P", "pt", "", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(inputPDFData))
	withText := !HasTextLayer(inputPDFData, cfg.TextLayer)

	for i, page := range doc.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.BBox.X2, Ht: page.BBox.Y2})

		tpl := importer.ImportPageFromStream(pdf, &rs, i+1, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, page.BBox.X2, 0)

		if withText {
			if err := drawTextLayer(pdf, page, cfg, i+1); err != nil {
				return nil, fmt.Errorf("failed to draw text layer for page %d: %w", i+1, err)
			}
		}
		drawPreviewLayer(pdf, rects[i], cfg, i+1)
	}
	return pdf, pdf.Error()
}
