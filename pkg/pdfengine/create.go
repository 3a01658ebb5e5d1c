package pdfengine

import (
	"bytes"
	"fmt"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

// createPreviewPDF builds a PDF from the page images with the full text layer and the
// preview overlay.
func createPreviewPDF(doc hocr.HOCR, images [][]byte, rects map[int][]geom.Rect, cfg Config) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	for i, page := range doc.Pages {
		if err := addImagePage(pdf, page, images[i], i); err != nil {
			return nil, err
		}
		if err := drawTextLayer(pdf, page, cfg, i+1); err != nil {
			return nil, fmt.Errorf("failed to draw text layer for page %d: %w", i+1, err)
		}
		drawPreviewLayer(pdf, rects[i], cfg, i+1)
	}
	return pdf, nil
}

// createRedactedPDF builds a PDF from page images with the redacted regions painted
// black and a text layer drawn from the already redacted text model.
func createRedactedPDF(redacted hocr.HOCR, images [][]byte, rects map[int][]geom.Rect, cfg Config) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	for i, page := range redacted.Pages {
		img := images[i]
		if len(rects[i]) > 0 {
			var err error
			img, err = blackout(img, page.BBox, rects[i])
			if err != nil {
				return nil, fmt.Errorf("failed to redact image of page %d: %w", i+1, err)
			}
		}
		if err := addImagePage(pdf, page, img, i); err != nil {
			return nil, err
		}
		if err := drawTextLayer(pdf, page, cfg, i+1); err != nil {
			return nil, fmt.Errorf("failed to draw text layer for page %d: %w", i+1, err)
		}
	}
	return pdf, nil
}

// addImagePage adds a page sized to the hOCR page bbox with the image stretched across it.
func addImagePage(pdf *fpdf.Fpdf, page hocr.Page, data []byte, i int) error {
	w, h := page.BBox.X2, page.BBox.Y2
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	imageType, err := detectImageType(data)
	if err != nil {
		return fmt.Errorf("failed to detect image type for image %d: %w", i, err)
	}
	imageName := fmt.Sprintf("img%d", i)
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
	pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(data))
	pdf.ImageOptions(imageName, 0, 0, w, h, false, opts, 0, "")
	return pdf.Error()
}
