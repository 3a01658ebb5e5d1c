package pdfengine

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

// layerName formats a per-page layer name.
func layerName(base string, pageNum int) string {
	if pageNum > 0 {
		return fmt.Sprintf("%s (Page %d)", base, pageNum)
	}
	return base
}

// drawTextLayer draws the words of a page as invisible, selectable text on a layer.
// The pageNum parameter is used to create unique layer names for each page.
func drawTextLayer(pdf *fpdf.Fpdf, page hocr.Page, cfg Config, pageNum int) error {
	lines := page.TextLines()
	if len(lines) == 0 {
		return nil
	}

	layer := pdf.AddLayer(layerName(cfg.TextLayer, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.Font.Size)

	if cfg.Debug {
		pdf.SetTextColor(255, 0, 0) // highlight text in red
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors := 0
	wordCount := 0
	for _, line := range lines {
		for _, word := range line.Words {
			drawWord(pdf, word, cfg, &encodingErrors)
			wordCount++
		}
	}

	if !cfg.Debug {
		pdf.SetAlpha(1.0, "Normal")
	}
	pdf.EndLayer()

	// Report encoding errors if more than a threshold
	if wordCount > 0 && encodingErrors > 0 && encodingErrors > wordCount/10 {
		return fmt.Errorf("character encoding issues in %d of %d words",
			encodingErrors, wordCount)
	}
	return nil
}

// drawWord renders a single word onto the text layer
func drawWord(pdf *fpdf.Fpdf, word hocr.Word, cfg Config, encodingErrors *int) {
	x, y := word.BBox.X1, word.BBox.Y1
	wordWidth := word.BBox.Width()

	// Convert text to ISO-8859-1 to avoid PDF encoding issues
	latin1, err := charmap.ISO8859_1.NewEncoder().String(word.Text)
	if err != nil {
		*encodingErrors++
		latin1 = word.Text
	}

	strWidth := pdf.GetStringWidth(latin1)
	if strWidth > 0 {
		pdf.SetFontSize(cfg.Font.Size * wordWidth / strWidth)
	}

	fontSize, _ := pdf.GetFontSize()
	y += fontSize * cfg.Font.AscentRatio

	pdf.Text(x, y, latin1)
	pdf.SetFontSize(cfg.Font.Size)

	if cfg.Debug {
		pdf.Rect(x, word.BBox.Y1, wordWidth, word.BBox.Height(), "D")
	}
}

// drawPreviewLayer marks redaction regions with translucent rectangles on their own layer.
func drawPreviewLayer(pdf *fpdf.Fpdf, rects []geom.Rect, cfg Config, pageNum int) {
	if len(rects) == 0 {
		return
	}
	layer := pdf.AddLayer(layerName(cfg.PreviewLayer, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetAlpha(cfg.PreviewAlpha, "Multiply")
	pdf.SetFillColor(cfg.PreviewColor[0], cfg.PreviewColor[1], cfg.PreviewColor[2])
	for _, r := range rects {
		pdf.Rect(r.X, r.Y, r.Width, r.Height, "F")
	}
	pdf.SetAlpha(1.0, "Normal")
	pdf.EndLayer()
}
