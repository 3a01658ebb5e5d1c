package hocr

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strconv"
	"strings"
	"text/template"
)

//go:embed templates/hocr.tmpl
var templateFS embed.FS

// GenerateHOCRDocument renders the document as hOCR HTML using the embedded template.
func GenerateHOCRDocument(doc *HOCR) (string, error) {
	tmpl, err := template.New("hocr.tmpl").Funcs(template.FuncMap{
		"trim":      strings.TrimSpace,
		"esc":       html.EscapeString,
		"bbox":      formatBBox,
		"pageTitle": pageTitle,
	}).ParseFS(templateFS, "templates/hocr.tmpl")
	if err != nil {
		return "", fmt.Errorf("error parsing hOCR template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("error rendering hOCR template: %w", err)
	}

	return buf.String(), nil
}

// formatBBox renders a bbox title property.
func formatBBox(b BoundingBox) string {
	return "bbox " + strings.Join([]string{
		formatFloat(b.X1), formatFloat(b.Y1), formatFloat(b.X2), formatFloat(b.Y2),
	}, " ")
}

// pageTitle renders the title attribute of an ocr_page element.
func pageTitle(p Page) string {
	parts := []string{}
	if p.ImageName != "" {
		parts = append(parts, fmt.Sprintf("image %q", p.ImageName))
	}
	parts = append(parts, formatBBox(p.BBox), fmt.Sprintf("ppageno %d", p.PageNumber))
	return html.EscapeString(strings.Join(parts, "; "))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
