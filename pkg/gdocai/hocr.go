package gdocai

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/redactra/pkg/hocr"
)

// CreateHOCRStruct converts a Document AI proto directly to the HOCR struct
func CreateHOCRStruct(docProto *documentaipb.Document) (*hocr.HOCR, error) {
	runes := []rune(docProto.GetText())
	var hocrPages []hocr.Page
	for i, page := range docProto.Pages {
		pageNumber := int(page.PageNumber)
		if pageNumber == 0 {
			pageNumber = i + 1
		}
		ocrPage, err := CreateHOCRPage(page, runes, pageNumber)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNumber, err)
		}
		hocrPages = append(hocrPages, ocrPage)
	}
	return CreateHOCRDocument(docProto, hocrPages...), nil
}

// CreateHOCRDocument creates an HOCR document structure around the pages.
// If docProto is nil, default values will be used for document properties
func CreateHOCRDocument(docProto *documentaipb.Document, pages ...hocr.Page) *hocr.HOCR {
	docLang := "unknown"
	if docProto != nil {
		if lang := getDocumentLanguage(docProto); lang != "" {
			docLang = lang
		}
	}

	result := &hocr.HOCR{
		Title:    "Document OCR",
		Language: docLang,
		Metadata: map[string]string{
			"ocr-system":          "Document AI OCR",
			"ocr-number-of-pages": fmt.Sprintf("%d", len(pages)),
			"ocr-capabilities":    "ocrp_lang ocr_page ocr_carea ocr_par ocr_line ocrx_word",
			"ocr-langs":           docLang,
		},
		Pages: pages,
	}
	if langs := documentLanguages(pages); len(langs) > 0 {
		result.Metadata["ocr-langs"] = strings.Join(langs, ", ")
	}
	return result
}

// CreateHOCRPage converts a single Document AI page to an HOCR page. Blocks become
// areas, paragraphs and lines are nested by their text anchors, and lines that no
// paragraph claims sit directly on the page.
func CreateHOCRPage(page *documentaipb.Document_Page, runes []rune, pageNumber int) (hocr.Page, error) {
	dim := page.GetDimension()
	if dim == nil || dim.Width <= 0 || dim.Height <= 0 {
		return hocr.Page{}, fmt.Errorf("page has no dimension")
	}

	ocrPage := hocr.Page{
		ID:         fmt.Sprintf("page_%d", pageNumber),
		PageNumber: pageNumber,
		ImageName:  fmt.Sprintf("page_%d.png", pageNumber),
		BBox:       hocr.NewBoundingBox(0, 0, math.Round(float64(dim.Width)), math.Round(float64(dim.Height))),
		Metadata:   make(map[string]string),
	}
	if len(page.DetectedLanguages) > 0 {
		ocrPage.Lang = page.DetectedLanguages[0].LanguageCode
	}

	c := pageConverter{page: page, runes: runes, pageNumber: pageNumber}
	assignedParas := make(map[int]bool)
	assignedLines := make(map[int]bool)

	for aidx, block := range page.Blocks {
		area := hocr.Area{
			ID:       fmt.Sprintf("carea_%d_%d", pageNumber, aidx),
			BBox:     c.bbox(block.Layout),
			Metadata: make(map[string]string),
		}
		blockSpan := layoutSpan(block.Layout)
		for pidx, para := range page.Paragraphs {
			if assignedParas[pidx] || !blockSpan.contains(layoutSpan(para.Layout)) {
				continue
			}
			assignedParas[pidx] = true
			area.Paragraphs = append(area.Paragraphs, c.paragraph(para, pidx, assignedLines))
		}
		ocrPage.Areas = append(ocrPage.Areas, area)
	}

	for pidx, para := range page.Paragraphs {
		if assignedParas[pidx] {
			continue
		}
		ocrPage.Paragraphs = append(ocrPage.Paragraphs, c.paragraph(para, pidx, assignedLines))
	}

	for lidx, line := range page.Lines {
		if !assignedLines[lidx] {
			ocrPage.Lines = append(ocrPage.Lines, c.line(line, lidx))
		}
	}
	return ocrPage, nil
}

type pageConverter struct {
	page       *documentaipb.Document_Page
	runes      []rune
	pageNumber int
}

func (c pageConverter) paragraph(para *documentaipb.Document_Page_Paragraph, pidx int, assignedLines map[int]bool) hocr.Paragraph {
	out := hocr.Paragraph{
		ID:       fmt.Sprintf("par_%d_%d", c.pageNumber, pidx),
		BBox:     c.bbox(para.Layout),
		Metadata: make(map[string]string),
	}
	if len(para.DetectedLanguages) > 0 {
		out.Lang = para.DetectedLanguages[0].LanguageCode
	}
	paraSpan := layoutSpan(para.Layout)
	for lidx, line := range c.page.Lines {
		if assignedLines[lidx] || !paraSpan.contains(layoutSpan(line.Layout)) {
			continue
		}
		assignedLines[lidx] = true
		out.Lines = append(out.Lines, c.line(line, lidx))
	}
	return out
}

func (c pageConverter) line(line *documentaipb.Document_Page_Line, lidx int) hocr.Line {
	out := hocr.Line{
		ID:       fmt.Sprintf("line_%d_%d", c.pageNumber, lidx),
		BBox:     c.bbox(line.Layout),
		Metadata: make(map[string]string),
	}
	if len(line.DetectedLanguages) > 0 {
		out.Lang = line.DetectedLanguages[0].LanguageCode
	}

	lineSpan := layoutSpan(line.Layout)
	for tidx, token := range c.page.Tokens {
		if !lineSpan.contains(layoutSpan(token.Layout)) {
			continue
		}
		text := strings.Join(strings.Fields(textFromLayout(token.Layout, c.runes)), " ")
		if text == "" {
			continue
		}
		word := hocr.Word{
			ID:       fmt.Sprintf("word_%d_%d_%d", c.pageNumber, lidx, tidx),
			Text:     text,
			BBox:     c.bbox(token.Layout),
			Metadata: make(map[string]string),
		}
		if token.Layout != nil {
			word.Confidence = math.Round(float64(token.Layout.Confidence) * 100)
		}
		if len(token.DetectedLanguages) > 0 {
			word.Lang = token.DetectedLanguages[0].LanguageCode
		}
		out.Words = append(out.Words, word)
	}
	return out
}

// bbox converts a layout's bounding polygon to pixel coordinates of the page raster.
// Normalised vertices are preferred; absolute vertices are used when they are missing.
func (c pageConverter) bbox(layout *documentaipb.Document_Page_Layout) hocr.BoundingBox {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return hocr.BoundingBox{}
	}
	dim := c.page.GetDimension()

	var xs, ys []float64
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		for _, v := range nv {
			xs = append(xs, float64(v.X)*float64(dim.GetWidth()))
			ys = append(ys, float64(v.Y)*float64(dim.GetHeight()))
		}
	} else {
		for _, v := range poly.GetVertices() {
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
	}
	if len(xs) == 0 {
		return hocr.BoundingBox{}
	}
	sort.Float64s(xs)
	sort.Float64s(ys)
	return hocr.NewBoundingBox(
		math.Round(xs[0]), math.Round(ys[0]),
		math.Round(xs[len(xs)-1]), math.Round(ys[len(ys)-1]),
	)
}

// documentLanguages collects the languages used by pages, lines and words.
func documentLanguages(pages []hocr.Page) []string {
	seen := make(map[string]bool)
	add := func(lang string) {
		if lang != "" && lang != "unknown" {
			seen[lang] = true
		}
	}
	for _, page := range pages {
		add(page.Lang)
		for _, line := range page.TextLines() {
			add(line.Lang)
			for _, w := range line.Words {
				add(w.Lang)
			}
		}
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// getDocumentLanguage finds the most common language in the document
// by counting language occurrences across pages and tokens
func getDocumentLanguage(doc *documentaipb.Document) string {
	langCount := make(map[string]int)
	for _, page := range doc.Pages {
		for _, lang := range page.DetectedLanguages {
			langCount[lang.LanguageCode]++
		}
		for _, token := range page.Tokens {
			for _, lang := range token.DetectedLanguages {
				langCount[lang.LanguageCode]++
			}
		}
	}

	var mostCommonLang string
	var highestCount int
	for lang, count := range langCount {
		if count > highestCount || (count == highestCount && lang < mostCommonLang) {
			highestCount = count
			mostCommonLang = lang
		}
	}
	return mostCommonLang
}
