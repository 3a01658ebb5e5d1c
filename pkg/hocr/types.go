package hocr

import "github.com/gardar/redactra/pkg/geom"

// HOCR is a parsed hOCR document: the text model of every page of a document.
type HOCR struct {
	Title       string
	Description string
	Language    string
	Metadata    map[string]string // ocr-system, ocr-capabilities and similar head meta tags
	Pages       []Page
}

// Page is one page (class 'ocr_page'). Its BBox defines page space for the page.
type Page struct {
	ID         string
	Title      string // raw title attribute
	PageNumber int    // ppageno
	ImageName  string // page raster, relative to the hOCR file
	Lang       string
	BBox       BoundingBox
	Areas      []Area
	Paragraphs []Paragraph // paragraphs without an enclosing area
	Lines      []Line      // lines without an enclosing paragraph or area
	Metadata   map[string]string
}

// Class returns the hOCR class name.
func (Page) Class() string { return "ocr_page" }

// Area is a content block or column (class 'ocr_carea').
type Area struct {
	ID         string
	Lang       string
	BBox       BoundingBox
	Paragraphs []Paragraph
	Lines      []Line
	Words      []Word // words without an enclosing line
	Metadata   map[string]string
}

// Class returns the hOCR class name.
func (Area) Class() string { return "ocr_carea" }

// Paragraph is a paragraph (class 'ocr_par').
type Paragraph struct {
	ID       string
	Lang     string
	BBox     BoundingBox
	Lines    []Line
	Words    []Word // words without an enclosing line
	Metadata map[string]string
}

// Class returns the hOCR class name.
func (Paragraph) Class() string { return "ocr_par" }

// Line is one visual text line (class 'ocr_line').
type Line struct {
	ID       string
	Lang     string
	BBox     BoundingBox
	Baseline string
	Words    []Word
	Metadata map[string]string
}

// Class returns the hOCR class name.
func (Line) Class() string { return "ocr_line" }

// Word is one recognised word (class 'ocrx_word').
type Word struct {
	ID         string
	Text       string
	BBox       BoundingBox
	Confidence float64 // x_wconf, 0-100
	Lang       string
	Metadata   map[string]string
}

// Class returns the hOCR class name.
func (Word) Class() string { return "ocrx_word" }

// BoundingBox is the value of an hOCR 'bbox' property: top-left and bottom-right corners.
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// NewBoundingBox creates a bounding box from its corner coordinates.
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// BoundingBoxFromBox converts a page-space box to an hOCR bbox.
func BoundingBoxFromBox(b geom.Box) BoundingBox {
	return BoundingBox{X1: b.X0, Y1: b.Y0, X2: b.X1, Y2: b.Y1}
}

// Box converts the bbox to a page-space box.
func (b BoundingBox) Box() geom.Box {
	return geom.Box{X0: b.X1, Y0: b.Y1, X1: b.X2, Y1: b.Y2}
}

// Width of the bbox.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height of the bbox.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }
