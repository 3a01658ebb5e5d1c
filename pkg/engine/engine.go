// Package engine defines the document engine contract consumed by the redaction resolvers
// and the exporter, plus the plumbing used to reach an engine safely.
//
// A document engine renders pages, exposes word geometry, searches page text and produces
// exported documents. Engines are not reentrant: callers reach them through a Worker, which
// serialises every call on a single goroutine, and discard superseded results with a Generation.
//
// Main Types:
//
// - Engine: the capability contract implemented by pdfengine and by test fakes
// - Worker: serialising wrapper that exposes an Engine as a remote object
// - Generation: last-request-wins guard for debounced operations
package engine

import (
	"context"
	"errors"

	"github.com/gardar/redactra/pkg/geom"
)

// ErrPageOutOfRange is returned by engines when a page index is outside the document.
var ErrPageOutOfRange = errors.New("page index out of range")

// Word is one word box on a page.
type Word struct {
	Text string   `json:"text"`
	BBox geom.Box `json:"bbox"`
	// Line is the ordinal of the visual line holding the word, or -1 if the engine
	// does not know line membership.
	Line int `json:"line"`
}

// Line is one visual line of text on a page.
type Line struct {
	Text  string   `json:"text"`
	BBox  geom.Box `json:"bbox"`
	Words []Word   `json:"words"`
}

// Annotation is one redaction region in the engine's export format.
type Annotation struct {
	PageIndex int         `json:"pageIndex"`
	Quads     []geom.Quad `json:"quads"`
}

// Engine is the document engine capability. Every call is a suspend point.
type Engine interface {
	// PageCount returns the number of pages in the open document.
	PageCount(ctx context.Context) (int, error)
	// RenderPage rasterises a page at the given scale and returns PNG bytes.
	RenderPage(ctx context.Context, index int, scale float64) ([]byte, error)
	// PageBounds returns the page rectangle in page space.
	PageBounds(ctx context.Context, index int) (geom.Box, error)
	// PageWords returns the word boxes of a page in reading order.
	PageWords(ctx context.Context, index int) ([]Word, error)
	// PageLines returns the line text model of a page.
	PageLines(ctx context.Context, index int) ([]Line, error)
	// SearchPage returns one entry per occurrence of literal, each a list of quads.
	SearchPage(ctx context.Context, index int, literal string) ([][]geom.Quad, error)
	// Metadata returns the document information fields.
	Metadata(ctx context.Context) (map[string]string, error)
	// ExportDocument produces a new document with the annotations applied.
	ExportDocument(ctx context.Context, anns []Annotation, permanent bool, strip []string) ([]byte, error)
	// LoadExistingAnnotations extracts redaction annotations already embedded in a file.
	LoadExistingAnnotations(ctx context.Context, file []byte) ([]Annotation, error)
}
