// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
)

// Page is the canned content of one fake page.
type Page struct {
	Bounds geom.Box
	Words  []engine.Word
	// Matches maps a search literal to the occurrences SearchPage returns for it.
	Matches map[string][][]geom.Quad
}

// ExportCall records the arguments of one ExportDocument call.
type ExportCall struct {
	Annotations []engine.Annotation
	Permanent   bool
	Strip       []string
}

// Fake is a scripted engine. It is safe for concurrent use.
type Fake struct {
	Pages []Page
	Meta  map[string]string
	// Existing is returned by LoadExistingAnnotations.
	Existing []engine.Annotation
	// Output is returned by ExportDocument.
	Output []byte
	// Err, when set, is returned by every call.
	Err error
	// ExportGate, when set, blocks ExportDocument until it is closed.
	ExportGate chan struct{}

	mu       sync.Mutex
	searches []string
	exports  []ExportCall
}

// NewFake returns a fake with n blank pages of the given size.
func NewFake(n int, width, height float64) *Fake {
	f := &Fake{Meta: map[string]string{}}
	for i := 0; i < n; i++ {
		f.Pages = append(f.Pages, Page{
			Bounds:  geom.Box{X1: width, Y1: height},
			Matches: map[string][][]geom.Quad{},
		})
	}
	return f
}

// AddMatch registers one occurrence of literal on page made of the given rects.
func (f *Fake) AddMatch(page int, literal string, rects ...geom.Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var quads []geom.Quad
	for _, r := range rects {
		quads = append(quads, geom.RectToQuad(r))
	}
	p := &f.Pages[page]
	if p.Matches == nil {
		p.Matches = map[string][][]geom.Quad{}
	}
	p.Matches[literal] = append(p.Matches[literal], quads)
}

// Searches returns the search literals in call order, formatted as "page:literal".
func (f *Fake) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

// Exports returns the recorded ExportDocument calls.
func (f *Fake) Exports() []ExportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExportCall(nil), f.exports...)
}

func (f *Fake) page(index int) (*Page, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if index < 0 || index >= len(f.Pages) {
		return nil, fmt.Errorf("page %d: %w", index, engine.ErrPageOutOfRange)
	}
	return &f.Pages[index], nil
}

// PageCount implements engine.Engine.
func (f *Fake) PageCount(ctx context.Context) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return len(f.Pages), nil
}

// RenderPage implements engine.Engine. It returns a short marker instead of a PNG.
func (f *Fake) RenderPage(ctx context.Context, index int, scale float64) ([]byte, error) {
	if _, err := f.page(index); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("page %d @ %.2f", index, scale)), nil
}

// PageBounds implements engine.Engine.
func (f *Fake) PageBounds(ctx context.Context, index int) (geom.Box, error) {
	p, err := f.page(index)
	if err != nil {
		return geom.Box{}, err
	}
	return p.Bounds, nil
}

// PageWords implements engine.Engine.
func (f *Fake) PageWords(ctx context.Context, index int) ([]engine.Word, error) {
	p, err := f.page(index)
	if err != nil {
		return nil, err
	}
	return p.Words, nil
}

// PageLines implements engine.Engine by grouping words on their Line field.
func (f *Fake) PageLines(ctx context.Context, index int) ([]engine.Line, error) {
	p, err := f.page(index)
	if err != nil {
		return nil, err
	}
	var lines []engine.Line
	for _, w := range p.Words {
		if len(lines) == 0 || lines[len(lines)-1].Words[0].Line != w.Line {
			lines = append(lines, engine.Line{Text: w.Text, BBox: w.BBox, Words: []engine.Word{w}})
			continue
		}
		l := &lines[len(lines)-1]
		l.Text += " " + w.Text
		l.BBox = l.BBox.Extend(w.BBox)
		l.Words = append(l.Words, w)
	}
	return lines, nil
}

// SearchPage implements engine.Engine.
func (f *Fake) SearchPage(ctx context.Context, index int, literal string) ([][]geom.Quad, error) {
	f.mu.Lock()
	f.searches = append(f.searches, fmt.Sprintf("%d:%s", index, literal))
	f.mu.Unlock()

	p, err := f.page(index)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return p.Matches[literal], nil
}

// Metadata implements engine.Engine.
func (f *Fake) Metadata(ctx context.Context) (map[string]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Meta, nil
}

// ExportDocument implements engine.Engine.
func (f *Fake) ExportDocument(ctx context.Context, anns []engine.Annotation, permanent bool, strip []string) ([]byte, error) {
	if f.ExportGate != nil {
		<-f.ExportGate
	}
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	f.exports = append(f.exports, ExportCall{Annotations: anns, Permanent: permanent, Strip: strip})
	f.mu.Unlock()
	return f.Output, nil
}

// LoadExistingAnnotations implements engine.Engine.
func (f *Fake) LoadExistingAnnotations(ctx context.Context, file []byte) ([]engine.Annotation, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Existing, nil
}
