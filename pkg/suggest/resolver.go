// Package suggest resolves semantic redaction suggestions into geometric redactions.
//
// Producers (an AI agent, the regex extractor, an NER sidecar) describe what to redact in
// terms of text: a phrase on a page, a block between two phrases, or a range of pages.
// The Resolver turns each suggestion into redactions anchored to page geometry using the
// document engine's search, one suggestion at a time.
//
// Resolution rules:
//
// - Point: every occurrence found on the page becomes its own redaction; the resolver never
// guesses which occurrence was meant. A point whose text is a substring or superstring of an
// active redaction on the same page (or of one created earlier in the batch) is dropped.
// - TextRange: full-width block from the top of the first start occurrence to the bottom of
// the lowest end occurrence, split into one redaction per page.
// - PageRange: one full-page redaction per page.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/redaction"
)

// MinRangeHeight is the smallest height of a single-page text range redaction.
const MinRangeHeight = 4

// Prefixes of the labels stored as the search text of range redactions.
const (
	rangeLabelPrefix = "[Range: "
	pagesLabelPrefix = "[Pages "
)

// Resolver resolves suggestion batches for one open document.
type Resolver struct {
	Engine engine.Engine
	// DocumentKey owns the created redactions. Suggestions naming another document
	// are skipped; suggestions without a key are assigned to this one.
	DocumentKey string
	Logger      *slog.Logger
}

// NewResolver creates a resolver for the document served by eng.
func NewResolver(eng engine.Engine, documentKey string, logger *slog.Logger) *Resolver {
	return &Resolver{Engine: eng, DocumentKey: documentKey, Logger: logger}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// resolution carries the state of one Resolve call.
type resolution struct {
	report  Report
	created []redaction.Redaction
	active  []redaction.Redaction // existing non-ignored redactions of the document
	fold    cases.Caser
}

// Resolve applies a batch to coll and returns the new collection. Retractions are applied
// first, then suggestions in batch order, each engine call awaited before the next.
// If an engine call fails the batch is abandoned and coll is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, coll redaction.Collection, batch Batch) (redaction.Collection, Report, error) {
	next, removed := coll.RemoveSuggested(batch.Remove...)

	res := &resolution{
		report: Report{Removed: removed},
		fold:   cases.Fold(),
	}
	for _, red := range next.ForDocument(r.DocumentKey) {
		if red.Status != redaction.StatusIgnored {
			res.active = append(res.active, red)
		}
	}

	for i, s := range batch.Suggestions {
		if key := s.Metadata().DocumentKey; key != "" && key != r.DocumentKey {
			res.report.Skipped++
			continue
		}
		if invalidPages(s) {
			r.logger().Warn("suggestion has an invalid page range", "index", i, "suggestion", s)
			res.report.Skipped++
			continue
		}

		var err error
		switch s := s.(type) {
		case Point:
			err = r.resolvePoint(ctx, res, s)
		case TextRange:
			err = r.resolveTextRange(ctx, res, s)
		case PageRange:
			err = r.resolvePageRange(ctx, res, s)
		default:
			err = fmt.Errorf("unsupported suggestion type %T", s)
		}
		if errors.Is(err, engine.ErrPageOutOfRange) {
			r.logger().Warn("suggestion references a page outside the document", "index", i, "error", err)
			res.report.Skipped++
			continue
		}
		if err != nil {
			return coll, Report{}, fmt.Errorf("resolve suggestion %d: %w", i, err)
		}
	}

	res.report.Created = len(res.created)
	r.logger().Debug("resolved suggestion batch",
		"document", r.DocumentKey,
		"created", res.report.Created,
		"subsumed", res.report.Subsumed,
		"notFound", res.report.NotFound,
		"removed", res.report.Removed,
		"skipped", res.report.Skipped)

	return next.Add(res.created...), res.report, nil
}

// resolvePoint searches the page and creates one redaction per occurrence.
func (r *Resolver) resolvePoint(ctx context.Context, res *resolution, s Point) error {
	if res.subsumed(s.PageIndex, s.Text) {
		res.report.Subsumed++
		return nil
	}

	occurrences, err := r.Engine.SearchPage(ctx, s.PageIndex, s.Text)
	if err != nil {
		return fmt.Errorf("search page %d for %q: %w", s.PageIndex, s.Text, err)
	}
	if len(occurrences) == 0 {
		res.report.NotFound++
		r.logger().Debug("suggested text not found", "page", s.PageIndex, "text", s.Text)
		return nil
	}

	for _, quads := range occurrences {
		if len(quads) == 0 {
			continue
		}
		parts := make([]redaction.Part, 0, len(quads))
		for _, q := range quads {
			parts = append(parts, geom.QuadToRect(q))
		}
		res.add(s.Meta.apply(redaction.NewSuggested(r.DocumentKey, s.PageIndex, s.Text, parts...)))
	}
	return nil
}

// resolveTextRange covers the block between two phrases, possibly across pages.
func (r *Resolver) resolveTextRange(ctx context.Context, res *resolution, s TextRange) error {
	startHits, err := r.Engine.SearchPage(ctx, s.StartPage, s.StartText)
	if err != nil {
		return fmt.Errorf("search page %d for %q: %w", s.StartPage, s.StartText, err)
	}
	endHits, err := r.Engine.SearchPage(ctx, s.EndPage, s.EndText)
	if err != nil {
		return fmt.Errorf("search page %d for %q: %w", s.EndPage, s.EndText, err)
	}
	first, err := r.Engine.PageBounds(ctx, s.StartPage)
	if err != nil {
		return fmt.Errorf("bounds of page %d: %w", s.StartPage, err)
	}
	last, err := r.Engine.PageBounds(ctx, s.EndPage)
	if err != nil {
		return fmt.Errorf("bounds of page %d: %w", s.EndPage, err)
	}

	// Start at the top of the first start occurrence, or the page top
	startY := first.Y0
	if len(startHits) > 0 && len(startHits[0]) > 0 {
		startY = geom.QuadToRect(startHits[0][0]).Y
	} else {
		res.report.NotFound++
	}

	// End at the bottom of the lowest end occurrence, or the page bottom
	endY := last.Y1
	found := false
	for _, quads := range endHits {
		for _, q := range quads {
			b := geom.QuadToRect(q).Box()
			if !found || b.Y1 > endY {
				endY = b.Y1
			}
			found = true
		}
	}
	if !found {
		res.report.NotFound++
	}

	label := fmt.Sprintf(rangeLabelPrefix+"%q→%q]", s.StartText, s.EndText)
	newRange := func(page int, part geom.Rect) {
		res.add(s.Meta.apply(redaction.NewSuggested(r.DocumentKey, page, label, part)))
	}

	if s.StartPage == s.EndPage {
		newRange(s.StartPage, geom.Rect{
			X:      first.X0,
			Y:      startY,
			Width:  first.Width(),
			Height: math.Max(endY-startY, MinRangeHeight),
		})
		return nil
	}

	newRange(s.StartPage, geom.Rect{X: first.X0, Y: startY, Width: first.Width(), Height: first.Y1 - startY})
	for p := s.StartPage + 1; p < s.EndPage; p++ {
		bounds, err := r.Engine.PageBounds(ctx, p)
		if err != nil {
			return fmt.Errorf("bounds of page %d: %w", p, err)
		}
		newRange(p, bounds.Rect())
	}
	newRange(s.EndPage, geom.Rect{X: last.X0, Y: last.Y0, Width: last.Width(), Height: endY - last.Y0})
	return nil
}

// resolvePageRange covers every page of the range completely.
func (r *Resolver) resolvePageRange(ctx context.Context, res *resolution, s PageRange) error {
	n, err := r.Engine.PageCount(ctx)
	if err != nil {
		return fmt.Errorf("page count: %w", err)
	}
	if s.ToPage >= n {
		return fmt.Errorf("pages %d-%d of %d: %w", s.FromPage, s.ToPage, n, engine.ErrPageOutOfRange)
	}
	label := fmt.Sprintf(pagesLabelPrefix+"%d–%d]", s.FromPage+1, s.ToPage+1)

	pages := make([]geom.Box, 0, s.ToPage-s.FromPage+1)
	for p := s.FromPage; p <= s.ToPage; p++ {
		bounds, err := r.Engine.PageBounds(ctx, p)
		if err != nil {
			return fmt.Errorf("bounds of page %d: %w", p, err)
		}
		pages = append(pages, bounds)
	}
	for i, bounds := range pages {
		res.add(s.Meta.apply(redaction.NewSuggested(r.DocumentKey, s.FromPage+i, label, bounds.Rect())))
	}
	return nil
}

// add records a redaction created by this batch.
func (res *resolution) add(red redaction.Redaction) {
	res.created = append(res.created, red)
}

// subsumed reports whether text overlaps the search text of an active redaction on the
// page, or of one created earlier in the batch. Comparison is case-insensitive and works
// in both directions. Range labels name their anchors, not the covered text, so they
// never subsume.
func (res *resolution) subsumed(page int, text string) bool {
	needle := res.fold.String(text)
	check := func(reds []redaction.Redaction) bool {
		for _, red := range reds {
			if red.PageIndex != page || red.SearchText == "" || red.Status == redaction.StatusIgnored {
				continue
			}
			if isRangeLabel(red.SearchText) {
				continue
			}
			other := res.fold.String(red.SearchText)
			if containsEither(needle, other) {
				return true
			}
		}
		return false
	}
	return check(res.active) || check(res.created)
}

func isRangeLabel(text string) bool {
	return strings.HasPrefix(text, rangeLabelPrefix) || strings.HasPrefix(text, pagesLabelPrefix)
}

// invalidPages reports suggestions with a negative page or a reversed range.
func invalidPages(s Suggestion) bool {
	switch s := s.(type) {
	case Point:
		return s.PageIndex < 0
	case TextRange:
		return s.StartPage < 0 || s.EndPage < s.StartPage
	case PageRange:
		return s.FromPage < 0 || s.ToPage < s.FromPage
	}
	return false
}

func containsEither(a, b string) bool {
	return len(a) > 0 && len(b) > 0 && (strings.Contains(a, b) || strings.Contains(b, a))
}
