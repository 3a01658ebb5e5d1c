package pdfengine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

// pageRects groups annotation quads by page as rectangles.
func pageRects(anns []engine.Annotation) map[int][]geom.Rect {
	rects := make(map[int][]geom.Rect)
	for _, a := range anns {
		for _, q := range a.Quads {
			r := geom.QuadToRect(q)
			if r.Width > 0 && r.Height > 0 {
				rects[a.PageIndex] = append(rects[a.PageIndex], r)
			}
		}
	}
	return rects
}

// Redacted returns a copy of the text model without the words that intersect an
// annotated region. Searching the result finds nothing that was redacted.
func (e *Engine) Redacted(anns []engine.Annotation) hocr.HOCR {
	rects := pageRects(anns)
	return e.doc.FilterWords(func(page int, w hocr.Word) bool {
		box := w.BBox.Box().Rect()
		for _, r := range rects[page] {
			if box.Intersects(r) {
				return false
			}
		}
		return true
	})
}

// blackout decodes a page image, paints the page-space rects black in its pixels and
// returns the result PNG encoded.
func blackout(data []byte, page hocr.BoundingBox, rects []geom.Rect) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	black := image.NewUniform(color.Black)
	for _, r := range rects {
		x0, y0 := normalizeCoords(r.X, r.Y, page.X2, page.Y2, float64(b.Dx()), float64(b.Dy()))
		x1, y1 := normalizeCoords(r.X+r.Width, r.Y+r.Height, page.X2, page.Y2, float64(b.Dx()), float64(b.Dy()))
		px := image.Rect(
			int(math.Floor(x0)), int(math.Floor(y0)),
			int(math.Ceil(x1)), int(math.Ceil(y1)),
		).Intersect(dst.Bounds())
		draw.Draw(dst, px, black, image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
