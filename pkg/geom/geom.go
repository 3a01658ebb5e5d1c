// Package geom implements the rectangle and quad math shared by the redaction packages.
//
// All coordinates are in page space: origin at the top-left corner of the page, y growing
// downwards, units matching the document engine (independent of any display zoom).
//
// Key Types:
//
// - Quad: four corner points as returned by a text search, possibly rotated
// - Rect: an axis-aligned rectangle stored as origin plus size
// - Box: an axis-aligned envelope stored as two corners, used for page and word bounds
package geom

import "math"

// Quad holds four corner points as x0,y0,x1,y1,x2,y2,x3,y3.
// The corner order is not significant for normalisation.
type Quad [8]float64

// Rect is an axis-aligned rectangle. Width and Height are never negative.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box is an axis-aligned envelope given by its top-left and bottom-right corners.
type Box struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// QuadToRect returns the minimal axis-aligned rectangle covering all four corners of q.
func QuadToRect(q Quad) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < 8; i += 2 {
		minX = math.Min(minX, q[i])
		maxX = math.Max(maxX, q[i])
		minY = math.Min(minY, q[i+1])
		maxY = math.Max(maxY, q[i+1])
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// RectToQuad converts r to a quad in upper-left, upper-right, lower-left, lower-right order.
func RectToQuad(r Rect) Quad {
	x1, y1 := r.X+r.Width, r.Y+r.Height
	return Quad{r.X, r.Y, x1, r.Y, r.X, y1, x1, y1}
}

// RectFromPoints builds the rectangle spanned by two arbitrary points.
func RectFromPoints(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

// Union returns the envelope of all rects. Callers must pass at least one rect;
// an empty call returns the zero Box.
func Union(rects ...Rect) Box {
	if len(rects) == 0 {
		return Box{}
	}
	b := rects[0].Box()
	for _, r := range rects[1:] {
		b = b.Extend(r.Box())
	}
	return b
}

// Area returns Width*Height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Box converts r to its envelope form.
func (r Rect) Box() Box {
	return Box{X0: r.X, Y0: r.Y, X1: r.X + r.Width, Y1: r.Y + r.Height}
}

// Intersects reports whether r and o share a region of positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Rect converts b to origin plus size form.
func (b Box) Rect() Rect {
	return RectFromPoints(b.X0, b.Y0, b.X1, b.Y1)
}

// Width of the box.
func (b Box) Width() float64 { return b.X1 - b.X0 }

// Height of the box.
func (b Box) Height() float64 { return b.Y1 - b.Y0 }

// Contains reports whether the point lies inside b, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// Extend returns the envelope of b and o.
func (b Box) Extend(o Box) Box {
	return Box{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Clamp limits a point to the box.
func (b Box) Clamp(x, y float64) (float64, float64) {
	return math.Max(b.X0, math.Min(x, b.X1)), math.Max(b.Y0, math.Min(y, b.Y1))
}

// ClampRect cuts r down to the part that lies within bounds.
// A rect entirely outside bounds collapses to zero size on the nearest edge.
func ClampRect(r Rect, bounds Box) Rect {
	b := r.Box()
	x0, y0 := bounds.Clamp(b.X0, b.Y0)
	x1, y1 := bounds.Clamp(b.X1, b.Y1)
	return RectFromPoints(x0, y0, x1, y1)
}
