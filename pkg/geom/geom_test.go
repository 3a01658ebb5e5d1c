package geom

import "testing"

func TestQuadToRect(t *testing.T) {
	tests := []struct {
		name string
		quad Quad
		want Rect
	}{
		{
			name: "axis aligned",
			quad: Quad{10, 20, 50, 20, 10, 30, 50, 30},
			want: Rect{X: 10, Y: 20, Width: 40, Height: 10},
		},
		{
			name: "rotated",
			quad: Quad{10, 0, 20, 10, 0, 10, 10, 20},
			want: Rect{X: 0, Y: 0, Width: 20, Height: 20},
		},
		{
			name: "degenerate",
			quad: Quad{5, 5, 5, 5, 5, 5, 5, 5},
			want: Rect{X: 5, Y: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuadToRect(tt.quad)
			if got != tt.want {
				t.Errorf("QuadToRect(%v) = %+v, want %+v", tt.quad, got, tt.want)
			}
			if got.Width < 0 || got.Height < 0 {
				t.Errorf("negative size: %+v", got)
			}
		})
	}
}

func TestRectQuadRoundTrip(t *testing.T) {
	r := Rect{X: 3, Y: 4, Width: 10, Height: 2}
	if got := QuadToRect(RectToQuad(r)); got != r {
		t.Errorf("round trip = %+v, want %+v", got, r)
	}
}

func TestUnion(t *testing.T) {
	b := Union(
		Rect{X: 10, Y: 10, Width: 5, Height: 5},
		Rect{X: 0, Y: 12, Width: 2, Height: 20},
	)
	want := Box{X0: 0, Y0: 10, X1: 15, Y1: 32}
	if b != want {
		t.Errorf("Union = %+v, want %+v", b, want)
	}

	if got := Union(); got != (Box{}) {
		t.Errorf("Union() = %+v, want zero box", got)
	}
}

func TestBoxContains(t *testing.T) {
	b := Box{X0: 0, Y0: 0, X1: 10, Y1: 10}
	for _, p := range [][2]float64{{0, 0}, {10, 10}, {5, 5}} {
		if !b.Contains(p[0], p[1]) {
			t.Errorf("expected %v inside %+v", p, b)
		}
	}
	for _, p := range [][2]float64{{-0.1, 5}, {5, 10.1}} {
		if b.Contains(p[0], p[1]) {
			t.Errorf("expected %v outside %+v", p, b)
		}
	}
}

func TestRectFromPointsNormalises(t *testing.T) {
	r := RectFromPoints(30, 40, 10, 5)
	want := Rect{X: 10, Y: 5, Width: 20, Height: 35}
	if r != want {
		t.Errorf("RectFromPoints = %+v, want %+v", r, want)
	}
}

func TestClampRect(t *testing.T) {
	bounds := Box{X0: 0, Y0: 0, X1: 100, Y1: 200}
	r := ClampRect(Rect{X: -10, Y: 150, Width: 50, Height: 100}, bounds)
	want := Rect{X: 0, Y: 150, Width: 40, Height: 50}
	if r != want {
		t.Errorf("ClampRect = %+v, want %+v", r, want)
	}
}

func TestIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	if !a.Intersects(Rect{X: 5, Y: 5, Width: 10, Height: 10}) {
		t.Error("overlapping rects should intersect")
	}
	if a.Intersects(Rect{X: 10, Y: 0, Width: 5, Height: 5}) {
		t.Error("touching rects should not intersect")
	}
}
