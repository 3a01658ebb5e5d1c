package highlight

import (
	"testing"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/redaction"
)

func word(text string, line int, x0, y0, x1, y1 float64) engine.Word {
	return engine.Word{Text: text, Line: line, BBox: geom.Box{X0: x0, Y0: y0, X1: x1, Y1: y1}}
}

// twoLinePage has "Jane Doe lives" on line 0 and "in Berlin" on line 1.
func twoLinePage(lineKnown bool) Page {
	l0, l1 := 0, 1
	if !lineKnown {
		l0, l1 = -1, -1
	}
	return Page{
		DocumentKey: "doc",
		Index:       2,
		Bounds:      geom.Box{X1: 600, Y1: 800},
		Words: []engine.Word{
			// Deliberately out of reading order
			word("in", l1, 50, 130, 70, 150),
			word("Doe", l0, 110, 100, 150, 120),
			word("Jane", l0, 50, 100, 100, 120),
			word("lives", l0, 160, 102, 210, 122),
			word("Berlin", l1, 80, 130, 140, 150),
		},
	}
}

func TestFreehandMinimumArea(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		keep bool
	}{
		{"area 99", 9, 11, false},
		{"area 100", 10, 10, true},
		{"area 101", 1, 101, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Begin(twoLinePage(true), 300, 300)
			if d.Mode() != ModeFreehand {
				t.Fatalf("mode = %v, want freehand", d.Mode())
			}
			d.Move(300+tt.w, 300+tt.h)
			r, ok := d.Finalize()
			if ok != tt.keep {
				t.Fatalf("Finalize ok = %v, want %v", ok, tt.keep)
			}
			if !ok {
				return
			}
			if len(r.Parts) != 1 || r.Parts[0].Area() != tt.w*tt.h {
				t.Errorf("parts = %+v", r.Parts)
			}
			if r.Status != redaction.StatusManual || !r.ShouldApply || r.SearchText != "" {
				t.Errorf("redaction = %+v", r)
			}
		})
	}
}

func TestFreehandClampedToPage(t *testing.T) {
	d := Begin(twoLinePage(true), 580, 780)
	d.Move(700, 900)
	r, ok := d.Finalize()
	if !ok {
		t.Fatal("expected a redaction")
	}
	want := geom.Rect{X: 580, Y: 780, Width: 20, Height: 20}
	if r.Parts[0] != want {
		t.Errorf("part = %+v, want %+v", r.Parts[0], want)
	}
}

func TestFreehandNegativeDrag(t *testing.T) {
	d := Begin(twoLinePage(true), 400, 400)
	d.Move(380, 370)
	r, ok := d.Finalize()
	if !ok {
		t.Fatal("expected a redaction")
	}
	if want := (geom.Rect{X: 380, Y: 370, Width: 20, Height: 30}); r.Parts[0] != want {
		t.Errorf("part = %+v, want %+v", r.Parts[0], want)
	}
}

func TestTextSelectionOnePartPerLine(t *testing.T) {
	for _, known := range []bool{true, false} {
		page := twoLinePage(known)
		d := Begin(page, 120, 110) // on "Doe"
		if d.Mode() != ModeText {
			t.Fatalf("mode = %v, want text", d.Mode())
		}
		d.Move(100, 140) // on "Berlin"
		r, ok := d.Finalize()
		if !ok {
			t.Fatalf("known=%v: text highlight discarded", known)
		}
		want := []geom.Rect{
			{X: 110, Y: 100, Width: 100, Height: 22}, // Doe lives
			{X: 50, Y: 130, Width: 90, Height: 20},   // in Berlin
		}
		if len(r.Parts) != len(want) {
			t.Fatalf("known=%v: parts = %+v", known, r.Parts)
		}
		for i := range want {
			if r.Parts[i] != want[i] {
				t.Errorf("known=%v: part %d = %+v, want %+v", known, i, r.Parts[i], want[i])
			}
		}
		if r.PageIndex != 2 || r.DocumentKey != "doc" {
			t.Errorf("redaction = %+v", r)
		}
	}
}

func TestTextSelectionBackwards(t *testing.T) {
	d := Begin(twoLinePage(true), 100, 140) // "Berlin"
	d.Move(60, 110)                         // "Jane"
	r, _ := d.Finalize()
	if len(r.Parts) != 2 {
		t.Fatalf("parts = %+v", r.Parts)
	}
	if r.Parts[0].X != 50 || r.Parts[0].Width != 160 {
		t.Errorf("first line part = %+v", r.Parts[0])
	}
}

func TestMoveOverBlankKeepsEndWord(t *testing.T) {
	d := Begin(twoLinePage(true), 60, 110) // "Jane"
	d.Move(120, 110)                       // "Doe"
	d.Move(400, 400)                       // blank
	parts := d.Preview()
	if len(parts) != 1 || parts[0].X+parts[0].Width != 150 {
		t.Errorf("preview = %+v, want Jane..Doe", parts)
	}

	// A single click on a word is always kept
	single := Begin(twoLinePage(true), 60, 110)
	if r, ok := single.Finalize(); !ok || len(r.Parts) != 1 {
		t.Errorf("single word highlight = %+v, %v", r, ok)
	}
}

func TestStateMachine(t *testing.T) {
	var idle Drag
	if idle.State() != Idle {
		t.Errorf("zero drag state = %v", idle.State())
	}
	if _, ok := idle.Finalize(); ok {
		t.Error("idle drag finalized")
	}

	d := Begin(twoLinePage(true), 300, 300)
	if d.State() != Dragging {
		t.Errorf("state = %v, want Dragging", d.State())
	}
	d.Move(320, 320)
	if _, ok := d.Finalize(); !ok {
		t.Fatal("expected a redaction")
	}
	if d.State() != Finalized {
		t.Errorf("state = %v, want Finalized", d.State())
	}
	if d.Move(400, 400) {
		t.Error("Move after finalize reported true")
	}
	if _, ok := d.Finalize(); ok {
		t.Error("second Finalize produced a redaction")
	}
	if d.Preview() != nil {
		t.Error("Preview after finalize not empty")
	}
}
