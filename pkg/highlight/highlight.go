// Package highlight turns a pointer drag on one page into a manual redaction.
//
// A drag that starts on a word snaps to words: every word between the start word and the
// word under the pointer, in reading order, is covered, with one part per visual line. A
// drag that starts on blank space draws a freehand rectangle clamped to the page; freehand
// rectangles smaller than MinFreehandArea are discarded as accidental clicks.
package highlight

import (
	"math"
	"sort"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/redaction"
)

// MinFreehandArea is the smallest freehand rectangle, in square page units, that is kept.
const MinFreehandArea = 100

// Mode is the kind of highlight a drag produces.
type Mode int

const (
	// ModeText snaps to word boxes.
	ModeText Mode = iota
	// ModeFreehand draws a plain rectangle.
	ModeFreehand
)

// State is the drag state machine: Idle → Dragging → Finalized.
type State int

const (
	Idle State = iota
	Dragging
	Finalized
)

// Page is the read-only geometry of one page.
type Page struct {
	DocumentKey string
	Index       int
	Bounds      geom.Box
	Words       []engine.Word
}

// Drag is one in-progress highlight. The zero value is Idle.
type Drag struct {
	page  Page
	words []engine.Word // reading order
	lines []int         // visual line of each word

	state    State
	mode     Mode
	startX   float64
	startY   float64
	curX     float64
	curY     float64
	startIdx int
	endIdx   int
}

// Begin starts a drag at the page-space point (x, y).
func Begin(page Page, x, y float64) *Drag {
	x, y = page.Bounds.Clamp(x, y)
	words, lines := readingOrder(page.Words)
	d := &Drag{
		page:   page,
		words:  words,
		lines:  lines,
		state:  Dragging,
		mode:   ModeFreehand,
		startX: x, startY: y,
		curX: x, curY: y,
	}
	if i := wordAt(words, x, y); i >= 0 {
		d.mode = ModeText
		d.startIdx, d.endIdx = i, i
	}
	return d
}

// State returns the current drag state.
func (d *Drag) State() State { return d.state }

// Mode returns the highlight kind chosen at Begin.
func (d *Drag) Mode() Mode { return d.mode }

// Move updates the pointer position. In text mode the end word follows the pointer
// only while it is over a word. Move reports false once the drag is no longer active.
func (d *Drag) Move(x, y float64) bool {
	if d.state != Dragging {
		return false
	}
	d.curX, d.curY = d.page.Bounds.Clamp(x, y)
	if d.mode == ModeText {
		if i := wordAt(d.words, d.curX, d.curY); i >= 0 {
			d.endIdx = i
		}
	}
	return true
}

// Preview returns the parts the drag would produce if finalized now.
func (d *Drag) Preview() []geom.Rect {
	if d.state != Dragging {
		return nil
	}
	return d.parts()
}

// Finalize ends the drag. It returns false when no redaction results: the drag was
// not active, or a freehand rectangle fell below MinFreehandArea.
func (d *Drag) Finalize() (redaction.Redaction, bool) {
	if d.state != Dragging {
		return redaction.Redaction{}, false
	}
	d.state = Finalized

	parts := d.parts()
	if len(parts) == 0 {
		return redaction.Redaction{}, false
	}
	if d.mode == ModeFreehand && parts[0].Area() < MinFreehandArea {
		return redaction.Redaction{}, false
	}
	return redaction.NewManual(d.page.DocumentKey, d.page.Index, parts...), true
}

// parts computes the current highlight rectangles.
func (d *Drag) parts() []geom.Rect {
	if d.mode == ModeFreehand {
		r := geom.RectFromPoints(d.startX, d.startY, d.curX, d.curY)
		return []geom.Rect{geom.ClampRect(r, d.page.Bounds)}
	}

	lo, hi := d.startIdx, d.endIdx
	if lo > hi {
		lo, hi = hi, lo
	}

	// One part per visual line
	var parts []geom.Rect
	var cur geom.Box
	curLine := -1
	for i := lo; i <= hi; i++ {
		b := d.words[i].BBox
		if d.lines[i] != curLine {
			if curLine >= 0 {
				parts = append(parts, cur.Rect())
			}
			cur, curLine = b, d.lines[i]
			continue
		}
		cur = cur.Extend(b)
	}
	if curLine >= 0 {
		parts = append(parts, cur.Rect())
	}
	return parts
}

// wordAt returns the index of the first word whose box contains the point, or -1.
func wordAt(words []engine.Word, x, y float64) int {
	for i, w := range words {
		if w.BBox.Contains(x, y) {
			return i
		}
	}
	return -1
}

// readingOrder sorts words by visual line, then left to right, and returns the line of
// each sorted word. Engine-provided line numbers are used when every word has one;
// otherwise lines are found by vertical overlap.
func readingOrder(words []engine.Word) ([]engine.Word, []int) {
	sorted := append([]engine.Word(nil), words...)
	lines := make([]int, len(sorted))

	known := len(sorted) > 0
	for _, w := range sorted {
		if w.Line < 0 {
			known = false
			break
		}
	}

	if known {
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Line != sorted[j].Line {
				return sorted[i].Line < sorted[j].Line
			}
			return sorted[i].BBox.X0 < sorted[j].BBox.X0
		})
		for i, w := range sorted {
			lines[i] = w.Line
		}
		return sorted, lines
	}

	// Cluster top to bottom: a word joins the current line when it overlaps
	// the line's vertical extent by at least half of the smaller height.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BBox.Y0+sorted[i].BBox.Y1 < sorted[j].BBox.Y0+sorted[j].BBox.Y1
	})
	line := -1
	var top, bottom float64
	for i, w := range sorted {
		b := w.BBox
		overlap := math.Min(bottom, b.Y1) - math.Max(top, b.Y0)
		minH := math.Min(bottom-top, b.Height())
		if line < 0 || overlap < minH/2 || overlap <= 0 {
			line++
			top, bottom = b.Y0, b.Y1
		} else {
			top, bottom = math.Min(top, b.Y0), math.Max(bottom, b.Y1)
		}
		lines[i] = line
	}

	idx := make([]int, len(sorted))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if lines[idx[a]] != lines[idx[b]] {
			return lines[idx[a]] < lines[idx[b]]
		}
		return sorted[idx[a]].BBox.X0 < sorted[idx[b]].BBox.X0
	})
	outWords := make([]engine.Word, len(sorted))
	outLines := make([]int, len(sorted))
	for i, j := range idx {
		outWords[i] = sorted[j]
		outLines[i] = lines[j]
	}
	return outWords, outLines
}
