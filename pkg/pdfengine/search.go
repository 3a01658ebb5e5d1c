package pdfengine

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
)

// position locates one rune of the folded page text: word -1 marks a separator.
type position struct {
	line, word, offset int
}

// SearchPage finds every non-overlapping occurrence of literal on a page, ignoring case
// and collapsing whitespace. Each occurrence yields one quad per line it touches; words
// matched only in part are cut at the proportional character position.
func (e *Engine) SearchPage(ctx context.Context, index int, literal string) ([][]geom.Quad, error) {
	if err := e.checkPage(index); err != nil {
		return nil, err
	}
	fold := cases.Fold()
	needle := []rune(strings.Join(strings.Fields(fold.String(literal)), " "))
	if len(needle) == 0 {
		return nil, nil
	}

	lines := e.lines[index]
	folded := make([][][]rune, len(lines))
	var hay []rune
	var pos []position
	for li, l := range lines {
		folded[li] = make([][]rune, len(l.Words))
		for wi, w := range l.Words {
			if len(hay) > 0 {
				hay = append(hay, ' ')
				pos = append(pos, position{line: li, word: -1})
			}
			fw := []rune(strings.Join(strings.Fields(fold.String(w.Text)), " "))
			folded[li][wi] = fw
			for off, r := range fw {
				hay = append(hay, r)
				pos = append(pos, position{line: li, word: wi, offset: off})
			}
		}
	}

	var matches [][]geom.Quad
	for start := 0; start+len(needle) <= len(hay); {
		if !runesEqual(hay[start:start+len(needle)], needle) {
			start++
			continue
		}
		matches = append(matches, matchQuads(lines, folded, pos[start:start+len(needle)]))
		start += len(needle)
	}
	return matches, nil
}

// matchQuads builds one quad per line covered by the matched positions.
func matchQuads(lines []engine.Line, folded [][][]rune, span []position) []geom.Quad {
	type fragment struct {
		word, first, last int
	}
	var order []int
	byLine := make(map[int][]fragment)

	for _, p := range span {
		if p.word < 0 {
			continue
		}
		frags, ok := byLine[p.line]
		if !ok {
			order = append(order, p.line)
		}
		if n := len(frags); n > 0 && frags[n-1].word == p.word {
			frags[n-1].last = p.offset
		} else {
			frags = append(frags, fragment{word: p.word, first: p.offset, last: p.offset})
		}
		byLine[p.line] = frags
	}

	quads := make([]geom.Quad, 0, len(order))
	for _, li := range order {
		var box geom.Box
		for i, f := range byLine[li] {
			w := lines[li].Words[f.word]
			n := float64(len(folded[li][f.word]))
			width := w.BBox.Width()
			part := geom.Box{
				X0: w.BBox.X0 + width*float64(f.first)/n,
				Y0: w.BBox.Y0,
				X1: w.BBox.X0 + width*float64(f.last+1)/n,
				Y1: w.BBox.Y1,
			}
			if i == 0 {
				box = part
			} else {
				box = box.Extend(part)
			}
		}
		quads = append(quads, geom.RectToQuad(box.Rect()))
	}
	return quads
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
