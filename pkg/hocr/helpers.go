package hocr

import (
	"strings"
)

// TextLines flattens the page into visual lines in reading order: areas first, then
// paragraphs and lines that sit directly on the page. Words that have no enclosing
// line are grouped into one synthetic line per container.
func (p Page) TextLines() []Line {
	var lines []Line
	seen := make(map[string]bool)

	add := func(l Line) {
		if len(l.Words) == 0 {
			return
		}
		if l.ID != "" {
			if seen[l.ID] {
				return
			}
			seen[l.ID] = true
		}
		lines = append(lines, l)
	}
	addParagraph := func(para Paragraph) {
		for _, l := range para.Lines {
			add(l)
		}
		add(looseLine(para.Words))
	}

	for _, area := range p.Areas {
		for _, para := range area.Paragraphs {
			addParagraph(para)
		}
		for _, l := range area.Lines {
			add(l)
		}
		add(looseLine(area.Words))
	}
	for _, para := range p.Paragraphs {
		addParagraph(para)
	}
	for _, l := range p.Lines {
		add(l)
	}
	return lines
}

// looseLine wraps words without a parent line into a line spanning them.
func looseLine(words []Word) Line {
	if len(words) == 0 {
		return Line{}
	}
	bbox := words[0].BBox
	for _, w := range words[1:] {
		bbox = BoundingBoxFromBox(bbox.Box().Extend(w.BBox.Box()))
	}
	return Line{BBox: bbox, Words: words}
}

// Text joins the words of a line with single spaces.
func (l Line) Text() string {
	texts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		texts = append(texts, w.Text)
	}
	return strings.Join(texts, " ")
}

// ExtractHOCRText extracts all text from a document, one line per text line and
// pages separated by a blank line.
func ExtractHOCRText(doc *HOCR) string {
	var builder strings.Builder
	for _, page := range doc.Pages {
		builder.WriteString(PageText(page))
		builder.WriteString("\n")
	}
	return builder.String()
}

// PageText returns the text of one page, one line per text line.
func PageText(page Page) string {
	var builder strings.Builder
	for _, l := range page.TextLines() {
		builder.WriteString(l.Text())
		builder.WriteString("\n")
	}
	return builder.String()
}

// FilterWords returns a deep copy of the document that keeps only the words for which
// keep returns true. Lines left without words are dropped.
func (h HOCR) FilterWords(keep func(page int, w Word) bool) HOCR {
	out := h
	out.Metadata = copyMap(h.Metadata)
	out.Pages = make([]Page, len(h.Pages))

	for i, p := range h.Pages {
		keepWord := func(w Word) bool { return keep(i, w) }

		np := p
		np.Metadata = copyMap(p.Metadata)
		np.Areas = nil
		for _, a := range p.Areas {
			na := a
			na.Metadata = copyMap(a.Metadata)
			na.Paragraphs = filterParagraphs(a.Paragraphs, keepWord)
			na.Lines = filterLines(a.Lines, keepWord)
			na.Words = filterWords(a.Words, keepWord)
			np.Areas = append(np.Areas, na)
		}
		np.Paragraphs = filterParagraphs(p.Paragraphs, keepWord)
		np.Lines = filterLines(p.Lines, keepWord)
		out.Pages[i] = np
	}
	return out
}

func filterParagraphs(paras []Paragraph, keep func(Word) bool) []Paragraph {
	var out []Paragraph
	for _, p := range paras {
		np := p
		np.Metadata = copyMap(p.Metadata)
		np.Lines = filterLines(p.Lines, keep)
		np.Words = filterWords(p.Words, keep)
		out = append(out, np)
	}
	return out
}

func filterLines(lines []Line, keep func(Word) bool) []Line {
	var out []Line
	for _, l := range lines {
		words := filterWords(l.Words, keep)
		if len(words) == 0 {
			continue
		}
		nl := l
		nl.Metadata = copyMap(l.Metadata)
		nl.Words = words
		out = append(out, nl)
	}
	return out
}

func filterWords(words []Word, keep func(Word) bool) []Word {
	var out []Word
	for _, w := range words {
		if keep(w) {
			nw := w
			nw.Metadata = copyMap(w.Metadata)
			out = append(out, nw)
		}
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
