package gdocai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

// span is the first text segment of a layout, in runes of the document text.
type span struct {
	start, end int64
	ok         bool
}

func layoutSpan(layout *documentaipb.Document_Page_Layout) span {
	if layout == nil || layout.TextAnchor == nil || len(layout.TextAnchor.TextSegments) == 0 {
		return span{}
	}
	seg := layout.TextAnchor.TextSegments[0]
	return span{start: seg.StartIndex, end: seg.EndIndex, ok: true}
}

// contains reports whether the child span lies inside the parent span.
func (s span) contains(child span) bool {
	return s.ok && child.ok && child.start >= s.start && child.end <= s.end
}

// textFromLayout extracts text from a layout's text anchor segments
func textFromLayout(layout *documentaipb.Document_Page_Layout, runes []rune) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	result := strings.Builder{}
	totalRunes := len(runes)

	for _, seg := range layout.TextAnchor.TextSegments {
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > totalRunes {
			end = totalRunes
		}
		if start > end {
			start = end
		}
		result.WriteString(string(runes[start:end]))
	}
	return result.String()
}
