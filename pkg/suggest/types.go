package suggest

import (
	"github.com/gardar/redactra/pkg/redaction"
)

// Meta holds the annotations every suggestion kind carries through to its redactions.
type Meta struct {
	DocumentKey string               `json:"documentKey,omitempty"`
	Confidence  redaction.Confidence `json:"confidence,omitempty"`
	Person      string               `json:"person,omitempty"`
	PersonGroup string               `json:"personGroup,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Rule        *redaction.Rule      `json:"rule,omitempty"`
}

// Suggestion is one of Point, TextRange or PageRange.
type Suggestion interface {
	Metadata() Meta
	isSuggestion()
}

// Point asks for every occurrence of Text on one page.
type Point struct {
	Meta
	Text      string `json:"text"`
	PageIndex int    `json:"pageIndex"`
}

// TextRange asks for the block from StartText on StartPage to EndText on EndPage.
type TextRange struct {
	Meta
	StartText string `json:"startText"`
	StartPage int    `json:"startPage"`
	EndText   string `json:"endText"`
	EndPage   int    `json:"endPage"`
}

// PageRange asks for whole pages FromPage to ToPage, inclusive.
type PageRange struct {
	Meta
	FromPage int `json:"fromPage"`
	ToPage   int `json:"toPage"`
}

// Metadata implements Suggestion.
func (m Meta) Metadata() Meta { return m }

func (Point) isSuggestion()     {}
func (TextRange) isSuggestion() {}
func (PageRange) isSuggestion() {}

// Batch is one producer delivery: new suggestions plus ids of earlier suggestions
// the producer retracts.
type Batch struct {
	Suggestions []Suggestion
	Remove      []string
}

// Report counts what a Resolve call did.
type Report struct {
	Created  int `json:"created"`
	Subsumed int `json:"subsumed"`
	NotFound int `json:"notFound"`
	Removed  int `json:"removed"`
	// Skipped counts suggestions for other documents or pages outside the document.
	Skipped int `json:"skipped"`
}

// apply copies the suggestion's annotations onto a fresh redaction.
func (m Meta) apply(r redaction.Redaction) redaction.Redaction {
	r.Confidence = m.Confidence
	r.Person = m.Person
	r.PersonGroup = m.PersonGroup
	r.Reason = m.Reason
	if m.Rule != nil {
		rule := *m.Rule
		r.Rule = &rule
	}
	return r
}
