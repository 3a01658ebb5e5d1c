// Package entities produces redaction suggestions from page text without an AI agent:
// a pattern extractor for structured personal data and a client for an NER sidecar.
//
// Both producers emit suggest.Point values, so their output is resolved, de-duplicated
// and lifecycle-managed exactly like agent suggestions.
package entities

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/redaction"
	"github.com/gardar/redactra/pkg/suggest"
)

// Category names one family of patterns.
type Category string

const (
	Phone Category = "phone"
	Email Category = "email"
	IBAN  Category = "iban"
	Date  Category = "date"
	ID    Category = "id"
)

// AllCategories lists every category in extraction order.
var AllCategories = []Category{Phone, Email, IBAN, Date, ID}

// PageText is the plain text of one page.
type PageText struct {
	PageIndex int    `json:"pageIndex"`
	Text      string `json:"text"`
}

// months used by the written-out date patterns.
var months = []string{
	// EN
	"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December",
	// DE
	"Januar", "Februar", "März", "Mai", "Juni", "Juli", "Oktober", "Dezember",
	// FR
	"janvier", "février", "mars", "avril", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre",
	// ES
	"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	// IT
	"gennaio", "febbraio", "aprile", "maggio", "giugno", "luglio", "settembre", "ottobre", "dicembre",
	// NL
	"januari", "februari", "maart", "mei", "augustus",
	// Abbreviations
	"Jan", "Feb", "Mär", "Mar", "Apr", "Jun", "Jul", "Aug", "Sep", "Sept", "Okt", "Oct", "Nov", "Dez", "Dec",
}

func datePattern() string {
	seen := map[string]bool{}
	var alts []string
	for _, m := range months {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			alts = append(alts, regexp2.Escape(m))
		}
	}
	// Longest names first so "September" wins over "Sep"
	sort.SliceStable(alts, func(i, j int) bool {
		return utf8.RuneCountInString(alts[i]) > utf8.RuneCountInString(alts[j])
	})
	m := strings.Join(alts, "|")
	return `(?:` +
		`\b\d{1,2}[./\-]\d{1,2}[./\-]\d{2,4}\b` + // 01.01.2024, 1/1/24
		`|\b\d{4}[./\-]\d{1,2}[./\-]\d{1,2}\b` + // 2024-01-01
		`|\b\d{1,2}[./]\d{2,4}\b` + // 04/2019
		`|\b\d{1,2}\.?\s*(?:` + m + `)\.?\s*\d{2,4}\b` + // 1. Januar 2024
		`|\b(?:` + m + `)\.?\s+\d{2,4}\b` + // Januar 2024
		`|\d{4}年\d{1,2}月\d{1,2}日` +
		`|\d{4}년\s*\d{1,2}월\s*\d{1,2}일` +
		`)`
}

// patterns holds the source and person group of each category.
var patterns = map[Category]struct {
	expr        string
	opts        regexp2.RegexOptions
	personGroup string
}{
	Phone: {
		expr:        `(?:\+\d{2}[\s.-]?\(?\d{2,5}\)?[\s.-]?\d{3,}[\s.-]?\d{0,6}|\b0\d{2,4}[\s/.-]\d{3,}[\s/.-]?\d{0,6}\b)`,
		personGroup: "Phone numbers",
	},
	Email: {
		expr:        `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		personGroup: "Email addresses",
	},
	IBAN: {
		expr:        `\b[A-Z]{2}\d{2}\s?\d{4}\s?\d{4}\s?\d{4}\s?\d{4}\s?\d{0,2}\b`,
		personGroup: "Bank details",
	},
	Date: {
		expr:        datePattern(),
		opts:        regexp2.IgnoreCase,
		personGroup: "Dates",
	},
	ID: {
		// At least three digits somewhere in the token
		expr:        `\b(?=\S*\d\S*\d\S*\d)[A-Za-z0-9][A-Za-z0-9./-]{6,}[A-Za-z0-9]\b`,
		personGroup: "Identifiers",
	},
}

// ParseCategories converts names such as "email" to categories. An empty list selects all.
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return AllCategories, nil
	}
	var cats []Category
	for _, n := range names {
		c := Category(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := patterns[c]; !ok {
			return nil, fmt.Errorf("unknown entity category %q", n)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// Extractor finds structured personal data with regular expressions.
type Extractor struct {
	categories []Category
	compiled   map[Category]*regexp2.Regexp
}

// NewExtractor compiles the patterns of the given categories, or of all categories
// when none are given.
func NewExtractor(categories ...Category) (*Extractor, error) {
	if len(categories) == 0 {
		categories = AllCategories
	}
	e := &Extractor{categories: categories, compiled: map[Category]*regexp2.Regexp{}}
	for _, c := range categories {
		p, ok := patterns[c]
		if !ok {
			return nil, fmt.Errorf("unknown entity category %q", c)
		}
		re, err := regexp2.Compile(p.expr, p.opts)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", c, err)
		}
		re.MatchTimeout = time.Second
		e.compiled[c] = re
	}
	return e, nil
}

// Extract returns one high-confidence point suggestion per distinct match per page and
// category, in page order.
func (e *Extractor) Extract(pages []PageText) ([]suggest.Point, error) {
	var points []suggest.Point
	seen := make(map[string]bool)

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, cat := range e.categories {
			re := e.compiled[cat]
			m, err := re.FindStringMatch(page.Text)
			for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
				text := strings.TrimSpace(m.String())
				key := fmt.Sprintf("%d:%s:%s", page.PageIndex, text, cat)
				if text == "" || seen[key] {
					continue
				}
				seen[key] = true
				points = append(points, suggest.Point{
					Meta: suggest.Meta{
						Confidence:  redaction.ConfidenceHigh,
						PersonGroup: patterns[cat].personGroup,
						Reason:      "Pattern: " + string(cat),
					},
					Text:      text,
					PageIndex: page.PageIndex,
				})
			}
			if err != nil {
				return nil, fmt.Errorf("match %s on page %d: %w", cat, page.PageIndex, err)
			}
		}
	}
	return points, nil
}

// PagesFromEngine collects the line text of every page, one line per text line.
func PagesFromEngine(ctx context.Context, eng engine.Engine) ([]PageText, error) {
	n, err := eng.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	pages := make([]PageText, 0, n)
	for i := 0; i < n; i++ {
		lines, err := eng.PageLines(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("lines of page %d: %w", i, err)
		}
		texts := make([]string, 0, len(lines))
		for _, l := range lines {
			texts = append(texts, l.Text)
		}
		pages = append(pages, PageText{PageIndex: i, Text: strings.Join(texts, "\n")})
	}
	return pages, nil
}
