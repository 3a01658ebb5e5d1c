package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gardar/redactra/pkg/redaction"
)

// ErrMalformed marks a suggestion entry that was skipped during decoding.
var ErrMalformed = errors.New("malformed suggestion")

// wireMeta mirrors Meta with the rule left raw so a bad rule only drops its entry.
type wireMeta struct {
	DocumentKey string          `json:"documentKey"`
	Confidence  string          `json:"confidence"`
	Person      string          `json:"person"`
	PersonGroup string          `json:"personGroup"`
	Reason      string          `json:"reason"`
	Rule        *redaction.Rule `json:"rule"`
}

type wirePoint struct {
	wireMeta
	Text      *string `json:"text"`
	PageIndex *int    `json:"pageIndex"`
}

type wireTextRange struct {
	wireMeta
	StartText *string `json:"startText"`
	StartPage *int    `json:"startPage"`
	EndText   *string `json:"endText"`
	EndPage   *int    `json:"endPage"`
}

type wirePageRange struct {
	wireMeta
	FromPage *int `json:"fromPage"`
	ToPage   *int `json:"toPage"`
}

// wireBatch is the argument object of the suggest_redactions tool.
type wireBatch struct {
	Suggestions []json.RawMessage `json:"suggestions"`
	TextRanges  []json.RawMessage `json:"textRanges"`
	PageRanges  []json.RawMessage `json:"pageRanges"`
	Remove      []string          `json:"remove"`
}

// DecodeBatch decodes a suggest_redactions payload. Malformed entries are skipped and
// reported; the returned batch holds every well-formed entry, points first, then text
// ranges, then page ranges. A payload that is not a JSON object yields an empty batch
// and a single error.
func DecodeBatch(raw []byte) (Batch, []error) {
	var wb wireBatch
	if err := json.Unmarshal(raw, &wb); err != nil {
		return Batch{}, []error{fmt.Errorf("decode suggestion batch: %w", err)}
	}

	var batch Batch
	var errs []error
	for _, id := range wb.Remove {
		if strings.TrimSpace(id) != "" {
			batch.Remove = append(batch.Remove, id)
		}
	}

	for i, msg := range wb.Suggestions {
		s, err := decodePoint(msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("suggestions[%d]: %w", i, err))
			continue
		}
		batch.Suggestions = append(batch.Suggestions, s)
	}
	for i, msg := range wb.TextRanges {
		s, err := decodeTextRange(msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("textRanges[%d]: %w", i, err))
			continue
		}
		batch.Suggestions = append(batch.Suggestions, s)
	}
	for i, msg := range wb.PageRanges {
		s, err := decodePageRange(msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("pageRanges[%d]: %w", i, err))
			continue
		}
		batch.Suggestions = append(batch.Suggestions, s)
	}
	return batch, errs
}

func decodePoint(msg json.RawMessage) (Point, error) {
	var w wirePoint
	if err := json.Unmarshal(msg, &w); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	meta, err := w.meta()
	if err != nil {
		return Point{}, err
	}
	if err := requireText("text", w.Text); err != nil {
		return Point{}, err
	}
	if err := requirePage("pageIndex", w.PageIndex); err != nil {
		return Point{}, err
	}
	return Point{Meta: meta, Text: *w.Text, PageIndex: *w.PageIndex}, nil
}

func decodeTextRange(msg json.RawMessage) (TextRange, error) {
	var w wireTextRange
	if err := json.Unmarshal(msg, &w); err != nil {
		return TextRange{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	meta, err := w.meta()
	if err != nil {
		return TextRange{}, err
	}
	for _, check := range []error{
		requireText("startText", w.StartText),
		requireText("endText", w.EndText),
		requirePage("startPage", w.StartPage),
		requirePage("endPage", w.EndPage),
	} {
		if check != nil {
			return TextRange{}, check
		}
	}
	if *w.EndPage < *w.StartPage {
		return TextRange{}, fmt.Errorf("%w: endPage %d before startPage %d", ErrMalformed, *w.EndPage, *w.StartPage)
	}
	return TextRange{
		Meta:      meta,
		StartText: *w.StartText,
		StartPage: *w.StartPage,
		EndText:   *w.EndText,
		EndPage:   *w.EndPage,
	}, nil
}

func decodePageRange(msg json.RawMessage) (PageRange, error) {
	var w wirePageRange
	if err := json.Unmarshal(msg, &w); err != nil {
		return PageRange{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	meta, err := w.meta()
	if err != nil {
		return PageRange{}, err
	}
	if err := requirePage("fromPage", w.FromPage); err != nil {
		return PageRange{}, err
	}
	if err := requirePage("toPage", w.ToPage); err != nil {
		return PageRange{}, err
	}
	if *w.ToPage < *w.FromPage {
		return PageRange{}, fmt.Errorf("%w: toPage %d before fromPage %d", ErrMalformed, *w.ToPage, *w.FromPage)
	}
	return PageRange{Meta: meta, FromPage: *w.FromPage, ToPage: *w.ToPage}, nil
}

// meta validates and converts the shared annotations.
func (w wireMeta) meta() (Meta, error) {
	conf := redaction.Confidence(w.Confidence)
	switch conf {
	case redaction.ConfidenceNone, redaction.ConfidenceHigh, redaction.ConfidenceLow:
	default:
		return Meta{}, fmt.Errorf("%w: unknown confidence %q", ErrMalformed, w.Confidence)
	}
	if w.Rule != nil && strings.TrimSpace(w.Rule.Title) == "" {
		return Meta{}, fmt.Errorf("%w: rule without title", ErrMalformed)
	}
	return Meta{
		DocumentKey: w.DocumentKey,
		Confidence:  conf,
		Person:      w.Person,
		PersonGroup: w.PersonGroup,
		Reason:      w.Reason,
		Rule:        w.Rule,
	}, nil
}

func requireText(field string, v *string) error {
	if v == nil {
		return fmt.Errorf("%w: missing %s", ErrMalformed, field)
	}
	if strings.TrimSpace(*v) == "" {
		return fmt.Errorf("%w: empty %s", ErrMalformed, field)
	}
	return nil
}

func requirePage(field string, v *int) error {
	if v == nil {
		return fmt.Errorf("%w: missing %s", ErrMalformed, field)
	}
	if *v < 0 {
		return fmt.Errorf("%w: negative %s %d", ErrMalformed, field, *v)
	}
	return nil
}
