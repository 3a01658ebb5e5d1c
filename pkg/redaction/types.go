package redaction

import (
	"encoding/json"
	"fmt"

	"github.com/gardar/redactra/pkg/geom"
)

// Status is the lifecycle state of a redaction.
type Status string

const (
	// StatusManual marks redactions drawn by the operator.
	StatusManual Status = "manual"
	// StatusSuggested marks unreviewed redactions from a suggestion producer.
	StatusSuggested Status = "suggested"
	// StatusAccepted marks suggestions the operator accepted.
	StatusAccepted Status = "accepted"
	// StatusIgnored marks rejected redactions. They are never rendered or exported.
	StatusIgnored Status = "ignored"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusManual, StatusSuggested, StatusAccepted, StatusIgnored:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if !Status(str).Valid() {
		return fmt.Errorf("unknown redaction status %q", str)
	}
	*s = Status(str)
	return nil
}

// Confidence is the producer's confidence in a suggestion.
type Confidence string

const (
	ConfidenceNone Confidence = ""
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Rule is a structured justification used in reasoned redaction mode.
type Rule struct {
	Title     string `json:"title"`
	Reference string `json:"reference,omitempty"`
	Group     string `json:"group,omitempty"`
}

// Part is one rectangle of a redaction on its page.
type Part = geom.Rect

// Redaction is one unit of content marked for removal.
type Redaction struct {
	ID          string     `json:"id"`
	DocumentKey string     `json:"documentKey"`
	PageIndex   int        `json:"pageIndex"`
	Parts       []Part     `json:"parts"`
	Status      Status     `json:"status"`
	Confidence  Confidence `json:"confidence,omitempty"`
	SearchText  string     `json:"searchText,omitempty"`
	Person      string     `json:"person,omitempty"`
	PersonGroup string     `json:"personGroup,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Rule        *Rule      `json:"rule,omitempty"`
	ShouldApply bool       `json:"shouldApply"`
}

// BoundingBox returns the envelope of all parts. The redaction must have at least one part.
func (r Redaction) BoundingBox() geom.Box {
	return geom.Union(r.Parts...)
}

// Quads converts the parts to quads for the engine's annotation format.
func (r Redaction) Quads() []geom.Quad {
	quads := make([]geom.Quad, 0, len(r.Parts))
	for _, p := range r.Parts {
		quads = append(quads, geom.RectToQuad(p))
	}
	return quads
}

// Eligible reports whether the redaction is included in exports.
func (r Redaction) Eligible() bool {
	return r.Status != StatusIgnored && r.ShouldApply
}

// clone returns a copy that shares no slices or pointers with r.
func (r Redaction) clone() Redaction {
	r.Parts = append([]Part(nil), r.Parts...)
	if r.Rule != nil {
		rule := *r.Rule
		r.Rule = &rule
	}
	return r
}
