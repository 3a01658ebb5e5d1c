// Package redaction implements the redaction model: the entity, its parts, its status
// lifecycle and the per-session collection keyed by owning document.
//
// Lifecycle:
//
//	manual     created by a drag on the page, armed for export
//	suggested  created by a suggestion producer, awaiting review
//	accepted   suggested and confirmed by the operator
//	ignored    rejected, excluded from rendering, export and subsumption
//
// Main Functions:
//
// - NewManual / NewSuggested: constructors that set status and arming defaults
// - Collection: immutable, replace-on-write set of redactions with the lifecycle operations
package redaction

import (
	"github.com/google/uuid"
)

// NewID returns a fresh redaction id.
func NewID() string {
	return uuid.NewString()
}

// NewManual creates an operator-drawn redaction. Manual redactions are always armed.
func NewManual(documentKey string, page int, parts ...Part) Redaction {
	return Redaction{
		ID:          NewID(),
		DocumentKey: documentKey,
		PageIndex:   page,
		Parts:       append([]Part(nil), parts...),
		Status:      StatusManual,
		ShouldApply: true,
	}
}

// NewSuggested creates a redaction proposed by a producer. It is armed on creation so
// accepting it only flips the status.
func NewSuggested(documentKey string, page int, searchText string, parts ...Part) Redaction {
	return Redaction{
		ID:          NewID(),
		DocumentKey: documentKey,
		PageIndex:   page,
		Parts:       append([]Part(nil), parts...),
		Status:      StatusSuggested,
		SearchText:  searchText,
		ShouldApply: true,
	}
}
