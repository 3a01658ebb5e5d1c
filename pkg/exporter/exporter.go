// Package exporter applies a document's redactions through the document engine.
//
// Only eligible redactions (not ignored and armed for export) reach the engine. A preview
// export marks regions reversibly; a permanent export removes the underlying content.
// Metadata fields listed in Options.Strip are removed, every other field is kept.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/redaction"
)

// ErrExportInProgress is returned when an export of the same document is still running.
var ErrExportInProgress = errors.New("export already in progress for this document")

// MetadataFields lists the document information fields in display order.
var MetadataFields = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate", "ModDate"}

// Options controls one export.
type Options struct {
	// Permanent removes content irreversibly; otherwise the export is a preview.
	Permanent bool
	// Strip names the metadata fields to remove.
	Strip []string
}

// Exporter produces exports and refuses overlapping exports of one document.
type Exporter struct {
	Engine engine.Engine
	Logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates an exporter for the document served by eng.
func New(eng engine.Engine, logger *slog.Logger) *Exporter {
	return &Exporter{Engine: eng, Logger: logger}
}

// Export applies the eligible redactions of the document and returns the engine's output.
// A document without eligible redactions is still exported (metadata stripping only).
func (e *Exporter) Export(ctx context.Context, coll redaction.Collection, documentKey string, opts Options) ([]byte, error) {
	if !e.acquire(documentKey) {
		return nil, ErrExportInProgress
	}
	defer e.release(documentKey)

	anns := Annotations(coll, documentKey)
	e.logger().Info("exporting document",
		"document", documentKey,
		"annotations", len(anns),
		"permanent", opts.Permanent,
		"strip", opts.Strip)

	out, err := e.Engine.ExportDocument(ctx, anns, opts.Permanent, opts.Strip)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", documentKey, err)
	}
	return out, nil
}

// Annotations converts the eligible redactions of a document into engine annotations,
// ordered by page. Redactions with shouldApply unset or status ignored never appear.
func Annotations(coll redaction.Collection, documentKey string) []engine.Annotation {
	eligible := coll.Eligible(documentKey)
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].PageIndex < eligible[j].PageIndex
	})

	anns := make([]engine.Annotation, 0, len(eligible))
	for _, r := range eligible {
		if len(r.Parts) == 0 {
			continue
		}
		anns = append(anns, engine.Annotation{PageIndex: r.PageIndex, Quads: r.Quads()})
	}
	return anns
}

// DefaultStrip returns every metadata field present in meta, in MetadataFields order
// followed by any other keys sorted by name. Stripping everything is the default.
func DefaultStrip(meta map[string]string) []string {
	var strip []string
	known := make(map[string]bool, len(MetadataFields))
	for _, f := range MetadataFields {
		known[f] = true
		if _, ok := meta[f]; ok {
			strip = append(strip, f)
		}
	}
	var extra []string
	for k := range meta {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(strip, extra...)
}

func (e *Exporter) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil {
		e.inFlight = make(map[string]bool)
	}
	if e.inFlight[key] {
		return false
	}
	e.inFlight[key] = true
	return true
}

func (e *Exporter) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
