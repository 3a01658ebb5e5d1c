// Package session owns the redactions of one open document and wires the resolvers and
// the exporter to its document engine.
//
// The collection is replaced as a whole on every change: readers get an immutable
// snapshot and writers are serialised, so a suggestion batch that spans many engine calls
// never interleaves with an accept or a manual highlight. Page re-rendering and search are
// debounced, and a result that arrives after a newer request was issued is dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/exporter"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/highlight"
	"github.com/gardar/redactra/pkg/redaction"
	"github.com/gardar/redactra/pkg/suggest"
)

// ErrNoHighlight is returned when a highlight operation runs without an active drag.
var ErrNoHighlight = errors.New("no highlight in progress")

// Config holds session timing and logging.
type Config struct {
	RenderDelay time.Duration // coalescing window for page re-renders
	SearchDelay time.Duration // coalescing window for searches
	Logger      *slog.Logger  // nil = slog.Default()
}

// DefaultConfig returns the standard debounce windows.
func DefaultConfig() Config {
	return Config{
		RenderDelay: 300 * time.Millisecond,
		SearchDelay: 200 * time.Millisecond,
	}
}

// Session is the single writer of one document's redactions.
type Session struct {
	documentKey string
	eng         engine.Engine
	cfg         Config
	resolver    *suggest.Resolver
	exporter    *exporter.Exporter

	mu   sync.Mutex // serialises writers
	coll atomic.Pointer[redaction.Collection]
	drag *highlight.Drag

	debounceMu  sync.Mutex
	renderTimer *time.Timer
	searchTimer *time.Timer
	renderGen   engine.Generation
	searchGen   engine.Generation
}

// New creates a session for the document served by eng.
func New(eng engine.Engine, documentKey string, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		documentKey: documentKey,
		eng:         eng,
		cfg:         cfg,
		resolver:    suggest.NewResolver(eng, documentKey, cfg.Logger),
		exporter:    exporter.New(eng, cfg.Logger),
	}
	s.coll.Store(&redaction.Collection{})
	return s
}

// DocumentKey returns the key of the session's document.
func (s *Session) DocumentKey() string { return s.documentKey }

// Collection returns the current snapshot.
func (s *Session) Collection() redaction.Collection {
	return *s.coll.Load()
}

// Redactions returns the redactions of the session's document.
func (s *Session) Redactions() []redaction.Redaction {
	return s.Collection().ForDocument(s.documentKey)
}

func (s *Session) store(c redaction.Collection) {
	s.coll.Store(&c)
}

// update runs fn as the only writer and stores its result unless it fails.
func (s *Session) update(fn func(redaction.Collection) (redaction.Collection, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.Collection())
	if err != nil {
		return err
	}
	s.store(next)
	return nil
}

// Restore replaces the collection, e.g. with a saved session.
func (s *Session) Restore(coll redaction.Collection) error {
	if err := coll.Validate(); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return s.update(func(redaction.Collection) (redaction.Collection, error) {
		return coll, nil
	})
}

// Load adds the redaction annotations already present in file as manual redactions and
// returns how many were added.
func (s *Session) Load(ctx context.Context, file []byte) (int, error) {
	anns, err := s.eng.LoadExistingAnnotations(ctx, file)
	if err != nil {
		return 0, fmt.Errorf("load existing annotations: %w", err)
	}
	var added []redaction.Redaction
	for _, a := range anns {
		parts := make([]redaction.Part, 0, len(a.Quads))
		for _, q := range a.Quads {
			parts = append(parts, geom.QuadToRect(q))
		}
		if len(parts) > 0 {
			added = append(added, redaction.NewManual(s.documentKey, a.PageIndex, parts...))
		}
	}
	if len(added) == 0 {
		return 0, nil
	}
	err = s.update(func(c redaction.Collection) (redaction.Collection, error) {
		return c.Add(added...), nil
	})
	if err != nil {
		return 0, err
	}
	s.cfg.Logger.Info("loaded existing redactions", "document", s.documentKey, "count", len(added))
	return len(added), nil
}

// ApplySuggestions resolves a suggestion batch into the collection. Engine failures leave
// the collection unchanged.
func (s *Session) ApplySuggestions(ctx context.Context, batch suggest.Batch) (suggest.Report, error) {
	var report suggest.Report
	err := s.update(func(c redaction.Collection) (redaction.Collection, error) {
		next, r, err := s.resolver.Resolve(ctx, c, batch)
		report = r
		return next, err
	})
	return report, err
}

// Accept marks a suggestion accepted.
func (s *Session) Accept(id string) error {
	return s.update(func(c redaction.Collection) (redaction.Collection, error) {
		return c.Accept(id)
	})
}

// Reject marks a redaction ignored.
func (s *Session) Reject(id string) error {
	return s.update(func(c redaction.Collection) (redaction.Collection, error) {
		return c.Reject(id)
	})
}

// AcceptAll accepts every open suggestion of the document and returns how many changed.
func (s *Session) AcceptAll() (int, error) {
	n := 0
	err := s.update(func(c redaction.Collection) (redaction.Collection, error) {
		for _, r := range c.ForDocument(s.documentKey) {
			if r.Status != redaction.StatusSuggested {
				continue
			}
			var err error
			if c, err = c.Accept(r.ID); err != nil {
				return c, err
			}
			n++
		}
		return c, nil
	})
	return n, err
}

// Update edits one redaction.
func (s *Session) Update(id string, fn func(r *redaction.Redaction)) error {
	return s.update(func(c redaction.Collection) (redaction.Collection, error) {
		return c.Update(id, fn)
	})
}

// AssignRule sets the legal ground of one redaction. A nil rule clears it.
func (s *Session) AssignRule(id string, rule *redaction.Rule) error {
	return s.Update(id, func(r *redaction.Redaction) {
		r.Rule = copyRule(rule)
	})
}

// JustifyAll assigns rule to every redaction of the document that is not ignored and has
// no rule yet, and returns how many changed.
func (s *Session) JustifyAll(rule redaction.Rule) (int, error) {
	n := 0
	err := s.update(func(c redaction.Collection) (redaction.Collection, error) {
		for _, r := range c.ForDocument(s.documentKey) {
			if r.Status == redaction.StatusIgnored || r.Rule != nil {
				continue
			}
			var err error
			if c, err = c.Update(r.ID, func(red *redaction.Redaction) { red.Rule = copyRule(&rule) }); err != nil {
				return c, err
			}
			n++
		}
		return c, nil
	})
	return n, err
}

func copyRule(rule *redaction.Rule) *redaction.Rule {
	if rule == nil {
		return nil
	}
	r := *rule
	return &r
}

// RemoveSuggested drops the listed suggestions that are still open.
func (s *Session) RemoveSuggested(ids ...string) int {
	var n int
	s.update(func(c redaction.Collection) (redaction.Collection, error) {
		var next redaction.Collection
		next, n = c.RemoveSuggested(ids...)
		return next, nil
	})
	return n
}

// ClearAll removes every redaction of the document.
func (s *Session) ClearAll() {
	s.update(func(c redaction.Collection) (redaction.Collection, error) {
		return c.ClearDocument(s.documentKey), nil
	})
}

// Export applies the eligible redactions through the engine.
func (s *Session) Export(ctx context.Context, opts exporter.Options) ([]byte, error) {
	return s.exporter.Export(ctx, s.Collection(), s.documentKey, opts)
}

// Close stops pending debounced work. Results of calls already issued are dropped.
func (s *Session) Close() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.renderTimer != nil {
		s.renderTimer.Stop()
	}
	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
	s.renderGen.Next()
	s.searchGen.Next()
}
