package session

import (
	"context"
	"fmt"

	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/highlight"
	"github.com/gardar/redactra/pkg/redaction"
)

// BeginHighlight starts a drag on a page. Any unfinished drag is abandoned.
func (s *Session) BeginHighlight(ctx context.Context, page int, x, y float64) (highlight.Mode, error) {
	bounds, err := s.eng.PageBounds(ctx, page)
	if err != nil {
		return 0, fmt.Errorf("begin highlight: %w", err)
	}
	words, err := s.eng.PageWords(ctx, page)
	if err != nil {
		return 0, fmt.Errorf("begin highlight: %w", err)
	}
	d := highlight.Begin(highlight.Page{
		DocumentKey: s.documentKey,
		Index:       page,
		Bounds:      bounds,
		Words:       words,
	}, x, y)

	s.mu.Lock()
	s.drag = d
	s.mu.Unlock()
	return d.Mode(), nil
}

// MoveHighlight extends the active drag and returns the regions it would cover.
func (s *Session) MoveHighlight(x, y float64) ([]geom.Rect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil, ErrNoHighlight
	}
	s.drag.Move(x, y)
	return s.drag.Preview(), nil
}

// FinishHighlight ends the active drag. A drag that covers nothing, or a freehand
// rectangle below the minimum area, adds no redaction and reports false.
func (s *Session) FinishHighlight() (redaction.Redaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return redaction.Redaction{}, false, ErrNoHighlight
	}
	r, ok := s.drag.Finalize()
	s.drag = nil
	if !ok {
		return redaction.Redaction{}, false, nil
	}
	s.store(s.Collection().Add(r))
	return r, true, nil
}

// CancelHighlight abandons the active drag.
func (s *Session) CancelHighlight() {
	s.mu.Lock()
	s.drag = nil
	s.mu.Unlock()
}
