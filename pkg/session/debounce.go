package session

import (
	"context"
	"time"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
)

// Match is one search occurrence.
type Match struct {
	PageIndex int         `json:"pageIndex"`
	Quads     []geom.Quad `json:"quads"`
}

// RequestRender schedules a render of page at scale. Requests within the render delay
// are coalesced into the last one, and deliver only sees the result of the most recent
// request. deliver runs on a timer goroutine.
func (s *Session) RequestRender(ctx context.Context, page int, scale float64, deliver func([]byte, error)) {
	s.debounce(&s.renderTimer, &s.renderGen, s.cfg.RenderDelay, func(token uint64) {
		out, err := s.eng.RenderPage(ctx, page, scale)
		if !s.renderGen.Current(token) {
			s.cfg.Logger.Debug("dropping stale render", "page", page, "scale", scale)
			return
		}
		deliver(out, err)
	})
}

// RequestSearch schedules a search for query over every page, with the same coalescing
// and last-request-wins delivery as RequestRender.
func (s *Session) RequestSearch(ctx context.Context, query string, deliver func([]Match, error)) {
	s.debounce(&s.searchTimer, &s.searchGen, s.cfg.SearchDelay, func(token uint64) {
		matches, err := s.search(ctx, token, query)
		if !s.searchGen.Current(token) {
			s.cfg.Logger.Debug("dropping stale search", "query", query)
			return
		}
		deliver(matches, err)
	})
}

func (s *Session) search(ctx context.Context, token uint64, query string) ([]Match, error) {
	n, err := s.eng.PageCount(ctx)
	if err != nil {
		return nil, err
	}
	var matches []Match
	for page := 0; page < n; page++ {
		// A newer search supersedes this one; stop issuing engine calls
		if !s.searchGen.Current(token) {
			return nil, nil
		}
		occurrences, err := s.eng.SearchPage(ctx, page, query)
		if err != nil {
			return nil, err
		}
		for _, quads := range occurrences {
			matches = append(matches, Match{PageIndex: page, Quads: quads})
		}
	}
	return matches, nil
}

// debounce replaces the pending timer with a new one that runs fn with a fresh token.
func (s *Session) debounce(timer **time.Timer, gen *engine.Generation, delay time.Duration, fn func(token uint64)) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	token := gen.Next()
	if *timer != nil {
		(*timer).Stop()
	}
	*timer = time.AfterFunc(delay, func() {
		if !gen.Current(token) {
			return
		}
		fn(token)
	})
}
