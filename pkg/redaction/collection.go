package redaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when no redaction carries the requested id.
var ErrNotFound = errors.New("redaction not found")

// Collection is an immutable set of redactions across all open documents.
// Every mutator returns a new Collection and leaves the receiver untouched, so a
// value handed to a reader never changes under it.
type Collection struct {
	items []Redaction
}

// NewCollection builds a collection from rs.
func NewCollection(rs ...Redaction) Collection {
	return Collection{}.Add(rs...)
}

// Len returns the number of redactions.
func (c Collection) Len() int {
	return len(c.items)
}

// All returns a copy of every redaction in insertion order.
func (c Collection) All() []Redaction {
	return c.filter(func(Redaction) bool { return true })
}

// Get looks up a redaction by id.
func (c Collection) Get(id string) (Redaction, bool) {
	for _, r := range c.items {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return Redaction{}, false
}

// ForDocument returns the redactions owned by the document.
func (c Collection) ForDocument(key string) []Redaction {
	return c.filter(func(r Redaction) bool { return r.DocumentKey == key })
}

// OnPage returns the non-ignored redactions of one page of a document.
func (c Collection) OnPage(key string, page int) []Redaction {
	return c.filter(func(r Redaction) bool {
		return r.DocumentKey == key && r.PageIndex == page && r.Status != StatusIgnored
	})
}

// Active returns every redaction that is not ignored.
func (c Collection) Active() []Redaction {
	return c.filter(func(r Redaction) bool { return r.Status != StatusIgnored })
}

// Eligible returns the redactions of a document that an export must apply.
func (c Collection) Eligible(key string) []Redaction {
	return c.filter(func(r Redaction) bool { return r.DocumentKey == key && r.Eligible() })
}

// Add appends redactions. Redactions with an id already present replace the old entry.
func (c Collection) Add(rs ...Redaction) Collection {
	next := c.copyItems(len(rs))
	for _, r := range rs {
		r = r.clone()
		if i := indexOf(next, r.ID); i >= 0 {
			next[i] = r
			continue
		}
		next = append(next, r)
	}
	return Collection{items: next}
}

// Accept moves a suggested redaction to accepted and arms it for export.
// Accepting an already accepted redaction is a no-op; other statuses are left unchanged.
func (c Collection) Accept(id string) (Collection, error) {
	return c.Update(id, func(r *Redaction) {
		if r.Status == StatusSuggested || r.Status == StatusAccepted {
			r.Status = StatusAccepted
			r.ShouldApply = true
		}
	})
}

// Reject marks a redaction ignored and disarms it.
func (c Collection) Reject(id string) (Collection, error) {
	return c.Update(id, func(r *Redaction) {
		r.Status = StatusIgnored
		r.ShouldApply = false
	})
}

// Update applies fn to the redaction with the given id. The id is kept and an
// ignored result is always disarmed.
func (c Collection) Update(id string, fn func(r *Redaction)) (Collection, error) {
	i := indexOf(c.items, id)
	if i < 0 {
		return c, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	next := c.copyItems(0)
	r := next[i].clone()
	fn(&r)
	r.ID = id
	if r.Status == StatusIgnored {
		r.ShouldApply = false
	}
	next[i] = r
	return Collection{items: next}, nil
}

// RemoveSuggested drops the listed redactions that are still suggested.
// Unknown ids and redactions in any other status are left alone.
func (c Collection) RemoveSuggested(ids ...string) (Collection, int) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return c.remove(func(r Redaction) bool {
		return r.Status == StatusSuggested && drop[r.ID]
	})
}

// RemoveByReason drops the suggested redactions of a document produced with reason.
func (c Collection) RemoveByReason(key, reason string) (Collection, int) {
	return c.remove(func(r Redaction) bool {
		return r.DocumentKey == key && r.Status == StatusSuggested && r.Reason == reason
	})
}

// ClearDocument drops every redaction of a document.
func (c Collection) ClearDocument(key string) Collection {
	next, _ := c.remove(func(r Redaction) bool { return r.DocumentKey == key })
	return next
}

// RemoveDocument drops every redaction of a document that is being closed.
func (c Collection) RemoveDocument(key string) Collection {
	return c.ClearDocument(key)
}

// Validate checks the lifecycle and geometry invariants of every redaction.
func (c Collection) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.items))
	for _, r := range c.items {
		if r.ID == "" {
			errs = append(errs, errors.New("redaction without id"))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", r.ID))
		}
		seen[r.ID] = true

		if !r.Status.Valid() {
			errs = append(errs, fmt.Errorf("%s: unknown status %q", r.ID, r.Status))
		}
		if r.Status == StatusIgnored && r.ShouldApply {
			errs = append(errs, fmt.Errorf("%s: ignored redaction is armed", r.ID))
		}
		if r.PageIndex < 0 {
			errs = append(errs, fmt.Errorf("%s: negative page index %d", r.ID, r.PageIndex))
		}
		if len(r.Parts) == 0 {
			errs = append(errs, fmt.Errorf("%s: no parts", r.ID))
		}
		for _, p := range r.Parts {
			if p.Width < 0 || p.Height < 0 {
				errs = append(errs, fmt.Errorf("%s: negative part size %+v", r.ID, p))
			}
		}
	}
	return errors.Join(errs...)
}

// Summary counts the redactions of one document.
type Summary struct {
	// ByStatus counts every redaction, ignored ones included.
	ByStatus map[Status]int `json:"byStatus"`
	// ByPage counts the non-ignored redactions of each page.
	ByPage map[int]int `json:"byPage"`
	// ByPerson counts the non-ignored redactions of each person, in first-seen order.
	ByPerson []PersonCount `json:"byPerson"`
}

// PersonCount is one row of Summary.ByPerson.
type PersonCount struct {
	Person string `json:"person"`
	Group  string `json:"group,omitempty"`
	Count  int    `json:"count"`
}

// Summary counts redactions of the document per status, page and person.
func (c Collection) Summary(key string) Summary {
	s := Summary{
		ByStatus: map[Status]int{},
		ByPage:   map[int]int{},
	}
	persons := map[string]int{}
	for _, r := range c.items {
		if r.DocumentKey != key {
			continue
		}
		s.ByStatus[r.Status]++
		if r.Status == StatusIgnored {
			continue
		}
		s.ByPage[r.PageIndex]++
		if r.Person == "" {
			continue
		}
		if i, ok := persons[r.Person]; ok {
			s.ByPerson[i].Count++
			continue
		}
		persons[r.Person] = len(s.ByPerson)
		s.ByPerson = append(s.ByPerson, PersonCount{Person: r.Person, Group: r.PersonGroup, Count: 1})
	}
	return s
}

// Pages returns the sorted page indexes that carry non-ignored redactions.
func (s Summary) Pages() []int {
	pages := make([]int, 0, len(s.ByPage))
	for p := range s.ByPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// MarshalJSON encodes the collection as a JSON array of redactions.
func (c Collection) MarshalJSON() ([]byte, error) {
	if c.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.items)
}

// UnmarshalJSON decodes a JSON array of redactions and validates it.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var items []Redaction
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	next := Collection{items: items}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid redaction collection: %w", err)
	}
	*c = next
	return nil
}

// filter returns copies of the redactions matching keep.
func (c Collection) filter(keep func(Redaction) bool) []Redaction {
	var out []Redaction
	for _, r := range c.items {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

// remove returns a collection without the matching redactions and the number removed.
func (c Collection) remove(drop func(Redaction) bool) (Collection, int) {
	next := make([]Redaction, 0, len(c.items))
	for _, r := range c.items {
		if !drop(r) {
			next = append(next, r)
		}
	}
	removed := len(c.items) - len(next)
	if removed == 0 {
		return c, 0
	}
	return Collection{items: next}, removed
}

// copyItems copies the backing slice with spare capacity.
func (c Collection) copyItems(extra int) []Redaction {
	next := make([]Redaction, len(c.items), len(c.items)+extra)
	copy(next, c.items)
	return next
}

func indexOf(items []Redaction, id string) int {
	for i, r := range items {
		if r.ID == id {
			return i
		}
	}
	return -1
}
