// Package rules fetches the catalog of legal grounds used to justify redactions in
// reasoned mode. The catalog is an index of jurisdictions, each pointing at its own
// list of rules. Both are fetched on first use and kept for the life of the client.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gardar/redactra/pkg/redaction"
)

// DefaultIndexURL is the public rule catalog.
const DefaultIndexURL = "https://raw.githubusercontent.com/datenlabor-bmz/redaction-rules/refs/heads/main/rules.json"

// OtherGroup collects rules without a group.
const OtherGroup = "Other"

var (
	ErrUnknownJurisdiction = errors.New("unknown jurisdiction")
	ErrRuleNotFound        = errors.New("rule not found")
)

// Jurisdiction is one entry of the catalog index.
type Jurisdiction struct {
	ID           string `json:"id"`
	Name         string `json:"jurisdiction_name"`
	Abbreviation string `json:"abbreviation"`
	URL          string `json:"url"`
}

// Rule is a legal ground for withholding information.
type Rule struct {
	Title     string `json:"title"`
	Reference string `json:"reference,omitempty"`
	Group     string `json:"group,omitempty"`
	Reason    string `json:"reason,omitempty"`
	FullText  string `json:"full_text,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Redaction returns the justification stored on a redaction.
func (r Rule) Redaction() *redaction.Rule {
	return &redaction.Rule{Title: r.Title, Reference: r.Reference, Group: r.Group}
}

// Matches reports whether key names the rule by title or reference, ignoring case.
func (r Rule) Matches(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && (strings.EqualFold(r.Title, key) || strings.EqualFold(r.Reference, key))
}

// Group is a run of rules sharing a group name.
type Group struct {
	Name  string
	Rules []Rule
}

// Grouped splits rules by group, in order of first appearance.
func Grouped(rules []Rule) []Group {
	var groups []Group
	pos := make(map[string]int)
	for _, r := range rules {
		name := r.Group
		if name == "" {
			name = OtherGroup
		}
		i, ok := pos[name]
		if !ok {
			i = len(groups)
			pos[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Rules = append(groups[i].Rules, r)
	}
	return groups
}

type catalog[T any] struct {
	Rules []T `json:"rules"`
}

// Client reads the rule catalog over HTTP and caches what it fetched.
type Client struct {
	index  *url.URL
	http   *http.Client
	logger *slog.Logger

	mu            sync.Mutex
	jurisdictions []Jurisdiction
	rules         map[string][]Rule
}

// NewClient creates a client for the catalog index at indexURL. An empty indexURL uses
// DefaultIndexURL; a nil logger uses slog.Default.
func NewClient(indexURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(indexURL) == "" {
		indexURL = DefaultIndexURL
	}
	u, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("rules: index url: %w", err)
	}
	return &Client{
		index: u,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		rules:  make(map[string][]Rule),
	}, nil
}

// Jurisdictions returns the catalog index.
func (c *Client) Jurisdictions(ctx context.Context) ([]Jurisdiction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadIndex(ctx)
}

func (c *Client) loadIndex(ctx context.Context) ([]Jurisdiction, error) {
	if c.jurisdictions != nil {
		return c.jurisdictions, nil
	}
	var idx catalog[Jurisdiction]
	if err := c.fetch(ctx, c.index, &idx); err != nil {
		return nil, fmt.Errorf("rules index: %w", err)
	}
	if idx.Rules == nil {
		idx.Rules = []Jurisdiction{}
	}
	c.jurisdictions = idx.Rules
	c.logger.Debug("rules: loaded index", "jurisdictions", len(idx.Rules))
	return c.jurisdictions, nil
}

// Rules returns the rules of one jurisdiction.
func (c *Client) Rules(ctx context.Context, jurisdiction string) ([]Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rules, ok := c.rules[jurisdiction]; ok {
		return rules, nil
	}

	index, err := c.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	var meta *Jurisdiction
	for i := range index {
		if index[i].ID == jurisdiction {
			meta = &index[i]
			break
		}
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJurisdiction, jurisdiction)
	}

	ref, err := url.Parse(meta.URL)
	if err != nil {
		return nil, fmt.Errorf("rules for %s: %w", jurisdiction, err)
	}
	var list catalog[Rule]
	if err := c.fetch(ctx, c.index.ResolveReference(ref), &list); err != nil {
		return nil, fmt.Errorf("rules for %s: %w", jurisdiction, err)
	}
	if list.Rules == nil {
		list.Rules = []Rule{}
	}
	c.rules[jurisdiction] = list.Rules
	c.logger.Debug("rules: loaded jurisdiction", "jurisdiction", jurisdiction, "rules", len(list.Rules))
	return list.Rules, nil
}

// Find returns the rule of a jurisdiction named by key, see Rule.Matches.
func (c *Client) Find(ctx context.Context, jurisdiction, key string) (Rule, error) {
	rules, err := c.Rules(ctx, jurisdiction)
	if err != nil {
		return Rule{}, err
	}
	for _, r := range rules {
		if r.Matches(key) {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %q in %s", ErrRuleNotFound, key, jurisdiction)
}

func (c *Client) fetch(ctx context.Context, u *url.URL, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("rules: unexpected status", "url", u.String(), "code", resp.StatusCode)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
