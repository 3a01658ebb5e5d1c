package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gardar/redactra/pkg/redaction"
	"github.com/gardar/redactra/pkg/suggest"
)

// entityTypes maps NER labels to person group and confidence. Other labels are dropped.
var entityTypes = map[string]struct {
	group      string
	confidence redaction.Confidence
}{
	"PER": {"Persons", redaction.ConfidenceHigh},
	"ORG": {"Organisations", redaction.ConfidenceLow},
	"LOC": {"Places", redaction.ConfidenceLow},
}

// NERClient calls an NER sidecar's /classify endpoint.
type NERClient struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewNERClient creates a client for the sidecar at baseURL (e.g. "http://ner:8001").
// A nil logger uses slog.Default.
func NewNERClient(baseURL string, logger *slog.Logger) *NERClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NERClient{
		url: strings.TrimRight(baseURL, "/") + "/classify",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type classifyRequest struct {
	Pages []PageText `json:"pages"`
}

type classifyResponse struct {
	Entities []nerEntity `json:"entities"`
}

type nerEntity struct {
	PageIndex int    `json:"pageIndex"`
	Text      string `json:"text"`
	Label     string `json:"label"`
}

// Suggest sends page text to the sidecar and converts recognised persons, organisations
// and places into point suggestions. An unreachable sidecar or a non-200 response is
// logged and yields no suggestions, so the rest of the pipeline still runs.
func (c *NERClient) Suggest(ctx context.Context, pages []PageText) ([]suggest.Point, error) {
	body, err := json.Marshal(classifyRequest{Pages: pages})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("ner: sidecar unreachable, skipping entity suggestions", "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ner: unexpected status", "code", resp.StatusCode)
		return nil, nil
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	points := make([]suggest.Point, 0, len(result.Entities))
	for _, ent := range result.Entities {
		label := strings.ToUpper(ent.Label)
		kind, ok := entityTypes[label]
		text := strings.TrimSpace(ent.Text)
		if !ok || text == "" || ent.PageIndex < 0 {
			continue
		}
		p := suggest.Point{
			Meta: suggest.Meta{
				Confidence:  kind.confidence,
				PersonGroup: kind.group,
				Reason:      "Recognised entity: " + label,
			},
			Text:      text,
			PageIndex: ent.PageIndex,
		}
		if label == "PER" {
			p.Person = text
		}
		points = append(points, p)
	}
	return points, nil
}

// PointBatch wraps point suggestions into a batch for the resolver.
func PointBatch(points []suggest.Point) suggest.Batch {
	batch := suggest.Batch{Suggestions: make([]suggest.Suggestion, 0, len(points))}
	for _, p := range points {
		batch.Suggestions = append(batch.Suggestions, p)
	}
	return batch
}
