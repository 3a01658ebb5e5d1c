package rules

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// catalogServer serves an index with a relative and an absolute jurisdiction URL and
// counts the requests per path.
func catalogServer(t *testing.T) (*httptest.Server, map[string]*atomic.Int32) {
	t.Helper()
	hits := map[string]*atomic.Int32{
		"/rules.json":     {},
		"/de/bund.json":   {},
		"/de/berlin.json": {},
	}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := hits[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		n.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rules.json":
			fmt.Fprintf(w, `{"rules": [
				{"id": "de-bund", "jurisdiction_name": "Bund", "abbreviation": "IFG", "url": "de/bund.json"},
				{"id": "de-be", "jurisdiction_name": "Berlin", "abbreviation": "IFG Bln", "url": "%s/de/berlin.json"}
			]}`, srv.URL)
		case "/de/bund.json":
			fmt.Fprint(w, `{"rules": [
				{"title": "Personal data", "reference": "§ 5 IFG", "group": "Privacy", "reason": "Protects third parties"},
				{"title": "Trade secrets", "reference": "§ 6 IFG", "group": "Business"},
				{"title": "Copyright", "reference": "§ 6 S. 1 IFG", "group": "Business"},
				{"title": "Public safety", "reference": "§ 3 IFG"}
			]}`)
		case "/de/berlin.json":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestJurisdictionsCached(t *testing.T) {
	srv, hits := catalogServer(t)
	c, err := NewClient(srv.URL+"/rules.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		js, err := c.Jurisdictions(ctx)
		if err != nil {
			t.Fatalf("Jurisdictions: %v", err)
		}
		if len(js) != 2 || js[0].ID != "de-bund" || js[1].Name != "Berlin" || js[1].Abbreviation != "IFG Bln" {
			t.Fatalf("jurisdictions = %+v", js)
		}
	}
	if n := hits["/rules.json"].Load(); n != 1 {
		t.Errorf("index fetched %d times", n)
	}
}

func TestRulesForJurisdiction(t *testing.T) {
	srv, hits := catalogServer(t)
	c, err := NewClient(srv.URL+"/rules.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	rules, err := c.Rules(ctx, "de-bund")
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(rules) != 4 || rules[0].Reason != "Protects third parties" {
		t.Fatalf("rules = %+v", rules)
	}
	if _, err := c.Rules(ctx, "de-bund"); err != nil {
		t.Fatal(err)
	}
	if n := hits["/de/bund.json"].Load(); n != 1 {
		t.Errorf("rules fetched %d times", n)
	}

	if _, err := c.Rules(ctx, "fr"); !errors.Is(err, ErrUnknownJurisdiction) {
		t.Errorf("err = %v, want ErrUnknownJurisdiction", err)
	}
	if _, err := c.Rules(ctx, "de-be"); err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status error", err)
	}
	if _, err := c.Rules(ctx, "de-be"); err == nil || hits["/de/berlin.json"].Load() != 2 {
		t.Errorf("failed fetch was cached: %v", err)
	}
}

func TestFind(t *testing.T) {
	srv, _ := catalogServer(t)
	c, err := NewClient(srv.URL+"/rules.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	r, err := c.Find(ctx, "de-bund", "§ 6 ifg")
	if err != nil || r.Title != "Trade secrets" {
		t.Fatalf("Find = %+v, %v", r, err)
	}
	if got := r.Redaction(); got.Title != "Trade secrets" || got.Reference != "§ 6 IFG" || got.Group != "Business" {
		t.Errorf("Redaction = %+v", got)
	}
	if r, err := c.Find(ctx, "de-bund", " personal DATA "); err != nil || r.Reference != "§ 5 IFG" {
		t.Errorf("Find by title = %+v, %v", r, err)
	}
	if _, err := c.Find(ctx, "de-bund", "§ 99"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("err = %v, want ErrRuleNotFound", err)
	}
}

func TestUnreachableCatalog(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := NewClient(srv.URL+"/rules.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Jurisdictions(context.Background()); err == nil {
		t.Error("unreachable catalog accepted")
	}
}

func TestGrouped(t *testing.T) {
	groups := Grouped([]Rule{
		{Title: "a", Group: "Privacy"},
		{Title: "b"},
		{Title: "c", Group: "Business"},
		{Title: "d", Group: "Privacy"},
	})
	var got []string
	for _, g := range groups {
		got = append(got, fmt.Sprintf("%s:%d", g.Name, len(g.Rules)))
	}
	if strings.Join(got, ",") != "Privacy:2,Other:1,Business:1" {
		t.Errorf("groups = %v", got)
	}
}
