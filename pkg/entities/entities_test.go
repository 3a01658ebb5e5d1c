package entities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/engine/enginetest"
	"github.com/gardar/redactra/pkg/redaction"
	"github.com/gardar/redactra/pkg/suggest"
)

func texts(points []suggest.Point, reason string) []string {
	var out []string
	for _, p := range points {
		if p.Reason == reason {
			out = append(out, p.Text)
		}
	}
	return out
}

func TestExtractCategories(t *testing.T) {
	e, err := NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	pages := []PageText{
		{PageIndex: 0, Text: "Contact jane.doe@example.org or call 030 1234567.\nIBAN DE89 3704 0044 0532 0130 00"},
		{PageIndex: 1, Text: "Signed on 12.03.2024 and again on 3 March 2024. Case AZ-2024/117."},
		{PageIndex: 2, Text: "   "},
	}
	points, err := e.Extract(pages)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if got := texts(points, "Pattern: email"); len(got) != 1 || got[0] != "jane.doe@example.org" {
		t.Errorf("emails = %q", got)
	}
	if got := texts(points, "Pattern: phone"); !contains(got, "030 1234567") {
		t.Errorf("phones = %q", got)
	}
	if got := texts(points, "Pattern: iban"); len(got) != 1 || got[0] != "DE89 3704 0044 0532 0130 00" {
		t.Errorf("ibans = %q", got)
	}
	dates := texts(points, "Pattern: date")
	want := map[string]bool{"12.03.2024": false, "3 March 2024": false}
	for _, d := range dates {
		if _, ok := want[d]; ok {
			want[d] = true
		}
	}
	for d, found := range want {
		if !found {
			t.Errorf("date %q not found in %q", d, dates)
		}
	}
	if got := texts(points, "Pattern: id"); !contains(got, "AZ-2024/117") {
		t.Errorf("ids = %q", got)
	}

	for _, p := range points {
		if p.Confidence != redaction.ConfidenceHigh || p.PersonGroup == "" {
			t.Errorf("point = %+v", p)
		}
		if p.PageIndex == 2 {
			t.Errorf("blank page produced %+v", p)
		}
	}
}

func TestExtractDeduplicatesPerPage(t *testing.T) {
	e, err := NewExtractor(Email)
	if err != nil {
		t.Fatal(err)
	}
	points, err := e.Extract([]PageText{
		{PageIndex: 0, Text: "a@b.de and again a@b.de"},
		{PageIndex: 1, Text: "a@b.de"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Errorf("points = %+v, want one per page", points)
	}
}

func TestIDNeedsThreeDigits(t *testing.T) {
	e, err := NewExtractor(ID)
	if err != nil {
		t.Fatal(err)
	}
	points, err := e.Extract([]PageText{{PageIndex: 0, Text: "reference ABCDEFG12 and X1234567"}})
	if err != nil {
		t.Fatal(err)
	}
	got := texts(points, "Pattern: id")
	if len(got) != 1 || got[0] != "X1234567" {
		t.Errorf("ids = %q", got)
	}
}

func TestParseCategories(t *testing.T) {
	cats, err := ParseCategories([]string{" Email", "iban"})
	if err != nil || len(cats) != 2 || cats[0] != Email || cats[1] != IBAN {
		t.Errorf("cats = %v err = %v", cats, err)
	}
	if _, err := ParseCategories([]string{"ssn"}); err == nil {
		t.Error("unknown category accepted")
	}
	if all, _ := ParseCategories(nil); len(all) != len(AllCategories) {
		t.Errorf("default categories = %v", all)
	}
}

func TestPagesFromEngine(t *testing.T) {
	f := enginetest.NewFake(2, 100, 100)
	f.Pages[1].Words = []engine.Word{
		{Text: "Jane", Line: 0},
		{Text: "Doe", Line: 0},
		{Text: "Berlin", Line: 1},
	}
	pages, err := PagesFromEngine(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].Text != "" || pages[1].Text != "Jane Doe\nBerlin" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestNERClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Pages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(classifyResponse{Entities: []nerEntity{
			{PageIndex: 0, Text: "Jane Doe", Label: "PER"},
			{PageIndex: 0, Text: "Acme GmbH", Label: "ORG"},
			{PageIndex: 0, Text: "Berlin", Label: "loc"},
			{PageIndex: 0, Text: "Tuesday", Label: "DATE"},
		}})
	}))
	defer srv.Close()

	c := NewNERClient(srv.URL+"/", nil)
	points, err := c.Suggest(context.Background(), []PageText{{PageIndex: 0, Text: "Jane Doe of Acme GmbH, Berlin"}})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %+v", points)
	}
	per := points[0]
	if per.Person != "Jane Doe" || per.Confidence != redaction.ConfidenceHigh || per.Reason != "Recognised entity: PER" {
		t.Errorf("PER = %+v", per)
	}
	if org := points[1]; org.Person != "" || org.Confidence != redaction.ConfidenceLow || org.PersonGroup != "Organisations" {
		t.Errorf("ORG = %+v", org)
	}
	if loc := points[2]; loc.PersonGroup != "Places" {
		t.Errorf("LOC = %+v", loc)
	}
}

func TestNERClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	points, err := NewNERClient(srv.URL, nil).Suggest(context.Background(), []PageText{{Text: "x"}})
	if err != nil || points != nil {
		t.Errorf("points = %v err = %v, want none", points, err)
	}

	// Nothing listens on a closed server
	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	points, err = NewNERClient(url, nil).Suggest(context.Background(), []PageText{{Text: "x"}})
	if err != nil || points != nil {
		t.Errorf("points = %v err = %v, want none", points, err)
	}
}

func TestPointBatch(t *testing.T) {
	b := PointBatch([]suggest.Point{{Text: "a"}, {Text: "b"}})
	if len(b.Suggestions) != 2 {
		t.Errorf("batch = %+v", b)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
