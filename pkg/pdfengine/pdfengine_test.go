package pdfengine

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
	"github.com/gardar/redactra/pkg/hocr"
)

func word(text string, x1, y1, x2, y2 float64) hocr.Word {
	return hocr.Word{Text: text, BBox: hocr.NewBoundingBox(x1, y1, x2, y2)}
}

func testDoc() hocr.HOCR {
	return hocr.HOCR{Pages: []hocr.Page{
		{
			BBox: hocr.NewBoundingBox(0, 0, 600, 800),
			Lines: []hocr.Line{
				{ID: "l1", BBox: hocr.NewBoundingBox(100, 100, 220, 120), Words: []hocr.Word{
					word("Jane", 100, 100, 160, 120),
					word("Doe,", 170, 100, 220, 120),
				}},
				{ID: "l2", BBox: hocr.NewBoundingBox(100, 140, 260, 160), Words: []hocr.Word{
					word("Berlin", 100, 140, 180, 160),
					word("Street", 190, 140, 260, 160),
				}},
			},
		},
		{
			BBox: hocr.NewBoundingBox(0, 0, 600, 800),
			Lines: []hocr.Line{
				{ID: "l3", Words: []hocr.Word{word("Nothing", 50, 50, 150, 70)}},
			},
		},
	}}
}

func pngImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sourcePDF(t *testing.T, layers ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetTitle("Quarterly report", true)
	pdf.SetAuthor("Jane Doe", true)
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < 2; i++ {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: 600, Ht: 800})
		pdf.Text(100, 115, "Jane Doe")
	}
	for _, l := range layers {
		id := pdf.AddLayer(l, true)
		pdf.BeginLayer(id)
		pdf.EndLayer()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newEngine(t *testing.T, images [][]byte, source []byte) *Engine {
	t.Helper()
	e, err := New(testDoc(), images, source, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewValidation(t *testing.T) {
	if _, err := New(hocr.HOCR{}, nil, nil, DefaultConfig()); err == nil {
		t.Error("document without pages accepted")
	}
	if _, err := New(testDoc(), [][]byte{pngImage(t, 6, 8, color.White)}, nil, DefaultConfig()); err == nil {
		t.Error("missing page image accepted")
	}
	if _, err := New(testDoc(), [][]byte{[]byte("x"), []byte("y")}, nil, DefaultConfig()); err == nil {
		t.Error("invalid image accepted")
	}
	if _, err := New(42, nil, nil, DefaultConfig()); err == nil {
		t.Error("unsupported input accepted")
	}
}

func TestPageGeometry(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	if n, _ := e.PageCount(ctx); n != 2 {
		t.Errorf("PageCount = %d", n)
	}
	b, err := e.PageBounds(ctx, 0)
	if err != nil || b != (geom.Box{X0: 0, Y0: 0, X1: 600, Y1: 800}) {
		t.Errorf("PageBounds = %+v, %v", b, err)
	}
	if _, err := e.PageBounds(ctx, 2); !errors.Is(err, engine.ErrPageOutOfRange) {
		t.Errorf("PageBounds(2) err = %v", err)
	}

	words, err := e.PageWords(ctx, 0)
	if err != nil || len(words) != 4 {
		t.Fatalf("PageWords = %+v, %v", words, err)
	}
	if words[1].Text != "Doe," || words[1].Line != 0 || words[2].Line != 1 {
		t.Errorf("words = %+v", words)
	}

	lines, err := e.PageLines(ctx, 1)
	if err != nil || len(lines) != 1 || lines[0].Text != "Nothing" {
		t.Fatalf("PageLines = %+v, %v", lines, err)
	}
	// A line without a bbox spans its words
	if lines[0].BBox != (geom.Box{X0: 50, Y0: 50, X1: 150, Y1: 70}) {
		t.Errorf("line bbox = %+v", lines[0].BBox)
	}
}

func TestSearchPage(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	tests := []struct {
		name    string
		literal string
		want    [][]geom.Rect
	}{
		{"single word", "JANE", [][]geom.Rect{{{X: 100, Y: 100, Width: 60, Height: 20}}}},
		{"across lines", "doe,   berlin", [][]geom.Rect{{
			{X: 170, Y: 100, Width: 50, Height: 20},
			{X: 100, Y: 140, Width: 80, Height: 20},
		}}},
		{"partial word", "oe", [][]geom.Rect{{{X: 182.5, Y: 100, Width: 25, Height: 20}}}},
		{"two words on a line", "jane doe", [][]geom.Rect{{{X: 100, Y: 100, Width: 107.5, Height: 20}}}},
		{"blank", "  ", nil},
		{"absent", "Hamburg", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.SearchPage(ctx, 0, tc.literal)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("matches = %+v", got)
			}
			for i, quads := range got {
				if len(quads) != len(tc.want[i]) {
					t.Fatalf("match %d quads = %+v", i, quads)
				}
				for j, q := range quads {
					if r := geom.QuadToRect(q); !rectNear(r, tc.want[i][j]) {
						t.Errorf("match %d quad %d = %+v, want %+v", i, j, r, tc.want[i][j])
					}
				}
			}
		})
	}

	all, _ := e.SearchPage(ctx, 0, "e")
	if len(all) != 5 {
		t.Errorf("occurrences of e = %d, want 5", len(all))
	}
	if _, err := e.SearchPage(ctx, 5, "x"); !errors.Is(err, engine.ErrPageOutOfRange) {
		t.Errorf("err = %v", err)
	}
}

func rectNear(a, b geom.Rect) bool {
	near := func(x, y float64) bool { return math.Abs(x-y) < 1e-6 }
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Width, b.Width) && near(a.Height, b.Height)
}

func TestRenderPage(t *testing.T) {
	ctx := context.Background()
	images := [][]byte{pngImage(t, 60, 80, color.White), pngImage(t, 60, 80, color.White)}
	e := newEngine(t, images, nil)

	out, err := e.RenderPage(ctx, 1, 0.5)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil || cfg.Width != 300 || cfg.Height != 400 {
		t.Errorf("rendered %dx%d, %v", cfg.Width, cfg.Height, err)
	}
	if _, err := e.RenderPage(ctx, 0, 0); err == nil {
		t.Error("zero scale accepted")
	}
	if _, err := newEngine(t, nil, nil).RenderPage(ctx, 0, 1); !errors.Is(err, ErrNoPageImages) {
		t.Errorf("err = %v, want ErrNoPageImages", err)
	}
}

func TestRedactedRemovesWords(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)
	anns := []engine.Annotation{{PageIndex: 0, Quads: []geom.Quad{
		geom.RectToQuad(geom.Rect{X: 175, Y: 105, Width: 10, Height: 5}),
	}}}

	redacted, err := New(e.Redacted(anns), nil, nil, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m, _ := redacted.SearchPage(ctx, 0, "doe"); len(m) != 0 {
		t.Errorf("redacted word still found: %+v", m)
	}
	if m, _ := redacted.SearchPage(ctx, 0, "jane"); len(m) != 1 {
		t.Errorf("unredacted word lost: %+v", m)
	}
	// The engine's own model is untouched
	if m, _ := e.SearchPage(ctx, 0, "doe"); len(m) != 1 {
		t.Errorf("original model changed: %+v", m)
	}
}

func TestBlackout(t *testing.T) {
	data := pngImage(t, 100, 100, color.White)
	out, err := blackout(data, hocr.NewBoundingBox(0, 0, 200, 200), []geom.Rect{{X: 20, Y: 20, Width: 40, Height: 40}})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	isBlack := func(x, y int) bool {
		r, g, b, _ := img.At(x, y).RGBA()
		return r == 0 && g == 0 && b == 0
	}
	if !isBlack(10, 10) || !isBlack(29, 29) {
		t.Error("redacted pixels not black")
	}
	if isBlack(5, 5) || isBlack(30, 30) || isBlack(90, 90) {
		t.Error("pixels outside the region painted")
	}
}

func TestExportPermanent(t *testing.T) {
	ctx := context.Background()
	images := [][]byte{pngImage(t, 60, 80, color.White), pngImage(t, 60, 80, color.White)}
	e := newEngine(t, images, sourcePDF(t))
	anns := []engine.Annotation{{PageIndex: 0, Quads: []geom.Quad{
		geom.RectToQuad(geom.Rect{X: 170, Y: 100, Width: 50, Height: 20}),
	}}}

	out, err := e.ExportDocument(ctx, anns, true, []string{"author"})
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
	meta := parseInfo(out)
	if meta["Title"] != "Quarterly report" {
		t.Errorf("title = %q", meta["Title"])
	}
	if _, ok := meta["Author"]; ok {
		t.Error("stripped author still present")
	}
	layers, _ := DetectLayers(out)
	if !containsString(layers, "OCR Text (Page 1)") || containsString(layers, "Redaction Preview (Page 1)") {
		t.Errorf("layers = %q", layers)
	}
}

func TestExportPermanentNeedsImages(t *testing.T) {
	e := newEngine(t, nil, sourcePDF(t))
	if _, err := e.ExportDocument(context.Background(), nil, true, nil); !errors.Is(err, ErrNoPageImages) {
		t.Errorf("err = %v, want ErrNoPageImages", err)
	}
}

func TestExportPreviewFromSource(t *testing.T) {
	e := newEngine(t, nil, sourcePDF(t))
	anns := []engine.Annotation{{PageIndex: 0, Quads: []geom.Quad{
		geom.RectToQuad(geom.Rect{X: 100, Y: 100, Width: 120, Height: 20}),
	}}}
	out, err := e.ExportDocument(context.Background(), anns, false, nil)
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	layers, _ := DetectLayers(out)
	if !containsString(layers, "Redaction Preview (Page 1)") || containsString(layers, "Redaction Preview (Page 2)") {
		t.Errorf("layers = %q", layers)
	}
	if meta := parseInfo(out); meta["Author"] != "Jane Doe" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestExportRejectsUnknownPage(t *testing.T) {
	e := newEngine(t, nil, sourcePDF(t))
	anns := []engine.Annotation{{PageIndex: 7}}
	if _, err := e.ExportDocument(context.Background(), anns, false, nil); !errors.Is(err, engine.ErrPageOutOfRange) {
		t.Errorf("err = %v", err)
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	meta, err := newEngine(t, nil, sourcePDF(t)).Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if meta["Title"] != "Quarterly report" || meta["Author"] != "Jane Doe" {
		t.Errorf("metadata = %v", meta)
	}
	if !strings.HasPrefix(meta["CreationDate"], "D:") {
		t.Errorf("creation date = %q", meta["CreationDate"])
	}
	if meta, _ := newEngine(t, nil, nil).Metadata(ctx); len(meta) != 0 {
		t.Errorf("metadata without source = %v", meta)
	}
}

func TestHasTextLayer(t *testing.T) {
	if !HasTextLayer(sourcePDF(t, "OCR Text (Page 1)"), "OCR Text") {
		t.Error("per-page text layer not detected")
	}
	if HasTextLayer(sourcePDF(t, "Notes"), "OCR Text") {
		t.Error("unrelated layer detected as text layer")
	}
}

const annotatedPDF = `%PDF-1.4
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 300 400] >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /Annots [5 0 R] >> endobj
4 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 600 800] >> endobj
5 0 obj << /Type /Annot /Subtype /Redact /Rect [30 340 90 370] >> endobj
6 0 obj << /Type /Annot /Subtype /Redact /P 4 0 R /QuadPoints [100 700 200 700 100 680 200 680 100 600 150 600 100 580 150 580] >> endobj
7 0 obj << /Type /Annot /Subtype /Highlight /P 4 0 R /Rect [0 0 10 10] >> endobj
trailer << /Root 1 0 R >>
%%EOF
`

func TestLoadExistingAnnotations(t *testing.T) {
	e := newEngine(t, nil, nil)
	anns, err := e.LoadExistingAnnotations(context.Background(), []byte(annotatedPDF))
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 {
		t.Fatalf("annotations = %+v", anns)
	}

	// Page 1 inherits a half-size MediaBox, so its coordinates double
	if anns[0].PageIndex != 0 || len(anns[0].Quads) != 1 {
		t.Fatalf("first = %+v", anns[0])
	}
	if r := geom.QuadToRect(anns[0].Quads[0]); !rectNear(r, geom.Rect{X: 60, Y: 60, Width: 120, Height: 60}) {
		t.Errorf("rect annotation = %+v", r)
	}

	if anns[1].PageIndex != 1 || len(anns[1].Quads) != 2 {
		t.Fatalf("second = %+v", anns[1])
	}
	want := []geom.Rect{{X: 100, Y: 100, Width: 100, Height: 20}, {X: 100, Y: 200, Width: 50, Height: 20}}
	for i, q := range anns[1].Quads {
		if r := geom.QuadToRect(q); !rectNear(r, want[i]) {
			t.Errorf("quad %d = %+v, want %+v", i, r, want[i])
		}
	}

	none, err := e.LoadExistingAnnotations(context.Background(), nil)
	if err != nil || len(none) != 0 {
		t.Errorf("no source = %+v, %v", none, err)
	}
}

// compressedPDF stores its two redaction annotations in a Flate encoded object stream
// and has no xref table.
func compressedPDF(t *testing.T) []byte {
	t.Helper()
	objs := []string{
		"<< /Type /Annot /Subtype /Redact /QuadPoints [100 700 200 700 100 680 200 680] >>",
		"<< /Type /Annot /Subtype /Redact /P 3 0 R /Rect [10 10 60 30] >>",
	}
	header := fmt.Sprintf("5 0 6 %d\n", len(objs[0])+1)
	body := header + objs[0] + "\n" + objs[1] + "\n"

	var packed bytes.Buffer
	zw := zlib.NewWriter(&packed)
	if _, err := zw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	buf.WriteString("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	buf.WriteString("2 0 obj << /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 600 800] >> endobj\n")
	buf.WriteString("3 0 obj << /Type /Page /Parent 2 0 R >> endobj\n")
	buf.WriteString("4 0 obj << /Type /Page /Parent 2 0 R /Annots [5 0 R] >> endobj\n")
	fmt.Fprintf(&buf, "8 0 obj << /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n",
		len(header), packed.Len())
	buf.Write(packed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	buf.WriteString("trailer << /Root 1 0 R >>\n%%EOF\n")
	return buf.Bytes()
}

func TestLoadCompressedAnnotations(t *testing.T) {
	e := newEngine(t, nil, nil)
	anns, err := e.LoadExistingAnnotations(context.Background(), compressedPDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 {
		t.Fatalf("annotations = %+v", anns)
	}
	if anns[0].PageIndex != 0 || len(anns[0].Quads) != 1 {
		t.Fatalf("first = %+v", anns[0])
	}
	if r := geom.QuadToRect(anns[0].Quads[0]); !rectNear(r, geom.Rect{X: 10, Y: 770, Width: 50, Height: 20}) {
		t.Errorf("rect annotation = %+v", r)
	}
	if anns[1].PageIndex != 1 || len(anns[1].Quads) != 1 {
		t.Fatalf("second = %+v", anns[1])
	}
	if r := geom.QuadToRect(anns[1].Quads[0]); !rectNear(r, geom.Rect{X: 100, Y: 100, Width: 100, Height: 20}) {
		t.Errorf("quad annotation = %+v", r)
	}
}

func TestLoadAnnotationsRejectsGarbage(t *testing.T) {
	e := newEngine(t, nil, nil)
	if _, err := e.LoadExistingAnnotations(context.Background(), []byte("not a pdf")); err == nil {
		t.Error("garbage accepted")
	}
}

func TestExportPermanentRemovesRedactedText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compress = false
	images := [][]byte{pngImage(t, 60, 80, color.White), pngImage(t, 60, 80, color.White)}
	e, err := New(testDoc(), images, sourcePDF(t), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	anns := []engine.Annotation{{PageIndex: 0, Quads: []geom.Quad{
		geom.RectToQuad(geom.Rect{X: 170, Y: 100, Width: 50, Height: 20}),
	}}}

	out, err := e.ExportDocument(context.Background(), anns, true, []string{"Author"})
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	if bytes.Contains(out, []byte("Doe")) {
		t.Error("redacted word still present in the output")
	}
	for _, kept := range []string{"(Jane)", "(Berlin)", "(Street)"} {
		if !bytes.Contains(out, []byte(kept)) {
			t.Errorf("text layer lost %s", kept)
		}
	}
}

func TestCustomMetadataCarriedThrough(t *testing.T) {
	src := fpdf.New("P", "pt", "", "")
	for i := 0; i < 2; i++ {
		src.AddPageFormat("P", fpdf.SizeType{Wd: 600, Ht: 800})
	}
	applyMetadata(src, map[string]string{
		"Title":      "Lease",
		"Department": "Legal & Co",
		"Case-Ref":   "4711",
		"bad key":    "dropped",
	})
	src.SetCompression(false)
	var buf bytes.Buffer
	if err := src.Output(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<pdfx:Department>Legal &amp; Co</pdfx:Department>")) {
		t.Error("custom field not written as XMP")
	}
	meta := parseInfo(buf.Bytes())
	if meta["Title"] != "Lease" || meta["Department"] != "Legal & Co" || meta["Case-Ref"] != "4711" {
		t.Errorf("metadata = %v", meta)
	}
	if _, ok := meta["bad key"]; ok {
		t.Error("invalid key written")
	}

	e := newEngine(t, nil, buf.Bytes())
	out, err := e.ExportDocument(context.Background(), nil, false, []string{"case-ref"})
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	meta = parseInfo(out)
	if meta["Department"] != "Legal & Co" {
		t.Errorf("exported metadata = %v", meta)
	}
	if _, ok := meta["Case-Ref"]; ok {
		t.Error("stripped custom field still present")
	}
}

func TestPDFStrings(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`(Hello \(world\))`, "Hello (world)"},
		{`(tab\there)`, "tab\there"},
		{`(caf\351)`, "café"},
		{`<48656C6C6F>`, "Hello"},
		{"(\xfe\xff\x00J\x00a)", "Ja"},
	}
	for _, tc := range tests {
		if got := pdfStringValue(tc.in); got != tc.want {
			t.Errorf("pdfStringValue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePDFDate(t *testing.T) {
	d, ok := parsePDFDate("D:20240312093000+01'00'")
	if !ok || d.Year() != 2024 || d.Month() != 3 || d.Day() != 12 || d.Hour() != 9 || d.Minute() != 30 {
		t.Errorf("date = %v, %v", d, ok)
	}
	if _, ok := parsePDFDate("yesterday"); ok {
		t.Error("invalid date parsed")
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
