package hocr

import (
	"errors"
	"strings"
	"testing"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head>
  <title>Contract</title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name="ocr-system" content="tesseract 5"/>
 </head>
 <body>
  <div class="ocr_page" id="page_1" title="image &quot;page-1.png&quot;; bbox 0 0 600 800; ppageno 0">
   <div class="ocr_carea" id="block_1" title="bbox 50 50 550 120">
    <p class="ocr_par" id="par_1" title="bbox 50 50 550 120">
     <span class="ocr_line" id="line_1" title="bbox 50 50 300 70; baseline 0 -3">
      <span class="ocrx_word" id="word_1" title="bbox 50 50 120 70; x_wconf 96">Jane</span>
      <span class="ocrx_word" id="word_2" title="bbox 130 50 200 70; x_wconf 91">Doe</span>
     </span>
     <span class="ocr_line" id="line_2" title="bbox 50 100 300 120">
      <span class="ocrx_word" id="word_3" title="bbox 50 100 180 120; x_wconf 88">signed</span>
     </span>
    </p>
   </div>
   <span class="ocr_line" id="line_3" title="bbox 50 700 200 720">
    <span class="ocrx_word" id="word_4" title="bbox 50 700 200 720">Footer</span>
   </span>
  </div>
 </body>
</html>`

func TestParseHOCR(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatalf("ParseHOCR: %v", err)
	}
	if doc.Title != "Contract" || doc.Language != "en" || doc.Metadata["ocr-system"] != "tesseract 5" {
		t.Errorf("document meta = %q %q %v", doc.Title, doc.Language, doc.Metadata)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("pages = %d", len(doc.Pages))
	}
	p := doc.Pages[0]
	if p.ImageName != "page-1.png" || p.BBox.X2 != 600 || p.BBox.Y2 != 800 {
		t.Errorf("page = %+v", p)
	}
	if len(p.Areas) != 1 || len(p.Areas[0].Paragraphs) != 1 || len(p.Lines) != 1 {
		t.Fatalf("structure: areas=%d lines=%d", len(p.Areas), len(p.Lines))
	}
	line := p.Areas[0].Paragraphs[0].Lines[0]
	if line.Baseline != "0 -3" || len(line.Words) != 2 {
		t.Errorf("line = %+v", line)
	}
	if w := line.Words[0]; w.Text != "Jane" || w.Confidence != 96 || w.BBox != NewBoundingBox(50, 50, 120, 70) {
		t.Errorf("word = %+v", w)
	}
}

func TestParseHOCRWithoutPages(t *testing.T) {
	_, err := ParseHOCR([]byte("<html><body><p>nothing</p></body></html>"))
	if !errors.Is(err, ErrNoPages) {
		t.Errorf("err = %v, want ErrNoPages", err)
	}
}

func TestTextLines(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	lines := doc.Pages[0].TextLines()
	var got []string
	for _, l := range lines {
		got = append(got, l.Text())
	}
	want := []string{"Jane Doe", "signed", "Footer"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("TextLines = %q, want %q", got, want)
	}
	if text := PageText(doc.Pages[0]); text != "Jane Doe\nsigned\nFooter\n" {
		t.Errorf("PageText = %q", text)
	}
}

func TestFilterWords(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	filtered := doc.FilterWords(func(page int, w Word) bool { return w.Text != "signed" && w.Text != "Doe" })

	var got []string
	for _, l := range filtered.Pages[0].TextLines() {
		got = append(got, l.Text())
	}
	if strings.Join(got, "|") != "Jane|Footer" {
		t.Errorf("filtered lines = %q", got)
	}
	// The source document is untouched
	if n := len(doc.Pages[0].TextLines()); n != 3 {
		t.Errorf("source lines = %d, want 3", n)
	}
}

func TestGenerateHOCRDocumentParsesBack(t *testing.T) {
	doc, err := ParseHOCR([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	out, err := GenerateHOCRDocument(&doc)
	if err != nil {
		t.Fatalf("GenerateHOCRDocument: %v", err)
	}
	back, err := ParseHOCR([]byte(out))
	if err != nil {
		t.Fatalf("ParseHOCR(generated): %v\n%s", err, out)
	}
	if back.Pages[0].ImageName != "page-1.png" {
		t.Errorf("image name = %q", back.Pages[0].ImageName)
	}
	if got := PageText(back.Pages[0]); got != PageText(doc.Pages[0]) {
		t.Errorf("text after round trip = %q", got)
	}
}

func TestDeclaredCharset(t *testing.T) {
	if got := declaredCharset([]byte(`<meta content="text/html;charset=ISO-8859-1">`)); got != "iso-8859-1" {
		t.Errorf("charset = %q", got)
	}
	if got := declaredCharset([]byte(`<html>`)); got != "" {
		t.Errorf("charset = %q", got)
	}
}

func TestParseLatin1(t *testing.T) {
	data := []byte("<html><head><meta http-equiv=\"Content-Type\" content=\"text/html;charset=iso-8859-1\"></head><body>" +
		"<div class=\"ocr_page\" title=\"bbox 0 0 10 10\"><span class=\"ocr_line\" title=\"bbox 0 0 10 10\">" +
		"<span class=\"ocrx_word\" title=\"bbox 0 0 10 10\">M\xfcller</span></span></div></body></html>")
	doc, err := ParseHOCR(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Pages[0].Lines[0].Words[0].Text; got != "Müller" {
		t.Errorf("word = %q", got)
	}
}
