package hocr

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoPages is returned when the input holds no ocr_page element.
var ErrNoPages = errors.New("no ocr_page elements found in hOCR data")

// ParseHOCR converts raw hOCR data into a structured HOCR object.
// Latin-1 documents are decoded to UTF-8 first.
func ParseHOCR(data []byte) (HOCR, error) {
	result := HOCR{Metadata: make(map[string]string)}

	if enc := declaredCharset(data); enc != "" && enc != "utf-8" && enc != "utf8" {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return result, fmt.Errorf("failed to decode %s: %w", enc, err)
		}
		data = decoded
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return result, fmt.Errorf("failed to parse hOCR html: %w", err)
	}

	extractDocumentMeta(&result, doc)

	// Pages may sit anywhere under body
	for _, n := range collect(doc, "ocr_page") {
		result.Pages = append(result.Pages, processPage(n))
	}

	if len(result.Pages) == 0 {
		return result, ErrNoPages
	}
	return result, nil
}

// declaredCharset returns the lower-cased charset named in a meta tag, if any.
func declaredCharset(data []byte) string {
	i := bytes.Index(data, []byte("charset="))
	if i < 0 {
		return ""
	}
	rest := data[i+len("charset="):]
	end := bytes.IndexAny(rest, "\"';> \n")
	if end < 0 {
		end = len(rest)
	}
	return strings.ToLower(string(rest[:end]))
}

// ParseTitle breaks down an hOCR title attribute into its properties.
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(part)
		if len(items) > 0 {
			result[items[0]] = items[1:]
		}
	}
	return result
}

// ParseBoundingBoxFromTitle extracts the bbox property of a title attribute.
// It returns nil when the title has no complete bbox.
func ParseBoundingBoxFromTitle(title string) *BoundingBox {
	bbox, ok := ParseTitle(title)["bbox"]
	if !ok || len(bbox) < 4 {
		return nil
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(bbox[i], 64)
		if err != nil {
			return nil
		}
		v[i] = f
	}
	result := NewBoundingBox(v[0], v[1], v[2], v[3])
	return &result
}

// element holds the attributes shared by every hOCR element.
type element struct {
	id    string
	lang  string
	title string
	bbox  BoundingBox
	props map[string][]string
}

// readElement parses the id, lang and title attributes of n.
func readElement(n *html.Node) element {
	e := element{
		id:    getAttrVal(n, "id"),
		lang:  getAttrVal(n, "lang"),
		title: getAttrVal(n, "title"),
	}
	e.props = ParseTitle(e.title)
	if bbox := ParseBoundingBoxFromTitle(e.title); bbox != nil {
		e.bbox = *bbox
	}
	return e
}

// metadata returns the title properties not listed in skip, joined by spaces.
func (e element) metadata(skip ...string) map[string]string {
	md := make(map[string]string)
	for k, v := range e.props {
		if k == "bbox" || contains(skip, k) {
			continue
		}
		md[k] = strings.Join(v, " ")
	}
	return md
}

// extractDocumentMeta reads the language, title and meta tags of the document.
func extractDocumentMeta(result *HOCR, doc *html.Node) {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "html" {
			continue
		}
		if lang := getAttrVal(c, "lang"); lang != "" {
			result.Language = lang
		} else if lang := getAttrVal(c, "xml:lang"); lang != "" {
			result.Language = lang
		}
	}

	head := findElement(doc, "head")
	if head == nil {
		return
	}

	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "title":
			if c.FirstChild != nil {
				result.Title = c.FirstChild.Data
			}
		case "meta":
			name, content := getAttrVal(c, "name"), getAttrVal(c, "content")
			if name == "" || content == "" {
				continue
			}
			switch name {
			case "ocr-system", "ocr-capabilities", "ocr-number-of-pages", "ocr-langs":
				result.Metadata[name] = content
			case "description":
				result.Description = content
			case "dc.language":
				result.Language = content
			}
		}
	}
}

// processPage builds a Page from an ocr_page element.
func processPage(n *html.Node) Page {
	e := readElement(n)
	page := Page{
		ID:       e.id,
		Lang:     e.lang,
		Title:    e.title,
		BBox:     e.bbox,
		Metadata: e.metadata("image", "ppageno"),
	}
	if image, ok := e.props["image"]; ok && len(image) > 0 {
		page.ImageName = strings.Trim(strings.Join(image, " "), `"`)
	}
	if ppageno, ok := e.props["ppageno"]; ok && len(ppageno) > 0 {
		page.PageNumber, _ = strconv.Atoi(ppageno[0])
	}

	for _, c := range collectChildren(n, "ocr_carea", "ocr_par", "ocr_line") {
		switch class := getAttrVal(c, "class"); {
		case strings.Contains(class, "ocr_carea"):
			page.Areas = append(page.Areas, processArea(c))
		case strings.Contains(class, "ocr_par"):
			page.Paragraphs = append(page.Paragraphs, processParagraph(c))
		default:
			page.Lines = append(page.Lines, processLine(c))
		}
	}
	return page
}

// processArea builds an Area and its paragraphs, lines and loose words.
func processArea(n *html.Node) Area {
	e := readElement(n)
	area := Area{ID: e.id, Lang: e.lang, BBox: e.bbox, Metadata: e.metadata()}

	for _, c := range collectChildren(n, "ocr_par", "ocr_line", "ocrx_word") {
		switch class := getAttrVal(c, "class"); {
		case strings.Contains(class, "ocr_par"):
			area.Paragraphs = append(area.Paragraphs, processParagraph(c))
		case strings.Contains(class, "ocr_line"):
			area.Lines = append(area.Lines, processLine(c))
		default:
			area.Words = append(area.Words, processWord(c))
		}
	}
	return area
}

// processParagraph builds a Paragraph and its lines and loose words.
func processParagraph(n *html.Node) Paragraph {
	e := readElement(n)
	para := Paragraph{ID: e.id, Lang: e.lang, BBox: e.bbox, Metadata: e.metadata()}

	for _, c := range collectChildren(n, "ocr_line", "ocrx_word") {
		if strings.Contains(getAttrVal(c, "class"), "ocr_line") {
			para.Lines = append(para.Lines, processLine(c))
		} else {
			para.Words = append(para.Words, processWord(c))
		}
	}
	return para
}

// processLine builds a Line and its words.
func processLine(n *html.Node) Line {
	e := readElement(n)
	line := Line{ID: e.id, Lang: e.lang, BBox: e.bbox, Metadata: e.metadata("baseline")}
	if baseline, ok := e.props["baseline"]; ok {
		line.Baseline = strings.Join(baseline, " ")
	}

	for _, c := range collectChildren(n, "ocrx_word") {
		line.Words = append(line.Words, processWord(c))
	}
	return line
}

// processWord builds a Word from an ocrx_word element.
func processWord(n *html.Node) Word {
	e := readElement(n)
	word := Word{
		ID:       e.id,
		Lang:     e.lang,
		BBox:     e.bbox,
		Text:     extractTextContent(n),
		Metadata: e.metadata("x_wconf", "lang"),
	}
	if conf, ok := e.props["x_wconf"]; ok && len(conf) > 0 {
		word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
	}
	if lang, ok := e.props["lang"]; ok && len(lang) > 0 {
		word.Lang = lang[0]
	}
	return word
}

// collect returns the outermost descendants of n whose class contains one of classes.
func collect(n *html.Node, classes ...string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, classes) {
			found = append(found, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// collectChildren is collect without matching n itself.
func collectChildren(n *html.Node, classes ...string) []*html.Node {
	var found []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		found = append(found, collect(c, classes...)...)
	}
	return found
}

func hasClass(n *html.Node, classes []string) bool {
	class := getAttrVal(n, "class")
	for _, want := range classes {
		if strings.Contains(class, want) {
			return true
		}
	}
	return false
}

// findElement returns the first element named tag in document order.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// extractTextContent gets all text from a node and its children.
func extractTextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(extractTextContent(c))
	}
	return strings.TrimSpace(sb.String())
}

// getAttrVal returns the value of an attribute, or "" if absent.
func getAttrVal(n *html.Node, attrName string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrName {
			return attr.Val
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
