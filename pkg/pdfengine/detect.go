package pdfengine

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/tsawler/tabula/core"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/geom"
)

// DetectLayers finds the optional content group names in raw PDF data.
func DetectLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF data")
	}

	content := string(pdfData)
	ocgPatterns := []*regexp.Regexp{
		regexp.MustCompile(`(?s)/Type\s*/OCG\s*/Name\s*(\((?:\\.|[^\\)])*\)|<[0-9A-Fa-f\s]*>)`),
		regexp.MustCompile(`(?s)/Name\s*(\((?:\\.|[^\\)])*\)|<[0-9A-Fa-f\s]*>)\s*/Type\s*/OCG\b`),
	}

	var layers []string
	for _, re := range ocgPatterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			layers = append(layers, pdfStringValue(match[1]))
		}
	}

	// Deduplicate
	unique := make([]string, 0, len(layers))
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique, nil
}

// HasTextLayer reports whether the PDF already has a layer named layerName, either
// plain or in its per-page form "layerName (Page N)".
func HasTextLayer(pdfData []byte, layerName string) bool {
	layers, err := DetectLayers(pdfData)
	if err != nil {
		return false
	}
	pageLayer := regexp.MustCompile(fmt.Sprintf(`^%s\s*\(Page\s*\d+`, regexp.QuoteMeta(layerName)))
	for _, l := range layers {
		if l == layerName || pageLayer.MatchString(l) {
			return true
		}
	}
	return false
}

// redactAnnot is a /Redact annotation found in the object graph.
type redactAnnot struct {
	num  int // object number, 0 for annotations stored inline in /Annots
	page int
	dict core.Dict
}

// LoadExistingAnnotations extracts the /Redact annotations of a PDF, including those
// stored in object streams, and maps them into page space. An empty file reads the
// engine's source PDF. Annotations on pages the engine does not have are dropped.
func (e *Engine) LoadExistingAnnotations(ctx context.Context, file []byte) ([]engine.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(file) == 0 {
		file = e.source
	}
	if len(file) == 0 {
		return nil, nil
	}

	idx, err := newObjectIndex(file)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	pageList := idx.pageList()
	found := findRedactions(idx, pageList)

	var anns []engine.Annotation
	for _, a := range found {
		if a.page < 0 {
			e.cfg.logger().Warn("redaction annotation without page", "object", a.num)
			continue
		}
		if a.page >= len(e.doc.Pages) {
			e.cfg.logger().Warn("redaction annotation beyond last page", "object", a.num, "page", a.page)
			continue
		}

		toPage := e.pdfToPage(pageList[a.page].box, a.page)
		var quads []geom.Quad
		v := idx.numberArray(a.dict.Get("QuadPoints"))
		for i := 0; i+8 <= len(v); i += 8 {
			quads = appendQuad(quads, toPage, v[i:i+8])
		}
		if len(quads) == 0 {
			if v := idx.numberArray(a.dict.Get("Rect")); len(v) == 4 {
				quads = appendQuad(quads, toPage, []float64{v[0], v[1], v[2], v[1], v[0], v[3], v[2], v[3]})
			}
		}
		if len(quads) > 0 {
			anns = append(anns, engine.Annotation{PageIndex: a.page, Quads: quads})
		}
	}
	sort.SliceStable(anns, func(i, j int) bool { return anns[i].PageIndex < anns[j].PageIndex })
	return anns, nil
}

// findRedactions collects the /Redact annotations reachable from page /Annots arrays
// and those pointing at a page through /P. The page is -1 when neither resolves.
func findRedactions(idx *objectIndex, pageList []pdfPage) []redactAnnot {
	pageIndex := make(map[int]int, len(pageList))
	for i, p := range pageList {
		if p.num > 0 {
			pageIndex[p.num] = i
		}
	}

	var inline []redactAnnot
	annotPage := make(map[int]int)
	for i, p := range pageList {
		annots, err := idx.Resolve(p.dict.Get("Annots"))
		if err != nil {
			continue
		}
		arr, _ := annots.(core.Array)
		for _, el := range arr {
			if ref, ok := el.(core.IndirectRef); ok {
				annotPage[ref.Number] = i
				continue
			}
			if d, ok := el.(core.Dict); ok && isRedaction(d) {
				inline = append(inline, redactAnnot{page: i, dict: d})
			}
		}
	}

	nums := idx.numbers()
	sort.Ints(nums)
	var out []redactAnnot
	for _, num := range nums {
		obj, err := idx.object(num)
		if err != nil {
			continue
		}
		d, ok := obj.(core.Dict)
		if !ok || !isRedaction(d) {
			continue
		}
		page, ok := annotPage[num]
		if !ok {
			page = -1
		}
		if ref, isRef := d.GetIndirectRef("P"); isRef {
			if i, found := pageIndex[ref.Number]; found {
				page = i
			}
		}
		out = append(out, redactAnnot{num: num, page: page, dict: d})
	}
	return append(out, inline...)
}

func isRedaction(d core.Dict) bool {
	subtype, _ := d.GetName("Subtype")
	return subtype == "Redact"
}

// pdfToPage returns the mapping from PDF user space (bottom-left origin) of a page with
// MediaBox mb to the engine's page space.
func (e *Engine) pdfToPage(mb []float64, index int) func(x, y float64) (float64, float64) {
	bbox := e.doc.Pages[index].BBox
	if len(mb) != 4 || mb[2] == mb[0] || mb[3] == mb[1] {
		mb = []float64{0, 0, bbox.Width(), bbox.Height()}
	}
	mbW, mbH := mb[2]-mb[0], mb[3]-mb[1]
	return func(x, y float64) (float64, float64) {
		px, py := normalizeCoords(x-mb[0], mb[3]-y, mbW, mbH, bbox.Width(), bbox.Height())
		return bbox.X1 + px, bbox.Y1 + py
	}
}

// appendQuad converts eight PDF coordinates to an axis-aligned page-space quad.
func appendQuad(quads []geom.Quad, toPage func(x, y float64) (float64, float64), v []float64) []geom.Quad {
	var box geom.Box
	for i := 0; i < 8; i += 2 {
		x, y := toPage(v[i], v[i+1])
		p := geom.Box{X0: x, Y0: y, X1: x, Y1: y}
		if i == 0 {
			box = p
		} else {
			box = box.Extend(p)
		}
	}
	if box.Width() <= 0 || box.Height() <= 0 {
		return quads
	}
	return append(quads, geom.RectToQuad(box.Rect()))
}
