package pdfengine

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/pages"
)

// objectHeaderPattern locates "N G obj" headers for files whose xref table is missing,
// damaged or stored as a stream.
var objectHeaderPattern = regexp.MustCompile(`(?:^|[\s>\]])(\d+)\s+(\d+)\s+obj\b`)

// maxResolveDepth bounds reference chains while loading objects.
const maxResolveDepth = 64

// objectIndex resolves the indirect objects of a PDF held in memory. Objects are found
// through the xref table when it parses, by scanning object headers otherwise, and inside
// object streams (/ObjStm) for PDF 1.5 compressed files.
type objectIndex struct {
	data     []byte
	trailer  core.Dict
	offsets  map[int]int64 // from the xref table
	scanned  map[int]int64 // from the header scan
	inStream map[int]int   // object number -> object stream number
	streams  map[int]*core.ObjectStream
	cache    map[int]core.Object
	loading  map[int]bool
}

var _ pages.ObjectResolver = (*objectIndex)(nil)

func newObjectIndex(data []byte) (*objectIndex, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF file")
	}
	idx := &objectIndex{
		data:     data,
		offsets:  make(map[int]int64),
		scanned:  make(map[int]int64),
		inStream: make(map[int]int),
		streams:  make(map[int]*core.ObjectStream),
		cache:    make(map[int]core.Object),
		loading:  make(map[int]bool),
	}

	xrefs := core.NewXRefParser(bytes.NewReader(data))
	if table, err := xrefs.ParseXRefFromEOF(); err == nil {
		if table.Trailer.Get("Prev") != nil {
			if tables, err := xrefs.ParseAllXRefs(); err == nil {
				table = core.MergeXRefTables(tables...)
			}
		}
		for num, entry := range table.Entries {
			if entry.InUse {
				idx.offsets[num] = entry.Offset
			}
		}
		idx.trailer = table.Trailer
	}

	for _, m := range objectHeaderPattern.FindAllSubmatchIndex(data, -1) {
		num, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		idx.scanned[num] = int64(m[2])
	}

	if idx.trailer == nil {
		idx.trailer = idx.scanTrailer()
	}
	if idx.trailer == nil {
		return nil, fmt.Errorf("no trailer found")
	}
	idx.indexObjectStreams()
	return idx, nil
}

// scanTrailer reads the last "trailer" dictionary, or the dictionary of the xref
// stream startxref points at.
func (idx *objectIndex) scanTrailer() core.Dict {
	if at := bytes.LastIndex(idx.data, []byte("trailer")); at >= 0 {
		obj, err := core.NewParser(bytes.NewReader(idx.data[at+len("trailer"):])).ParseObject()
		if dict, ok := obj.(core.Dict); err == nil && ok {
			return dict
		}
	}
	offset, err := core.NewXRefParser(bytes.NewReader(idx.data)).FindXRef()
	if err != nil || offset < 0 || offset >= int64(len(idx.data)) {
		return nil
	}
	obj, err := idx.parseAt(offset, -1)
	if err != nil {
		return nil
	}
	if s, ok := obj.(*core.Stream); ok {
		if name, _ := s.Dict.GetName("Type"); name == "XRef" {
			return s.Dict
		}
	}
	return nil
}

// indexObjectStreams records the members of every object stream.
func (idx *objectIndex) indexObjectStreams() {
	for num, off := range idx.scanned {
		if !idx.mentions(off, "/ObjStm") {
			continue
		}
		obj, err := idx.object(num)
		if err != nil {
			continue
		}
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		stm, err := core.NewObjectStream(s)
		if err != nil {
			continue
		}
		members, err := stm.ObjectNumbers()
		if err != nil {
			continue
		}
		idx.streams[num] = stm
		for _, m := range members {
			_, listed := idx.offsets[m]
			_, scanned := idx.scanned[m]
			if !listed && !scanned {
				idx.inStream[m] = num
			}
		}
	}
}

// mentions reports whether the object at off contains token before its stream data or
// end.
func (idx *objectIndex) mentions(off int64, token string) bool {
	body := idx.data[off:]
	end := len(body)
	for _, kw := range []string{"stream", "endobj"} {
		if i := bytes.Index(body, []byte(kw)); i >= 0 && i < end {
			end = i
		}
	}
	return bytes.Contains(body[:end], []byte(token))
}

// numbers lists every known object number.
func (idx *objectIndex) numbers() []int {
	seen := make(map[int]bool)
	var nums []int
	for _, m := range []map[int]int64{idx.offsets, idx.scanned} {
		for n := range m {
			if !seen[n] {
				seen[n] = true
				nums = append(nums, n)
			}
		}
	}
	for n := range idx.inStream {
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	return nums
}

func (idx *objectIndex) parseAt(offset int64, want int) (core.Object, error) {
	p := core.NewParser(bytes.NewReader(idx.data[offset:]))
	p.SetReferenceResolver(idx)
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if want >= 0 && ind.Ref.Number != want {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", want, ind.Ref.Number)
	}
	return ind.Object, nil
}

// object loads an object by number.
func (idx *objectIndex) object(num int) (core.Object, error) {
	if obj, ok := idx.cache[num]; ok {
		return obj, nil
	}
	if idx.loading[num] || len(idx.loading) > maxResolveDepth {
		return nil, fmt.Errorf("object %d: reference cycle", num)
	}
	idx.loading[num] = true
	defer delete(idx.loading, num)

	var obj core.Object
	var err error
	switch {
	case idx.offsets[num] > 0 || idx.scanned[num] > 0:
		if off, ok := idx.offsets[num]; ok && off > 0 && off < int64(len(idx.data)) {
			obj, err = idx.parseAt(off, num)
		}
		if obj == nil {
			if off, ok := idx.scanned[num]; ok {
				obj, err = idx.parseAt(off, num)
			}
		}
	case idx.inStream[num] != 0:
		stm, ok := idx.streams[idx.inStream[num]]
		if !ok {
			return nil, fmt.Errorf("object %d: object stream %d not loaded", num, idx.inStream[num])
		}
		obj, _, err = stm.GetObjectByNumber(num)
	default:
		return nil, fmt.Errorf("object %d not found", num)
	}
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("object %d not found", num)
	}
	idx.cache[num] = obj
	return obj, nil
}

// ResolveReference implements core.ReferenceResolver and pages.ObjectResolver.
func (idx *objectIndex) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return idx.object(ref.Number)
}

// Resolve implements pages.ObjectResolver.
func (idx *objectIndex) Resolve(obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return idx.ResolveReference(ref)
	}
	return obj, nil
}

// ResolveDeep implements pages.ObjectResolver.
func (idx *objectIndex) ResolveDeep(obj core.Object) (core.Object, error) {
	return idx.resolveDeep(obj, 0)
}

func (idx *objectIndex) resolveDeep(obj core.Object, depth int) (core.Object, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("reference chain too deep")
	}
	resolved, err := idx.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case core.Array:
		out := make(core.Array, len(v))
		for i, el := range v {
			if out[i], err = idx.resolveDeep(el, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	case core.Dict:
		out := make(core.Dict, len(v))
		for k, el := range v {
			if out[k], err = idx.resolveDeep(el, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return resolved, nil
}

// dict resolves obj to a dictionary.
func (idx *objectIndex) dict(obj core.Object) (core.Dict, bool) {
	resolved, err := idx.Resolve(obj)
	if err != nil {
		return nil, false
	}
	switch v := resolved.(type) {
	case core.Dict:
		return v, true
	case *core.Stream:
		return v.Dict, true
	}
	return nil, false
}

func (idx *objectIndex) catalog() (core.Dict, bool) {
	return idx.dict(idx.trailer.Get("Root"))
}

// info returns the document information fields as text. Custom fields carried in the
// XMP packet under the pdfx namespace fill in keys the Info dictionary lacks.
func (idx *objectIndex) info() map[string]string {
	meta := make(map[string]string)
	if d, ok := idx.dict(idx.trailer.Get("Info")); ok {
		for key, val := range d {
			resolved, err := idx.Resolve(val)
			if s, ok := resolved.(core.String); err == nil && ok {
				if v := strings.TrimSpace(decodePDFText(string(s))); v != "" {
					meta[key] = v
				}
			}
		}
	}
	if cat, ok := idx.catalog(); ok {
		if stream, err := pages.NewCatalog(cat, idx).Metadata(); err == nil && stream != nil {
			if packet, err := stream.Decode(); err == nil {
				for key, v := range customXMPFields(packet) {
					if _, ok := meta[key]; !ok {
						meta[key] = v
					}
				}
			}
		}
	}
	return meta
}

// pdfPage is one leaf of the page tree.
type pdfPage struct {
	num  int // object number, 0 for direct page dictionaries
	dict core.Dict
	box  []float64 // MediaBox, nil when absent
}

// pageList walks the page tree from the catalog in document order.
func (idx *objectIndex) pageList() []pdfPage {
	cat, ok := idx.catalog()
	if !ok {
		return nil
	}
	var out []pdfPage
	visited := make(map[int]bool)
	var walk func(node core.Object, parent core.Dict, depth int)
	walk = func(node core.Object, parent core.Dict, depth int) {
		if depth > maxResolveDepth {
			return
		}
		num := 0
		if ref, ok := node.(core.IndirectRef); ok {
			if visited[ref.Number] {
				return
			}
			visited[ref.Number] = true
			num = ref.Number
		}
		d, ok := idx.dict(node)
		if !ok {
			return
		}
		if name, _ := d.GetName("Type"); name == "Pages" || (name == "" && d.Has("Kids")) {
			kids, err := idx.Resolve(d.Get("Kids"))
			if arr, isArr := kids.(core.Array); err == nil && isArr {
				// Inherited attributes come from the nearest ancestor that has them
				if parent != nil && !d.Has("MediaBox") && parent.Has("MediaBox") {
					d = copyDict(d)
					d.Set("MediaBox", parent.Get("MediaBox"))
				}
				for _, kid := range arr {
					walk(kid, d, depth+1)
				}
			}
			return
		}
		box, err := pages.NewPage(d, parent, idx).MediaBox()
		if err != nil || len(box) != 4 {
			box = nil
		}
		out = append(out, pdfPage{num: num, dict: d, box: box})
	}
	walk(cat.Get("Pages"), nil, 0)
	return out
}

func copyDict(d core.Dict) core.Dict {
	out := make(core.Dict, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// numberArray converts a PDF array of numbers, skipping other elements.
func (idx *objectIndex) numberArray(obj core.Object) []float64 {
	resolved, err := idx.Resolve(obj)
	if err != nil {
		return nil
	}
	arr, ok := resolved.(core.Array)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, el := range arr {
		switch v := el.(type) {
		case core.Int:
			out = append(out, float64(v))
		case core.Real:
			out = append(out, float64(v))
		}
	}
	return out
}

// parseInfo reads the document information fields of a PDF. Unreadable files yield
// an empty map.
func parseInfo(pdfData []byte) map[string]string {
	idx, err := newObjectIndex(pdfData)
	if err != nil {
		return map[string]string{}
	}
	return idx.info()
}

// pdfxNamespace holds custom document information properties in XMP.
const pdfxNamespace = "http://ns.adobe.com/pdfx/1.3/"

// customXMPFields reads the simple pdfx properties of an XMP packet.
func customXMPFields(packet []byte) map[string]string {
	fields := make(map[string]string)
	dec := xml.NewDecoder(bytes.NewReader(packet))
	for {
		tok, err := dec.Token()
		if err != nil {
			return fields
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != pdfxNamespace {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &start); err != nil {
			return fields
		}
		if v := strings.TrimSpace(value); v != "" {
			fields[start.Name.Local] = v
		}
	}
}

// customXMP builds an XMP packet carrying fields as pdfx properties. Keys are sorted by
// the caller.
func customXMP(keys []string, fields map[string]string) []byte {
	var b bytes.Buffer
	b.WriteString("<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`<rdf:Description rdf:about="" xmlns:pdfx="` + pdfxNamespace + `">` + "\n")
	for _, k := range keys {
		b.WriteString("<pdfx:" + k + ">")
		xml.EscapeText(&b, []byte(fields[k]))
		b.WriteString("</pdfx:" + k + ">\n")
	}
	b.WriteString("</rdf:Description>\n</rdf:RDF>\n</x:xmpmeta>\n")
	b.WriteString(`<?xpacket end="w"?>`)
	return b.Bytes()
}

// xmlName reports whether key can be used as an XML element name as is.
func xmlName(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return !strings.HasPrefix(strings.ToLower(key), "xml")
}
