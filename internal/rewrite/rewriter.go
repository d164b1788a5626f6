package rewrite

import (
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/sgml"
)

// Rewriter produces the content-pane form of a scanned page: every
// reference resolved and spliced in place, every help control replaced
// with plain HTML.
type Rewriter struct {
	res *Resolver
}

// NewRewriter returns a rewriter over a resolver.
func NewRewriter(res *Resolver) *Rewriter {
	return &Rewriter{res: res}
}

// RewritePage rewrites one page's bytes. The element events are walked a
// second time (the first was the scan) to build the splice list, which is
// then applied in one pass.
func (rw *Rewriter) RewritePage(data []byte, rec *models.PageRecord) ([]byte, error) {
	h := &rewriteHandler{
		data: data,
		rec:  rec,
		res:  rw.res,
		doc:  rec.FSPath,
	}
	for i := range rec.Objects {
		obj := &rec.Objects[i]
		if obj.IsHelpControl() {
			h.spans = append(h.spans, [2]int64{obj.Offset, obj.Offset + int64(obj.Length)})
		}
	}

	if err := sgml.Parse(data, h); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rec.FSPath, err)
	}

	for i := range rec.Objects {
		obj := &rec.Objects[i]
		if !obj.IsHelpControl() {
			continue
		}
		end := obj.Offset + int64(obj.Length)
		if end > int64(len(data)) {
			return nil, fmt.Errorf("%s: object span at %d runs past end of page", rec.FSPath, obj.Offset)
		}
		h.splices = append(h.splices, Splice{
			Offset:      obj.Offset,
			Length:      obj.Length,
			Replacement: rw.objectReplacement(obj, rec.FSPath),
			Original:    data[obj.Offset:end],
		})
	}

	return ApplySplices(data, h.splices)
}

// objectReplacement renders what takes a help control's place: an <a> for
// Text objects, a classified button shape for Button objects, nothing for
// the rest. The span is always consumed so no control residue leaks into
// the output.
func (rw *Rewriter) objectReplacement(obj *models.EmbeddedObject, doc string) []byte {
	if text, has := obj.Param("Text"); has {
		label := text
		if i := strings.IndexByte(text, ':'); i >= 0 && strings.EqualFold(text[:i], "Text") {
			label = strings.TrimSpace(text[i+1:])
		}
		resolved, ok := rw.res.ResolveControl(obj, doc, obj.Line)
		if !ok {
			return []byte(stdhtml.EscapeString(label))
		}
		return []byte(anchorHTML(resolved, label, ""))
	}

	if button, has := obj.Param("Button"); has {
		kind, label := classifyButton(button)
		if kind == "" {
			return nil
		}
		if label == "" {
			label = "Related Topics"
		}
		resolved, ok := rw.res.ResolveControl(obj, doc, obj.Line)
		if !ok {
			return nil
		}
		return []byte(anchorHTML(resolved, label, "chmweb-button chmweb-button-"+kind))
	}

	return nil
}

// classifyButton decodes the Button parameter into its shape and optional
// label. The shapes are cosmetic; unrecognised values collapse to nothing.
func classifyButton(v string) (kind, label string) {
	name := v
	if i := strings.IndexByte(v, ':'); i >= 0 {
		name, label = v[:i], strings.TrimSpace(v[i+1:])
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text":
		return "text", label
	case "icon":
		return "icon", label
	case "bitmap":
		return "bitmap", label
	case "shortcut":
		return "shortcut", label
	case "chiclet":
		return "chiclet", label
	}
	return "", ""
}

// anchorHTML renders a resolved link around a label.
func anchorHTML(resolved Resolved, label, extraClass string) string {
	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(stdhtml.EscapeString(resolved.Ref))
	b.WriteString(`"`)
	if resolved.Target != "" {
		b.WriteString(` target="`)
		b.WriteString(stdhtml.EscapeString(resolved.Target))
		b.WriteString(`"`)
	}
	class := strings.TrimSpace(strings.Join([]string{extraClass, resolved.Class}, " "))
	if class != "" {
		b.WriteString(` class="`)
		b.WriteString(stdhtml.EscapeString(class))
		b.WriteString(`"`)
	}
	b.WriteString(`>`)
	b.WriteString(stdhtml.EscapeString(label))
	b.WriteString(`</a>`)
	return b.String()
}

// rewriteHandler walks element events and collects attribute splices.
type rewriteHandler struct {
	data    []byte
	rec     *models.PageRecord
	res     *Resolver
	doc     string
	spans   [][2]int64
	splices []Splice
}

func (h *rewriteHandler) inConsumedSpan(off int64) bool {
	for _, s := range h.spans {
		if off >= s[0] && off < s[1] {
			return true
		}
	}
	return false
}

func (h *rewriteHandler) StartElement(name string, attrs []sgml.Attr, loc sgml.Location) {
	if h.inConsumedSpan(loc.Offset) {
		return
	}

	switch strings.ToLower(name) {
	case "a":
		href, ok := sgml.Lookup(attrs, "href")
		if !ok || !href.HasValue {
			return
		}
		resolved := h.res.ResolveHref(href.Value, h.doc, loc.Line, h.rec)
		h.applyAnchor(resolved, href, attrs, loc)

	case "img", "script":
		if src, ok := sgml.Lookup(attrs, "src"); ok && src.HasValue {
			h.applyPlain(src, loc)
		}

	case "link":
		if href, ok := sgml.Lookup(attrs, "href"); ok && href.HasValue {
			h.applyPlain(href, loc)
		}
	}
}

func (h *rewriteHandler) EndElement(name string, loc sgml.Location) {}

func (h *rewriteHandler) Characters(data []byte) {}

// applyPlain splices an asset reference if resolution changed it.
func (h *rewriteHandler) applyPlain(attr sgml.Attr, loc sgml.Location) {
	resolved := h.res.ResolveRef(attr.Value, h.doc, loc.Line)
	if resolved.Changed {
		h.spliceAttr(attr, resolved.Ref)
	}
}

// applyAnchor splices an <a> element: the href value, plus a target
// attribute when the link must escape the content frame and the marker
// class when it leads to a resolution page. Existing target attributes are
// left alone; the original attribute order is never disturbed.
func (h *rewriteHandler) applyAnchor(resolved Resolved, href sgml.Attr, attrs []sgml.Attr, loc sgml.Location) {
	if resolved.Changed {
		h.spliceAttr(href, resolved.Ref)
	}

	if resolved.Target != "" {
		if _, has := sgml.Lookup(attrs, "target"); !has {
			h.insertAt(loc, ` target="`+stdhtml.EscapeString(resolved.Target)+`"`)
		}
	}

	if resolved.Class != "" {
		if cls, has := sgml.Lookup(attrs, "class"); has && cls.HasValue {
			if !strings.Contains(cls.Value, resolved.Class) {
				h.spliceAttr(cls, cls.Value+" "+resolved.Class)
			}
		} else {
			h.insertAt(loc, ` class="`+stdhtml.EscapeString(resolved.Class)+`"`)
		}
	}
}

func (h *rewriteHandler) spliceAttr(attr sgml.Attr, value string) {
	end := attr.ValOffset + int64(attr.ValLen)
	h.splices = append(h.splices, Splice{
		Offset:      attr.ValOffset,
		Length:      attr.ValLen,
		Replacement: []byte(stdhtml.EscapeString(value)),
		Original:    h.data[attr.ValOffset:end],
	})
}

// insertAt adds bytes just before a start tag's closing bracket.
func (h *rewriteHandler) insertAt(loc sgml.Location, s string) {
	end := loc.Offset + int64(loc.Length)
	raw := h.data[loc.Offset:end]
	point := end
	if len(raw) >= 2 && raw[len(raw)-2] == '/' && raw[len(raw)-1] == '>' {
		point = end - 2
	} else if len(raw) >= 1 && raw[len(raw)-1] == '>' {
		point = end - 1
	}
	h.splices = append(h.splices, Splice{Offset: point, Replacement: []byte(s)})
}
