package contents

import (
	"strings"

	"github.com/solemnwarning/chmweb/internal/sgml"
)

// OutlineNode is one entry parsed from an HHC file, before it is grafted
// into the contents tree. The type round-trips through JSON because HHC
// parsing runs in a worker.
type OutlineNode struct {
	Title    string        `json:"title,omitempty"`
	Local    string        `json:"local,omitempty"`
	Children []OutlineNode `json:"children,omitempty"`
}

func (n *OutlineNode) isWrapper() bool {
	return n.Title == "" && n.Local == ""
}

// ParseHHC parses an HTML-Help contents file into an outline. HHC sources
// are pseudo-HTML: nested <ul> lists of <li><object type="text/sitemap">
// blocks whose <param> children carry the Name and Local fields.
func ParseHHC(data []byte) ([]OutlineNode, error) {
	p := &hhcParser{}
	p.stack = []*[]OutlineNode{&p.top}
	if err := sgml.Parse(sgml.DecodeToUTF8(data), p); err != nil {
		return nil, err
	}
	flattenWrappers(&p.top)
	return p.top, nil
}

type hhcParser struct {
	top   []OutlineNode
	stack []*[]OutlineNode
	depth int
	cur   *OutlineNode
}

func (p *hhcParser) level() *[]OutlineNode {
	return p.stack[len(p.stack)-1]
}

func (p *hhcParser) StartElement(name string, attrs []sgml.Attr, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "ul":
		p.depth++
		if p.depth == 1 {
			// The outermost list is the outline itself.
			p.stack = append(p.stack, &p.top)
			return
		}
		// A nested list attaches to the last node at the current level.
		// Some sources close the parent <li> before opening the child
		// <ul>; when no node exists to adopt the list, a synthetic wrapper
		// is manufactured and flattened after parse.
		level := p.level()
		if len(*level) == 0 {
			*level = append(*level, OutlineNode{})
		}
		last := &(*level)[len(*level)-1]
		p.stack = append(p.stack, &last.Children)

	case "object":
		if typ, ok := sgml.Lookup(attrs, "type"); ok && strings.EqualFold(typ.Value, "text/sitemap") {
			p.cur = &OutlineNode{}
		}

	case "param":
		if p.cur == nil {
			return
		}
		pname, _ := sgml.Lookup(attrs, "name")
		pvalue, _ := sgml.Lookup(attrs, "value")
		switch {
		case strings.EqualFold(pname.Value, "Name"):
			if p.cur.Title == "" {
				p.cur.Title = pvalue.Value
			}
		case strings.EqualFold(pname.Value, "Local"):
			p.cur.Local = strings.ReplaceAll(pvalue.Value, "\\", "/")
		}
	}
}

func (p *hhcParser) EndElement(name string, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "ul":
		if p.depth > 0 {
			p.depth--
			if len(p.stack) > 1 {
				p.stack = p.stack[:len(p.stack)-1]
			}
		}
	case "object":
		if p.cur != nil {
			level := p.level()
			*level = append(*level, *p.cur)
			p.cur = nil
		}
	}
}

func (p *hhcParser) Characters(data []byte) {}

// flattenWrappers collapses synthetic wrapper nodes into their previous
// sibling. A wrapper with no previous sibling is kept empty, matching the
// observed behaviour of the original sources.
func flattenWrappers(nodes *[]OutlineNode) {
	out := (*nodes)[:0]
	for _, n := range *nodes {
		flattenWrappers(&n.Children)
		if n.isWrapper() && len(n.Children) > 0 && len(out) > 0 {
			prev := &out[len(out)-1]
			prev.Children = append(prev.Children, n.Children...)
			continue
		}
		out = append(out, n)
	}
	*nodes = out
}
