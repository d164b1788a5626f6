package rewrite

import (
	stdhtml "html"
	"strconv"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/solemnwarning/chmweb/internal/contents"
	"github.com/solemnwarning/chmweb/internal/pathutil"
	"github.com/solemnwarning/chmweb/internal/scan"
)

// TocDir is where the contents pages live.
const TocDir = "_toc"

// TocName returns the contents-page filename for a container's tree path.
func TocName(path []int) string {
	if len(path) == 0 {
		return "toc.html"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return "toc" + strings.Join(parts, "_") + ".html"
}

// NodeID returns the anchor id a node carries in every contents page.
func NodeID(path []int) string {
	if len(path) == 0 {
		return "n"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return "n" + strings.Join(parts, "_")
}

// TocHref returns the contents-frame reference for a page: the toc page of
// its parent container, anchored at the page's node. Pages outside the
// contents tree fall back to the root toc.
func TocHref(contentsPath []int, fromDoc string) string {
	tocPage := TocDir + "/" + TocName(nil)
	anchor := ""
	if contentsPath != nil {
		parent := contentsPath[:len(contentsPath)-1]
		tocPage = TocDir + "/" + TocName(parent)
		anchor = "#" + NodeID(contentsPath)
	}
	return pathutil.RootToDoc(tocPage, fromDoc) + anchor
}

// EmitContentsPages writes one static navigation pane per interior
// container: the hierarchy expanded along the path to that container, with
// collapsed sibling containers linking to their own contents pages.
func EmitContentsPages(data *scan.Data, title string, write func(rootRel string, data []byte) error) error {
	t := data.Tree

	var containers []contents.NodeIndex
	t.Walk(func(i contents.NodeIndex, n *contents.Node) {
		if i == t.RootIndex() || len(n.Children) > 0 {
			containers = append(containers, i)
		}
	})

	for _, c := range containers {
		cPath := t.Path(c)
		pagePath := TocDir + "/" + TocName(cPath)

		expand := map[contents.NodeIndex]bool{t.RootIndex(): true}
		for i := range cPath {
			if idx, ok := t.NodeAt(cPath[:i+1]); ok {
				expand[idx] = true
			}
		}

		var b strings.Builder
		renderLevel(t, t.RootIndex(), expand, c, pagePath, &b)

		html := tocTpl.MustExec(map[string]interface{}{
			"title": title,
			"body":  raymond.SafeString(b.String()),
		})
		if err := write(pagePath, []byte(html)); err != nil {
			return err
		}
	}
	return nil
}

// renderLevel emits the <ul> for one container's children.
func renderLevel(t *contents.Tree, parent contents.NodeIndex, expand map[contents.NodeIndex]bool, current contents.NodeIndex, docPath string, b *strings.Builder) {
	children := t.Node(parent).Children
	if len(children) == 0 {
		return
	}

	b.WriteString(`<ul class="chmweb-toc">` + "\n")
	for _, idx := range children {
		n := t.Node(idx)
		path := t.Path(idx)

		b.WriteString(`<li id="` + NodeID(path) + `"`)
		if idx == current {
			b.WriteString(` class="chmweb-current"`)
		}
		b.WriteString(`>`)

		switch {
		case n.Kind == contents.Page && n.Filename != "":
			href := pathutil.RootToDoc(n.Filename, docPath)
			if n.Anchor != "" {
				href += "#" + n.Anchor
			}
			b.WriteString(`<a href="` + stdhtml.EscapeString(href) + `" target="_top">` + stdhtml.EscapeString(nodeTitle(n)) + `</a>`)

		case len(n.Children) > 0 && !expand[idx]:
			// Collapsed container: opening it is a navigation within the
			// contents frame to its own page.
			href := pathutil.RootToDoc(TocDir+"/"+TocName(path), docPath)
			b.WriteString(`<a href="` + stdhtml.EscapeString(href) + `">` + stdhtml.EscapeString(nodeTitle(n)) + `</a>`)

		default:
			b.WriteString(`<span class="chmweb-folder">` + stdhtml.EscapeString(nodeTitle(n)) + `</span>`)
		}

		if len(n.Children) > 0 && expand[idx] {
			b.WriteString("\n")
			renderLevel(t, idx, expand, current, docPath, b)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
}

func nodeTitle(n *contents.Node) string {
	if n.Title != "" {
		return n.Title
	}
	if n.Filename != "" {
		return n.Filename
	}
	return "(untitled)"
}
