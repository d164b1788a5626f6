package rewrite

import (
	"sort"
	"strings"

	"github.com/solemnwarning/chmweb/internal/pathutil"
	"github.com/solemnwarning/chmweb/internal/scan"
)

// FrontPagePath is where a rendered front page lands when one is
// configured; the index wrapper's content frame points at it.
const FrontPagePath = "_front.html"

// EmitWrappers writes the two-frame wrapper for every scanned page at the
// page's own path. The rewritten original is expected at the page's
// content name, emitted separately by the rewriter.
func EmitWrappers(data *scan.Data, write func(rootRel string, data []byte) error) error {
	keys := make([]string, 0, len(data.Pages))
	for k := range data.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := data.Pages[k]
		title := rec.Title
		if title == "" {
			title = baseName(rec.FSPath)
		}

		html := wrapperTpl.MustExec(map[string]interface{}{
			"title":       title,
			"tocHref":     TocHref(rec.ContentsPath, rec.FSPath),
			"contentHref": baseName(ContentName(rec.FSPath)),
		})
		if err := write(rec.FSPath, []byte(html)); err != nil {
			return err
		}
	}
	return nil
}

// EmitIndex writes index.html: a wrapper whose content frame shows the
// configured front page, or failing that the first discoverable contents
// leaf. No index is written when neither exists.
func EmitIndex(data *scan.Data, title string, haveFrontPage bool, write func(rootRel string, data []byte) error) error {
	contentHref := ""
	tocHref := TocDir + "/" + TocName(nil)

	if haveFrontPage {
		contentHref = FrontPagePath
	} else {
		idx, ok := data.Tree.FirstPage()
		if !ok {
			return nil
		}
		n := data.Tree.Node(idx)
		contentHref = pathutil.RootToDoc(ContentName(n.Filename), "index.html")
		tocHref = TocHref(data.Tree.Path(idx), "index.html")
		if title == "" {
			title = n.Title
		}
	}

	html := wrapperTpl.MustExec(map[string]interface{}{
		"title":       title,
		"tocHref":     tocHref,
		"contentHref": contentHref,
	})
	return write("index.html", []byte(html))
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
