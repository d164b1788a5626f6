package rewrite

import (
	"bytes"
	"fmt"

	"github.com/aymerick/raymond"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// RenderFrontPage converts a Markdown front page into the HTML document
// served in the index wrapper's content frame.
func RenderFrontPage(md []byte, title string) ([]byte, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
		goldmark.WithRendererOptions(
			ghtml.WithUnsafe(),
		),
	)

	var buf bytes.Buffer
	if err := gm.Convert(md, &buf); err != nil {
		return nil, fmt.Errorf("failed to render front page: %w", err)
	}

	html := frontTpl.MustExec(map[string]interface{}{
		"title": title,
		"body":  raymond.SafeString(buf.String()),
	})
	return []byte(html), nil
}
