package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solemnwarning/chmweb/internal/models"
)

// slugMax bounds a resolution page's filename stem.
const slugMax = 48

// ResolutionPages emits and deduplicates the _alinks/_klinks pages listing
// the destinations of multi-topic keyword links. One page exists per
// distinct sorted keyword sequence; colliding filenames are disambiguated
// with .1, .2, ... suffixes.
type ResolutionPages struct {
	write func(rootRel string, data []byte) error
	pages map[string]string
	taken map[string]bool
}

// NewResolutionPages returns an empty registry writing pages through write.
func NewResolutionPages(write func(rootRel string, data []byte) error) *ResolutionPages {
	return &ResolutionPages{
		write: write,
		pages: make(map[string]string),
		taken: make(map[string]bool),
	}
}

// Ensure returns the root-relative path of the resolution page for a
// keyword sequence, emitting it on first use.
func (rp *ResolutionPages) Ensure(kind string, keys []string, topics []models.Topic, r *Resolver) (string, error) {
	sorted := dedupeSorted(keys)
	cacheKey := kind + "\x00" + strings.Join(sorted, "\x00")
	if p, ok := rp.pages[cacheKey]; ok {
		return p, nil
	}

	dir := "_alinks"
	if kind == "klink" {
		dir = "_klinks"
	}

	slug := sanitiseSlug(strings.Join(sorted, " "))
	final := slug
	for i := 1; rp.taken[dir+"/"+final]; i++ {
		final = fmt.Sprintf("%s.%d", slug, i)
	}
	rp.taken[dir+"/"+final] = true
	pagePath := dir + "/" + final + ".html"

	items := make([]map[string]interface{}, 0, len(topics))
	for _, t := range topics {
		href := t.URL
		if t.IsLocal() {
			href = r.finish(t.Local, "", pagePath, 0, t.Local).Ref
		}
		items = append(items, map[string]interface{}{
			"href": href,
			"name": t.DisplayName(),
		})
	}

	html := resolutionTpl.MustExec(map[string]interface{}{
		"title": strings.Join(sorted, ", "),
		"items": items,
	})
	if err := rp.write(pagePath, []byte(html)); err != nil {
		return "", err
	}

	rp.pages[cacheKey] = pagePath
	return pagePath, nil
}

func dedupeSorted(keys []string) []string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	out := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			out = append(out, k)
		}
	}
	return out
}

// sanitiseSlug lowercases, collapses runs of non-alphanumerics to a single
// underscore, and truncates.
func sanitiseSlug(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	slug := b.String()
	if slug == "" {
		slug = "topics"
	}
	if len(slug) > slugMax {
		slug = slug[:slugMax]
	}
	return slug
}
