package rewrite

import (
	"regexp"
	"strings"

	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/pathutil"
	"github.com/solemnwarning/chmweb/internal/scan"
)

// KeywordLookup answers A-link and K-link queries; satisfied by the aklink
// table.
type KeywordLookup interface {
	ALink(name string) []models.Topic
	KLink(name string) []models.Topic
}

// WarnFunc receives non-fatal diagnostics.
type WarnFunc func(format string, args ...interface{})

// MultiLinkClass marks links that lead to a multi-topic resolution page.
const MultiLinkClass = "chmweb-multi-link"

// clickRE matches the one object-mediated link form the original viewer
// produced. Any other JavaScript: URL is treated as external.
var clickRE = regexp.MustCompile(`^(?i:javascript):([A-Za-z_][A-Za-z0-9_]*)\.Click\(\)$`)

// Resolved is the outcome of resolving one reference.
type Resolved struct {
	// Ref is the final reference: document-relative, external, or "#".
	Ref string
	// Target is set when the link must break out of the content frame.
	Target string
	// Class is set when the link leads to a resolution page.
	Class string
	// Changed reports whether Ref differs from the source reference.
	Changed bool
}

// Resolver maps source references to output references against the frozen
// tree data.
type Resolver struct {
	Data *scan.Data
	AK   KeywordLookup
	Warn WarnFunc
	Res  *ResolutionPages
}

// NewResolver wires a resolver over the discovery output.
func NewResolver(data *scan.Data, ak KeywordLookup, warn WarnFunc, res *ResolutionPages) *Resolver {
	return &Resolver{Data: data, AK: ak, Warn: warn, Res: res}
}

// ResolveRef resolves a plain reference appearing in the document at
// root-relative path doc.
func (r *Resolver) ResolveRef(ref, doc string, line int) Resolved {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return Resolved{Ref: ref}
	}

	if name, url, ok := scan.ParseITSRef(ref); ok {
		subdir, known := r.Data.Reg.SubdirByFilename(name)
		if !known {
			r.Warn("%s:%d: reference to unknown archive %q left as external", doc, line, name)
			return Resolved{Ref: ref}
		}
		rel, anchor := splitAnchor(url)
		return r.finish(joinSubdir(subdir, rel), anchor, doc, line, ref)
	}

	if scan.HasScheme(ref) {
		return Resolved{Ref: ref}
	}

	rel, anchor := splitAnchor(ref)
	var rootRel string
	if strings.HasPrefix(rel, "/") {
		subdir := r.docSubdir(doc)
		rootRel = joinSubdir(subdir, rel)
	} else {
		var ok bool
		rootRel, ok = pathutil.DocToRoot(rel, doc)
		if !ok {
			r.Warn("%s:%d: reference %q escapes the output tree", doc, line, ref)
			return Resolved{Ref: "#", Changed: true}
		}
	}
	return r.finish(rootRel, anchor, doc, line, ref)
}

// finish canonicalises a root-relative target, applies the page/wrapper
// routing rules, and converts back to a document-relative reference.
func (r *Resolver) finish(rootRel, anchor, doc string, line int, orig string) Resolved {
	canon, ok := r.Data.LinkMap.Lookup(rootRel)
	if !ok {
		r.Warn("%s:%d: unresolved reference %q", doc, line, orig)
		return Resolved{Ref: "#", Changed: true}
	}

	target := ""
	if rec := r.Data.Page(canon); rec != nil {
		if rec.ContentsPath != nil {
			// The target's wrapper lives at the canonical path; loading it
			// inside the content frame would nest framesets.
			target = "_top"
		} else {
			canon = ContentName(canon)
		}
	}

	newRef := pathutil.RootToDoc(canon, doc)
	if anchor != "" {
		newRef += "#" + anchor
	}
	return Resolved{Ref: newRef, Target: target, Changed: newRef != orig}
}

// docSubdir returns the output subdirectory of the archive owning doc.
func (r *Resolver) docSubdir(doc string) string {
	stem, ok := r.Data.Reg.StemByPath(doc)
	if !ok {
		return ""
	}
	subdir, _ := r.Data.Reg.SubdirByStem(stem)
	return subdir
}

// ResolveHref resolves an <a href> value, routing JavaScript:ID.Click()
// through the page's embedded object of that id.
func (r *Resolver) ResolveHref(ref, doc string, line int, rec *models.PageRecord) Resolved {
	if m := clickRE.FindStringSubmatch(ref); m != nil {
		if obj := findObjectByID(rec, m[1]); obj != nil && obj.IsHelpControl() {
			if resolved, ok := r.ResolveControl(obj, doc, line); ok {
				return resolved
			}
		}
		// Not a recognised control; an opaque script URL is external.
		return Resolved{Ref: ref}
	}
	return r.ResolveRef(ref, doc, line)
}

func findObjectByID(rec *models.PageRecord, id string) *models.EmbeddedObject {
	for i := range rec.Objects {
		if v, ok := rec.Objects[i].Attr("id"); ok && strings.EqualFold(v, id) {
			return &rec.Objects[i]
		}
	}
	return nil
}

// ResolveControl dereferences an ALink/KLink help control to a link. Not ok
// when the object's command is not a link command.
func (r *Resolver) ResolveControl(obj *models.EmbeddedObject, doc string, line int) (Resolved, bool) {
	cmd, _ := obj.Param("Command")
	var kind string
	var lookup func(string) []models.Topic
	switch {
	case hasFoldPrefix(cmd, "ALink"):
		kind, lookup = "alink", r.AK.ALink
	case hasFoldPrefix(cmd, "KLink"):
		kind, lookup = "klink", r.AK.KLink
	default:
		return Resolved{}, false
	}

	keys := obj.ParamAll("Item2")
	topics := r.collectTopics(keys, lookup)

	switch len(topics) {
	case 1:
		t := topics[0]
		if t.IsExternal() {
			return Resolved{Ref: t.URL, Changed: true}, true
		}
		return r.finish(t.Local, "", doc, line, ""), true

	case 0:
		if fallback, ok := obj.Param("DEFAULTTOPIC"); ok && fallback != "" {
			r.Warn("%s:%d: no topics for %s keywords %v; using default topic", doc, line, kind, keys)
			return r.ResolveRef(fallback, doc, line), true
		}
		r.Warn("%s:%d: no topics for %s keywords %v and no default topic", doc, line, kind, keys)
		return Resolved{Ref: "#", Changed: true}, true

	default:
		page, err := r.Res.Ensure(kind, keys, topics, r)
		if err != nil {
			r.Warn("%s:%d: failed to emit resolution page: %v", doc, line, err)
			return Resolved{Ref: "#", Changed: true}, true
		}
		return Resolved{
			Ref:     pathutil.RootToDoc(page, doc),
			Class:   MultiLinkClass,
			Changed: true,
		}, true
	}
}

// collectTopics unions the topics under each keyword, following see-also
// redirects one level and deduplicating by destination.
func (r *Resolver) collectTopics(keys []string, lookup func(string) []models.Topic) []models.Topic {
	seen := make(map[string]bool)
	var out []models.Topic
	add := func(t models.Topic) {
		key := strings.ToLower(t.Local) + "\x00" + t.URL
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	for _, k := range keys {
		for _, t := range lookup(k) {
			if t.IsSeeAlso() {
				for _, rt := range lookup(t.SeeAlso) {
					if !rt.IsSeeAlso() {
						add(rt)
					}
				}
				continue
			}
			add(t)
		}
	}
	return out
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func splitAnchor(ref string) (string, string) {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

func joinSubdir(subdir, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if subdir == "" {
		return rel
	}
	return subdir + "/" + rel
}

// ContentName renames a page path to its content-pane form: the wrapper
// takes over the original name.
func ContentName(p string) string {
	i := strings.LastIndexByte(p, '.')
	slash := strings.LastIndexByte(p, '/')
	if i <= slash {
		return p + ".content"
	}
	return p[:i] + ".content" + p[i:]
}
