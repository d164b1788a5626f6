package scan

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/solemnwarning/chmweb/internal/contents"
	"github.com/solemnwarning/chmweb/internal/fscache"
	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/pathutil"
	"github.com/solemnwarning/chmweb/internal/registry"
	"github.com/solemnwarning/chmweb/internal/workerpool"
)

// WarnFunc receives non-fatal diagnostics.
type WarnFunc func(format string, args ...interface{})

// Data is the frozen aggregate the rewriter works from: the contents tree,
// the archive registry, every discovered page record and asset, and the
// link map from source-cased references to canonical filesystem paths.
type Data struct {
	Tree    *contents.Tree
	Reg     *registry.Registry
	Pages   map[string]*models.PageRecord
	Assets  map[string]bool
	LinkMap models.LinkMap
}

// Page returns the record for a root-relative path, case-insensitively.
func (d *Data) Page(rootRel string) *models.PageRecord {
	return d.Pages[models.Fold(rootRel)]
}

// TreeScanner orchestrates contents parsing and the discovery fixed point.
// All of its state lives in the parent; workers only ever see immutable
// job inputs.
type TreeScanner struct {
	OutDir string
	Tree   *contents.Tree
	Reg    *registry.Registry
	FC     *fscache.Cache
	Pool   *workerpool.Pool
	Warn   WarnFunc

	data    *Data
	pending []string
	seen    map[string]bool
}

// Run discovers every page and asset reachable from the contents tree and
// the keyword-map seeds, then stamps contents-tree paths into the page
// records. The fixed point terminates because the universe of
// root-relative paths under the output directory is finite and every path
// is queued at most once.
func (s *TreeScanner) Run(seeds []string) (*Data, error) {
	s.data = &Data{
		Tree:    s.Tree,
		Reg:     s.Reg,
		Pages:   make(map[string]*models.PageRecord),
		Assets:  make(map[string]bool),
		LinkMap: make(models.LinkMap),
	}
	s.seen = make(map[string]bool)

	for _, seed := range seeds {
		s.enqueue(seed)
	}

	for _, ph := range s.Tree.Placeholders() {
		if err := s.submitHHC(ph); err != nil {
			return nil, err
		}
	}
	if err := s.Pool.Drain(); err != nil {
		return nil, err
	}

	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		for _, rootRel := range batch {
			if err := s.scanOne(rootRel); err != nil {
				return nil, err
			}
		}
		if err := s.Pool.Drain(); err != nil {
			return nil, err
		}
	}

	s.stampContents()
	return s.data, nil
}

// enqueue adds a root-relative path to the pending set, deduplicating
// case-insensitively so replies arriving in any cross-worker order cannot
// queue a path twice.
func (s *TreeScanner) enqueue(rootRel string) {
	key := models.Fold(rootRel)
	if key == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.pending = append(s.pending, rootRel)
}

// submitHHC locates an archive placeholder's contents file and parses it in
// a worker; the reply grafts the outline over the placeholder.
func (s *TreeScanner) submitHHC(ph contents.NodeIndex) error {
	node := s.Tree.Node(ph)
	stem := node.Stem
	subdir, ok := s.Reg.SubdirByStem(stem)
	if !ok {
		s.Warn("contents references unknown archive %q", stem)
		return s.Tree.Replace(ph)
	}

	hhcRel, ok := s.findHHC(subdir)
	if !ok {
		s.Warn("archive %s has no contents (.hhc) file", stem)
		return s.Tree.Replace(ph)
	}

	job := Job{Kind: JobHHC, File: filepath.Join(s.OutDir, filepath.FromSlash(hhcRel))}
	return s.Pool.Submit(job, func(raw json.RawMessage) {
		var result Result
		if err := json.Unmarshal(raw, &result); err != nil {
			s.Warn("archive %s: malformed contents reply: %v", stem, err)
			return
		}
		s.integrateOutline(ph, subdir, result.Outline)
	})
}

// findHHC returns the first .hhc entry in an archive's extraction
// directory, root-relative.
func (s *TreeScanner) findHHC(subdir string) (string, bool) {
	for _, name := range s.FC.Children(subdir) {
		if strings.EqualFold(filepath.Ext(name), ".hhc") {
			if subdir == "" {
				return name, true
			}
			return subdir + "/" + name, true
		}
	}
	return "", false
}

// integrateOutline converts a parsed HHC outline into detached tree nodes
// with canonical root-relative paths, queues every page for discovery, and
// replaces the placeholder.
func (s *TreeScanner) integrateOutline(ph contents.NodeIndex, subdir string, outline []contents.OutlineNode) {
	anchorDoc := "x"
	if subdir != "" {
		anchorDoc = subdir + "/x"
	}

	var build func(nodes []contents.OutlineNode) []contents.NodeIndex
	build = func(nodes []contents.OutlineNode) []contents.NodeIndex {
		var out []contents.NodeIndex
		for _, on := range nodes {
			node := contents.Node{Kind: contents.Folder, Title: on.Title}
			if on.Local != "" {
				local, anchor := splitAnchor(on.Local)
				if rootRel, ok := pathutil.DocToRoot(local, anchorDoc); ok {
					node.Kind = contents.Page
					node.Filename = rootRel
					node.Anchor = anchor
					s.enqueue(rootRel)
				} else {
					s.Warn("contents entry %q escapes the output tree", on.Local)
				}
			}
			idx := s.Tree.AddDetached(node)
			for _, child := range build(on.Children) {
				if err := s.Tree.AttachChild(idx, child); err != nil {
					s.Warn("contents: %v", err)
				}
			}
			out = append(out, idx)
		}
		return out
	}

	roots := build(outline)
	if err := s.Tree.Replace(ph, roots...); err != nil {
		s.Warn("contents: %v", err)
	}
}

// scanOne resolves one pending path against the filesystem and, for pages,
// submits it for scanning. Paths that resolve nowhere stay out of the link
// map; the rewriter warns when they are referenced.
func (s *TreeScanner) scanOne(rootRel string) error {
	canon, ok := pathutil.ResolveMixedCase(s.FC, rootRel, "")
	if !ok {
		return nil
	}
	s.data.LinkMap.Set(rootRel, canon)
	if canon != rootRel {
		s.data.LinkMap.Set(canon, canon)
	}

	if !IsPagePath(canon) {
		s.data.Assets[models.Fold(canon)] = true
		return nil
	}

	archive, _ := s.Reg.StemByPath(canon)
	job := Job{
		Kind:    JobPage,
		File:    filepath.Join(s.OutDir, filepath.FromSlash(canon)),
		Archive: archive,
		RootRel: canon,
	}
	return s.Pool.Submit(job, func(raw json.RawMessage) {
		var result Result
		if err := json.Unmarshal(raw, &result); err != nil || result.Page == nil {
			s.Warn("malformed scan reply for %s", canon)
			return
		}
		s.insertPage(result.Page)
	})
}

// insertPage records a scanned page exactly once and queues everything it
// references.
func (s *TreeScanner) insertPage(rec *models.PageRecord) {
	key := models.Fold(rec.Path)
	if _, dup := s.data.Pages[key]; dup {
		return
	}
	rec.FSPath = rec.Path
	s.data.Pages[key] = rec

	subdir, _ := s.Reg.SubdirByStem(rec.Archive)
	for _, ref := range rec.AssetLinks {
		if rootRel, ok := s.refToRoot(ref, rec.Path, subdir); ok {
			s.enqueue(rootRel)
		}
	}
	for _, ref := range rec.PageLinks {
		if rootRel, ok := s.refToRoot(ref, rec.Path, subdir); ok {
			s.enqueue(rootRel)
		}
	}
}

// refToRoot classifies a raw reference from a page and converts it to
// root-relative form for discovery. External references and anything the
// rewriter will flag later return not-ok.
func (s *TreeScanner) refToRoot(ref, doc, subdir string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	if name, url, ok := ParseITSRef(ref); ok {
		itsSubdir, known := s.Reg.SubdirByFilename(name)
		if !known {
			return "", false
		}
		rel, _ := splitAnchor(url)
		return joinSubdir(itsSubdir, rel), true
	}
	if HasScheme(ref) {
		return "", false
	}

	rel, _ := splitAnchor(ref)
	if strings.HasPrefix(rel, "/") {
		return joinSubdir(subdir, rel), true
	}
	rootRel, ok := pathutil.DocToRoot(rel, doc)
	return rootRel, ok
}

// stampContents canonicalises every contents-tree page filename and stamps
// the tree path into the matching page record.
func (s *TreeScanner) stampContents() {
	s.Tree.Walk(func(i contents.NodeIndex, n *contents.Node) {
		if n.Kind != contents.Page || n.Filename == "" {
			return
		}
		if canon, ok := s.data.LinkMap.Lookup(n.Filename); ok {
			n.Filename = canon
		}
		if rec := s.data.Page(n.Filename); rec != nil && rec.ContentsPath == nil {
			rec.ContentsPath = s.Tree.Path(i)
		}
	})
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
