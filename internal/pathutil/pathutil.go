// Package pathutil is the path algebra for converting between root-relative
// and document-relative references. Everything here is pure except
// ResolveMixedCase, which composes the filesystem cache.
package pathutil

import (
	"strings"

	"github.com/solemnwarning/chmweb/internal/fscache"
)

// Split breaks a forward-slash path into its non-empty, non-"." segments.
func Split(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// Join reassembles segments into a forward-slash path.
func Join(segs []string) string {
	return strings.Join(segs, "/")
}

// DocToRoot converts a link rel, appearing inside the document at
// root-relative path doc, to the root-relative target. Empty and "."
// segments are dropped; ".." pops the accumulator. The result is not ok
// when the link escapes above the root or leaves no final segment.
func DocToRoot(rel, doc string) (string, bool) {
	docSegs := Split(doc)
	var acc []string
	if len(docSegs) > 0 {
		acc = append(acc, docSegs[:len(docSegs)-1]...)
	}

	for _, s := range strings.Split(rel, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(acc) == 0 {
				return "", false
			}
			acc = acc[:len(acc)-1]
		default:
			acc = append(acc, s)
		}
	}

	if len(acc) == 0 || strings.HasSuffix(rel, "/") {
		return "", false
	}
	return Join(acc), true
}

// RootToDoc returns the minimal document-relative reference from doc to
// target. The common directory prefix is stripped case-sensitively, then one
// ".." is emitted per remaining directory of doc.
func RootToDoc(target, doc string) string {
	targetSegs := Split(target)
	docDirs := Split(doc)
	if len(docDirs) > 0 {
		docDirs = docDirs[:len(docDirs)-1]
	}

	common := 0
	for common < len(docDirs) && common < len(targetSegs) && docDirs[common] == targetSegs[common] {
		common++
	}

	var out []string
	for i := common; i < len(docDirs); i++ {
		out = append(out, "..")
	}
	out = append(out, targetSegs[common:]...)
	return Join(out)
}

// ResolveMixedCase returns the canonically-cased version of path, anchored
// at the (already canonical) prefix. If the exact path exists it is returned
// as-is; otherwise each segment is matched against its directory's entries
// under case folding, depth-first, first filesystem-enumeration-order match
// winning. Not ok when no candidate resolves to an existing entry.
func ResolveMixedCase(fc *fscache.Cache, path, prefix string) (string, bool) {
	full := path
	if prefix != "" {
		full = prefix + "/" + path
	}
	if fc.Exists(full) {
		return path, true
	}

	segs := Split(path)
	if len(segs) == 0 {
		return "", false
	}
	return resolveSegments(fc, segs, prefix)
}

func resolveSegments(fc *fscache.Cache, segs []string, prefix string) (string, bool) {
	for _, cand := range fc.CaseInsensitiveChildren(prefix, segs[0]) {
		candPath := cand
		if prefix != "" {
			candPath = prefix + "/" + cand
		}
		if len(segs) == 1 {
			if fc.Exists(candPath) {
				return cand, true
			}
			continue
		}
		if rest, ok := resolveSegments(fc, segs[1:], candPath); ok {
			return cand + "/" + rest, true
		}
	}
	return "", false
}
