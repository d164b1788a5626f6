package scan

import (
	"regexp"
	"strings"
)

// schemeRE matches a URI scheme prefix. Fragments and relative paths fall
// through to the path algebra.
var schemeRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*:`)

// itsRE matches the two proprietary inter-archive reference forms:
// ms-its:NAME::URL and mk:@MSITStore:NAME::URL.
var itsRE = regexp.MustCompile(`(?i)^(?:ms-its:|mk:@MSITStore:)([^:]+)::(.*)$`)

// HasScheme reports whether a reference begins with a URI scheme.
func HasScheme(ref string) bool {
	return schemeRE.MatchString(ref)
}

// ParseITSRef decomposes an ITS/MSITStore reference into the archive name
// and the intra-archive URL.
func ParseITSRef(ref string) (name, url string, ok bool) {
	m := itsRE.FindStringSubmatch(ref)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// pageExts lists the file extensions scanned as HTML pages; everything
// else discovered is an asset.
var pageExts = map[string]bool{
	".htm":   true,
	".html":  true,
	".xhtml": true,
	".stm":   true,
}

// IsPagePath reports whether a root-relative path names an HTML page.
func IsPagePath(p string) bool {
	i := strings.LastIndexByte(p, '.')
	if i < 0 {
		return false
	}
	return pageExts[strings.ToLower(p[i:])]
}
