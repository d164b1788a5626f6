package models

import "strings"

// Topic is a named destination within an archive: a local file, an external
// URL, or a see-also redirect to another keyword.
type Topic struct {
	Name    string `json:"name,omitempty"`
	Local   string `json:"local,omitempty"`
	URL     string `json:"url,omitempty"`
	Frame   string `json:"frame,omitempty"`
	SeeAlso string `json:"see_also,omitempty"`
}

// IsLocal reports whether the topic points at a file inside the output tree.
func (t Topic) IsLocal() bool {
	return t.SeeAlso == "" && t.URL == ""
}

// IsExternal reports whether the topic points at an external URL.
func (t Topic) IsExternal() bool {
	return t.URL != ""
}

// IsSeeAlso reports whether the topic redirects to another keyword.
func (t Topic) IsSeeAlso() bool {
	return t.SeeAlso != ""
}

// DisplayName returns the best human-readable label for the topic.
func (t Topic) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	if t.URL != "" {
		return t.URL
	}
	return t.Local
}

// KeywordMap maps a display name to the topics registered under it. A name
// may map to one, many, or zero (see-also only) topics.
type KeywordMap map[string][]Topic

// Add appends a topic under a display name.
func (m KeywordMap) Add(name string, t Topic) {
	m[name] = append(m[name], t)
}

// LocalSeeds returns every local-topic filename in the map, in no particular
// order. These seed the discovery fixed point.
func (m KeywordMap) LocalSeeds() []string {
	var seeds []string
	for _, topics := range m {
		for _, t := range topics {
			if t.IsLocal() && t.Local != "" {
				seeds = append(seeds, t.Local)
			}
		}
	}
	return seeds
}

// NamedValue is a single name/value pair from markup. Order and original
// capitalisation are preserved so rewrites can round-trip the source.
type NamedValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// lookupNamed does a case-insensitive linear search over an ordered pair
// list. The lists are short; keying by folded name would lose the original
// capitalisation needed for round-trips.
func lookupNamed(pairs []NamedValue, name string) (string, bool) {
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

func lookupNamedAll(pairs []NamedValue, name string) []string {
	var values []string
	for _, p := range pairs {
		if strings.EqualFold(p.Name, name) {
			values = append(values, p.Value)
		}
	}
	return values
}

// HelpControlCLSID identifies the HTML Help ActiveX control.
const HelpControlCLSID = "clsid:adb880a6-d8ff-11cf-9377-00aa003b7a11"

// EmbeddedObject is an <object> element found in a page, with its byte span
// recorded so the rewriter can splice over it.
type EmbeddedObject struct {
	Attrs  []NamedValue `json:"attrs,omitempty"`
	Params []NamedValue `json:"params,omitempty"`
	Offset int64        `json:"offset"`
	Line   int          `json:"line"`
	Length int          `json:"length"`
}

// Attr returns the named attribute, matched case-insensitively.
func (o *EmbeddedObject) Attr(name string) (string, bool) {
	return lookupNamed(o.Attrs, name)
}

// Param returns the first <param> with the given name, matched
// case-insensitively.
func (o *EmbeddedObject) Param(name string) (string, bool) {
	return lookupNamed(o.Params, name)
}

// ParamAll returns every <param> value with the given name, in order.
func (o *EmbeddedObject) ParamAll(name string) []string {
	return lookupNamedAll(o.Params, name)
}

// IsHelpControl reports whether the object is the HTML Help ActiveX control.
func (o *EmbeddedObject) IsHelpControl() bool {
	typ, _ := o.Attr("type")
	if !strings.EqualFold(typ, "application/x-oleobject") {
		return false
	}
	classid, _ := o.Attr("classid")
	return strings.EqualFold(classid, HelpControlCLSID)
}

// PageRecord is everything the scanner learned about one HTML page.
type PageRecord struct {
	Archive      string           `json:"archive"`
	Path         string           `json:"path"`
	FSPath       string           `json:"fs_path,omitempty"`
	ContentsPath []int            `json:"contents_path,omitempty"`
	Title        string           `json:"title,omitempty"`
	AssetLinks   []string         `json:"asset_links,omitempty"`
	PageLinks    []string         `json:"page_links,omitempty"`
	Objects      []EmbeddedObject `json:"objects,omitempty"`
}

// LinkMap maps a root-relative path as it appears in source HTML to its
// canonically-cased filesystem path. Lookup is case-insensitive.
type LinkMap map[string]string

// Fold normalises a root-relative path for LinkMap keying.
func Fold(p string) string {
	return strings.ToLower(p)
}

// Set records the canonical path for a discovered reference.
func (m LinkMap) Set(rootRel, canonical string) {
	m[Fold(rootRel)] = canonical
}

// Lookup returns the canonical path for a root-relative reference.
func (m LinkMap) Lookup(rootRel string) (string, bool) {
	c, ok := m[Fold(rootRel)]
	return c, ok
}
