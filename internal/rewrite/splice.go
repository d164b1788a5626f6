// Package rewrite resolves every reference in a scanned page, splices the
// replacements into the original bytes, and emits the navigation pages that
// make the result browsable: per-page wrappers, _toc contents panes, and
// _alinks/_klinks resolution pages.
package rewrite

import (
	"bytes"
	"fmt"
	"sort"
)

// Splice is one byte-range substitution. Original, when set, is asserted
// against the bytes present at apply time; a mismatch means the splice list
// was built against different bytes than it is being applied to.
type Splice struct {
	Offset      int64
	Length      int
	Replacement []byte
	Original    []byte
}

// ApplySplices rewrites data by applying splices in increasing offset
// order with a running adjustment. Splices must not overlap.
func ApplySplices(data []byte, splices []Splice) ([]byte, error) {
	sorted := make([]Splice, len(splices))
	copy(sorted, splices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	var out bytes.Buffer
	out.Grow(len(data))
	var pos int64

	for _, s := range sorted {
		if s.Offset < pos {
			return nil, fmt.Errorf("overlapping splice at offset %d", s.Offset)
		}
		end := s.Offset + int64(s.Length)
		if end > int64(len(data)) {
			return nil, fmt.Errorf("splice at offset %d runs past end of data", s.Offset)
		}
		if s.Original != nil && !bytes.Equal(data[s.Offset:end], s.Original) {
			return nil, fmt.Errorf("splice at offset %d does not match source bytes", s.Offset)
		}
		out.Write(data[pos:s.Offset])
		out.Write(s.Replacement)
		pos = end
	}
	out.Write(data[pos:])
	return out.Bytes(), nil
}
