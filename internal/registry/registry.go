// Package registry tracks which archives contribute to the output tree and
// where each one's extracted files live.
package registry

import (
	"fmt"
	"strings"
)

// Registry maps archive stems to output subdirectories. Stems are matched
// case-insensitively; registration order is preserved because collection
// B-trees address archives by ordinal.
type Registry struct {
	subdirs map[string]string
	stems   []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{subdirs: make(map[string]string)}
}

// Add registers an archive stem with its output subdirectory (which may be
// empty for a single-archive run). Registering the same stem twice is an
// error.
func (r *Registry) Add(stem, subdir string) error {
	key := strings.ToLower(stem)
	if _, ok := r.subdirs[key]; ok {
		return fmt.Errorf("duplicate archive stem %q", stem)
	}
	r.subdirs[key] = strings.Trim(subdir, "/")
	r.stems = append(r.stems, stem)
	return nil
}

// SubdirByStem looks up the output subdirectory for an archive stem,
// case-insensitively.
func (r *Registry) SubdirByStem(stem string) (string, bool) {
	subdir, ok := r.subdirs[strings.ToLower(stem)]
	return subdir, ok
}

// SubdirByFilename looks up by a full archive filename, stripping a
// .chm/.chi/.chw suffix case-insensitively. The name may carry a path; only
// the final segment is considered.
func (r *Registry) SubdirByFilename(name string) (string, bool) {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	lower := strings.ToLower(name)
	for _, ext := range []string{".chm", ".chi", ".chw"} {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	return r.SubdirByStem(name)
}

// StemByPath returns the archive stem whose subdirectory is a proper prefix
// of the given root-relative path. The longest matching subdirectory wins;
// an archive registered at the output root matches any path that no other
// archive claims.
func (r *Registry) StemByPath(rootRel string) (string, bool) {
	folded := strings.ToLower(rootRel)
	bestStem := ""
	bestLen := -1
	found := false
	for _, stem := range r.stems {
		subdir := r.subdirs[strings.ToLower(stem)]
		if subdir == "" {
			if bestLen < 0 {
				bestStem, bestLen, found = stem, 0, true
			}
			continue
		}
		prefix := strings.ToLower(subdir) + "/"
		if strings.HasPrefix(folded, prefix) && len(prefix) > bestLen {
			bestStem, bestLen, found = stem, len(prefix), true
		}
	}
	return bestStem, found
}

// Ordinal returns the 1-based registration ordinal of a stem. Collection
// topic tables are windowed by this ordinal.
func (r *Registry) Ordinal(stem string) (int, bool) {
	for i, s := range r.stems {
		if strings.EqualFold(s, stem) {
			return i + 1, true
		}
	}
	return 0, false
}

// Stems returns the registered stems in registration order.
func (r *Registry) Stems() []string {
	return r.stems
}
