// Package output writes emitted files under the output directory, with
// optional gzip compression of everything the run produces.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/solemnwarning/chmweb/internal/contents"
)

// Writer writes root-relative files beneath the output directory. With
// Gzip set, every file is written as *.gz and any plain original at the
// same path is removed.
type Writer struct {
	Root string
	Gzip bool
}

// WriteFile writes one output file, creating parent directories as needed.
func (w *Writer) WriteFile(rootRel string, data []byte) error {
	abs := filepath.Join(w.Root, filepath.FromSlash(rootRel))
	if parent := filepath.Dir(abs); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", parent, err)
		}
	}

	if !w.Gzip {
		if err := os.WriteFile(abs, data, 0o644); err != nil {
			return fmt.Errorf("failed to write '%s': %w", abs, err)
		}
		return nil
	}

	f, err := os.Create(abs + ".gz")
	if err != nil {
		return fmt.Errorf("failed to create '%s.gz': %w", abs, err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write '%s.gz': %w", abs, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write '%s.gz': %w", abs, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write '%s.gz': %w", abs, err)
	}

	// The compressed file supersedes any extracted original.
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove '%s': %w", abs, err)
	}
	return nil
}

// TocEntry mirrors one contents-tree node in the exported JSON.
type TocEntry struct {
	Title    string     `json:"title"`
	Path     string     `json:"path,omitempty"`
	Children []TocEntry `json:"children,omitempty"`
}

// WriteTocJSON exports the contents tree as a JSON array, UTF-8 without a
// BOM. Page paths are the canonicalised filesystem paths.
func WriteTocJSON(path string, tree *contents.Tree) error {
	var convert func(idx contents.NodeIndex) []TocEntry
	convert = func(idx contents.NodeIndex) []TocEntry {
		var out []TocEntry
		for _, c := range tree.Node(idx).Children {
			n := tree.Node(c)
			entry := TocEntry{
				Title:    n.Title,
				Path:     n.Filename,
				Children: convert(c),
			}
			out = append(out, entry)
		}
		return out
	}

	entries := convert(tree.RootIndex())
	if entries == nil {
		entries = []TocEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}
