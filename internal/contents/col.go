package contents

import (
	"sort"
	"strconv"
	"strings"

	"github.com/solemnwarning/chmweb/internal/sgml"
)

// ColFolder is one folder from a collection-level COL file. A title
// starting with "=" names a member archive rather than a display folder.
type ColFolder struct {
	Title    string
	Order    int
	Children []ColFolder
}

// ArchiveStem returns the stem a folder names, if any.
func (f *ColFolder) ArchiveStem() (string, bool) {
	if strings.HasPrefix(f.Title, "=") {
		return f.Title[1:], true
	}
	return "", false
}

// ParseCOL parses a collection contents file into its folder hierarchy,
// siblings ordered by their explicit FolderOrder.
func ParseCOL(data []byte) ([]ColFolder, error) {
	p := &colParser{}
	if err := sgml.Parse(sgml.DecodeToUTF8(data), p); err != nil {
		return nil, err
	}
	sortFolders(&p.top)
	return p.top, nil
}

type colParser struct {
	top   []ColFolder
	stack []*ColFolder
	field string
	text  strings.Builder
}

func (p *colParser) StartElement(name string, attrs []sgml.Attr, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "folder":
		p.stack = append(p.stack, &ColFolder{})
	case "titlestring", "folderorder":
		p.field = strings.ToLower(name)
		p.text.Reset()
	}
}

func (p *colParser) EndElement(name string, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "folder":
		if len(p.stack) == 0 {
			return
		}
		f := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		if len(p.stack) > 0 {
			parent := p.stack[len(p.stack)-1]
			parent.Children = append(parent.Children, *f)
		} else {
			p.top = append(p.top, *f)
		}

	case "titlestring", "folderorder":
		if len(p.stack) == 0 {
			p.field = ""
			return
		}
		f := p.stack[len(p.stack)-1]
		value := strings.TrimSpace(p.text.String())
		switch p.field {
		case "titlestring":
			f.Title = value
		case "folderorder":
			if n, err := strconv.Atoi(value); err == nil {
				f.Order = n
			}
		}
		p.field = ""
	}
}

func (p *colParser) Characters(data []byte) {
	if p.field != "" {
		p.text.Write(data)
	}
}

func sortFolders(folders *[]ColFolder) {
	sort.SliceStable(*folders, func(i, j int) bool {
		return (*folders)[i].Order < (*folders)[j].Order
	})
	for i := range *folders {
		sortFolders(&(*folders)[i].Children)
	}
}

// BuildFromCol grafts a COL folder hierarchy onto the tree root: archive
// folders become placeholders awaiting their HHC, everything else becomes a
// display folder.
func BuildFromCol(t *Tree, folders []ColFolder) {
	var build func(parent NodeIndex, fs []ColFolder)
	build = func(parent NodeIndex, fs []ColFolder) {
		for _, f := range fs {
			if stem, ok := f.ArchiveStem(); ok {
				t.AddChild(parent, Node{Kind: Placeholder, Stem: stem, Title: stem})
				continue
			}
			idx := t.AddChild(parent, Node{Kind: Folder, Title: f.Title})
			build(idx, f.Children)
		}
	}
	build(t.RootIndex(), folders)
}

// CollectStems returns every archive stem named by a COL hierarchy, in
// document order.
func CollectStems(folders []ColFolder) []string {
	var stems []string
	var walk func([]ColFolder)
	walk = func(fs []ColFolder) {
		for _, f := range fs {
			if stem, ok := f.ArchiveStem(); ok {
				stems = append(stems, stem)
			}
			walk(f.Children)
		}
	}
	walk(folders)
	return stems
}
