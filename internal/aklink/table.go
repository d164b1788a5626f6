package aklink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/registry"
)

// archiveWindow is the width of each archive's slot window in a collection
// topic table. The high bits of a split index select the archive ordinal,
// the low bits the intra-archive slot.
const archiveWindow = 1 << 20

// topicEntrySize is the width of one #TOPICS record.
const topicEntrySize = 16

// noName is the #STRINGS offset sentinel for a topic without a display name.
const noName = 0xFFFFFFFF

// WarnFunc receives non-fatal diagnostics.
type WarnFunc func(format string, args ...interface{})

// Table holds every topic loaded from one archive or a whole collection,
// plus the associative (A-link) and keyword (K-link) maps.
type Table struct {
	topics map[uint32]models.Topic
	order  []uint32
	alink  models.KeywordMap
	klink  models.KeywordMap
}

func newTable() *Table {
	return &Table{
		topics: make(map[uint32]models.Topic),
		alink:  make(models.KeywordMap),
		klink:  make(models.KeywordMap),
	}
}

func ensureWarn(warn WarnFunc) WarnFunc {
	if warn == nil {
		return func(string, ...interface{}) {}
	}
	return warn
}

// Topic returns the topic at an index: a plain slot in single-archive mode,
// or a split (ordinal<<20 | slot) index in collection mode.
func (t *Table) Topic(index uint32) (models.Topic, bool) {
	topic, ok := t.topics[index]
	return topic, ok
}

// AllTopics iterates topics in on-disk order: per archive, slot order.
func (t *Table) AllTopics() []models.Topic {
	out := make([]models.Topic, 0, len(t.order))
	for _, idx := range t.order {
		out = append(out, t.topics[idx])
	}
	return out
}

// ALink returns the topics registered under an associative-link name.
func (t *Table) ALink(name string) []models.Topic {
	return t.alink[name]
}

// KLink returns the topics registered under a keyword-link name.
func (t *Table) KLink(name string) []models.Topic {
	return t.klink[name]
}

// ALinkMap exposes the whole associative map.
func (t *Table) ALinkMap() models.KeywordMap {
	return t.alink
}

// KLinkMap exposes the whole keyword map.
func (t *Table) KLinkMap() models.KeywordMap {
	return t.klink
}

// LocalSeeds returns the local-topic filenames from both maps, deduplicated.
func (t *Table) LocalSeeds() []string {
	seen := make(map[string]bool)
	var seeds []string
	for _, m := range []models.KeywordMap{t.alink, t.klink} {
		for _, s := range m.LocalSeeds() {
			key := strings.ToLower(s)
			if !seen[key] {
				seen[key] = true
				seeds = append(seeds, s)
			}
		}
	}
	return seeds
}

// LoadSingle loads the side-tables of one extracted archive. dir is the
// extraction directory on disk, subdir the archive's output subdirectory
// used to prefix local topic filenames.
func LoadSingle(dir, subdir string, warn WarnFunc) (*Table, error) {
	warn = ensureWarn(warn)
	t := newTable()
	if err := t.loadArchive(dir, subdir, 0, warn); err != nil {
		return nil, err
	}
	if err := t.loadBTrees(dir, func(raw uint32) (models.Topic, bool) {
		return t.Topic(raw)
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadMulti loads several independent archives into one table, windowed by
// registration ordinal. Each archive's own B-trees reference intra-archive
// slots, so their indices are shifted into the archive's window.
func LoadMulti(outRoot string, reg *registry.Registry, warn WarnFunc) (*Table, error) {
	warn = ensureWarn(warn)
	t := newTable()
	for _, stem := range reg.Stems() {
		subdir, _ := reg.SubdirByStem(stem)
		ord, _ := reg.Ordinal(stem)
		archiveDir := filepath.Join(outRoot, filepath.FromSlash(subdir))
		if err := t.loadArchive(archiveDir, subdir, uint32(ord), warn); err != nil {
			return nil, fmt.Errorf("archive %s: %w", stem, err)
		}
		window := uint32(ord) * archiveWindow
		if err := t.loadBTrees(archiveDir, func(raw uint32) (models.Topic, bool) {
			return t.Topic(window + raw)
		}); err != nil {
			return nil, fmt.Errorf("archive %s: %w", stem, err)
		}
	}
	return t, nil
}

// LoadCollection loads a collection: $HHTitleMap in the extracted chw
// directory enumerates member archives, each archive's tables land in its
// ordinal's window, and the aggregate B-trees at the top of the chw
// reference topics by split index.
func LoadCollection(chwDir, outRoot string, reg *registry.Registry, warn WarnFunc) (*Table, error) {
	warn = ensureWarn(warn)
	t := newTable()

	stems, err := readTitleMap(chwDir)
	if err != nil {
		return nil, err
	}

	for _, stem := range stems {
		subdir, ok := reg.SubdirByStem(stem)
		if !ok {
			warn("title map names unknown archive %q", stem)
			continue
		}
		ord, ok := reg.Ordinal(stem)
		if !ok {
			continue
		}
		archiveDir := filepath.Join(outRoot, filepath.FromSlash(subdir))
		if err := t.loadArchive(archiveDir, subdir, uint32(ord), warn); err != nil {
			return nil, fmt.Errorf("archive %s: %w", stem, err)
		}
	}

	// The chw-level B-trees carry split indices already.
	if err := t.loadBTrees(chwDir, func(raw uint32) (models.Topic, bool) {
		return t.Topic(raw)
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// loadArchive decodes #TOPICS/#STRINGS/#URLTBL/#URLSTR into the table at
// the given window ordinal (0 for single-archive mode).
func (t *Table) loadArchive(dir, subdir string, ordinal uint32, warn WarnFunc) error {
	topics, err := readTableFile(dir, "#TOPICS")
	if err != nil {
		if os.IsNotExist(err) {
			warn("archive at %s has no #TOPICS table", dir)
			return nil
		}
		return err
	}
	strs, err := readTableFile(dir, "#STRINGS")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	urltbl, err := readTableFile(dir, "#URLTBL")
	if err != nil {
		return err
	}
	urlstr, err := readTableFile(dir, "#URLSTR")
	if err != nil {
		return err
	}

	count := topics.len() / topicEntrySize
	for slot := 0; slot < count; slot++ {
		topic, err := decodeTopic(topics, strs, urltbl, urlstr, uint32(slot), subdir)
		if err != nil {
			return err
		}
		index := ordinal*archiveWindow + uint32(slot)
		t.topics[index] = topic
		t.order = append(t.order, index)
	}
	return nil
}

// decodeTopic reconstructs the topic at one #TOPICS slot by chasing the
// offsets through #URLTBL and #URLSTR.
func decodeTopic(topics, strs, urltbl, urlstr sliceReader, slot uint32, subdir string) (models.Topic, error) {
	base := int(slot) * topicEntrySize

	nameOff, err := topics.u32(base + 4)
	if err != nil {
		return models.Topic{}, err
	}
	tblOff, err := topics.u32(base + 8)
	if err != nil {
		return models.Topic{}, err
	}

	var topic models.Topic
	if nameOff != noName && strs.len() > 0 {
		name, err := strs.cstring(int(nameOff))
		if err != nil {
			return models.Topic{}, err
		}
		topic.Name = name
	}

	echo, err := urltbl.u32(int(tblOff) + 4)
	if err != nil {
		return models.Topic{}, err
	}
	if echo != slot {
		return models.Topic{}, fmt.Errorf("#URLTBL: entry at %d echoes slot %d, want %d", tblOff, echo, slot)
	}
	strOff, err := urltbl.u32(int(tblOff) + 8)
	if err != nil {
		return models.Topic{}, err
	}

	urlOff, err := urlstr.u32(int(strOff))
	if err != nil {
		return models.Topic{}, err
	}
	frameOff, err := urlstr.u32(int(strOff) + 4)
	if err != nil {
		return models.Topic{}, err
	}

	if urlOff == 0 && frameOff == 0 {
		fname, err := urlstr.cstring(int(strOff) + 8)
		if err != nil {
			return models.Topic{}, err
		}
		topic.Local = joinSubdir(subdir, fname)
		return topic, nil
	}

	if urlOff != 0 {
		url, err := urlstr.cstring(int(urlOff))
		if err != nil {
			return models.Topic{}, err
		}
		topic.URL = url
	}
	if frameOff != 0 {
		frame, err := urlstr.cstring(int(frameOff))
		if err != nil {
			return models.Topic{}, err
		}
		topic.Frame = frame
	}
	return topic, nil
}

func joinSubdir(subdir, fname string) string {
	fname = strings.TrimPrefix(fname, "/")
	if subdir == "" {
		return fname
	}
	return subdir + "/" + fname
}

// loadBTrees parses the optional associative and keyword B-trees in dir.
func (t *Table) loadBTrees(dir string, resolve func(uint32) (models.Topic, bool)) error {
	for _, bt := range []struct {
		rel string
		m   models.KeywordMap
	}{
		{"$WWAssociativeLinks/BTree", t.alink},
		{"$WWKeywordLinks/BTree", t.klink},
	} {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(bt.rel)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := parseBTree(sliceReader{b: data, name: bt.rel}, resolve, bt.m); err != nil {
			return fmt.Errorf("%s: %w", bt.rel, err)
		}
	}
	return nil
}

func readTableFile(dir, name string) (sliceReader, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return sliceReader{name: name}, err
	}
	return sliceReader{b: data, name: name}, nil
}

// readTitleMap decodes $HHTitleMap: a sequence of {u16 length, stem UTF-8,
// 12 reserved bytes}. The reserved bytes are skipped; nothing may depend on
// their values.
func readTitleMap(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "$HHTitleMap"))
	if err != nil {
		return nil, fmt.Errorf("failed to read $HHTitleMap: %w", err)
	}
	r := sliceReader{b: data, name: "$HHTitleMap"}

	var stems []string
	off := 0
	for off < r.len() {
		n, err := r.u16(off)
		if err != nil {
			return nil, err
		}
		off += 2
		if off+int(n) > r.len() {
			return nil, fmt.Errorf("$HHTitleMap: truncated stem at offset %d", off)
		}
		stems = append(stems, string(data[off:off+int(n)]))
		off += int(n) + 12
	}
	return stems, nil
}
