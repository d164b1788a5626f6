package aklink

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemnwarning/chmweb/internal/registry"
	"github.com/solemnwarning/chmweb/internal/testutil"
)

// Binary fixture builders. The encoders mirror the on-disk layout the
// decoder expects, so corruption cases can be produced by perturbing one
// field at a time.

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func utf16zBytes(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, le16(u)...)
	}
	return append(out, 0, 0)
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

// archiveFixture carries the offsets needed to cross-link the four tables.
type archiveFixture struct {
	strings []byte
	urlstr  []byte
	urltbl  []byte
	topics  []byte
}

// addLocalTopic appends a local topic at the next slot.
func (f *archiveFixture) addLocalTopic(name, filename string) {
	slot := uint32(len(f.topics) / topicEntrySize)

	nameOff := uint32(noName)
	if name != "" {
		nameOff = uint32(len(f.strings))
		f.strings = append(f.strings, cstr(name)...)
	}

	strOff := uint32(len(f.urlstr))
	f.urlstr = append(f.urlstr, le32(0)...)
	f.urlstr = append(f.urlstr, le32(0)...)
	f.urlstr = append(f.urlstr, cstr(filename)...)

	tblOff := uint32(len(f.urltbl))
	f.urltbl = append(f.urltbl, le32(0)...)
	f.urltbl = append(f.urltbl, le32(slot)...)
	f.urltbl = append(f.urltbl, le32(strOff)...)

	f.topics = append(f.topics, le32(0)...)
	f.topics = append(f.topics, le32(nameOff)...)
	f.topics = append(f.topics, le32(tblOff)...)
	f.topics = append(f.topics, le32(0)...)
}

// addExternalTopic appends an external topic at the next slot.
func (f *archiveFixture) addExternalTopic(name, url, frame string) {
	slot := uint32(len(f.topics) / topicEntrySize)

	nameOff := uint32(noName)
	if name != "" {
		nameOff = uint32(len(f.strings))
		f.strings = append(f.strings, cstr(name)...)
	}

	urlOff := uint32(len(f.urlstr))
	f.urlstr = append(f.urlstr, cstr(url)...)
	frameOff := uint32(0)
	if frame != "" {
		frameOff = uint32(len(f.urlstr))
		f.urlstr = append(f.urlstr, cstr(frame)...)
	}

	strOff := uint32(len(f.urlstr))
	f.urlstr = append(f.urlstr, le32(urlOff)...)
	f.urlstr = append(f.urlstr, le32(frameOff)...)
	f.urlstr = append(f.urlstr, cstr("")...)

	tblOff := uint32(len(f.urltbl))
	f.urltbl = append(f.urltbl, le32(0)...)
	f.urltbl = append(f.urltbl, le32(slot)...)
	f.urltbl = append(f.urltbl, le32(strOff)...)

	f.topics = append(f.topics, le32(0)...)
	f.topics = append(f.topics, le32(nameOff)...)
	f.topics = append(f.topics, le32(tblOff)...)
	f.topics = append(f.topics, le32(0)...)
}

func (f *archiveFixture) write(t *testing.T, dir string) {
	testutil.WriteBinary(t, dir, "#TOPICS", f.topics)
	testutil.WriteBinary(t, dir, "#STRINGS", f.strings)
	testutil.WriteBinary(t, dir, "#URLTBL", f.urltbl)
	testutil.WriteBinary(t, dir, "#URLSTR", f.urlstr)
}

// btreeEntry is one listing entry in encoder form.
type btreeEntry struct {
	keyword     string
	seeAlso     string
	lastCharOff uint32
	topics      []uint32
}

func (e btreeEntry) encode(serial uint32) []byte {
	var out []byte
	out = append(out, utf16zBytes(e.keyword)...)
	if e.seeAlso != "" {
		out = append(out, le16(seeAlsoFlag)...)
	} else {
		out = append(out, le16(0)...)
	}
	out = append(out, le16(0)...) // depth
	out = append(out, le32(e.lastCharOff)...)
	out = append(out, le32(0)...) // reserved
	out = append(out, le32(uint32(len(e.topics)))...)
	if e.seeAlso != "" {
		out = append(out, utf16zBytes(e.seeAlso)...)
	} else {
		for _, idx := range e.topics {
			out = append(out, le32(idx)...)
		}
	}
	out = append(out, le32(0)...) // reserved
	out = append(out, le32(serial)...)
	return out
}

// buildBTree packs entries into listing blocks, filling each block up to
// its 2048-byte capacity.
func buildBTree(t *testing.T, entries []btreeEntry) []byte {
	header := make([]byte, btreeHeaderSize)
	header[0] = 0x3B
	header[1] = 0x29

	var blocks [][]byte
	block := make([]byte, btreeEntriesOff)
	count := 0
	serial := uint32(0)

	flush := func() {
		if count == 0 {
			return
		}
		binary.LittleEndian.PutUint16(block[btreeEntryCountOff:], uint16(count))
		padded := make([]byte, btreeBlockSize)
		copy(padded, block)
		blocks = append(blocks, padded)
		block = make([]byte, btreeEntriesOff)
		count = 0
	}

	for _, e := range entries {
		enc := e.encode(serial)
		serial += btreeSerialStep
		require.Less(t, len(enc), btreeBlockSize-btreeEntriesOff, "entry too large for a block")
		if len(block)+len(enc) > btreeBlockSize {
			flush()
		}
		block = append(block, enc...)
		count++
	}
	flush()

	require.NotEmpty(t, blocks)
	binary.LittleEndian.PutUint32(header[btreeLastBlockOff:], uint32(len(blocks)-1))

	out := header
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

func TestLoadSingleTopics(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("Win95 UI Title Page", "html/win95uititlepage.htm")
	f.addExternalTopic("Somewhere else", "http://example.com/", "main")
	f.addLocalTopic("", "/html/other.htm")
	f.write(t, dir)

	table, err := LoadSingle(dir, "", nil)
	require.NoError(t, err)

	all := table.AllTopics()
	require.Len(t, all, 3)

	assert.Equal(t, "Win95 UI Title Page", all[0].Name)
	assert.Equal(t, "html/win95uititlepage.htm", all[0].Local)
	assert.True(t, all[0].IsLocal())

	assert.True(t, all[1].IsExternal())
	assert.Equal(t, "http://example.com/", all[1].URL)
	assert.Equal(t, "main", all[1].Frame)

	// Leading slash stripped, no display name.
	assert.Equal(t, "html/other.htm", all[2].Local)
	assert.Equal(t, "", all[2].Name)

	topic, ok := table.Topic(1)
	require.True(t, ok)
	assert.Equal(t, "http://example.com/", topic.URL)
}

func TestLoadSingleSubdirPrefix(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("T", "html/page.htm")
	f.write(t, dir)

	table, err := LoadSingle(dir, "stem1", nil)
	require.NoError(t, err)

	all := table.AllTopics()
	require.Len(t, all, 1)
	assert.Equal(t, "stem1/html/page.htm", all[0].Local)
}

func TestCorruptURLTBLEcho(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("T", "html/page.htm")
	// Break the echoed slot.
	binary.LittleEndian.PutUint32(f.urltbl[4:], 99)
	f.write(t, dir)

	_, err := LoadSingle(dir, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echoes slot")
}

func TestBTreeWalk(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("Win95 UI Title Page", "html/win95uititlepage.htm")
	f.addLocalTopic("Other Page", "html/other.htm")
	f.write(t, dir)

	entries := []btreeEntry{
		{keyword: "msdn_win95uititlepage", topics: []uint32{0}},
		{keyword: "windows, ui", lastCharOff: 9, topics: []uint32{0, 1}},
		{keyword: "win ui", seeAlso: "msdn_win95uititlepage"},
	}
	testutil.WriteBinary(t, dir, "$WWAssociativeLinks/BTree", buildBTree(t, entries))

	table, err := LoadSingle(dir, "", nil)
	require.NoError(t, err)

	single := table.ALink("msdn_win95uititlepage")
	require.Len(t, single, 1)
	assert.Equal(t, "html/win95uititlepage.htm", single[0].Local)

	multi := table.ALink("windows, ui")
	require.Len(t, multi, 2)

	see := table.ALink("win ui")
	require.Len(t, see, 1)
	assert.True(t, see[0].IsSeeAlso())
	assert.Equal(t, "msdn_win95uititlepage", see[0].SeeAlso)

	assert.Empty(t, table.ALink("unknown"))
	assert.Empty(t, table.KLink("msdn_win95uititlepage"))
}

// Entries span multiple listing blocks; the count and serial law holds:
// the final serial divided by 13, plus one, is the total entry count.
func TestBTreeMultiBlock(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("T", "html/page.htm")
	f.write(t, dir)

	var entries []btreeEntry
	for i := 0; i < 40; i++ {
		entries = append(entries, btreeEntry{
			keyword: "keyword_with_some_padding_to_fill_blocks_" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			topics:  []uint32{0},
		})
	}
	data := buildBTree(t, entries)
	require.Greater(t, len(data), btreeHeaderSize+btreeBlockSize, "fixture must span multiple blocks")
	testutil.WriteBinary(t, dir, "$WWKeywordLinks/BTree", data)

	table, err := LoadSingle(dir, "", nil)
	require.NoError(t, err)

	total := 0
	for _, topics := range table.KLinkMap() {
		total += len(topics)
	}
	assert.Equal(t, 40, total)
}

func TestBTreeBadSerial(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("T", "html/page.htm")
	f.write(t, dir)

	data := buildBTree(t, []btreeEntry{{keyword: "k", topics: []uint32{0}}})
	// Corrupt the trailing serial of the only entry.
	binary.LittleEndian.PutUint32(data[len(data)-(btreeBlockSize-btreeEntriesOff)+entryEncodedLen("k", 1)-4:], 7)
	testutil.WriteBinary(t, dir, "$WWKeywordLinks/BTree", data)

	_, err := LoadSingle(dir, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial")
}

// entryEncodedLen computes the encoded size of a normal entry.
func entryEncodedLen(keyword string, pairs int) int {
	return (len(keyword)+1)*2 + 2 + 2 + 4 + 4 + 4 + pairs*4 + 4 + 4
}

func TestBTreeBadSignature(t *testing.T) {
	dir := t.TempDir()
	f := &archiveFixture{}
	f.addLocalTopic("T", "html/page.htm")
	f.write(t, dir)

	data := buildBTree(t, []btreeEntry{{keyword: "k", topics: []uint32{0}}})
	data[0] = 0x00
	testutil.WriteBinary(t, dir, "$WWKeywordLinks/BTree", data)

	_, err := LoadSingle(dir, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func buildTitleMap(stems []string) []byte {
	var out []byte
	for _, stem := range stems {
		out = append(out, le16(uint16(len(stem)))...)
		out = append(out, []byte(stem)...)
		out = append(out, make([]byte, 12)...)
	}
	return out
}

func TestLoadCollection(t *testing.T) {
	outRoot := t.TempDir()
	chwDir := filepath.Join(outRoot, "_chw")

	reg := registry.New()
	require.NoError(t, reg.Add("alpha", "alpha"))
	require.NoError(t, reg.Add("beta", "beta"))

	alpha := &archiveFixture{}
	alpha.addLocalTopic("Alpha Page", "html/a.htm")
	alpha.write(t, filepath.Join(outRoot, "alpha"))

	beta := &archiveFixture{}
	beta.addLocalTopic("Beta Page", "html/b.htm")
	beta.write(t, filepath.Join(outRoot, "beta"))

	testutil.WriteBinary(t, chwDir, "$HHTitleMap", buildTitleMap([]string{"alpha", "beta"}))

	// The collection-level B-tree references topics by split index:
	// ordinal*2^20 + slot.
	entries := []btreeEntry{
		{keyword: "everything", topics: []uint32{1 * archiveWindow, 2 * archiveWindow}},
	}
	testutil.WriteBinary(t, chwDir, "$WWAssociativeLinks/BTree", buildBTree(t, entries))

	table, err := LoadCollection(chwDir, outRoot, reg, func(string, ...interface{}) {})
	require.NoError(t, err)

	all := table.AllTopics()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha/html/a.htm", all[0].Local)
	assert.Equal(t, "beta/html/b.htm", all[1].Local)

	topics := table.ALink("everything")
	require.Len(t, topics, 2)
	assert.Equal(t, "alpha/html/a.htm", topics[0].Local)
	assert.Equal(t, "beta/html/b.htm", topics[1].Local)

	seeds := table.LocalSeeds()
	assert.ElementsMatch(t, []string{"alpha/html/a.htm", "beta/html/b.htm"}, seeds)
}

func TestTopicWithoutTableWarns(t *testing.T) {
	dir := t.TempDir()
	warned := false
	_, err := LoadSingle(dir, "", func(string, ...interface{}) { warned = true })
	require.NoError(t, err)
	assert.True(t, warned)
}
