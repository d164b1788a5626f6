package aklink

import (
	"fmt"

	"github.com/solemnwarning/chmweb/internal/models"
)

// B-tree file layout constants. Only the listing blocks matter for a full
// walk; the index blocks exist to serve point lookups the original viewer
// performed, and are skipped here.
const (
	btreeHeaderSize    = 76
	btreeBlockSize     = 2048
	btreeLastBlockOff  = 0x1A
	btreeEntryCountOff = 2
	btreeEntriesOff    = 12
	btreeSerialStep    = 13
)

// seeAlsoFlag marks a listing entry that redirects to another keyword
// instead of carrying topic indices.
const seeAlsoFlag = 2

// parseBTree walks every listing block of a $WW*Links/BTree file and
// appends the decoded entries to m. Topic indices are resolved through
// resolve, which maps the raw on-disk index (plain slot or split index) to
// a topic.
func parseBTree(r sliceReader, resolve func(uint32) (models.Topic, bool), m models.KeywordMap) error {
	if r.len() < btreeHeaderSize {
		return fmt.Errorf("file shorter than header")
	}
	if r.b[0] != 0x3B || r.b[1] != 0x29 {
		return fmt.Errorf("bad signature %02x %02x", r.b[0], r.b[1])
	}

	lastBlock, err := r.u32(btreeLastBlockOff)
	if err != nil {
		return err
	}
	blocks := int(lastBlock) + 1

	serial := uint32(0)
	for block := 0; block < blocks; block++ {
		base := btreeHeaderSize + block*btreeBlockSize
		count, err := r.u16(base + btreeEntryCountOff)
		if err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}

		off := base + btreeEntriesOff
		for entry := 0; entry < int(count); entry++ {
			next, err := parseEntry(r, off, serial, resolve, m)
			if err != nil {
				return fmt.Errorf("block %d entry %d: %w", block, entry, err)
			}
			off = next
			serial += btreeSerialStep
		}
	}
	return nil
}

// parseEntry decodes one variable-width listing entry starting at off and
// returns the offset of the next entry.
func parseEntry(r sliceReader, off int, wantSerial uint32, resolve func(uint32) (models.Topic, bool), m models.KeywordMap) (int, error) {
	keyword, n, err := r.utf16z(off)
	if err != nil {
		return 0, err
	}
	off += n

	flag, err := r.u16(off)
	if err != nil {
		return 0, err
	}
	off += 2

	// depth
	if _, err := r.u16(off); err != nil {
		return 0, err
	}
	off += 2

	// character offset where the local display name starts; the prefix is
	// the parent keywords joined by ", ". Validated for range, and used to
	// name topics that have no title of their own.
	lastCharOff, err := r.u32(off)
	if err != nil {
		return 0, err
	}
	if int(lastCharOff) > len([]rune(keyword)) {
		return 0, fmt.Errorf("keyword %q: display offset %d out of range", keyword, lastCharOff)
	}
	off += 4

	// reserved
	if _, err := r.u32(off); err != nil {
		return 0, err
	}
	off += 4

	pairs, err := r.u32(off)
	if err != nil {
		return 0, err
	}
	off += 4

	if flag == seeAlsoFlag {
		target, n, err := r.utf16z(off)
		if err != nil {
			return 0, err
		}
		off += n
		m.Add(keyword, models.Topic{Name: keyword, SeeAlso: target})
	} else {
		for i := uint32(0); i < pairs; i++ {
			raw, err := r.u32(off)
			if err != nil {
				return 0, err
			}
			off += 4
			topic, ok := resolve(raw)
			if !ok {
				return 0, fmt.Errorf("keyword %q references unknown topic %#x", keyword, raw)
			}
			if topic.Name == "" {
				topic.Name = displaySuffix(keyword, lastCharOff)
			}
			m.Add(keyword, topic)
		}
	}

	// reserved
	if _, err := r.u32(off); err != nil {
		return 0, err
	}
	off += 4

	serial, err := r.u32(off)
	if err != nil {
		return 0, err
	}
	off += 4
	if serial != wantSerial {
		return 0, fmt.Errorf("keyword %q: serial %d, want %d", keyword, serial, wantSerial)
	}

	return off, nil
}

// displaySuffix returns the local display part of a keyword: everything
// after the recorded character offset.
func displaySuffix(keyword string, charOff uint32) string {
	runes := []rune(keyword)
	if int(charOff) >= len(runes) {
		return keyword
	}
	return string(runes[charOff:])
}
