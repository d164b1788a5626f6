// Package aklink decodes the binary topic table and the associative/keyword
// B-tree indexes of a help archive. The on-disk layout is little-endian
// throughout; parsing works over borrowed byte slices with bounds checks at
// every field read, because these files arrive corrupt often enough to
// matter.
package aklink

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// sliceReader is a bounds-checked view over one side-table file.
type sliceReader struct {
	b    []byte
	name string
}

func (r sliceReader) len() int {
	return len(r.b)
}

func (r sliceReader) u16(off int) (uint16, error) {
	if off < 0 || off+2 > len(r.b) {
		return 0, fmt.Errorf("%s: truncated read at offset %d", r.name, off)
	}
	return binary.LittleEndian.Uint16(r.b[off:]), nil
}

func (r sliceReader) u32(off int) (uint32, error) {
	if off < 0 || off+4 > len(r.b) {
		return 0, fmt.Errorf("%s: truncated read at offset %d", r.name, off)
	}
	return binary.LittleEndian.Uint32(r.b[off:]), nil
}

// cstring reads a NUL-terminated UTF-8 string.
func (r sliceReader) cstring(off int) (string, error) {
	if off < 0 || off >= len(r.b) {
		return "", fmt.Errorf("%s: string offset %d out of range", r.name, off)
	}
	end := off
	for end < len(r.b) && r.b[end] != 0 {
		end++
	}
	if end == len(r.b) {
		return "", fmt.Errorf("%s: unterminated string at offset %d", r.name, off)
	}
	return string(r.b[off:end]), nil
}

// utf16z reads a NUL-terminated UTF-16LE string and returns it with the
// total byte count consumed, terminator included.
func (r sliceReader) utf16z(off int) (string, int, error) {
	if off < 0 || off >= len(r.b) {
		return "", 0, fmt.Errorf("%s: UTF-16 string offset %d out of range", r.name, off)
	}
	var units []uint16
	i := off
	for {
		if i+2 > len(r.b) {
			return "", 0, fmt.Errorf("%s: unterminated UTF-16 string at offset %d", r.name, off)
		}
		u := binary.LittleEndian.Uint16(r.b[i:])
		i += 2
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), i - off, nil
}
