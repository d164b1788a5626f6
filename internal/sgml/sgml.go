// Package sgml adapts the golang.org/x/net/html tokenizer into a stream of
// element events carrying byte offsets and line numbers. The rewriter
// splices replacement bytes into the original markup, so every attribute
// also records the span of its raw (still-escaped) value.
package sgml

import (
	"bytes"
	stdhtml "html"
	"io"

	"golang.org/x/net/html"
)

// Location pins an event to the byte stream.
type Location struct {
	Offset int64
	Line   int
	Length int
}

// Attr is one attribute from a start tag. Name keeps the original
// capitalisation; Value is entity-decoded. ValOffset/ValLen cover the raw
// value bytes in the source, excluding any quotes.
type Attr struct {
	Name      string
	Value     string
	ValOffset int64
	ValLen    int
	HasValue  bool
}

// Lookup returns the first attribute matching name case-insensitively.
// Attribute lists are short and order matters for round-tripping, so this
// is a linear search.
func Lookup(attrs []Attr, name string) (Attr, bool) {
	for _, a := range attrs {
		if equalFoldASCII(a.Name, name) {
			return a, true
		}
	}
	return Attr{}, false
}

// Handler receives document events.
type Handler interface {
	StartElement(name string, attrs []Attr, loc Location)
	EndElement(name string, loc Location)
	Characters(data []byte)
}

// Parse walks the byte stream and delivers events to h. Script element
// bodies are opaque: no events are delivered between matching script tags.
// The tokenizer never synthesises DTD-defaulted attributes, so every
// reported attribute was literally present in the source.
func Parse(data []byte, h Handler) error {
	z := html.NewTokenizer(bytes.NewReader(data))
	var offset int64
	line := 1
	scriptDepth := 0

	for {
		tt := z.Next()
		raw := z.Raw()
		loc := Location{Offset: offset, Line: line, Length: len(raw)}

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, attrs := lexTag(raw, offset)
			if equalFoldASCII(name, "script") && tt == html.StartTagToken {
				scriptDepth++
			}
			h.StartElement(name, attrs, loc)
			if tt == html.SelfClosingTagToken {
				h.EndElement(name, loc)
			}

		case html.EndTagToken:
			name, _ := lexTag(raw, offset)
			if equalFoldASCII(name, "script") && scriptDepth > 0 {
				scriptDepth--
			}
			h.EndElement(name, loc)

		case html.TextToken:
			if scriptDepth == 0 {
				h.Characters(raw)
			}
		}

		offset += int64(len(raw))
		line += bytes.Count(raw, []byte{'\n'})
	}
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// lexTag re-lexes a raw tag token to recover original-case names and the
// byte spans of attribute values. base is the file offset of raw[0].
func lexTag(raw []byte, base int64) (string, []Attr) {
	i := 0
	if i < len(raw) && raw[i] == '<' {
		i++
	}
	if i < len(raw) && raw[i] == '/' {
		i++
	}

	nameStart := i
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}
	name := string(raw[nameStart:i])

	var attrs []Attr
	for i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}
		if raw[i] == '/' && i+1 < len(raw) && raw[i+1] == '>' {
			break
		}

		attrStart := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' {
			i++
		}
		attrName := string(raw[attrStart:i])
		if attrName == "" {
			i++
			continue
		}

		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			attrs = append(attrs, Attr{Name: attrName})
			continue
		}
		i++ // '='
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}

		var valStart, valEnd int
		if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
			quote := raw[i]
			i++
			valStart = i
			for i < len(raw) && raw[i] != quote {
				i++
			}
			valEnd = i
			if i < len(raw) {
				i++ // closing quote
			}
		} else {
			valStart = i
			for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
				i++
			}
			valEnd = i
		}

		attrs = append(attrs, Attr{
			Name:      attrName,
			Value:     stdhtml.UnescapeString(string(raw[valStart:valEnd])),
			ValOffset: base + int64(valStart),
			ValLen:    valEnd - valStart,
			HasValue:  true,
		})
	}

	return name, attrs
}
