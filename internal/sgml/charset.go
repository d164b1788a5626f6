package sgml

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

var metaCharsetRE = regexp.MustCompile(`(?i)<meta\s+[^>]*charset\s*=\s*["']?([a-zA-Z0-9-]+)["']?`)

// DecodeToUTF8 sniffs a meta charset declaration near the top of an HTML
// document and transcodes the bytes to UTF-8. Help archives predate UTF-8
// ubiquity; contents files and titles are routinely windows-125x. Returns
// the input unchanged when no declaration is found or decoding fails.
func DecodeToUTF8(b []byte) []byte {
	searchLimit := len(b)
	if searchLimit > 4096 {
		searchLimit = 4096
	}
	match := metaCharsetRE.FindSubmatch(b[:searchLimit])
	if len(match) < 2 {
		return b
	}
	name := strings.ToLower(string(match[1]))
	if name == "utf-8" || name == "utf8" {
		return b
	}
	enc, err := lookupEncoding(name)
	if err != nil || enc == nil {
		return b
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(b), enc.NewDecoder()))
	if err != nil {
		return b
	}
	return decoded
}

// DecodeTitle transcodes a string captured from doc (typically the <title>
// text) using the charset doc declares, falling back to the input when doc
// is UTF-8 or undeclared.
func DecodeTitle(doc []byte, s string) string {
	searchLimit := len(doc)
	if searchLimit > 4096 {
		searchLimit = 4096
	}
	match := metaCharsetRE.FindSubmatch(doc[:searchLimit])
	if len(match) < 2 {
		return s
	}
	name := strings.ToLower(string(match[1]))
	if name == "utf-8" || name == "utf8" {
		return s
	}
	enc, err := lookupEncoding(name)
	if err != nil || enc == nil {
		return s
	}
	decoded, err := io.ReadAll(transform.NewReader(strings.NewReader(s), enc.NewDecoder()))
	if err != nil {
		return s
	}
	return string(decoded)
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil {
		enc, err = ianaindex.IANA.Encoding(name)
	}
	return enc, err
}
