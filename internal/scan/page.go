// Package scan extracts link and object data from pages (inside workers)
// and drives the discovery fixed point (in the parent).
package scan

import (
	stdhtml "html"
	"strings"

	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/sgml"
)

// ScanPage extracts a page record from one HTML page's bytes: title, page
// and asset hyperlinks, and embedded objects with their byte spans.
func ScanPage(data []byte, archive, rootRel string) (*models.PageRecord, error) {
	s := &pageScanner{
		rec: &models.PageRecord{Archive: archive, Path: rootRel},
	}
	if err := sgml.Parse(data, s); err != nil {
		return nil, err
	}
	if s.title.Len() > 0 {
		// Titles land in contents and wrapper pages, which are emitted as
		// UTF-8 regardless of the source encoding.
		s.rec.Title = strings.TrimSpace(stdhtml.UnescapeString(sgml.DecodeTitle(data, s.title.String())))
	}
	return s.rec, nil
}

type pageScanner struct {
	rec     *models.PageRecord
	inTitle bool
	title   strings.Builder
	objects []*models.EmbeddedObject
}

func (s *pageScanner) StartElement(name string, attrs []sgml.Attr, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "a":
		if href, ok := sgml.Lookup(attrs, "href"); ok && href.Value != "" && !strings.HasPrefix(href.Value, "#") {
			s.rec.PageLinks = append(s.rec.PageLinks, href.Value)
		}

	case "img", "script":
		if src, ok := sgml.Lookup(attrs, "src"); ok && src.Value != "" {
			s.rec.AssetLinks = append(s.rec.AssetLinks, src.Value)
		}

	case "link":
		if href, ok := sgml.Lookup(attrs, "href"); ok && href.Value != "" {
			s.rec.AssetLinks = append(s.rec.AssetLinks, href.Value)
		}

	case "title":
		s.inTitle = true

	case "object":
		obj := &models.EmbeddedObject{Offset: loc.Offset, Line: loc.Line}
		for _, a := range attrs {
			obj.Attrs = append(obj.Attrs, models.NamedValue{Name: a.Name, Value: a.Value})
		}
		s.objects = append(s.objects, obj)

	case "param":
		if len(s.objects) == 0 {
			return
		}
		obj := s.objects[len(s.objects)-1]
		pname, _ := sgml.Lookup(attrs, "name")
		pvalue, _ := sgml.Lookup(attrs, "value")
		if pname.Value != "" {
			obj.Params = append(obj.Params, models.NamedValue{Name: pname.Value, Value: pvalue.Value})
		}
	}
}

func (s *pageScanner) EndElement(name string, loc sgml.Location) {
	switch strings.ToLower(name) {
	case "title":
		s.inTitle = false

	case "object":
		if len(s.objects) == 0 {
			return
		}
		obj := s.objects[len(s.objects)-1]
		s.objects = s.objects[:len(s.objects)-1]
		obj.Length = int(loc.Offset + int64(loc.Length) - obj.Offset)
		s.rec.Objects = append(s.rec.Objects, *obj)

		// An ALink control's default topic is reachable output, so it joins
		// the discovery roots.
		if obj.IsHelpControl() {
			if cmd, ok := obj.Param("Command"); ok && hasFoldPrefix(cmd, "ALink") {
				for _, def := range obj.ParamAll("DEFAULTTOPIC") {
					if def != "" {
						s.rec.PageLinks = append(s.rec.PageLinks, def)
					}
				}
			}
		}
	}
}

func (s *pageScanner) Characters(data []byte) {
	if s.inTitle {
		s.title.Write(data)
	}
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
