package fact

import (
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/ir"
)

// Template is a parsed event message. Placeholders are written {Field} or
// {Field.Path}; "{{" and "}}" produce literal braces.
type Template struct {
	src      string
	segments []segment
}

type segment struct {
	literal string
	path    string // non-empty for placeholders
}

// ParseTemplate parses a message template.
func ParseTemplate(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("message template: unclosed placeholder at offset %d", i)
			}
			path := strings.TrimSpace(src[i+1 : i+1+end])
			if path == "" {
				return nil, fmt.Errorf("message template: empty placeholder at offset %d", i)
			}
			if lit.Len() > 0 {
				t.segments = append(t.segments, segment{literal: lit.String()})
				lit.Reset()
			}
			t.segments = append(t.segments, segment{path: path})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("message template: unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String()})
	}
	return t, nil
}

// Source returns the template text as written.
func (t *Template) Source() string { return t.src }

// Placeholders returns the placeholder paths in order of appearance.
func (t *Template) Placeholders() []string {
	var paths []string
	for _, s := range t.segments {
		if s.path != "" {
			paths = append(paths, s.path)
		}
	}
	return paths
}

// Render interpolates the fact's field values. Unresolvable paths render
// as "<missing:path>".
func (t *Template) Render(f *Fact) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range t.segments {
		if s.path == "" {
			b.WriteString(s.literal)
			continue
		}
		v, ok := f.Lookup(s.path)
		if !ok {
			b.WriteString("<missing:" + s.path + ">")
			continue
		}
		b.WriteString(ir.Format(v))
	}
	return b.String()
}
