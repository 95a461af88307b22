package css

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ParseValue tokenizes standalone property value text.
func ParseValue(text string) Value {
	l := css.NewLexer(parse.NewInputString(strings.TrimSpace(text)))
	var v Value
	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			return v
		case css.CommentToken:
			continue
		case css.WhitespaceToken:
			v = append(v, Space())
		default:
			v = append(v, Token{Type: tt, Data: string(data)})
		}
	}
}

// InlineStyle is an editable view of an element style attribute.
type InlineStyle struct {
	Declarations []*Declaration
}

// ParseInlineStyle parses style attribute text.
func ParseInlineStyle(text string) *InlineStyle {
	return &InlineStyle{Declarations: NewParser(nil).ParseInline(text)}
}

// Get returns value of the last declaration of the property.
func (s *InlineStyle) Get(property string) (string, bool) {
	for i := len(s.Declarations) - 1; i >= 0; i-- {
		if d := s.Declarations[i]; d.Property == property {
			return d.Value.String(), true
		}
	}
	return "", false
}

// Set replaces value of the property or appends a new declaration.
func (s *InlineStyle) Set(property, value string) {
	d := &Declaration{Property: property}
	if strings.HasPrefix(property, "--") {
		d.Custom = true
		d.Value = Value{{Type: css.CustomPropertyValueToken, Data: strings.TrimSpace(value)}}
	} else {
		d.Property = strings.ToLower(property)
		d.Value = ParseValue(value)
	}

	for i, cur := range s.Declarations {
		if cur.Property == d.Property {
			s.Declarations[i] = d
			return
		}
	}
	s.Declarations = append(s.Declarations, d)
}

// String returns style attribute text.
func (s *InlineStyle) String() string {
	parts := make([]string, 0, len(s.Declarations))
	for _, d := range s.Declarations {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}
