package css

import (
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// RuleKind distinguishes ordinary style rules from @-rules.
type RuleKind int

const (
	StyleRule RuleKind = iota // selector list + declarations
	AtRule                    // @name prelude [block]
)

// BlockKind describes what the body of a rule holds.
type BlockKind int

const (
	NoBlock          BlockKind = iota // @import url(...);
	DeclarationBlock                  // style rules, @page, @font-face, page margin boxes
	RuleBlock                         // @media, @supports, @layer, @document, @keyframes
	RawBlock                          // unknown @-rules, kept verbatim
)

// Declaration is a single "property: value" pair. Property is always lower
// case, custom properties keep their raw value as a single token.
type Declaration struct {
	Property  string
	Value     Value
	Important bool
	Custom    bool
}

// String returns the CSS text of the declaration without trailing semicolon.
func (d *Declaration) String() string {
	var sb strings.Builder
	sb.WriteString(d.Property)
	sb.WriteString(": ")
	sb.WriteString(d.Value.String())
	if d.Important {
		sb.WriteString(" !important")
	}
	return sb.String()
}

// Rule is a node of the mutable rule tree. Handlers are free to change
// selectors, declarations and nested rules in place, the tree is serialized
// back to text afterwards.
type Rule struct {
	Kind      RuleKind
	Selectors SelectorList // StyleRule only

	Name    string // AtRule name without "@", lower case
	Prelude Value  // AtRule prelude

	Block        BlockKind
	Declarations []*Declaration
	Rules        []*Rule // nested rules (@media content, @page margin boxes)
	Raw          string  // RawBlock body

	Parent *Rule // non-owning, nil for top level rules
}

// IsAt reports whether rule is an @-rule with the given name.
func (r *Rule) IsAt(name string) bool {
	return r.Kind == AtRule && r.Name == name
}

// SelectorText returns selector list text for style rules and "@name prelude"
// for @-rules.
func (r *Rule) SelectorText() string {
	if r.Kind == StyleRule {
		return r.Selectors.String()
	}
	if len(r.Prelude) == 0 {
		return "@" + r.Name
	}
	return "@" + r.Name + " " + r.Prelude.String()
}

// Declaration returns first declaration of the property or nil.
func (r *Rule) Declaration(property string) *Declaration {
	for _, d := range r.Declarations {
		if d.Property == property {
			return d
		}
	}
	return nil
}

// RemoveDeclaration removes declaration at position i.
func (r *Rule) RemoveDeclaration(i int) {
	if i < 0 || i >= len(r.Declarations) {
		return
	}
	r.Declarations = append(r.Declarations[:i], r.Declarations[i+1:]...)
}

// Stylesheet is the parsed representation of a CSS text.
type Stylesheet struct {
	Rules    []*Rule
	Warnings []string // Warnings for unsupported or broken constructs
}

// RulesBySelector returns all top-level style rules with the given selector text.
// Selector text is normalized before comparison.
func (s *Stylesheet) RulesBySelector(selector string) []*Rule {
	want := ParseSelectorList(selector).String()

	var matches []*Rule
	for _, r := range s.Rules {
		if r.Kind == StyleRule && r.Selectors.String() == want {
			matches = append(matches, r)
		}
	}
	return matches
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	for i, r := range s.Rules {
		writeRule(cw, r, 0)
		// Add blank line between items (except after last)
		if i < len(s.Rules)-1 {
			cw.print("\n")
		}
	}
	return cw.n, cw.err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

// String returns the CSS text of a single rule.
func (r *Rule) String() string {
	var sb strings.Builder
	writeRule(&countingWriter{w: &sb}, r, 0)
	return sb.String()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) print(s string) {
	if cw.err != nil {
		return
	}
	n, err := io.WriteString(cw.w, s)
	cw.n += int64(n)
	cw.err = err
}

func (cw *countingWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	n, err := fmt.Fprintf(cw.w, format, args...)
	cw.n += int64(n)
	cw.err = err
}

func writeRule(cw *countingWriter, r *Rule, depth int) {
	indent := strings.Repeat("  ", depth)

	if r.Kind == AtRule && r.Block == NoBlock {
		cw.printf("%s%s;\n", indent, r.SelectorText())
		return
	}

	cw.printf("%s%s {\n", indent, r.SelectorText())
	switch r.Block {
	case DeclarationBlock:
		for _, d := range r.Declarations {
			cw.printf("%s  %s;\n", indent, d.String())
		}
		for _, nested := range r.Rules {
			writeRule(cw, nested, depth+1)
		}
	case RuleBlock:
		for i, nested := range r.Rules {
			writeRule(cw, nested, depth+1)
			if i < len(r.Rules)-1 {
				cw.print("\n")
			}
		}
	case RawBlock:
		if raw := strings.TrimSpace(r.Raw); raw != "" {
			cw.printf("%s  %s\n", indent, raw)
		}
	}
	cw.printf("%s}\n", indent)
}

// Walk calls fn for every rule of the list in document order, descending into
// nested rules after their parent.
func Walk(rules []*Rule, fn func(*Rule)) {
	for _, r := range rules {
		fn(r)
		if len(r.Rules) > 0 {
			Walk(r.Rules, fn)
		}
	}
}

// tokenText converts parser tokens into owned Value tokens.
func tokenText(tokens []css.Token) Value {
	if len(tokens) == 0 {
		return nil
	}
	v := make(Value, 0, len(tokens))
	for _, t := range tokens {
		v = append(v, Token{Type: t.TokenType, Data: string(t.Data)})
	}
	return v
}

// Import returns target and media query list of @import rule.
// Handles: @import "url"; @import url("url"); @import url(url);
func (r *Rule) Import() (href, media string, ok bool) {
	if !r.IsAt("import") {
		return "", "", false
	}
	for i, t := range r.Prelude {
		switch t.Type {
		case css.StringToken:
			href = unquote(t.Data)
		case css.URLToken:
			// url(something), the token data is the full url(...) string
			s := strings.TrimSuffix(strings.TrimPrefix(t.Data, "url("), ")")
			href = unquote(strings.TrimSpace(s))
		default:
			continue
		}
		return href, r.Prelude[i+1:].String(), len(href) > 0
	}
	return "", "", false
}

// Imports returns targets of top level @import rules in order.
func (s *Stylesheet) Imports() []string {
	var out []string
	for _, r := range s.Rules {
		if href, _, ok := r.Import(); ok {
			out = append(out, href)
		}
	}
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
