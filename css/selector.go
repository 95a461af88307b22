package css

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ComponentKind is the type of a single selector component.
type ComponentKind int

const (
	TypeSelector          ComponentKind = iota // p
	UniversalSelector                          // *
	ClassSelector                              // .name
	IDSelector                                 // #name
	AttributeSelector                          // [attr=value]
	PseudoClassSelector                        // :hover, :not(...)
	PseudoElementSelector                      // ::before
	Combinator                                 // " ", ">", "+", "~"
	RawComponent                               // anything we do not understand, kept verbatim
)

// Component is a node of a selector. Handlers may change Name (and Args) in
// place to rewrite selectors.
type Component struct {
	Kind       ComponentKind
	Name       string
	Args       string // attribute selector body or functional pseudo arguments
	Functional bool
}

// String returns CSS text of the component.
func (c *Component) String() string {
	switch c.Kind {
	case UniversalSelector:
		return "*"
	case ClassSelector:
		return "." + c.Name
	case IDSelector:
		return "#" + c.Name
	case AttributeSelector:
		return "[" + c.Args + "]"
	case PseudoClassSelector, PseudoElementSelector:
		prefix := ":"
		if c.Kind == PseudoElementSelector {
			prefix = "::"
		}
		if c.Functional {
			return prefix + c.Name + "(" + c.Args + ")"
		}
		return prefix + c.Name
	case Combinator:
		if c.Name == " " {
			return " "
		}
		return " " + c.Name + " "
	default:
		return c.Name
	}
}

// Selector is a complex selector: compound selectors joined by combinators.
type Selector struct {
	Components []*Component
}

// String returns CSS text of the selector.
func (s *Selector) String() string {
	var sb strings.Builder
	for _, c := range s.Components {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// Find returns all components of the given kind.
func (s *Selector) Find(kind ComponentKind) []*Component {
	var out []*Component
	for _, c := range s.Components {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// InsertAfter puts n right after component c. It is a no-op when c does not
// belong to the selector.
func (s *Selector) InsertAfter(c, n *Component) {
	for i, cur := range s.Components {
		if cur == c {
			s.Components = append(s.Components[:i+1], append([]*Component{n}, s.Components[i+1:]...)...)
			return
		}
	}
}

// SelectorList is a comma separated group of selectors (rule prelude).
type SelectorList []*Selector

// String returns CSS text of the selector list.
func (l SelectorList) String() string {
	parts := make([]string, 0, len(l))
	for _, s := range l {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

// ParseSelectorList parses selector text. Unknown constructs are preserved as
// raw components so the text survives a round trip.
func ParseSelectorList(text string) SelectorList {
	l := css.NewLexer(parse.NewInputString(text))
	var tokens Value
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.CommentToken {
			continue
		}
		tokens = append(tokens, Token{Type: tt, Data: string(data)})
	}
	return parseSelectorTokens(tokens)
}

func parseSelectorTokens(tokens Value) SelectorList {
	var (
		list SelectorList
		cur  = &Selector{}
	)

	last := func() *Component {
		if len(cur.Components) == 0 {
			return nil
		}
		return cur.Components[len(cur.Components)-1]
	}
	add := func(c *Component) {
		cur.Components = append(cur.Components, c)
	}
	flush := func() {
		for len(cur.Components) > 0 && last().Kind == Combinator {
			cur.Components = cur.Components[:len(cur.Components)-1]
		}
		if len(cur.Components) > 0 {
			list = append(list, cur)
		}
		cur = &Selector{}
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Type {
		case css.CommaToken:
			flush()

		case css.WhitespaceToken:
			if l := last(); l != nil && l.Kind != Combinator {
				add(&Component{Kind: Combinator, Name: " "})
			}

		case css.DelimToken:
			switch t.Data {
			case ".":
				if i+1 < len(tokens) && tokens[i+1].IsIdent() {
					add(&Component{Kind: ClassSelector, Name: tokens[i+1].Data})
					i++
				} else {
					add(&Component{Kind: RawComponent, Name: t.Data})
				}
			case "*":
				add(&Component{Kind: UniversalSelector})
			case ">", "+", "~":
				if l := last(); l != nil && l.Kind == Combinator {
					l.Name = t.Data
				} else {
					add(&Component{Kind: Combinator, Name: t.Data})
				}
			default:
				add(&Component{Kind: RawComponent, Name: t.Data})
			}

		case css.IdentToken:
			add(&Component{Kind: TypeSelector, Name: t.Data})

		case css.HashToken:
			add(&Component{Kind: IDSelector, Name: strings.TrimPrefix(t.Data, "#")})

		case css.LeftBracketToken:
			var sb strings.Builder
			for i++; i < len(tokens) && tokens[i].Type != css.RightBracketToken; i++ {
				if !tokens[i].IsSpace() {
					sb.WriteString(tokens[i].Data)
				}
			}
			add(&Component{Kind: AttributeSelector, Args: sb.String()})

		case css.ColonToken:
			kind := PseudoClassSelector
			if i+1 < len(tokens) && tokens[i+1].Type == css.ColonToken {
				kind = PseudoElementSelector
				i++
			}
			if i+1 >= len(tokens) {
				add(&Component{Kind: RawComponent, Name: t.Data})
				continue
			}
			i++
			next := tokens[i]
			switch next.Type {
			case css.IdentToken:
				add(&Component{Kind: kind, Name: strings.ToLower(next.Data)})
			case css.FunctionToken:
				args, end := collectArgs(tokens, i+1)
				i = end
				add(&Component{Kind: kind, Name: strings.ToLower(strings.TrimSuffix(next.Data, "(")), Args: args, Functional: true})
			default:
				add(&Component{Kind: RawComponent, Name: t.Data + next.Data})
			}

		default:
			add(&Component{Kind: RawComponent, Name: t.Data})
		}
	}
	flush()
	return list
}

// collectArgs gathers tokens up to the parenthesis closing a function started
// right before position start. It returns the argument text and the index of
// the closing parenthesis.
func collectArgs(tokens Value, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for ; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Type {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			if depth == 0 {
				return strings.TrimSpace(sb.String()), i
			}
			depth--
		}
		if t.IsSpace() {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(t.Data)
		}
	}
	return strings.TrimSpace(sb.String()), i
}
