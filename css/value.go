package css

import (
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Token is a single lexical unit of a property value or @-rule prelude.
type Token struct {
	Type css.TokenType
	Data string
}

// Ident makes identifier token.
func Ident(name string) Token {
	return Token{Type: css.IdentToken, Data: name}
}

// Number makes integer number token.
func Number(n int) Token {
	return Token{Type: css.NumberToken, Data: strconv.Itoa(n)}
}

// Space makes single whitespace token.
func Space() Token {
	return Token{Type: css.WhitespaceToken, Data: " "}
}

// IsSpace reports whether token is whitespace.
func (t Token) IsSpace() bool {
	return t.Type == css.WhitespaceToken
}

// IsIdent reports whether token is an identifier.
func (t Token) IsIdent() bool {
	return t.Type == css.IdentToken
}

// Int returns integer value of a number token.
func (t Token) Int() (int, bool) {
	if t.Type != css.NumberToken {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(t.Data, "+"))
	if err != nil {
		// 1.0 and friends
		f, ferr := strconv.ParseFloat(t.Data, 64)
		if ferr != nil {
			return 0, false
		}
		return int(f), true
	}
	return n, true
}

// Value is the token list of a property value. Whitespace tokens are kept so
// the value could be written back exactly.
type Value []Token

// String returns CSS text of the value.
func (v Value) String() string {
	var sb strings.Builder
	for _, t := range v {
		sb.WriteString(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// Significant returns value tokens with whitespace removed.
func (v Value) Significant() Value {
	out := make(Value, 0, len(v))
	for _, t := range v {
		if !t.IsSpace() {
			out = append(out, t)
		}
	}
	return out
}

// FirstIdent returns the first significant token if it is an identifier.
func (v Value) FirstIdent() (string, bool) {
	sig := v.Significant()
	if len(sig) == 0 || !sig[0].IsIdent() {
		return "", false
	}
	return sig[0].Data, true
}

// Idents returns names of all identifiers in the value, including ones used
// as function arguments.
func (v Value) Idents() []string {
	var names []string
	for _, t := range v {
		if t.IsIdent() {
			names = append(names, t.Data)
		}
	}
	return names
}

// Append adds tokens separating them from existing content with whitespace.
func (v Value) Append(tokens ...Token) Value {
	for _, t := range tokens {
		if len(v) > 0 && !t.IsSpace() && !v[len(v)-1].IsSpace() {
			v = append(v, Space())
		}
		v = append(v, t)
	}
	return v
}

// Pair is "name [integer]" element of counter-reset, counter-increment and
// counter-set values.
type Pair struct {
	Name   string
	Value  int
	Number bool // explicit integer was present
}

// Pairs splits value into counter name and integer pairs. Anything other than
// identifiers and numbers (var(), calc()...) makes the value unsupported.
func (v Value) Pairs() ([]Pair, bool) {
	var pairs []Pair
	for _, t := range v.Significant() {
		switch {
		case t.IsIdent():
			pairs = append(pairs, Pair{Name: t.Data})
		case t.Type == css.NumberToken:
			n, ok := t.Int()
			if !ok || len(pairs) == 0 || pairs[len(pairs)-1].Number {
				return nil, false
			}
			pairs[len(pairs)-1].Value, pairs[len(pairs)-1].Number = n, true
		default:
			return nil, false
		}
	}
	return pairs, true
}

// Function is a function call found in a property value, e.g. counter(x, upper-roman).
type Function struct {
	Name string // lower case, without "("
	Args []Value
}

// Functions returns top-level and nested function calls of the value in order
// of appearance. Arguments of outer functions include nested calls verbatim.
func (v Value) Functions() []*Function {
	var (
		funcs []*Function
		stack []*Function // nil marks bare parenthesis
	)
	for _, t := range v {
		switch {
		case t.Type == css.FunctionToken:
			appendArg(stack, t)
			f := &Function{Name: strings.ToLower(strings.TrimSuffix(t.Data, "(")), Args: []Value{nil}}
			funcs = append(funcs, f)
			stack = append(stack, f)
		case t.Type == css.LeftParenthesisToken:
			appendArg(stack, t)
			stack = append(stack, nil)
		case t.Type == css.RightParenthesisToken && len(stack) > 0:
			stack = stack[:len(stack)-1]
			appendArg(stack, t)
		case t.Type == css.CommaToken && len(stack) > 0 && stack[len(stack)-1] != nil:
			f := stack[len(stack)-1]
			f.Args = append(f.Args, nil)
			appendArg(stack[:len(stack)-1], t)
		default:
			appendArg(stack, t)
		}
	}
	return funcs
}

func appendArg(stack []*Function, t Token) {
	for _, f := range stack {
		if f != nil {
			f.Args[len(f.Args)-1] = append(f.Args[len(f.Args)-1], t)
		}
	}
}

// FirstArgIdent returns identifier from the first function argument.
func (f *Function) FirstArgIdent() (string, bool) {
	if len(f.Args) == 0 {
		return "", false
	}
	return f.Args[0].FirstIdent()
}
