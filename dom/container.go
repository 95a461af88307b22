package dom

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// DefaultInlineTags lists elements which are rendered together with their
// children and therefore never own independent layout.
var DefaultInlineTags = []string{
	"a", "abbr", "acronym", "b", "bdo", "big", "br", "button", "cite", "code",
	"dfn", "em", "font", "i", "img", "input", "kbd", "label", "map", "object",
	"q", "samp", "script", "select", "span", "strike", "strong", "sub", "sup",
	"textarea", "tt", "u", "var",
	"p", "h1", "h2", "h3", "h4", "h5", "h6", "figcaption", "figure", "li",
}

// Classifier decides whether element is a layout container - something chunker
// walks into rather than rendering as a whole.
type Classifier struct {
	inline []string
}

// NewClassifier returns classifier for the given list of non-container tags,
// empty list means DefaultInlineTags.
func NewClassifier(inline []string) *Classifier {
	if len(inline) == 0 {
		inline = DefaultInlineTags
	}
	tags := make([]string, 0, len(inline))
	for _, t := range inline {
		tags = append(tags, strings.ToLower(t))
	}
	return &Classifier{inline: tags}
}

// IsContainer reports whether n fully owns independent layout.
func (c *Classifier) IsContainer(n *html.Node) bool {
	if !IsElement(n) {
		return true
	}
	if display, ok := Style(n).Get("display"); ok && display == "none" {
		return false
	}
	return !slices.Contains(c.inline, strings.ToLower(n.Data))
}
