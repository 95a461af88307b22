// Package layout describes what the processing core needs from a rendering
// engine: read-only geometry and resolved style of already rendered nodes.
package layout

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Rect is the border box of a rendered element in page coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

func (r Rect) Right() float64 {
	return r.Left + r.Width
}

func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// Oracle answers geometry questions about the live render tree. Answers are
// snapshots: any tree mutation may invalidate them.
type Oracle interface {
	// BoundingRect returns rendered box of the element.
	BoundingRect(n *html.Node) Rect
	// ComputedStyle returns resolved value of the property, e.g. "12px".
	ComputedStyle(n *html.Node, property string) string
}

// Page is a finished page fragment produced by chunker.
type Page struct {
	Element *html.Node
	Number  int
}

// Pixels returns integer part of a resolved length ("12.5px" -> 12). The
// second value is false when value does not start with a number.
func Pixels(value string) (int, bool) {
	value = strings.TrimSpace(value)
	end := 0
	for i, r := range value {
		if (r == '-' || r == '+') && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		end = i + 1
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
