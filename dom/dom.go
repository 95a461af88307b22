// Package dom contains helpers to inspect and mutate parsed document tree.
// Nodes are golang.org/x/net/html nodes: children are owned by their parent,
// Parent pointers are only used to walk up.
package dom

import (
	"iter"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pmx/css"
)

// Attributes used to carry state between processing phases.
const (
	AttrRef       = "data-ref"
	AttrSplitFrom = "data-split-from"
)

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// SupportsAttributes reports whether n is an HTML element we may tag.
// Foreign content (svg, math) is left alone.
func SupportsAttributes(n *html.Node) bool {
	return IsElement(n) && n.Namespace == ""
}

// Attr returns attribute value and whether it is present.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr returns attribute value or empty string.
func GetAttr(n *html.Node, name string) string {
	v, _ := Attr(n, name)
	return v
}

// HasAttr reports whether attribute is present.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets (or replaces) attribute value.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes attribute if present.
func RemoveAttr(n *html.Node, name string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == name
	})
}

// Classes returns element class list.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

// HasClass reports whether element has the class.
func HasClass(n *html.Node, class string) bool {
	return slices.Contains(Classes(n), class)
}

// AddClass appends class to the element class list unless already there.
func AddClass(n *html.Node, class string) {
	classes := Classes(n)
	if slices.Contains(classes, class) {
		return
	}
	SetAttr(n, "class", strings.Join(append(classes, class), " "))
}

// NewElement creates detached HTML element.
func NewElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// Detach removes node from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// AppendChild moves n to the end of parent children.
func AppendChild(parent, n *html.Node) {
	Detach(n)
	parent.AppendChild(n)
}

// InsertBefore moves n right before ref. ref must have a parent.
func InsertBefore(ref, n *html.Node) {
	Detach(n)
	ref.Parent.InsertBefore(n, ref)
}

// ReplaceWith puts n in place of old, old becomes detached.
func ReplaceWith(old, n *html.Node) {
	if old == n {
		return
	}
	Detach(n)
	parent := old.Parent
	parent.InsertBefore(n, old)
	parent.RemoveChild(old)
}

// Elements iterates over element descendants of root in document order.
// Root itself is not included.
func Elements(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var walk func(*html.Node) bool
		walk = func(n *html.Node) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && !yield(c) {
					return false
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(root)
	}
}

// Ancestors iterates over parent elements of n, closest first.
func Ancestors(n *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type != html.ElementNode {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Ref returns stable reference id of the element.
func Ref(n *html.Node) string {
	return GetAttr(n, AttrRef)
}

// EnsureRef returns element reference id assigning a new one if necessary.
func EnsureRef(n *html.Node) string {
	if ref := Ref(n); ref != "" {
		return ref
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ref := id.String()
	SetAttr(n, AttrRef, ref)
	return ref
}

// AssignRefs makes sure every element under root carries a reference id and
// returns number of ids assigned.
func AssignRefs(root *html.Node) int {
	var count int
	for n := range Elements(root) {
		if !SupportsAttributes(n) || HasAttr(n, AttrRef) {
			continue
		}
		EnsureRef(n)
		count++
	}
	return count
}

// Style returns parsed element style attribute.
func Style(n *html.Node) *css.InlineStyle {
	return css.ParseInlineStyle(GetAttr(n, "style"))
}

// SetStyleProperty sets single property (custom properties included) in the
// element style attribute keeping the rest intact.
func SetStyleProperty(n *html.Node, property, value string) {
	style := Style(n)
	style.Set(property, value)
	SetAttr(n, "style", style.String())
}

// Text returns concatenated text content of the node.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
