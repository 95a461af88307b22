package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Compile parses selector group. Selectors with pseudo-elements are rejected,
// they never match document nodes.
func Compile(selector string) (cascadia.SelectorGroup, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("unable to compile selector %q: %w", selector, err)
	}
	return sel, nil
}

// QueryAll returns descendants of root matching selector in document order.
func QueryAll(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return cascadia.QueryAll(root, sel), nil
}

// Query returns first descendant of root matching selector or nil.
func Query(root *html.Node, selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return cascadia.Query(root, sel), nil
}

// Closest returns n or its nearest ancestor element matching selector.
func Closest(n *html.Node, selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && sel.Match(cur) {
			return cur, nil
		}
	}
	return nil, nil
}
