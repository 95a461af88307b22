// Package polish runs parsed stylesheets through registered handlers, letting
// them extract intents and rewrite rules before the text reaches renderer.
package polish

import (
	"fmt"

	"golang.org/x/net/html"

	"pmx/css"
	"pmx/layout"
)

// Handler is anything registered with Hooks. A handler implements any subset
// of the optional interfaces below, everything else defaults to no-op.
type Handler any

// DeclarationHandler is called for every declaration of every rule.
type DeclarationHandler interface {
	OnDeclaration(decl *css.Declaration, item *Item, rule *css.Rule)
}

// PseudoSelectorHandler is called for every pseudo-element of a rule prelude.
type PseudoSelectorHandler interface {
	OnPseudoSelector(pseudo *css.Component, item *Item, sel *css.Selector, rule *css.Rule)
}

// ContentHandler is called for every function used in "content" values.
type ContentHandler interface {
	OnContent(fn *css.Function, decl *css.Declaration, rule *css.Rule)
}

// AfterParsedHandler is called once, when all stylesheets have been walked
// and document tree is parsed.
type AfterParsedHandler interface {
	AfterParsed(doc *html.Node) error
}

// RenderNodeHandler is called by chunker for every rendered node.
type RenderNodeHandler interface {
	RenderNode(node *html.Node) error
}

// AfterPageLayoutHandler is called by chunker when page layout is final.
type AfterPageLayoutHandler interface {
	AfterPageLayout(page *layout.Page) error
}

// Item is the position of visited node in its mutable sibling list.
type Item struct {
	removed bool
}

// Remove deletes visited node from its list once all handlers are done with
// it. Handlers registered later do not see removed nodes.
func (i *Item) Remove() {
	i.removed = true
}

// Removed reports whether node has been deleted.
func (i *Item) Removed() bool {
	return i.removed
}

// Hooks keeps handlers in registration order, which is also invocation order.
type Hooks struct {
	handlers []Handler
}

// NewHooks creates hooks with given handlers.
func NewHooks(handlers ...Handler) *Hooks {
	return &Hooks{handlers: handlers}
}

// AfterParsed notifies handlers that parsing is complete.
func (h *Hooks) AfterParsed(doc *html.Node) error {
	for _, handler := range h.handlers {
		if ah, ok := handler.(AfterParsedHandler); ok {
			if err := ah.AfterParsed(doc); err != nil {
				return fmt.Errorf("after parsed: %w", err)
			}
		}
	}
	return nil
}

// RenderNode notifies handlers that node has been rendered.
func (h *Hooks) RenderNode(node *html.Node) error {
	for _, handler := range h.handlers {
		if rh, ok := handler.(RenderNodeHandler); ok {
			if err := rh.RenderNode(node); err != nil {
				return fmt.Errorf("render node: %w", err)
			}
		}
	}
	return nil
}

// AfterPageLayout notifies handlers that page is laid out.
func (h *Hooks) AfterPageLayout(page *layout.Page) error {
	for _, handler := range h.handlers {
		if ph, ok := handler.(AfterPageLayoutHandler); ok {
			if err := ph.AfterPageLayout(page); err != nil {
				return fmt.Errorf("after page %d layout: %w", page.Number, err)
			}
		}
	}
	return nil
}
