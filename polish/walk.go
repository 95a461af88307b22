package polish

import (
	"pmx/css"
)

// Walk visits sheet rules in document order. For every style rule pseudo
// elements of the prelude are reported first, then declarations. Nested rules
// (@media content, @page margin boxes) are visited after their parent.
func (h *Hooks) Walk(sheet *css.Stylesheet) {
	h.walkRules(sheet.Rules)
}

func (h *Hooks) walkRules(rules []*css.Rule) {
	for _, rule := range rules {
		if rule.Kind == css.StyleRule {
			h.walkSelectors(rule)
		}
		if rule.Block == css.DeclarationBlock {
			h.walkDeclarations(rule)
		}
		if len(rule.Rules) > 0 {
			h.walkRules(rule.Rules)
		}
	}
}

func (h *Hooks) walkSelectors(rule *css.Rule) {
	for _, sel := range rule.Selectors {
		for i := 0; i < len(sel.Components); {
			c := sel.Components[i]
			if c.Kind != css.PseudoElementSelector {
				i++
				continue
			}
			item := &Item{}
			for _, handler := range h.handlers {
				if ph, ok := handler.(PseudoSelectorHandler); ok {
					ph.OnPseudoSelector(c, item, sel, rule)
					if item.Removed() {
						break
					}
				}
			}
			if item.Removed() {
				// handler could have inserted components, look the node up again
				for j, cur := range sel.Components {
					if cur == c {
						sel.Components = append(sel.Components[:j], sel.Components[j+1:]...)
						break
					}
				}
				continue
			}
			// skip components inserted by handlers before the next one
			for j, cur := range sel.Components {
				if cur == c {
					i = j + 1
					break
				}
			}
		}
	}
}

func (h *Hooks) walkDeclarations(rule *css.Rule) {
	for i := 0; i < len(rule.Declarations); {
		decl := rule.Declarations[i]
		item := &Item{}
		for _, handler := range h.handlers {
			if dh, ok := handler.(DeclarationHandler); ok {
				dh.OnDeclaration(decl, item, rule)
				if item.Removed() {
					break
				}
			}
		}
		if item.Removed() {
			rule.RemoveDeclaration(i)
			continue
		}
		if decl.Property == "content" {
			h.walkContent(decl, rule)
		}
		i++
	}
}

func (h *Hooks) walkContent(decl *css.Declaration, rule *css.Rule) {
	for _, fn := range decl.Value.Functions() {
		for _, handler := range h.handlers {
			if ch, ok := handler.(ContentHandler); ok {
				ch.OnContent(fn, decl, rule)
			}
		}
	}
}
