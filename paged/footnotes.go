package paged

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"pmx/css"
	"pmx/dom"
	"pmx/polish"
	"pmx/utils/debug"
)

// element attributes marking notes
const (
	attrNote           = "data-note"
	attrBreakBefore    = "data-break-before"
	attrHasNotes       = "data-has-notes"
	attrFootnoteCall   = "data-footnote-call"
	attrFootnoteMarker = "data-footnote-marker"
)

// Footnotes collects "float: footnote" rules, rewrites footnote pseudo
// elements into standard ones and moves notes into page footnote area during
// rendering.
type Footnotes struct {
	job        *Job
	log        *zap.Logger
	classifier *dom.Classifier

	selectors []string
	// pseudo elements already rewritten in rule prelude
	rewritten map[*css.Rule][]string
	states    map[string]State
}

func newFootnotes(job *Job) *Footnotes {
	return &Footnotes{
		job:        job,
		log:        job.log.Named("footnotes"),
		classifier: dom.NewClassifier(job.cfg.Footnotes.InlineTags),
		rewritten:  make(map[*css.Rule][]string),
		states:     make(map[string]State),
	}
}

// Selectors returns selectors of footnote rules in order of appearance.
func (f *Footnotes) Selectors() []string {
	return f.selectors
}

// OnDeclaration removes "float: footnote" remembering rule selector.
func (f *Footnotes) OnDeclaration(decl *css.Declaration, item *polish.Item, rule *css.Rule) {
	if decl.Property != "float" || rule.Kind != css.StyleRule {
		return
	}
	if name, ok := decl.Value.FirstIdent(); !ok || name != "footnote" {
		return
	}
	selector := rule.SelectorText()
	f.selectors = append(f.selectors, selector)
	item.Remove()
	f.log.Debug("Footnote rule collected", zap.String("selector", selector))
}

// OnPseudoSelector turns ::footnote-marker into ::before of elements tagged as
// markers and ::footnote-call into ::after of generated call elements.
func (f *Footnotes) OnPseudoSelector(pseudo *css.Component, _ *polish.Item, _ *css.Selector, rule *css.Rule) {
	kind := pseudo.Name
	switch kind {
	case "footnote-marker":
		pseudo.Name = "before"
	case "footnote-call":
		pseudo.Name = "after"
	default:
		return
	}
	for _, done := range f.rewritten[rule] {
		if done == kind {
			return
		}
	}
	f.rewritten[rule] = append(f.rewritten[rule], kind)

	for _, sel := range rule.Selectors {
		for _, class := range sel.Find(css.ClassSelector) {
			if kind == "footnote-call" {
				class.Name += f.job.cfg.Footnotes.CallClassSuffix
				continue
			}
			sel.InsertAfter(class, &css.Component{Kind: css.AttributeSelector, Args: attrFootnoteMarker})
		}
	}
}

// AfterParsed tags notes and their closest non-container ancestors, so
// renderer could find notes without walking every subtree.
func (f *Footnotes) AfterParsed(doc *html.Node) error {
	for _, selector := range f.selectors {
		notes, err := dom.QueryAll(doc, selector)
		if err != nil {
			f.log.Debug("Selector skipped", zap.Error(err))
			continue
		}
		for _, note := range notes {
			dom.SetAttr(note, attrNote, "footnote")
			dom.SetAttr(note, attrBreakBefore, "avoid")
			f.markContainer(note)
			f.states[dom.EnsureRef(note)] = Pending
		}
	}
	return nil
}

// markContainer flags last non-container ancestor before the first container,
// or the outermost ancestor if there is no container.
func (f *Footnotes) markContainer(note *html.Node) {
	var last *html.Node
	for el := range dom.Ancestors(note) {
		if f.classifier.IsContainer(el) {
			break
		}
		last = el
	}
	if last != nil {
		dom.SetAttr(last, attrHasNotes, "true")
	}
}

// Dump returns human readable state of collected footnotes.
func (f *Footnotes) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "selectors %s", strings.Join(f.selectors, " | "))
	if len(f.states) > 0 {
		states := make(map[string]string, len(f.states))
		for ref, st := range f.states {
			states[ref] = st.String()
		}
		tw.Pairs(0, "notes", states)
	}
	return tw.String()
}
