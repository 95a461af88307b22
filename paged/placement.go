package paged

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"pmx/dom"
	"pmx/layout"
)

// ErrTemplate is returned when page template lacks elements notes are moved
// into. Dropping a note silently is worse than failing.
var ErrTemplate = errors.New("page template is incomplete")

// State of a note in the current render pass.
type State int

const (
	Pending   State = iota // discovered, not evaluated yet
	Evaluated              // geometry checked
	Placed                 // moved into footnote area
	Deferred               // left for the next page
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Evaluated:
		return "evaluated"
	case Placed:
		return "placed"
	case Deferred:
		return "deferred"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// State returns state of the note with given reference.
func (f *Footnotes) State(ref string) State {
	return f.states[ref]
}

// RenderNode places notes found in the rendered node.
func (f *Footnotes) RenderNode(node *html.Node) error {
	if !dom.IsElement(node) || !dom.SupportsAttributes(node) {
		return nil
	}

	var notes []*html.Node
	switch {
	case dom.GetAttr(node, attrNote) == "footnote":
		notes = []*html.Node{node}
	case dom.HasAttr(node, attrHasNotes):
		found, err := dom.QueryAll(node, "["+attrNote+`="footnote"]`)
		if err != nil {
			return err
		}
		notes = found
	}
	if len(notes) == 0 {
		return nil
	}
	return f.findVisibleFootnotes(notes, node)
}

func (f *Footnotes) findVisibleFootnotes(notes []*html.Node, node *html.Node) error {
	// notes already moved are rendered again as part of footnote area
	notes = slices.DeleteFunc(notes, func(n *html.Node) bool {
		return f.states[dom.Ref(n)] == Placed
	})
	if len(notes) == 0 {
		return nil
	}
	if f.job.Oracle == nil {
		return errors.New("footnotes could not be placed without layout oracle")
	}
	sel := f.job.cfg.Template.PageContent
	area, err := dom.Closest(node, sel)
	if err != nil {
		return err
	}
	if area == nil {
		return fmt.Errorf("%w: no page content area (%s) around rendered node", ErrTemplate, sel)
	}
	right := f.job.Oracle.BoundingRect(area).Right()

	for _, note := range notes {
		ref := dom.EnsureRef(note)
		f.states[ref] = Evaluated
		if f.job.Oracle.BoundingRect(note).Left >= right {
			// note starts past this page, it is rendered again later
			f.states[ref] = Deferred
			f.log.Debug("Footnote deferred, not on this page", zap.String("ref", ref))
			continue
		}
		if err := f.moveFootnote(note, ref); err != nil {
			return err
		}
	}
	return nil
}

// moveFootnote moves note into footnote area leaving call in its place. When
// grown footnote area would push the call off the page note is put back and
// area is enlarged to move the call to the next page.
func (f *Footnotes) moveFootnote(note *html.Node, ref string) error {
	tmpl := f.job.cfg.Template

	pageArea, err := dom.Closest(note, tmpl.Area)
	if err != nil {
		return err
	}
	if pageArea == nil {
		return fmt.Errorf("%w: no page area (%s) around note %s", ErrTemplate, tmpl.Area, ref)
	}
	noteArea, err := dom.Query(pageArea, tmpl.FootnoteArea)
	if err != nil {
		return err
	}
	if noteArea == nil {
		return fmt.Errorf("%w: no footnote area (%s) on page of note %s", ErrTemplate, tmpl.FootnoteArea, ref)
	}
	noteContent, err := dom.Query(noteArea, tmpl.FootnoteContent)
	if err != nil {
		return err
	}
	if noteContent == nil {
		return fmt.Errorf("%w: no footnote content (%s) on page of note %s", ErrTemplate, tmpl.FootnoteContent, ref)
	}
	if note.Parent == nil {
		return fmt.Errorf("note %s is detached", ref)
	}

	call := f.createFootnoteCall(note, ref)
	dom.AppendChild(noteContent, note)
	dom.SetAttr(note, attrFootnoteMarker, ref)

	// measure everything at once, before style changes
	oracle := f.job.Oracle
	contentRect := oracle.BoundingRect(noteContent)
	height := contentRect.Height
	if m, ok := layout.Pixels(oracle.ComputedStyle(noteContent, "margin-top")); ok {
		height += float64(m)
	}
	if m, ok := layout.Pixels(oracle.ComputedStyle(noteContent, "margin-bottom")); ok {
		height += float64(m)
	}
	callRect := oracle.BoundingRect(call)
	areaRect := oracle.BoundingRect(noteArea)
	contentDelta := contentRect.Height - areaRect.Height
	noteDelta := areaRect.Top - callRect.Top

	property := f.job.cfg.Footnotes.HeightProperty
	if callRect.Bottom() < areaRect.Top-contentDelta {
		dom.SetStyleProperty(pageArea, property, pixels(height))
		dom.AddClass(noteContent, "hasNotes")
		f.states[ref] = Placed
		f.log.Debug("Footnote placed", zap.String("ref", ref), zap.Float64("height", height))
		return nil
	}

	dom.SetStyleProperty(pageArea, property, pixels(areaRect.Height+noteDelta))
	dom.RemoveAttr(note, attrFootnoteMarker)
	dom.ReplaceWith(call, note)
	f.states[ref] = Deferred
	f.log.Debug("Footnote deferred, call would be pushed off the page", zap.String("ref", ref))
	return nil
}

// createFootnoteCall inserts call element right before note.
func (f *Footnotes) createFootnoteCall(note *html.Node, ref string) *html.Node {
	call := dom.NewElement("span")
	for _, class := range dom.Classes(note) {
		dom.AddClass(call, class+f.job.cfg.Footnotes.CallClassSuffix)
	}
	dom.SetAttr(call, attrFootnoteCall, ref)
	dom.SetAttr(call, dom.AttrRef, ref)
	dom.SetAttr(call, counterAttr("footnote", "increment"), "1")
	dom.InsertBefore(note, call)
	return call
}

func pixels(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
