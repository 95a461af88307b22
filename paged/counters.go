package paged

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"pmx/css"
	"pmx/dom"
	"pmx/layout"
	"pmx/polish"
	"pmx/utils/debug"
)

// Increment is counter-increment collected from a rule.
type Increment struct {
	Selector string
	Amount   int
}

// Reset is counter-reset collected from a rule.
type Reset struct {
	Selector string
	Value    int
}

// Counter accumulates rules affecting single named counter. Rules are keyed
// by selector, later rule for the same selector replaces earlier one.
type Counter struct {
	Name       string
	Increments map[string]*Increment
	Resets     map[string]*Reset

	incrementOrder []string
	resetOrder     []string
}

func newCounter(name string) *Counter {
	return &Counter{
		Name:       name,
		Increments: make(map[string]*Increment),
		Resets:     make(map[string]*Reset),
	}
}

func (c *Counter) setIncrement(inc *Increment) {
	if _, ok := c.Increments[inc.Selector]; !ok {
		c.incrementOrder = append(c.incrementOrder, inc.Selector)
	}
	c.Increments[inc.Selector] = inc
}

func (c *Counter) setReset(reset *Reset) {
	if _, ok := c.Resets[reset.Selector]; !ok {
		c.resetOrder = append(c.resetOrder, reset.Selector)
	}
	c.Resets[reset.Selector] = reset
}

// names of element attributes used to hand counter state to the renderer
const (
	attrCounterIncrement = "data-counter-increment"
	attrCounterReset     = "data-counter-reset"
)

func counterAttr(name, kind string) string {
	return "data-counter-" + name + "-" + kind
}

// counters maintained by page template itself
var builtinCounters = []string{"pages", "footnote", "footnote-marker"}

// counters handled natively, never collected from increments
func nativeIncrement(name string) bool {
	return name == "page" || name == "none" || strings.HasPrefix(name, "target-counter-")
}

// Counters emulates counters which keep counting across page fragments. Native
// counters restart in every fragment, so collected increments and resets are
// converted to per-element synthetic increments computed in document order.
type Counters struct {
	job *Job
	log *zap.Logger

	counters map[string]*Counter
	order    []string

	// counters used by counter() and counters() in content values
	referenced []string
	scoped     bool
}

func newCounters(job *Job) *Counters {
	return &Counters{
		job:      job,
		log:      job.log.Named("counters"),
		counters: make(map[string]*Counter),
	}
}

// Counter returns registered counter or nil.
func (c *Counters) Counter(name string) *Counter {
	return c.counters[name]
}

// Names returns registered counter names in order of first appearance.
func (c *Counters) Names() []string {
	return slices.Clone(c.order)
}

func (c *Counters) addCounter(name string) *Counter {
	if counter, ok := c.counters[name]; ok {
		return counter
	}
	counter := newCounter(name)
	c.counters[name] = counter
	c.order = append(c.order, name)
	return counter
}

// OnDeclaration collects counter-increment and counter-reset declarations.
func (c *Counters) OnDeclaration(decl *css.Declaration, item *polish.Item, rule *css.Rule) {
	switch decl.Property {
	case "counter-increment":
		if c.handleIncrement(decl, rule) {
			item.Remove()
		}
	case "counter-reset":
		selector, ok := c.handleReset(decl, rule)
		if ok && !strings.Contains(selector, c.job.cfg.Template.ReservedPrefix) {
			item.Remove()
		}
	}
}

// selectorFor returns selector of elements rule applies to.
func (c *Counters) selectorFor(rule *css.Rule) (string, bool) {
	if rule.IsAt("page") || (rule.Parent != nil && rule.Parent.IsAt("page")) {
		return c.job.cfg.Template.Page, true
	}
	if rule.Kind != css.StyleRule {
		return "", false
	}
	// generated content could not be tagged, leave it to the renderer unless
	// the group has plain selectors too
	plain := make(css.SelectorList, 0, len(rule.Selectors))
	for _, sel := range rule.Selectors {
		if len(sel.Find(css.PseudoElementSelector)) == 0 {
			plain = append(plain, sel)
		}
	}
	if len(plain) == 0 {
		return "", false
	}
	return plain.String(), true
}

// handleIncrement records increments and reports whether declaration is no
// longer needed. Natively handled counters are kept in declaration.
func (c *Counters) handleIncrement(decl *css.Declaration, rule *css.Rule) bool {
	pairs, ok := decl.Value.Pairs()
	if !ok || len(pairs) == 0 {
		return false
	}
	selector, ok := c.selectorFor(rule)
	if !ok {
		return false
	}

	var native []css.Pair
	for _, p := range pairs {
		if nativeIncrement(p.Name) {
			native = append(native, p)
			continue
		}
		amount := 1
		if p.Number {
			amount = p.Value
		}
		c.addCounter(p.Name).setIncrement(&Increment{Selector: selector, Amount: amount})
		c.log.Debug("Increment collected", zap.String("counter", p.Name), zap.String("selector", selector), zap.Int("amount", amount))
	}
	switch {
	case len(native) == 0:
		return true
	case len(native) < len(pairs):
		decl.Value = pairsValue(native)
	}
	return false
}

// handleReset records resets and returns selector they apply to.
func (c *Counters) handleReset(decl *css.Declaration, rule *css.Rule) (string, bool) {
	pairs, ok := decl.Value.Pairs()
	if !ok || len(pairs) == 0 {
		return "", false
	}
	selector, ok := c.selectorFor(rule)
	if !ok {
		return "", false
	}

	for _, p := range pairs {
		if p.Name == "none" {
			continue
		}
		c.addCounter(p.Name).setReset(&Reset{Selector: selector, Value: p.Value})
		c.log.Debug("Reset collected", zap.String("counter", p.Name), zap.String("selector", selector), zap.Int("value", p.Value))
		if p.Name == "footnote" {
			addFootnoteMarkerCounter(decl)
		}
	}
	return selector, true
}

// addFootnoteMarkerCounter makes markers restart together with footnotes.
func addFootnoteMarkerCounter(decl *css.Declaration) {
	if slices.Contains(decl.Value.Idents(), "footnote-marker") {
		return
	}
	decl.Value = decl.Value.Append(css.Ident("footnote-marker"), css.Number(0))
}

// OnContent remembers counters used in generated content.
func (c *Counters) OnContent(fn *css.Function, _ *css.Declaration, _ *css.Rule) {
	if fn.Name != "counter" && fn.Name != "counters" {
		return
	}
	if name, ok := fn.FirstArgIdent(); ok && !slices.Contains(c.referenced, name) {
		c.referenced = append(c.referenced, name)
	}
}

// AfterParsed tags elements and emits synthetic increments for all collected
// counters, then scopes counters to page container.
func (c *Counters) AfterParsed(doc *html.Node) error {
	for _, name := range c.order {
		counter := c.counters[name]
		c.processIncrements(doc, counter)
		c.processResets(doc, counter)
		c.addCounterValues(doc, counter)
	}
	c.ScopeCounters()
	c.reportUnknown()
	return nil
}

func (c *Counters) query(doc *html.Node, selector string) []*html.Node {
	elements, err := dom.QueryAll(doc, selector)
	if err != nil {
		c.log.Debug("Selector skipped", zap.Error(err))
		return nil
	}
	return elements
}

func (c *Counters) processIncrements(doc *html.Node, counter *Counter) {
	attr := counterAttr(counter.Name, "increment")
	for _, selector := range counter.incrementOrder {
		inc := counter.Increments[selector]
		for _, el := range c.query(doc, selector) {
			dom.SetAttr(el, attr, strconv.Itoa(inc.Amount))
			dom.SetAttr(el, attrCounterIncrement, counter.Name)
		}
	}
}

func (c *Counters) processResets(doc *html.Node, counter *Counter) {
	attr := counterAttr(counter.Name, "reset")
	for _, selector := range counter.resetOrder {
		reset := counter.Resets[selector]
		for _, el := range c.query(doc, selector) {
			dom.SetAttr(el, attr, strconv.Itoa(reset.Value))
			dom.SetAttr(el, attrCounterReset, counter.Name)
		}
	}
}

// addCounterValues walks tagged elements in document order keeping running
// total. Native counter-increment is relative only, so reset is expressed as
// difference between target and current value.
func (c *Counters) addCounterValues(doc *html.Node, counter *Counter) {
	resetAttr := counterAttr(counter.Name, "reset")
	incrementAttr := counterAttr(counter.Name, "increment")
	valueAttr := counterAttr(counter.Name, "value")

	var total int
	for _, el := range c.query(doc, fmt.Sprintf("[%s], [%s]", resetAttr, incrementAttr)) {
		var increments []css.Pair
		if v, ok := dom.Attr(el, resetAttr); ok {
			if value, err := strconv.Atoi(v); err == nil {
				if delta := value - total; delta != 0 {
					increments = append(increments, css.Pair{Name: counter.Name, Value: delta, Number: true})
				}
				total = value
			}
		}
		if v, ok := dom.Attr(el, incrementAttr); ok {
			if amount, err := strconv.Atoi(v); err == nil {
				total += amount
				dom.SetAttr(el, valueAttr, strconv.Itoa(total))
				if amount != 0 {
					increments = append(increments, css.Pair{Name: counter.Name, Value: amount, Number: true})
				}
			}
		}
		if len(increments) > 0 {
			c.incrementCounterForElement(el, increments)
		}
	}
}

func elementSelector(ref string) string {
	return fmt.Sprintf(`[%s="%s"]:not([%s])`, dom.AttrRef, ref, dom.AttrSplitFrom)
}

// incrementCounterForElement inserts synthetic counter-increment for element.
// Most recent rule for the same element already carries increments of all
// counters processed before, those are kept.
func (c *Counters) incrementCounterForElement(el *html.Node, increments []css.Pair) {
	selector := elementSelector(dom.EnsureRef(el))

	var merged []css.Pair
	if prev := c.job.Sheet.RulesBySelector(selector); len(prev) > 0 {
		if decl := prev[len(prev)-1].Declaration("counter-increment"); decl != nil {
			if pairs, ok := decl.Value.Pairs(); ok {
				merged = pairs
			}
		}
	}
	merged = append(merged, increments...)
	c.job.insertRule(fmt.Sprintf("%s { counter-increment: %s; }", selector, pairsValue(merged)))
}

// ScopeCounters inserts single rule making all counters live on page
// container level, so they are shared by all pages. Subsequent calls do
// nothing.
func (c *Counters) ScopeCounters() {
	if c.scoped {
		return
	}
	c.scoped = true

	var resets []string
	for _, name := range c.order {
		if slices.Contains(builtinCounters, name) {
			continue
		}
		resets = append(resets, name+" 0")
	}
	resets = append(resets,
		"pages var(--pagedjs-page-count)",
		"footnote var(--pagedjs-footnotes-count)",
		"footnote-marker var(--pagedjs-footnotes-count)",
	)
	c.job.insertRule(fmt.Sprintf("%s { counter-reset: %s; }", c.job.cfg.Template.Pages, strings.Join(resets, " ")))
}

func (c *Counters) reportUnknown() {
	for _, name := range c.referenced {
		if _, ok := c.counters[name]; ok || name == "page" || name == "list-item" || slices.Contains(builtinCounters, name) {
			continue
		}
		c.log.Debug("Counter used in content is never reset or incremented", zap.String("counter", name))
	}
}

// AfterPageLayout restarts page and footnote counters on pages holding
// elements which reset them.
func (c *Counters) AfterPageLayout(page *layout.Page) error {
	pageResets := c.query(page.Element, "["+counterAttr("page", "reset")+"]")
	noteResets := c.query(page.Element, "["+counterAttr("footnote", "reset")+"]")
	if len(pageResets) == 0 && len(noteResets) == 0 {
		return nil
	}

	number := page.Number
	if number == 0 {
		var err error
		if number, err = strconv.Atoi(dom.GetAttr(page.Element, "data-page-number")); err != nil || number <= 0 {
			return fmt.Errorf("%w: page without number has counter resets", ErrTemplate)
		}
	}

	for _, el := range pageResets {
		value, err := strconv.Atoi(dom.GetAttr(el, counterAttr("page", "reset")))
		if err != nil {
			continue
		}
		// page counter is incremented by the page itself
		c.job.insertRule(fmt.Sprintf(`[data-page-number="%d"] { counter-reset: page %d; }`, number, value-1))
	}

	for _, el := range noteResets {
		value, err := strconv.Atoi(dom.GetAttr(el, counterAttr("footnote", "reset")))
		if err != nil {
			continue
		}
		c.job.insertRule(fmt.Sprintf(`[data-page-number="%d"] %s { counter-reset: footnote %d footnote-marker %d; }`,
			number, c.job.cfg.Template.Area, value, value))
	}
	return nil
}

// Dump returns human readable state of the registry.
func (c *Counters) Dump() string {
	tw := debug.NewTreeWriter()
	for _, name := range c.order {
		counter := c.counters[name]
		tw.Line(0, "counter %s", name)
		if len(counter.Increments) > 0 {
			amounts := make(map[string]string, len(counter.Increments))
			for sel, inc := range counter.Increments {
				amounts[sel] = strconv.Itoa(inc.Amount)
			}
			tw.Pairs(1, "increments", amounts)
		}
		if len(counter.Resets) > 0 {
			values := make(map[string]string, len(counter.Resets))
			for sel, reset := range counter.Resets {
				values[sel] = strconv.Itoa(reset.Value)
			}
			tw.Pairs(1, "resets", values)
		}
	}
	if len(c.referenced) > 0 {
		refs := slices.Clone(c.referenced)
		sort.Sort(natural.StringSlice(refs))
		tw.Line(0, "referenced %s", strings.Join(refs, " "))
	}
	return tw.String()
}

// pairsValue builds counter-increment or counter-reset value.
func pairsValue(pairs []css.Pair) css.Value {
	var v css.Value
	for _, p := range pairs {
		v = v.Append(css.Ident(p.Name))
		if p.Number {
			v = v.Append(css.Number(p.Value))
		}
	}
	return v
}
