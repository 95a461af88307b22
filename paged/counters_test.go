package paged

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pmx/css"
	"pmx/dom"
	"pmx/layout"
)

func TestCounters_IncrementWithoutAmount(t *testing.T) {
	doc := parseDoc(t, `<body><section id="s1"></section><section id="s2"></section><section id="s3"></section></body>`)
	job := newTestJob(t, nil)

	out := prepare(t, job, doc, `section { counter-increment: section; color: red; }`)

	if strings.Contains(out, "counter-increment") {
		t.Errorf("counter-increment should be removed from stylesheet:\n%s", out)
	}
	if !strings.Contains(out, "color: red") {
		t.Errorf("unrelated declaration lost:\n%s", out)
	}

	for i, id := range []string{"s1", "s2", "s3"} {
		el := byID(t, doc, id)
		want := []string{"1", "2", "3"}[i]
		if got := dom.GetAttr(el, "data-counter-section-value"); got != want {
			t.Errorf("#%s value = %q, want %q", id, got, want)
		}
		if got := dom.GetAttr(el, "data-counter-section-increment"); got != "1" {
			t.Errorf("#%s increment = %q, want 1", id, got)
		}
		if got := dom.GetAttr(el, "data-counter-increment"); got != "section" {
			t.Errorf("#%s data-counter-increment = %q", id, got)
		}
		rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(el)))
		if len(rules) != 1 {
			t.Fatalf("#%s has %d synthetic rules, want 1", id, len(rules))
		}
		if got := rules[0].Declaration("counter-increment").Value.String(); got != "section 1" {
			t.Errorf("#%s synthetic increment = %q, want %q", id, got, "section 1")
		}
	}
}

func TestCounters_ResetThenIncrementOnSameElement(t *testing.T) {
	doc := parseDoc(t, `<body><div id="d" class="c"></div><div id="e" class="c2"></div></body>`)
	job := newTestJob(t, nil)

	out := prepare(t, job, doc, `
.c { counter-reset: mycounter 5; counter-increment: mycounter 1; }
.c2 { counter-increment: mycounter; }
`)
	if strings.Contains(out, "counter-reset") {
		t.Errorf("reset on ordinary selector should be stripped:\n%s", out)
	}

	d := byID(t, doc, "d")
	if got := dom.GetAttr(d, "data-counter-mycounter-value"); got != "6" {
		t.Errorf("value = %q, want 6", got)
	}
	if got := dom.GetAttr(d, "data-counter-mycounter-reset"); got != "5" {
		t.Errorf("reset attribute = %q, want 5", got)
	}
	rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(d)))
	if len(rules) != 1 {
		t.Fatalf("got %d synthetic rules, want 1", len(rules))
	}
	pairs, ok := rules[0].Declaration("counter-increment").Value.Pairs()
	if !ok {
		t.Fatal("synthetic increment is not a list of pairs")
	}
	want := []css.Pair{
		{Name: "mycounter", Value: 5, Number: true}, // reset expressed as delta
		{Name: "mycounter", Value: 1, Number: true},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("synthetic increment mismatch (-want +got):\n%s", diff)
	}

	if got := dom.GetAttr(byID(t, doc, "e"), "data-counter-mycounter-value"); got != "7" {
		t.Errorf("following element value = %q, want 7", got)
	}
}

func TestCounters_ResetDeltas(t *testing.T) {
	doc := parseDoc(t, `<body>
<h2 id="h1"></h2><p id="p1"></p><p id="p2"></p>
<h2 id="h2"></h2><p id="p3"></p>
</body>`)
	job := newTestJob(t, nil)
	prepare(t, job, doc, `h2 { counter-reset: par; } p { counter-increment: par 2; }`)

	want := map[string]string{"p1": "2", "p2": "4", "p3": "2"}
	for id, v := range want {
		if got := dom.GetAttr(byID(t, doc, id), "data-counter-par-value"); got != v {
			t.Errorf("#%s value = %q, want %q", id, got, v)
		}
	}

	// first reset equals running total, nothing to adjust
	if rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(byID(t, doc, "h1")))); len(rules) != 0 {
		t.Errorf("zero delta produced %d rules", len(rules))
	}
	rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(byID(t, doc, "h2"))))
	if len(rules) != 1 {
		t.Fatalf("second reset produced %d rules, want 1", len(rules))
	}
	if got := rules[0].Declaration("counter-increment").Value.String(); got != "par -4" {
		t.Errorf("second reset delta = %q, want %q", got, "par -4")
	}
}

func TestCounters_MergeIncrementsOfSeveralCounters(t *testing.T) {
	doc := parseDoc(t, `<body><div id="d"></div></body>`)
	job := newTestJob(t, nil)
	prepare(t, job, doc, `div { counter-increment: a 1 b 2; } #d { counter-increment: c 3; }`)

	rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(byID(t, doc, "d"))))
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want one per counter", len(rules))
	}
	last := rules[len(rules)-1].Declaration("counter-increment").Value.String()
	if last != "a 1 b 2 c 3" {
		t.Errorf("merged increment = %q, want %q", last, "a 1 b 2 c 3")
	}
}

func TestCounters_ReservedNamesStayNative(t *testing.T) {
	doc := parseDoc(t, `<body><div></div></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `
div { counter-increment: page; }
p { counter-increment: target-counter-x 2; }
span { counter-increment: none; }
em { counter-increment: page 1 mine 2; }
`)
	for _, want := range []string{"counter-increment: page;", "counter-increment: target-counter-x 2;", "counter-increment: none;", "counter-increment: page 1;"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if got := job.Counters.Names(); !slices.Equal(got, []string{"mine"}) {
		t.Errorf("registered counters = %v, want [mine]", got)
	}
}

func TestCounters_MalformedDeclarationIsNoop(t *testing.T) {
	doc := parseDoc(t, `<body><div></div></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `div { counter-increment: 3; counter-reset: var(--x); }`)

	if len(job.Counters.Names()) != 0 {
		t.Errorf("malformed declarations registered counters %v", job.Counters.Names())
	}
	if !strings.Contains(out, "counter-increment: 3") || !strings.Contains(out, "counter-reset: var(--x)") {
		t.Errorf("malformed declarations should be kept as is:\n%s", out)
	}
}

func TestCounters_PageTemplateResetIsKept(t *testing.T) {
	doc := parseDoc(t, `<body></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `
@page { counter-reset: chapter 2; }
.pagedjs_page_content { counter-reset: other; }
`)
	if !strings.Contains(out, "counter-reset: chapter 2") {
		t.Errorf("@page reset should be kept:\n%s", out)
	}
	if !strings.Contains(out, "counter-reset: other") {
		t.Errorf("reset on template selector should be kept:\n%s", out)
	}
	reset := job.Counters.Counter("chapter").Resets[".pagedjs_page"]
	if reset == nil || reset.Value != 2 {
		t.Errorf("@page reset should be registered for page selector, got %+v", job.Counters.Counter("chapter").Resets)
	}
}

func TestCounters_DuplicateSelectorLastWins(t *testing.T) {
	doc := parseDoc(t, `<body><p id="p"></p></body>`)
	job := newTestJob(t, nil)
	prepare(t, job, doc, `p { counter-increment: n 2; } p { counter-increment: n 5; }`)

	counter := job.Counters.Counter("n")
	if len(counter.Increments) != 1 || counter.Increments["p"].Amount != 5 {
		t.Errorf("increments = %+v, want single p=5", counter.Increments)
	}
	if got := dom.GetAttr(byID(t, doc, "p"), "data-counter-n-value"); got != "5" {
		t.Errorf("value = %q, want 5", got)
	}
}

func TestCounters_FootnoteMarkerCompanion(t *testing.T) {
	decl := &css.Declaration{Property: "counter-reset", Value: css.ParseValue("footnote")}
	addFootnoteMarkerCounter(decl)
	addFootnoteMarkerCounter(decl)
	if got := decl.Value.String(); got != "footnote footnote-marker 0" {
		t.Errorf("value = %q, want %q", got, "footnote footnote-marker 0")
	}

	decl = &css.Declaration{Property: "counter-reset", Value: css.ParseValue("footnote 3 footnote-marker 3")}
	addFootnoteMarkerCounter(decl)
	if got := decl.Value.String(); got != "footnote 3 footnote-marker 3" {
		t.Errorf("explicit marker changed: %q", got)
	}
}

func TestCounters_FootnoteResetInjectsMarker(t *testing.T) {
	doc := parseDoc(t, `<body></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `.pagedjs_area { counter-reset: footnote; }`)

	if !strings.Contains(out, "counter-reset: footnote footnote-marker 0;") {
		t.Errorf("marker companion missing:\n%s", out)
	}
}

func TestCounters_ScopeCountersOnce(t *testing.T) {
	doc := parseDoc(t, `<body><h1></h1></body>`)
	job := newTestJob(t, nil)
	prepare(t, job, doc, `h1 { counter-increment: chapter; } .x { counter-reset: footnote; }`)

	scope := job.Sheet.RulesBySelector(".pagedjs_pages")
	if len(scope) != 1 {
		t.Fatalf("got %d scope rules, want 1", len(scope))
	}
	want := "chapter 0 pages var(--pagedjs-page-count) footnote var(--pagedjs-footnotes-count) footnote-marker var(--pagedjs-footnotes-count)"
	if got := scope[0].Declaration("counter-reset").Value.String(); got != want {
		t.Errorf("scope reset = %q, want %q", got, want)
	}

	job.Counters.ScopeCounters()
	if err := job.Counters.AfterParsed(doc); err != nil {
		t.Fatal(err)
	}
	if got := len(job.Sheet.RulesBySelector(".pagedjs_pages")); got != 1 {
		t.Errorf("scope rule inserted %d times", got)
	}
}

func TestCounters_AfterPageLayout(t *testing.T) {
	doc := parseDoc(t, `<body>
<div class="pagedjs_page" id="page" data-page-number="3">
  <div class="pagedjs_area"><h1 id="h" data-counter-page-reset="10" data-counter-footnote-reset="4"></h1></div>
</div>
</body>`)
	job := newTestJob(t, nil)
	page := &layout.Page{Element: byID(t, doc, "page")}

	if err := job.AfterPageLayout(page); err != nil {
		t.Fatalf("AfterPageLayout() error = %v", err)
	}

	rules := job.Sheet.RulesBySelector(`[data-page-number="3"]`)
	if len(rules) != 1 {
		t.Fatalf("got %d page rules, want 1", len(rules))
	}
	if got := rules[0].Declaration("counter-reset").Value.String(); got != "page 9" {
		t.Errorf("page reset = %q, want %q", got, "page 9")
	}
	rules = job.Sheet.RulesBySelector(`[data-page-number="3"] .pagedjs_area`)
	if len(rules) != 1 {
		t.Fatalf("got %d footnote rules, want 1", len(rules))
	}
	if got := rules[0].Declaration("counter-reset").Value.String(); got != "footnote 4 footnote-marker 4" {
		t.Errorf("footnote reset = %q", got)
	}
}

func TestCounters_OnContentAndDump(t *testing.T) {
	doc := parseDoc(t, `<body><h1></h1></body>`)
	job := newTestJob(t, nil)
	prepare(t, job, doc, `
h1 { counter-increment: chapter; }
h1::before { content: counter(chapter, upper-roman) ". " counters(undeclared, ".") counter(page); }
`)

	if !slices.Equal(job.Counters.referenced, []string{"chapter", "undeclared", "page"}) {
		t.Errorf("referenced = %v", job.Counters.referenced)
	}
	dump := job.Counters.Dump()
	for _, want := range []string{"counter chapter", "increments:", "h1 = 1", "referenced chapter page undeclared"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump does not contain %q:\n%s", want, dump)
		}
	}
}

func TestCounters_PseudoElementRuleStaysNative(t *testing.T) {
	doc := parseDoc(t, `<body><p></p></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `p::before { counter-increment: deco; }`)

	if !strings.Contains(out, "counter-increment: deco") {
		t.Errorf("increment on generated content should be kept:\n%s", out)
	}
	if job.Counters.Counter("deco") != nil {
		t.Error("increment on generated content should not be registered")
	}
}

func TestCounters_GroupWithPseudoElement(t *testing.T) {
	doc := parseDoc(t, `<body><h1 id="h"></h1></body>`)
	job := newTestJob(t, nil)
	out := prepare(t, job, doc, `h1, h1::before { counter-increment: chap; }`)

	if strings.Contains(out, "counter-increment") {
		t.Errorf("increment should be handled for plain selectors:\n%s", out)
	}
	counter := job.Counters.Counter("chap")
	if counter == nil {
		t.Fatal("counter was not registered")
	}
	if diff := cmp.Diff([]string{"h1"}, slices.Sorted(maps.Keys(counter.Increments))); diff != "" {
		t.Errorf("increment selectors mismatch (-want +got):\n%s", diff)
	}

	h := byID(t, doc, "h")
	if got := dom.GetAttr(h, "data-counter-chap-value"); got != "1" {
		t.Errorf("value = %q, want 1", got)
	}
	rules := job.Sheet.RulesBySelector(elementSelector(dom.Ref(h)))
	if len(rules) != 1 {
		t.Fatalf("got %d synthetic rules, want 1", len(rules))
	}
	if got := rules[0].Declaration("counter-increment").Value.String(); got != "chap 1" {
		t.Errorf("synthetic increment = %q, want %q", got, "chap 1")
	}
}

func TestCounters_AfterPageLayoutWithoutNumber(t *testing.T) {
	doc := parseDoc(t, `<body>
<div class="pagedjs_page" id="reset"><h1 data-counter-page-reset="2"></h1></div>
<div class="pagedjs_page" id="plain"><h1></h1></div>
<div class="pagedjs_page" id="bad" data-page-number="x"><h1 data-counter-footnote-reset="1"></h1></div>
</body>`)
	job := newTestJob(t, nil)

	for _, id := range []string{"reset", "bad"} {
		err := job.AfterPageLayout(&layout.Page{Element: byID(t, doc, id)})
		if !errors.Is(err, ErrTemplate) {
			t.Errorf("#%s: error = %v, want ErrTemplate", id, err)
		}
	}
	if err := job.AfterPageLayout(&layout.Page{Element: byID(t, doc, "plain")}); err != nil {
		t.Errorf("page without resets: error = %v", err)
	}
	if rules := job.Sheet.RulesBySelector(`[data-page-number="0"]`); len(rules) != 0 {
		t.Errorf("rules for unknown page were inserted: %d", len(rules))
	}
}

func TestSyntheticSheetIsAppendOnly(t *testing.T) {
	doc := parseDoc(t, `<body>
<div class="pagedjs_page" id="page" data-page-number="1">
  <section data-counter-page-reset="1"></section><section></section>
</div></body>`)
	job := newTestJob(t, nil)

	var counts []int
	record := func() { counts = append(counts, job.Sheet.Len()) }

	record()
	job.Polisher().Convert([]byte(`section { counter-increment: s; counter-reset: t 2; }`), "a.css")
	record()
	if err := job.AfterParsed(doc); err != nil {
		t.Fatal(err)
	}
	record()
	before := syntheticRules(job)
	for range 2 {
		if err := job.AfterPageLayout(&layout.Page{Element: byID(t, doc, "page"), Number: 1}); err != nil {
			t.Fatal(err)
		}
		record()
	}

	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[i-1] {
			t.Fatalf("rule count decreased: %v", counts)
		}
	}
	if counts[len(counts)-1] <= counts[0] {
		t.Errorf("no rules were inserted: %v", counts)
	}
	// earlier rules are never changed
	after := syntheticRules(job)
	if diff := cmp.Diff(before, after[:len(before)]); diff != "" {
		t.Errorf("existing rules changed (-before +after):\n%s", diff)
	}
}
