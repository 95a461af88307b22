package paged

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"pmx/dom"
	"pmx/layout"
)

func parseDoc(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}

func newTestJob(t *testing.T, oracle layout.Oracle) *Job {
	t.Helper()
	return NewJob(nil, oracle, zaptest.NewLogger(t))
}

// prepare converts stylesheet and runs parse phase hooks.
func prepare(t *testing.T, job *Job, doc *html.Node, stylesheet string) string {
	t.Helper()
	out := job.Polisher().Convert([]byte(stylesheet), "test.css")
	if err := job.AfterParsed(doc); err != nil {
		t.Fatalf("AfterParsed() error = %v", err)
	}
	return out
}

func byID(t *testing.T, doc *html.Node, id string) *html.Node {
	t.Helper()
	n, err := dom.Query(doc, "#"+id)
	if err != nil || n == nil {
		t.Fatalf("element #%s not found (%v)", id, err)
	}
	return n
}

// syntheticRules returns text of all inserted rules.
func syntheticRules(job *Job) []string {
	var out []string
	for _, r := range job.Sheet.Rules() {
		out = append(out, r.String())
	}
	return out
}

// fakeOracle serves geometry from callbacks so tests could compute it from
// the live tree.
type fakeOracle struct {
	rect  func(n *html.Node) layout.Rect
	style func(n *html.Node, property string) string
}

func (o *fakeOracle) BoundingRect(n *html.Node) layout.Rect {
	if o.rect == nil {
		return layout.Rect{}
	}
	return o.rect(n)
}

func (o *fakeOracle) ComputedStyle(n *html.Node, property string) string {
	if o.style == nil {
		return ""
	}
	return o.style(n, property)
}
