package css

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestParser_StyleRules(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))
	sheet := p.Parse([]byte(`
/* comment */
h1, .title > span { color: red; margin: 0 auto !important; }
.fn { float: footnote; --gap: 1em 2em; }
`), "test.css")

	if len(sheet.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(sheet.Rules))
	}

	r := sheet.Rules[0]
	if r.Kind != StyleRule || r.Block != DeclarationBlock {
		t.Errorf("unexpected rule kind %v / block %v", r.Kind, r.Block)
	}
	if got := r.SelectorText(); got != "h1, .title > span" {
		t.Errorf("SelectorText() = %q", got)
	}
	if len(r.Declarations) != 2 {
		t.Fatalf("got %d declarations, want 2", len(r.Declarations))
	}
	if d := r.Declarations[1]; d.Property != "margin" || !d.Important || d.Value.String() != "0 auto" {
		t.Errorf("margin declaration = %+v (%q)", d, d.Value.String())
	}

	custom := sheet.Rules[1].Declaration("--gap")
	if custom == nil || !custom.Custom {
		t.Fatal("custom property not parsed")
	}
	if got := custom.Value.String(); got != "1em 2em" {
		t.Errorf("custom property value = %q", got)
	}
	if d := sheet.Rules[1].Declaration("float"); d == nil || d.Value.String() != "footnote" {
		t.Errorf("float declaration = %+v", d)
	}
}

func TestParser_AtRules(t *testing.T) {
	p := NewParser(nil)
	sheet := p.Parse([]byte(`
@import url("base.css");
@media print { .a { color: red; } .b { color: blue; } }
@page :first { margin: 1in; @top-center { content: counter(page); } }
@font-face { font-family: X; }
`))

	if len(sheet.Rules) != 4 {
		t.Fatalf("got %d rules, want 4", len(sheet.Rules))
	}

	imp := sheet.Rules[0]
	if !imp.IsAt("import") || imp.Block != NoBlock {
		t.Errorf("@import = %+v", imp)
	}

	media := sheet.Rules[1]
	if !media.IsAt("media") || media.Block != RuleBlock || len(media.Rules) != 2 {
		t.Fatalf("@media = %+v", media)
	}
	if media.Rules[0].Parent != media {
		t.Error("nested rule parent not set")
	}

	page := sheet.Rules[2]
	if !page.IsAt("page") || page.Block != DeclarationBlock {
		t.Fatalf("@page = %+v", page)
	}
	if page.Declaration("margin") == nil {
		t.Error("@page declarations lost")
	}
	if len(page.Rules) != 1 || !page.Rules[0].IsAt("top-center") {
		t.Fatalf("margin box not parsed: %+v", page.Rules)
	}
	box := page.Rules[0]
	if box.Block != DeclarationBlock || box.Declaration("content") == nil {
		t.Errorf("margin box declarations = %+v", box.Declarations)
	}
	if box.Parent != page {
		t.Error("margin box parent not set")
	}

	if ff := sheet.Rules[3]; !ff.IsAt("font-face") || ff.Declaration("font-family") == nil {
		t.Errorf("@font-face = %+v", ff)
	}
}

func TestParser_RoundTrip(t *testing.T) {
	p := NewParser(nil)
	sheet := p.Parse([]byte(`.a{color:red}@media print{.b{margin:0}}`))
	out := sheet.String()

	want := ".a {\n  color: red;\n}\n\n@media print {\n  .b {\n    margin: 0;\n  }\n}\n"
	if out != want {
		t.Errorf("String() = %q, want %q", out, want)
	}

	again := p.Parse([]byte(out)).String()
	if again != out {
		t.Errorf("second round trip differs:\n%s\nvs\n%s", again, out)
	}
}

func TestParser_InlineStyle(t *testing.T) {
	decls := NewParser(nil).ParseInline("display: none; --pagedjs-footnotes-height: 35px")
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Property != "display" || decls[0].Value.String() != "none" {
		t.Errorf("first declaration = %s", decls[0])
	}
	if !decls[1].Custom || decls[1].Value.String() != "35px" {
		t.Errorf("second declaration = %s", decls[1])
	}
}

func TestStylesheet_RulesBySelector(t *testing.T) {
	sheet := NewParser(nil).Parse([]byte(`
[data-ref="a"]:not([data-split-from]) { counter-increment: x 1; }
.b { color: red; }
[data-ref="a"]:not([data-split-from]) { counter-increment: x 1 y 2; }
`))

	got := sheet.RulesBySelector(`[data-ref="a"]:not([data-split-from])`)
	if len(got) != 2 {
		t.Fatalf("got %d rules, want 2", len(got))
	}
	if got[1].Declaration("counter-increment").Value.String() != "x 1 y 2" {
		t.Error("rules should be returned in sheet order")
	}
	if n := len(sheet.RulesBySelector(".b")); n != 1 {
		t.Errorf(".b found %d times", n)
	}
}

func TestRule_RemoveDeclaration(t *testing.T) {
	r := NewParser(nil).Parse([]byte(`p { a: 1; b: 2; c: 3; }`)).Rules[0]
	r.RemoveDeclaration(1)
	r.RemoveDeclaration(5)
	r.RemoveDeclaration(-1)

	var props []string
	for _, d := range r.Declarations {
		props = append(props, d.Property)
	}
	if strings.Join(props, ",") != "a,c" {
		t.Errorf("declarations = %v", props)
	}
}

func TestWalk(t *testing.T) {
	sheet := NewParser(nil).Parse([]byte(`.a {} @media print { .b {} @supports (display: grid) { .c {} } } .d {}`))
	var seen []string
	Walk(sheet.Rules, func(r *Rule) {
		seen = append(seen, r.SelectorText())
	})
	want := []string{".a", "@media print", ".b", "@supports (display:grid)", ".c", ".d"}
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Errorf("Walk order = %q, want %q", seen, want)
	}
}

func TestRule_Import(t *testing.T) {
	tests := []struct {
		name      string
		css       string
		wantHref  string
		wantMedia string
		wantOK    bool
	}{
		{"string", `@import "a.css";`, "a.css", "", true},
		{"url quoted", `@import url("dir/b.css");`, "dir/b.css", "", true},
		{"url single quoted", `@import url( 'c.css' );`, "c.css", "", true},
		{"url bare", `@import url(d.css);`, "d.css", "", true},
		{"with media", `@import url("e.css") print;`, "e.css", "print", true},
		{"empty", `@import "";`, "", "", false},
		{"not import", `@charset "utf-8";`, "", "", false},
	}

	p := NewParser(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := p.Parse([]byte(tt.css), "test.css")
			if len(sheet.Rules) != 1 {
				t.Fatalf("got %d rules, want 1", len(sheet.Rules))
			}
			href, media, ok := sheet.Rules[0].Import()
			if href != tt.wantHref || media != tt.wantMedia || ok != tt.wantOK {
				t.Errorf("Import() = (%q, %q, %v), want (%q, %q, %v)", href, media, ok, tt.wantHref, tt.wantMedia, tt.wantOK)
			}
		})
	}
}

func TestStylesheet_Imports(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))
	sheet := p.Parse([]byte(`@import "a.css"; @import url(b.css) screen; h1 { color: red; }`), "test.css")
	got := sheet.Imports()
	if len(got) != 2 || got[0] != "a.css" || got[1] != "b.css" {
		t.Errorf("Imports() = %v, want [a.css b.css]", got)
	}
}
