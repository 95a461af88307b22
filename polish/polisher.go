package polish

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pmx/css"
)

// Source is stylesheet after conversion together with its origin.
type Source struct {
	Name  string
	Sheet *css.Stylesheet
}

// Loader fetches stylesheet referenced by @import. Base is the name of the
// importing stylesheet, returned name identifies loaded one and becomes base
// for its own imports.
type Loader func(href, base string) (name string, data []byte, err error)

// Polisher converts author stylesheets walking them through hooks.
type Polisher struct {
	log      *zap.Logger
	parser   *css.Parser
	hooks    *Hooks
	load     Loader
	visited  map[string]bool
	imported []string
	sources  []Source
}

// NewPolisher creates polisher invoking given hooks.
func NewPolisher(hooks *Hooks, log *zap.Logger) *Polisher {
	if log == nil {
		log = zap.NewNop()
	}
	if hooks == nil {
		hooks = NewHooks()
	}
	log = log.Named("polisher")
	return &Polisher{
		log:     log,
		parser:  css.NewParser(log),
		hooks:   hooks,
		visited: make(map[string]bool),
	}
}

// WithLoader makes polisher follow @import rules. Without loader they are
// left in place.
func (p *Polisher) WithLoader(load Loader) *Polisher {
	p.load = load
	return p
}

// Convert parses text, walks it through registered handlers and returns
// serialized result. Imported stylesheets are converted first and their text
// precedes the importing one. Recoverable syntax errors are logged and do not
// stop conversion.
func (p *Polisher) Convert(text []byte, source string) string {
	var out strings.Builder
	p.convert(text, source, &out)
	return out.String()
}

func (p *Polisher) convert(text []byte, source string, out *strings.Builder) {
	p.visited[source] = true

	sheet := p.parser.Parse(text, source)
	for _, w := range sheet.Warnings {
		p.log.Warn("Stylesheet problem", zap.String("source", source), zap.String("warning", w))
	}
	if p.load != nil {
		p.inlineImports(sheet, source, out)
	}
	p.hooks.Walk(sheet)
	p.sources = append(p.sources, Source{Name: source, Sheet: sheet})
	p.log.Debug("Stylesheet converted", zap.String("source", source), zap.Int("rules", len(sheet.Rules)))
	out.WriteString(sheet.String())
}

// inlineImports replaces top level @import rules with converted text of
// imported stylesheets. Rules which could not be loaded are kept.
func (p *Polisher) inlineImports(sheet *css.Stylesheet, source string, out *strings.Builder) {
	rules := sheet.Rules[:0]
	for _, rule := range sheet.Rules {
		href, media, ok := rule.Import()
		if !ok {
			rules = append(rules, rule)
			continue
		}
		name, data, err := p.load(href, source)
		if err != nil {
			p.log.Warn("Unable to load imported stylesheet", zap.String("source", source), zap.String("href", href), zap.Error(err))
			rules = append(rules, rule)
			continue
		}
		if p.visited[name] {
			p.log.Debug("Stylesheet already imported", zap.String("source", source), zap.String("name", name))
			continue
		}
		p.imported = append(p.imported, name)

		var sub strings.Builder
		p.convert(data, name, &sub)
		if len(media) > 0 {
			fmt.Fprintf(out, "@media %s {\n%s}\n\n", media, sub.String())
		} else {
			fmt.Fprintf(out, "%s\n", sub.String())
		}
	}
	sheet.Rules = rules
}

// Sources returns converted stylesheets in conversion order.
func (p *Polisher) Sources() []Source {
	return p.sources
}

// Imported returns names of stylesheets pulled in by @import rules.
func (p *Polisher) Imported() []string {
	return p.imported
}
