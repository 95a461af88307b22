package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into mutable rule trees.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{
		Rules:    make([]*Rule, 0),
		Warnings: make([]string, 0),
	}

	// Log parsing start with source identifier if provided
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	sheet.Rules = p.parseRuleList(parser, sheet, nil)
	return sheet
}

// ParseInline parses content of a style attribute into declarations.
func (p *Parser) ParseInline(style string) []*Declaration {
	parser := css.NewParser(parse.NewInputString(style), true)
	decls, _ := p.parseDeclarations(parser, &Stylesheet{}, nil)
	return decls
}

// stopped reports whether ErrorGrammar means end of input rather than a
// recoverable syntax error.
func (p *Parser) stopped(parser *css.Parser, sheet *Stylesheet) bool {
	if !parser.HasParseError() {
		if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
			p.log.Debug("CSS read error", zap.Error(err))
		}
		return true
	}
	sheet.Warnings = append(sheet.Warnings, parser.Err().Error())
	p.log.Debug("CSS parse error", zap.Error(parser.Err()))
	return false
}

// parseRuleList parses rules until end of input (top level) or end of the
// enclosing @-rule block.
func (p *Parser) parseRuleList(parser *css.Parser, sheet *Stylesheet, parent *Rule) []*Rule {
	var rules []*Rule

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if p.stopped(parser, sheet) {
				return rules
			}

		case css.EndAtRuleGrammar:
			if parent != nil {
				return rules
			}

		case css.BeginRulesetGrammar:
			rule := &Rule{
				Kind:      StyleRule,
				Selectors: parseSelectorTokens(tokenText(parser.Values())),
				Block:     DeclarationBlock,
				Parent:    parent,
			}
			rule.Declarations, rule.Rules = p.parseDeclarations(parser, sheet, rule)
			rules = append(rules, rule)

		case css.BeginAtRuleGrammar:
			rules = append(rules, p.parseAtRuleBlock(parser, sheet, string(data), parent))

		case css.AtRuleGrammar:
			rules = append(rules, &Rule{
				Kind:    AtRule,
				Name:    strings.ToLower(strings.TrimPrefix(string(data), "@")),
				Prelude: tokenText(parser.Values()),
				Block:   NoBlock,
				Parent:  parent,
			})

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			sheet.Warnings = append(sheet.Warnings, "declaration outside of rule: "+string(data))
			p.log.Debug("Skipping declaration outside of rule", zap.String("property", string(data)))
		}
	}
}

// parseAtRuleBlock parses @-rule with a block, parser is positioned right
// after the opening brace.
func (p *Parser) parseAtRuleBlock(parser *css.Parser, sheet *Stylesheet, keyword string, parent *Rule) *Rule {
	rule := &Rule{
		Kind:    AtRule,
		Name:    strings.ToLower(strings.TrimPrefix(keyword, "@")),
		Prelude: tokenText(parser.Values()),
		Parent:  parent,
	}

	switch unprefixed(rule.Name) {
	case "page", "font-face":
		rule.Block = DeclarationBlock
		rule.Declarations, rule.Rules = p.parseDeclarations(parser, sheet, rule)
	case "media", "supports", "document", "keyframes", "layer":
		rule.Block = RuleBlock
		rule.Rules = p.parseRuleList(parser, sheet, rule)
	default:
		rule.Block = RawBlock
		rule.Raw = p.collectRaw(parser)
		if parent != nil && parent.IsAt("page") {
			// page margin boxes (@top-center etc.) hold ordinary declarations
			rule.Block = DeclarationBlock
			rule.Declarations = p.ParseInline(rule.Raw)
			rule.Raw = ""
		}
		p.log.Debug("Keeping unknown @-rule", zap.String("rule", keyword))
	}
	return rule
}

// parseDeclarations parses declarations until the end of the current block.
// Nested @-rules (page margin boxes, conditional rules inside style rules) are
// returned separately.
func (p *Parser) parseDeclarations(parser *css.Parser, sheet *Stylesheet, owner *Rule) ([]*Declaration, []*Rule) {
	var (
		decls  []*Declaration
		nested []*Rule
	)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if p.stopped(parser, sheet) {
				return decls, nested
			}

		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			return decls, nested

		case css.DeclarationGrammar:
			if d := p.parseDeclaration(string(data), parser.Values()); d != nil {
				decls = append(decls, d)
			}

		case css.CustomPropertyGrammar:
			var raw string
			if values := parser.Values(); len(values) > 0 {
				raw = strings.TrimSpace(string(values[0].Data))
			}
			decls = append(decls, &Declaration{
				Property: string(data),
				Value:    Value{{Type: css.CustomPropertyValueToken, Data: raw}},
				Custom:   true,
			})

		case css.BeginAtRuleGrammar:
			nested = append(nested, p.parseAtRuleBlock(parser, sheet, string(data), owner))

		case css.AtRuleGrammar:
			nested = append(nested, &Rule{
				Kind:    AtRule,
				Name:    strings.ToLower(strings.TrimPrefix(string(data), "@")),
				Prelude: tokenText(parser.Values()),
				Block:   NoBlock,
				Parent:  owner,
			})
		}
	}
}

// parseDeclaration converts property tokens into a Declaration, splitting off
// trailing !important.
func (p *Parser) parseDeclaration(property string, tokens []css.Token) *Declaration {
	value := tokenText(tokens)
	if len(value) == 0 {
		return nil
	}

	d := &Declaration{Property: strings.ToLower(property)}

	sig := value.Significant()
	if n := len(sig); n >= 2 && sig[n-2].Data == "!" && strings.EqualFold(sig[n-1].Data, "important") {
		d.Important = true
		// cut everything starting with "!"
		for i := len(value) - 1; i >= 0; i-- {
			if value[i].Data == "!" {
				value = value[:i]
				break
			}
		}
	}
	for len(value) > 0 && value[len(value)-1].IsSpace() {
		value = value[:len(value)-1]
	}
	d.Value = value
	return d
}

// collectRaw gathers the verbatim body of an unknown @-rule.
func (p *Parser) collectRaw(parser *css.Parser) string {
	var sb strings.Builder
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar, css.EndAtRuleGrammar:
			return sb.String()
		default:
			sb.Write(data)
		}
	}
}

// unprefixed strips vendor prefix from @-rule name (-webkit-keyframes).
func unprefixed(name string) string {
	if strings.HasPrefix(name, "-") {
		if i := strings.IndexByte(name[1:], '-'); i != -1 {
			return name[i+2:]
		}
	}
	return name
}
