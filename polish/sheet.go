package polish

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"pmx/css"
)

// Sheet is live stylesheet receiving synthetic rules. Rules are only ever
// appended, index returned by InsertRule stays valid for sheet lifetime.
type Sheet struct {
	log    *zap.Logger
	parser *css.Parser
	sheet  *css.Stylesheet
}

// NewSheet creates empty sheet.
func NewSheet(log *zap.Logger) *Sheet {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sheet")
	return &Sheet{
		log:    log,
		parser: css.NewParser(log),
		sheet:  &css.Stylesheet{},
	}
}

// InsertRule parses text which must hold exactly one rule and appends it.
func (s *Sheet) InsertRule(text string) (int, error) {
	parsed := s.parser.Parse([]byte(text), "synthetic rule")
	if len(parsed.Rules) != 1 {
		return -1, fmt.Errorf("synthetic rule must be single rule, got %d in %q", len(parsed.Rules), text)
	}
	s.sheet.Rules = append(s.sheet.Rules, parsed.Rules[0])
	index := len(s.sheet.Rules) - 1
	s.log.Debug("Rule inserted", zap.Int("index", index), zap.String("rule", text))
	return index, nil
}

// Len returns number of rules in the sheet.
func (s *Sheet) Len() int {
	return len(s.sheet.Rules)
}

// Rules returns a copy of rule list.
func (s *Sheet) Rules() []*css.Rule {
	rules := make([]*css.Rule, len(s.sheet.Rules))
	copy(rules, s.sheet.Rules)
	return rules
}

// RulesBySelector returns rules with matching prelude, in insertion order.
func (s *Sheet) RulesBySelector(selector string) []*css.Rule {
	return s.sheet.RulesBySelector(selector)
}

// WriteTo serializes the sheet.
func (s *Sheet) WriteTo(w io.Writer) (int64, error) {
	return s.sheet.WriteTo(w)
}

func (s *Sheet) String() string {
	var b strings.Builder
	_, _ = s.WriteTo(&b)
	return b.String()
}
