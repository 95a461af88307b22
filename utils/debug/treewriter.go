// Package debug renders internal state for logs and debug reports.
package debug

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// TreeWriter builds indented multi-line text.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

// Line writes formatted line.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Pairs writes label followed by map entries one per line, keys in natural
// order.
func (tw TreeWriter) Pairs(depth int, label string, values map[string]string) {
	tw.Line(depth, "%s:", label)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		tw.Line(depth+1, "%s = %s", k, values[k])
	}
}
