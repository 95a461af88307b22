// Package paged emulates paged-media features which browsers do not support
// natively: counters continuing across page fragments and footnotes.
//
// Everything here is driven by page chunker through three hooks: AfterParsed
// once the document and stylesheets are parsed, RenderNode for every rendered
// node and AfterPageLayout for every finished page. All state belongs to a
// single Job.
package paged

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"pmx/config"
	"pmx/layout"
	"pmx/polish"
)

// Job is context of one conversion. It is not safe for concurrent use, jobs
// share nothing.
type Job struct {
	Sheet     *polish.Sheet
	Oracle    layout.Oracle
	Hooks     *polish.Hooks
	Counters  *Counters
	Footnotes *Footnotes

	cfg *config.PagedConfig
	log *zap.Logger
}

// NewJob creates job with all handlers registered. Nil cfg selects defaults,
// oracle may be nil when only parse phase is executed.
func NewJob(cfg *config.PagedConfig, oracle layout.Oracle, log *zap.Logger) *Job {
	if cfg == nil {
		cfg = config.DefaultPagedConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	j := &Job{
		Sheet:  polish.NewSheet(log),
		Oracle: oracle,
		cfg:    cfg,
		log:    log,
	}
	j.Counters = newCounters(j)
	j.Footnotes = newFootnotes(j)
	j.Hooks = polish.NewHooks(handlers(j)...)
	return j
}

// handlers returns job handlers in invocation order.
func handlers(j *Job) []polish.Handler {
	return []polish.Handler{j.Counters, j.Footnotes}
}

// Polisher returns stylesheet converter feeding job handlers.
func (j *Job) Polisher() *polish.Polisher {
	return polish.NewPolisher(j.Hooks, j.log)
}

// AfterParsed must be called once after all stylesheets were converted.
func (j *Job) AfterParsed(doc *html.Node) error {
	return j.Hooks.AfterParsed(doc)
}

// RenderNode must be called for every node chunker renders.
func (j *Job) RenderNode(node *html.Node) error {
	return j.Hooks.RenderNode(node)
}

// AfterPageLayout must be called for every page once its layout is final.
func (j *Job) AfterPageLayout(page *layout.Page) error {
	return j.Hooks.AfterPageLayout(page)
}

// insertRule adds synthetic rule. Rule text is generated here, failure to
// parse it back means broken counter name or selector, which is logged and
// otherwise ignored.
func (j *Job) insertRule(text string) {
	if _, err := j.Sheet.InsertRule(text); err != nil {
		j.log.Debug("Unable to insert synthetic rule", zap.Error(err))
	}
}
