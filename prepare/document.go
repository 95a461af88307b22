// Package prepare implements "prepare" command: it runs parse phase of paged
// media processing over HTML document and writes result ready for chunker.
package prepare

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"pmx/dom"
	"pmx/paged"
	"pmx/polish"
)

// Attributes marking style elements we generate.
const (
	attrInsertedStyles = "data-pagedjs-inserted-styles"
	idRuleStyles       = "pagedjs-rule-styles"
)

// Stylesheet is author CSS together with its origin.
type Stylesheet struct {
	Name  string
	Path  string // file stylesheet was read from, base for its imports
	Media string // media attribute of style or link element
	Data  []byte
}

// Result describes what was done to the document.
type Result struct {
	Refs     int          // number of reference ids assigned
	Sources  []Stylesheet // processed stylesheets, document ones first
	Imported []string     // files pulled in by @import rules
	Styles   string       // polished author CSS
	Rules    string       // synthetic rules produced by handlers
}

// Document converts all stylesheets of doc (style elements and linked
// stylesheets in document order, then extra) feeding job handlers, runs
// AfterParsed on the tree and replaces original elements with processed
// styles. Linked stylesheets and @import rules are read with load, nil load
// leaves them untouched.
func Document(doc *html.Node, extra []Stylesheet, job *paged.Job, load polish.Loader, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	head, err := dom.Query(doc, "head")
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, errors.New("document has no head element")
	}
	root, err := dom.Query(doc, "body")
	if err != nil {
		return nil, err
	}
	if root == nil {
		root = doc
	}

	res := &Result{Refs: dom.AssignRefs(root)}

	sources, err := collectStylesheets(doc, load, log)
	if err != nil {
		return nil, err
	}
	res.Sources = append(sources, extra...)

	polisher := job.Polisher()
	if load != nil {
		polisher.WithLoader(load)
	}
	converted := make([]string, 0, len(res.Sources))
	for _, s := range res.Sources {
		source := s.Name
		if len(s.Path) > 0 {
			source = s.Path
		}
		text := polisher.Convert(s.Data, source)
		if len(s.Media) > 0 && !strings.EqualFold(s.Media, "all") {
			text = fmt.Sprintf("@media %s {\n%s}\n", s.Media, text)
		}
		converted = append(converted, text)
	}
	res.Styles = strings.Join(converted, "\n")
	res.Imported = polisher.Imported()

	if err := job.AfterParsed(doc); err != nil {
		return nil, err
	}
	res.Rules = job.Sheet.String()

	inserted := styleElement(res.Styles)
	dom.SetAttr(inserted, attrInsertedStyles, "")
	head.AppendChild(inserted)

	rules := styleElement(res.Rules)
	dom.SetAttr(rules, "id", idRuleStyles)
	head.AppendChild(rules)

	log.Debug("Document prepared",
		zap.Int("refs", res.Refs),
		zap.Int("stylesheets", len(res.Sources)),
		zap.Strings("imported", res.Imported),
		zap.Strings("counters", job.Counters.Names()),
		zap.Int("rules", job.Sheet.Len()))
	return res, nil
}

// collectStylesheets detaches style elements and local linked stylesheets
// from the document returning their content in document order. Links which
// could not be loaded stay in place.
func collectStylesheets(doc *html.Node, load polish.Loader, log *zap.Logger) ([]Stylesheet, error) {
	nodes, err := dom.QueryAll(doc, `style, link[rel~="stylesheet"]`)
	if err != nil {
		return nil, err
	}

	var (
		sheets []Stylesheet
		inline int
	)
	for _, n := range nodes {
		media := strings.TrimSpace(dom.GetAttr(n, "media"))
		if n.Data == "style" {
			inline++
			sheets = append(sheets, Stylesheet{
				Name:  fmt.Sprintf("inline-%d.css", inline),
				Media: media,
				Data:  []byte(dom.Text(n)),
			})
			dom.Detach(n)
			continue
		}

		href := strings.TrimSpace(dom.GetAttr(n, "href"))
		if len(href) == 0 || load == nil {
			continue
		}
		name, data, err := load(href, "")
		if err != nil {
			log.Warn("Unable to load linked stylesheet, leaving it as is", zap.String("href", href), zap.Error(err))
			continue
		}
		sheets = append(sheets, Stylesheet{
			Name:  filepath.Base(name),
			Path:  name,
			Media: media,
			Data:  data,
		})
		dom.Detach(n)
	}
	return sheets, nil
}

// FileLoader reads linked and imported stylesheets from local files. Hrefs
// are resolved against the directory of importing stylesheet, or dir for
// stylesheets embedded in the document. Remote resources are not fetched.
func FileLoader(dir string) polish.Loader {
	return func(href, base string) (string, []byte, error) {
		u, err := url.Parse(href)
		if err != nil {
			return "", nil, fmt.Errorf("malformed stylesheet reference %q: %w", href, err)
		}

		var path string
		switch {
		case len(u.Host) > 0:
			return "", nil, fmt.Errorf("remote stylesheet %q is not supported", href)
		case len(u.Scheme) == 0, u.Scheme == "file":
			path = u.Path
		case len(u.Scheme) == 1:
			// windows drive letter
			path = href
		default:
			return "", nil, fmt.Errorf("stylesheet %q with scheme %q is not supported", href, u.Scheme)
		}
		if len(path) == 0 {
			return "", nil, fmt.Errorf("empty stylesheet reference %q", href)
		}

		path = filepath.FromSlash(path)
		if !filepath.IsAbs(path) {
			from := dir
			if filepath.IsAbs(base) {
				from = filepath.Dir(base)
			}
			path = filepath.Join(from, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, err
		}
		return path, data, nil
	}
}

func styleElement(text string) *html.Node {
	n := dom.NewElement("style")
	if len(text) > 0 {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}
