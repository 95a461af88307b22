package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// TemplateConfig names elements of the page template produced by the
	// chunker. All values are selectors, except ReservedPrefix.
	TemplateConfig struct {
		Pages           string `yaml:"pages" validate:"required"`
		Page            string `yaml:"page" validate:"required"`
		PageContent     string `yaml:"page_content" validate:"required"`
		Area            string `yaml:"area" validate:"required"`
		FootnoteArea    string `yaml:"footnote_area" validate:"required"`
		FootnoteContent string `yaml:"footnote_content" validate:"required"`
		// counter-reset declarations with selectors containing this are
		// addressed to template itself and are left in place
		ReservedPrefix string `yaml:"reserved_prefix" validate:"required"`
	}

	FootnotesConfig struct {
		HeightProperty  string   `yaml:"height_property" validate:"required,startswith=--"`
		CallClassSuffix string   `yaml:"call_class_suffix" validate:"required"`
		InlineTags      []string `yaml:"inline_tags" validate:"dive,required,lowercase"`
	}

	PagedConfig struct {
		Template  TemplateConfig  `yaml:"template"`
		Footnotes FootnotesConfig `yaml:"footnotes"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Paged     PagedConfig    `yaml:"paged"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// DefaultPagedConfig returns values matching the standard page template. It is
// used when no configuration was loaded, for example in library mode.
func DefaultPagedConfig() *PagedConfig {
	return &PagedConfig{
		Template: TemplateConfig{
			Pages:           ".pagedjs_pages",
			Page:            ".pagedjs_page",
			PageContent:     ".pagedjs_page_content",
			Area:            ".pagedjs_area",
			FootnoteArea:    ".pagedjs_footnote_area",
			FootnoteContent: ".pagedjs_footnote_content",
			ReservedPrefix:  "pagedjs_",
		},
		Footnotes: FootnotesConfig{
			HeightProperty:  "--pagedjs-footnotes-height",
			CallClassSuffix: "_pagedjs-footnote-call",
		},
	}
}

// Selectors returns template selectors keyed by yaml field name.
func (t *TemplateConfig) Selectors() map[string]string {
	return map[string]string{
		"pages":            t.Pages,
		"page":             t.Page,
		"page_content":     t.PageContent,
		"area":             t.Area,
		"footnote_area":    t.FootnoteArea,
		"footnote_content": t.FootnoteContent,
	}
}

// checkTemplateSelectors makes sure every template selector could be matched.
func checkTemplateSelectors(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	for name, sel := range cfg.Paged.Template.Selectors() {
		if len(sel) == 0 {
			// reported by field validation
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			sl.ReportError(sel, name, name, "selector", "")
		}
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed, so no yaml.Unmarshal here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(checkTemplateSelectors)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
