package prepare

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"pmx/config"
	"pmx/paged"
	"pmx/state"
)

// Run is "prepare" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("prepare")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		dst = defaultDestination(src)
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")
	env.Stylesheets = cmd.StringSlice("css")

	// Documents without proper meta tags may need help
	if cp := cmd.String("charset"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully decoding source document", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, env, log)
}

// defaultDestination puts result next to the source: book.html -> book.prepared.html
func defaultDestination(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), config.CleanFileName(base)+".prepared.html")
}

// process handles the document independently of CLI framework.
func process(ctx context.Context, src, dst string, env *state.LocalEnv, log *zap.Logger) error {
	if err := checkDestination(dst, env.Overwrite, log); err != nil {
		return err
	}

	doc, err := readDocument(src, env)
	if err != nil {
		return fmt.Errorf("unable to parse html source (%s): %w", src, err)
	}

	extra := make([]Stylesheet, 0, len(env.Stylesheets))
	for _, name := range env.Stylesheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet from %q: %w", name, err)
		}
		extra = append(extra, Stylesheet{Name: filepath.Base(path), Path: path, Data: data})
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	job := paged.NewJob(env.Paged(), nil, env.Log)
	res, err := Document(doc, extra, job, FileLoader(filepath.Dir(src)), log)
	if err != nil {
		return fmt.Errorf("unable to prepare document: %w", err)
	}

	if err := writeDocument(dst, doc); err != nil {
		return err
	}
	log.Info("Document prepared", zap.Int("refs", res.Refs), zap.Int("stylesheets", len(res.Sources)), zap.String("to", dst))

	storeReport(env.Rpt, src, dst, res, job, log)
	return nil
}

func checkDestination(dst string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(dst); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", dst)
		}
		log.Warn("Overwriting existing file", zap.String("file", dst))
		if err = os.Remove(dst); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// readDocument parses source html. Unless character set was forced its
// encoding is detected from BOM and meta tags.
func readDocument(src string, env *state.LocalEnv) (*html.Node, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader
	if env.CodePage != nil {
		r = transform.NewReader(f, env.CodePage.NewDecoder())
	} else if r, err = charset.NewReader(f, "text/html"); err != nil {
		return nil, fmt.Errorf("unable to detect document encoding: %w", err)
	}
	return html.Parse(r)
}

func writeDocument(dst string, doc *html.Node) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create destination file '%s': %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(out)
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("unable to write document: %w", err)
	}
	return w.Flush()
}

// storeReport puts everything used and produced into debug report.
func storeReport(rpt *config.Report, src, dst string, res *Result, job *paged.Job, log *zap.Logger) {
	if rpt == nil {
		return
	}
	rpt.Store("source/"+filepath.Base(src), src)
	for i, s := range res.Sources {
		name := slug.Make(strings.TrimSuffix(s.Name, filepath.Ext(s.Name)))
		rpt.StoreData(fmt.Sprintf("stylesheets/%02d-%s.css", i+1, name), s.Data)
	}
	for i, name := range res.Imported {
		rpt.Store(fmt.Sprintf("stylesheets/imported/%02d-%s", i+1, filepath.Base(name)), name)
	}
	rpt.StoreData("result/polished.css", []byte(res.Styles))
	rpt.StoreData("result/rules.css", []byte(res.Rules))
	rpt.StoreData("result/counters.txt", []byte(job.Counters.Dump()))
	rpt.StoreData("result/footnotes.txt", []byte(job.Footnotes.Dump()))
	if err := rpt.StoreCopy("result/"+filepath.Base(dst), dst); err != nil {
		log.Debug("Unable to store result in report", zap.Error(err))
	}
}
