// Package symsld generates the symbol linker script of a source tree.
//
// A run scans every source file for link declarations, resolves them against
// the reference tables and writes the linker script. Every defect found along
// the way is reported; the script is only written when there were none.
package symsld

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/botwmods/symsld/pkg/config"
	symsldcontext "github.com/botwmods/symsld/pkg/context"
	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/ldscript"
	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/registry"
	"github.com/botwmods/symsld/pkg/resolve"
	"github.com/botwmods/symsld/pkg/scan"
	"github.com/botwmods/symsld/pkg/version"
)

var (
	ErrSourceErrors  = errors.New("there were error(s) when processing source files")
	ErrResolveErrors = errors.New("there were error(s) when resolving symbols")
)

// stageErrors names the stages that reported fatal diagnostics. The result
// matches ErrSourceErrors and ErrResolveErrors with errors.Is.
func stageErrors(sources, resolution bool) error {
	var result *multierror.Error
	if sources {
		result = multierror.Append(result, ErrSourceErrors)
	}
	if resolution {
		result = multierror.Append(result, ErrResolveErrors)
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return strings.Join(msgs, "\n")
	}
	return result
}

func errUnnamedKind(k link.Kind) error {
	return fmt.Errorf("%s links are not resolved by name", k)
}

// Summary describes a run.
type Summary struct {
	Files  int
	Counts ldscript.Counts
	// Unchanged is set when the output already had the generated content and
	// was left untouched.
	Unchanged   bool
	Diagnostics *diag.Set
}

type Generator struct {
	cfg     config.Config
	fs      afero.Fs
	logger  log.Logger
	out     io.Writer
	metrics *metrics
}

// New validates cfg and takes the logger, metrics registry and diagnostics
// output from ctx.
func New(ctx context.Context, cfg config.Config, fs afero.Fs) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &Generator{
		cfg:     cfg,
		fs:      fs,
		logger:  symsldcontext.Logger(ctx),
		out:     symsldcontext.Output(ctx),
		metrics: newMetrics(symsldcontext.Registry(ctx)),
	}, nil
}

// Run generates the linker script for the sources under root into output.
// Resolution runs even when scanning reported errors so that a single run
// reports every defect. The returned error then names the failing stages.
func (g *Generator) Run(ctx context.Context, root, output string) (Summary, error) {
	set := diag.NewSet(g.logger, g.out)
	sum := Summary{Diagnostics: set}
	g.metrics.lastRunSuccess.Set(0)
	defer g.observeDiagnostics(set)

	reg := registry.New()
	level.Info(g.logger).Log("msg", "scanning source files", "root", root)
	sc := scan.New(g.fs, g.cfg.Extensions, reg, set)
	sc.OnEntry = func(e link.Entry) {
		g.metrics.declarations.WithLabelValues(e.Version.String(), e.Kind.String()).Inc()
	}
	err := sc.Scan(root)
	sum.Files = sc.Files()
	if err != nil {
		return sum, err
	}
	sourcesFailed := set.Failed()
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	named := 0
	for _, v := range version.All() {
		named += reg.Named(v)
	}
	level.Info(g.logger).Log("msg", "resolving symbols", "symbols", named)
	fatal := set.Count(diag.Fatal)

	res := resolve.Resolve(reg, &fileTables{
		fs:      g.fs,
		cfg:     &g.cfg,
		report:  set,
		logger:  g.logger,
		metrics: g.metrics,
	}, set)
	if err := stageErrors(sourcesFailed, set.Count(diag.Fatal) > fatal); err != nil {
		return sum, err
	}

	var buf bytes.Buffer
	counts, err := ldscript.Write(&buf, &g.cfg, res)
	if err != nil {
		return sum, errors.Wrap(err, "rendering linker script")
	}
	unchanged, err := writeIfChanged(g.fs, output, buf.Bytes())
	if err != nil {
		return sum, err
	}
	sum.Counts = counts
	sum.Unchanged = unchanged
	level.Debug(g.logger).Log("msg", "rendered linker script", "links", counts.Total(), "bytes", buf.Len())

	for _, v := range version.All() {
		g.metrics.linksWritten.WithLabelValues(v.String()).Set(float64(counts[v]))
		level.Info(g.logger).Log("msg", fmt.Sprintf("Written %d %s symbol links.", counts[v], v))
	}
	if unchanged {
		level.Info(g.logger).Log("msg", "linker script is up to date", "path", output)
	} else {
		level.Info(g.logger).Log("msg", "saved linker script", "path", output)
	}
	g.metrics.lastRunSuccess.Set(1)
	return sum, nil
}

func (g *Generator) observeDiagnostics(set *diag.Set) {
	for _, sev := range []diag.Severity{diag.Fatal, diag.Recoverable, diag.Warning} {
		g.metrics.diagnostics.WithLabelValues(sev.String()).Add(float64(set.Count(sev)))
	}
}

// writeIfChanged writes content to path unless the file already holds exactly
// that content. It reports whether the write was skipped.
func writeIfChanged(fs afero.Fs, path string, content []byte) (bool, error) {
	existing, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if len(existing) == len(content) && xxhash.Sum64(existing) == xxhash.Sum64(content) {
			return true, nil
		}
	case !os.IsNotExist(err):
		return false, errors.Wrapf(err, "reading existing %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return false, errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := afero.WriteFile(fs, path, content, 0o644); err != nil {
		return false, errors.Wrapf(err, "writing %s", path)
	}
	return false, nil
}
