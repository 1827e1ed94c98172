package symsld

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botwmods/symsld/pkg/config"
	symsldcontext "github.com/botwmods/symsld/pkg/context"
	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/test"
	"github.com/botwmods/symsld/pkg/version"
)

const (
	funcTable = `Address,Quality,Size,Name
0x00000071ABCD,O,000004,sead::TextWriter::printf
0x0000007100001000,O,000004,_ZN2ns4initEv
0x0000007100001000,O,000004,ns::shadowed
`
	dataTable = `0x0000007100002000,gData
0x0000007100002000,gOther
`
)

type fixture struct {
	fs  afero.Fs
	out *bytes.Buffer
	reg *prometheus.Registry
	gen *Generator
}

func newFixture(t *testing.T, sources map[string]string) *fixture {
	t.Helper()
	color.NoColor = true

	cfg := config.Default()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, cfg.FuncSymbols, []byte(funcTable), 0o644))
	require.NoError(t, afero.WriteFile(fs, cfg.DataSymbols, []byte(dataTable), 0o644))
	for name, content := range sources {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	f := &fixture{fs: fs, out: new(bytes.Buffer), reg: prometheus.NewRegistry()}
	ctx := symsldcontext.WithLogger(context.Background(), test.NewTestingLogger(t))
	ctx = symsldcontext.WithRegistry(ctx, f.reg)
	ctx = symsldcontext.WithOutput(ctx, f.out)
	gen, err := New(ctx, cfg, fs)
	require.NoError(t, err)
	f.gen = gen
	return f
}

func (f *fixture) run(t *testing.T) (Summary, error) {
	t.Helper()
	return f.gen.Run(context.Background(), "src", "build/syms.ld")
}

func (f *fixture) output(t *testing.T) string {
	t.Helper()
	b, err := afero.ReadFile(f.fs, "build/syms.ld")
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) requireNoOutput(t *testing.T) {
	t.Helper()
	exists, err := afero.Exists(f.fs, "build/syms.ld")
	require.NoError(t, err)
	require.False(t, exists, "no linker script is written on failure")
}

func TestRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/text.cpp": `#include "text.h"
/* [1.5.0][link-func] symbol=_ZN4sead10TextWriter6printfEPKcz, uking_name=sead::TextWriter::printf */
/* [1.5.0][link-func] symbol=_ZN4sead10TextWriter6printfEPKDsz, uking_name=sead::TextWriter::printf */
/* [1.5.0][link-func] symbol=_ZN2ns4initEv */
/* a regular comment [not][a link] */
`,
		"src/data.h": `/* [1.5.0][link-data] symbol=_ZN2ns5gDataE, uking_name=gData */
/* [1.6.0][link-addr] symbol=_ZN2ns4initEv, address=0x0000007100ABCDEF */
/* [1.5.0][link-addr] symbol=_ZN2ns5extraE, address=0x500 */
`,
	})
	sum, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.False(t, sum.Unchanged)
	assert.Len(t, sum.Diagnostics.Warnings(), 1)

	assert.Equal(t, config.DefaultHeader+`
/* 1.5.0 */
_ZN2ns5extraE = 0x500 - 0x2d91000;
_ZN2ns5gDataE = 0x00002000 - 0x2d91000;
_ZN4sead10TextWriter6printfEPKcz = 0xABCD - 0x2d91000;
_ZN4sead10TextWriter6printfEPKDsz = 0xABCD - 0x2d91000;
_ZN2ns4initEv = 0x00001000 - 0x2d91000;

/* 1.6.0 */
_ZN2ns4initEv = 0x0000007100ABCDEF - 0x3483000;
`, f.output(t))

	assert.Equal(t, 5, sum.Counts[version.V150])
	assert.Equal(t, 1, sum.Counts[version.V160])
	assert.Equal(t, 2, sum.Diagnostics.Count(diag.Recoverable))
	assert.Equal(t, `Warning: in src/data.h(2): link-addr is not recommended for 1.5.0. Symbol: "_ZN2ns5extraE"
Error: in libs/botw/data/data_symbols.csv(1): Duplicate Address: 0x0000007100002000
Error: in libs/botw/data/uking_functions.csv(3): Duplicate Address: 0x0000007100001000
`, f.out.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.gen.metrics.lastRunSuccess))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.gen.metrics.declarations.WithLabelValues("1.5.0", "link-func")))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.gen.metrics.linksWritten.WithLabelValues("1.5.0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.gen.metrics.referenceSymbols.WithLabelValues("func")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.gen.metrics.diagnostics.WithLabelValues("warning")))

	sum, err = f.run(t)
	require.NoError(t, err)
	assert.True(t, sum.Unchanged)
}

func TestRunSourceErrors(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/a.cpp": `/* [1.5.0][link-func] symbol=_ZN2ns4initEv */
/* [1.5.0][link-func] symbol=_ZN2ns4initEv */
`,
		"src/b.cpp": `/* [1.6.0][link-data] symbol=_ZN2ns5gDataE */
/* [1.5.0][link-func] uking_name=sead::TextWriter::printf */
`,
	})
	sum, err := f.run(t)
	require.ErrorIs(t, err, ErrSourceErrors)
	assert.NotErrorIs(t, err, ErrResolveErrors)
	f.requireNoOutput(t)
	assert.Len(t, sum.Diagnostics.Errors(), 3)
	assert.Equal(t, `Error: in src/a.cpp(1): duplicate func symbol "_ZN2ns4initEv"
Error: in src/b.cpp(0): only link-addr is supported for 1.6.0. Symbol: "_ZN2ns5gDataE"
Error: in src/b.cpp(1): property "symbol" missing from link declaration
Error: in libs/botw/data/uking_functions.csv(3): Duplicate Address: 0x0000007100001000
`, f.out.String())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.gen.metrics.lastRunSuccess))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.gen.metrics.diagnostics.WithLabelValues("fatal")))
}

func TestRunReportsSourceAndResolveErrors(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/a.cpp": `/* [1.5.0][link-func] uking_name=x */
/* [1.5.0][link-func] symbol=_Z1gv */
`,
	})
	sum, err := f.run(t)
	require.ErrorIs(t, err, ErrSourceErrors)
	require.ErrorIs(t, err, ErrResolveErrors)
	assert.EqualError(t, err, ErrSourceErrors.Error()+"\n"+ErrResolveErrors.Error())
	f.requireNoOutput(t)
	assert.Len(t, sum.Diagnostics.Errors(), 2)
	assert.Equal(t, `Error: in src/a.cpp(0): property "symbol" missing from link declaration
Error: in libs/botw/data/uking_functions.csv(3): Duplicate Address: 0x0000007100001000
Error: Fail to link func symbol _Z1gv
`, f.out.String())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.gen.metrics.lastRunSuccess))
}

func TestRunResolveErrors(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/a.cpp": `/* [1.5.0][link-func] symbol=_Z1fv, uking_name=ns::shadowed */
/* [1.5.0][link-data] symbol=gOther */
/* [1.5.0][link-func] symbol=_Z1gv */
/* [1.5.0][link-data] symbol=gData */
`,
	})
	sum, err := f.run(t)
	require.ErrorIs(t, err, ErrResolveErrors)
	assert.NotErrorIs(t, err, ErrSourceErrors)
	f.requireNoOutput(t)
	assert.Len(t, sum.Diagnostics.Errors(), 3)
	assert.Equal(t, `Error: in libs/botw/data/data_symbols.csv(1): Duplicate Address: 0x0000007100002000
Error: Fail to link data symbol gOther
Error: in libs/botw/data/uking_functions.csv(3): Duplicate Address: 0x0000007100001000
Error: Fail to link func symbol _Z1fv (ns::shadowed)
Error: Fail to link func symbol _Z1gv
`, f.out.String())
}

func TestRunMissingTable(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/a.cpp": "/* [1.5.0][link-func] symbol=_ZN2ns4initEv */\n",
	})
	require.NoError(t, f.fs.Remove(f.gen.cfg.FuncSymbols))
	_, err := f.run(t)
	require.ErrorIs(t, err, ErrResolveErrors)
	f.requireNoOutput(t)
}

func TestRunAddrOnlySkipsTables(t *testing.T) {
	f := newFixture(t, map[string]string{
		"src/a.cpp": "/* [1.6.0][link-addr] symbol=_Z1bv, address=0x1234 */\n",
	})
	require.NoError(t, f.fs.Remove(f.gen.cfg.FuncSymbols))
	require.NoError(t, f.fs.Remove(f.gen.cfg.DataSymbols))
	_, err := f.run(t)
	require.NoError(t, err)
	assert.Contains(t, f.output(t), "/* 1.6.0 */\n_Z1bv = 0x1234 - 0x3483000;\n")
}

func TestMetricsSeriesExported(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, 6, testutil.CollectAndCount(f.gen.metrics.declarations))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.gen.metrics.declarations.WithLabelValues("1.6.0", "link-addr")))
}

func TestRunMissingRoot(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.run(t)
	require.Error(t, err)
	f.requireNoOutput(t)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AddressPrefix = ""
	_, err := New(context.Background(), cfg, afero.NewMemMapFs())
	require.Error(t, err)
}

func TestWriteIfChanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	unchanged, err := writeIfChanged(fs, "out/syms.ld", []byte("a"))
	require.NoError(t, err)
	assert.False(t, unchanged)

	unchanged, err = writeIfChanged(fs, "out/syms.ld", []byte("a"))
	require.NoError(t, err)
	assert.True(t, unchanged)

	unchanged, err = writeIfChanged(fs, "out/syms.ld", []byte("b"))
	require.NoError(t, err)
	assert.False(t, unchanged)
	b, err := afero.ReadFile(fs, "out/syms.ld")
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}
