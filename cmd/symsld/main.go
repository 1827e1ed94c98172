package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/botwmods/symsld/pkg/config"
	symsldcontext "github.com/botwmods/symsld/pkg/context"
	"github.com/botwmods/symsld/pkg/symsld"
)

type params struct {
	verbose     bool
	source      string
	output      string
	configFile  string
	expandEnv   bool
	dataSymbols string
	funcSymbols string
	prefix      string
	metricsFile string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	p := &params{}
	app := kingpin.New(filepath.Base(os.Args[0]), "Generate the symbol linker script from link declarations in source comments.").UsageWriter(os.Stdout)
	app.Version(version.Print("symsld"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&p.verbose)
	app.Flag("config.file", "YAML configuration file.").StringVar(&p.configFile)
	app.Flag("config.expand-env", "Expand ${VAR} references in the configuration file.").Default("false").BoolVar(&p.expandEnv)
	app.Flag("data-symbols", "Path to the data symbols table, overrides the configuration.").StringVar(&p.dataSymbols)
	app.Flag("func-symbols", "Path to the function symbols table, overrides the configuration.").StringVar(&p.funcSymbols)
	app.Flag("address-prefix", "Prefix required on, and stripped from, reference table addresses.").StringVar(&p.prefix)
	app.Flag("metrics-file", "Write run metrics in the Prometheus text format to this file.").StringVar(&p.metricsFile)
	app.Arg("source", "Source file or directory to scan.").Required().ExistingFileOrDirVar(&p.source)
	app.Arg("output", "Linker script to generate.").Required().StringVar(&p.output)

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if !p.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	color.NoColor = color.NoColor || !isatty.IsTerminal(os.Stdout.Fd())

	os.Exit(checkError(run(p, os.Stdout)))
}

func run(p *params, out io.Writer) error {
	reg := prometheus.NewRegistry()
	ctx := symsldcontext.WithLogger(context.Background(), logger)
	ctx = symsldcontext.WithRegistry(ctx, reg)
	ctx = symsldcontext.WithOutput(ctx, out)

	cfg, err := loadConfig(afero.NewOsFs(), p)
	if err != nil {
		return err
	}
	gen, err := symsld.New(ctx, cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	_, err = gen.Run(ctx, p.source, p.output)

	if p.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(p.metricsFile, reg); werr != nil {
			level.Warn(logger).Log("msg", "failed to write metrics", "path", p.metricsFile, "err", werr)
		}
	}
	return err
}

func loadConfig(fs afero.Fs, p *params) (config.Config, error) {
	cfg := config.Default()
	if p.configFile != "" {
		var err error
		if cfg, err = config.Load(fs, p.configFile, p.expandEnv); err != nil {
			return cfg, err
		}
	}
	if p.dataSymbols != "" {
		cfg.DataSymbols = p.dataSymbols
	}
	if p.funcSymbols != "" {
		cfg.FuncSymbols = p.funcSymbols
	}
	if p.prefix != "" {
		cfg.AddressPrefix = p.prefix
	}
	return cfg, cfg.Validate()
}

func checkError(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, symsld.ErrSourceErrors), errors.Is(err, symsld.ErrResolveErrors):
		// The diagnostics are already printed.
		fmt.Fprintf(os.Stdout, "\n%v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}
