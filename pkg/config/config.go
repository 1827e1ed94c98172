// Package config holds the fixed parameters of a generator run.
package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/drone/envsubst"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/botwmods/symsld/pkg/addr"
	"github.com/botwmods/symsld/pkg/version"
)

// DefaultHeader marks the linker script as generated.
const DefaultHeader = `
/*
 *  This is a generated file
 *  DO NOT EDIT THIS FILE DIRECTLY
 *  Generate with ` + "`just ld`" + ` instead
 */

`

// Config is treated as immutable once validated; the generator stages only
// read from it.
type Config struct {
	// AddressPrefix is required on, and stripped from, every address in the
	// reference databases.
	AddressPrefix string `yaml:"address_prefix"`
	DataSymbols   string `yaml:"data_symbols"`
	FuncSymbols   string `yaml:"func_symbols"`
	// Extensions selects the source files that are scanned.
	Extensions []string `yaml:"extensions"`
	// Offsets maps a version to the distance between the start of the module
	// and the start of main.
	Offsets map[string]string `yaml:"offsets"`
	Header  string            `yaml:"header"`
}

// Default returns the configuration matching the decompilation project layout.
func Default() Config {
	return Config{
		AddressPrefix: "0x00000071",
		DataSymbols:   "libs/botw/data/data_symbols.csv",
		FuncSymbols:   "libs/botw/data/uking_functions.csv",
		Extensions:    []string{".cpp", ".c", ".hpp", ".h"},
		Offsets: map[string]string{
			version.V150.String(): "0x2d91000",
			version.V160.String(): "0x3483000",
		},
		Header: DefaultHeader,
	}
}

func (cfg *Config) Validate() error {
	if cfg.AddressPrefix == "" {
		return errors.New("address prefix must not be empty")
	}
	if cfg.DataSymbols == "" || cfg.FuncSymbols == "" {
		return errors.New("both reference symbol tables must be set")
	}
	if len(cfg.Extensions) == 0 {
		return errors.New("at least one source file extension is required")
	}
	for name := range cfg.Offsets {
		if _, ok := version.Parse(name); !ok {
			return fmt.Errorf("offset for unsupported version %q", name)
		}
	}
	for _, v := range version.All() {
		off, ok := cfg.Offsets[v.String()]
		if !ok {
			return fmt.Errorf("missing offset for version %s", v)
		}
		if !addr.Valid(off) {
			return fmt.Errorf("invalid offset %q for version %s", off, v)
		}
	}
	return nil
}

// Offset returns the base offset subtracted from addresses of v.
func (cfg *Config) Offset(v version.Version) string {
	return cfg.Offsets[v.String()]
}

// Load reads a YAML configuration over the defaults. When expandEnv is set,
// ${VAR} references are substituted from the environment first.
func Load(fs afero.Fs, path string, expandEnv bool) (Config, error) {
	cfg := Default()
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if expandEnv {
		s, err := envsubst.EvalEnv(string(buf))
		if err != nil {
			return cfg, errors.Wrapf(err, "expanding environment in %s", path)
		}
		buf = []byte(s)
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, cfg.Validate()
}
