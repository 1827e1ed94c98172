package symsld

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"

	"github.com/botwmods/symsld/pkg/config"
	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/refdb"
)

// fileTables loads reference tables from disk the first time they are asked
// for.
type fileTables struct {
	fs      afero.Fs
	cfg     *config.Config
	report  diag.Reporter
	logger  log.Logger
	metrics *metrics

	loaded map[link.Kind]*refdb.DB
}

func (t *fileTables) path(k link.Kind) string {
	if k == link.Data {
		return t.cfg.DataSymbols
	}
	return t.cfg.FuncSymbols
}

func (t *fileTables) Table(k link.Kind) (*refdb.DB, error) {
	if db, ok := t.loaded[k]; ok {
		return db, nil
	}
	table, ok := refdb.TableFor(k)
	if !ok {
		return nil, errUnnamedKind(k)
	}
	path := t.path(k)
	level.Info(t.logger).Log("msg", "reading reference table", "table", k.Short(), "path", path)
	db, err := refdb.LoadFile(t.fs, path, table, t.cfg.AddressPrefix, t.report)
	if err != nil {
		return nil, err
	}
	name := db.Kind().Short()
	level.Info(t.logger).Log("msg", "loaded reference symbols", "table", name, "symbols", db.Len())
	t.metrics.referenceSymbols.WithLabelValues(name).Set(float64(db.Len()))
	if t.loaded == nil {
		t.loaded = make(map[link.Kind]*refdb.DB)
	}
	t.loaded[k] = db
	return db, nil
}
