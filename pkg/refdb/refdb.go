// Package refdb loads the reference symbol tables of the decompilation
// project: canonical names mapped to addresses in the main module.
package refdb

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/botwmods/symsld/pkg/addr"
	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/link"
)

// Table describes the shape of a reference table. The address is always in
// the first column.
type Table struct {
	Kind       link.Kind
	MinColumns int
	NameColumn int
	// HeaderSentinel, when set, marks a header row by its address column.
	HeaderSentinel string
}

var (
	// DataTable is data_symbols.csv: address,name,...
	DataTable = Table{Kind: link.Data, MinColumns: 2, NameColumn: 1}
	// FuncTable is uking_functions.csv: Address,Quality,Size,Name,...
	FuncTable = Table{Kind: link.Func, MinColumns: 4, NameColumn: 3, HeaderSentinel: "Address"}
)

// TableFor returns the reference table resolving k.
func TableFor(k link.Kind) (Table, bool) {
	switch k {
	case link.Data:
		return DataTable, true
	case link.Func:
		return FuncTable, true
	}
	return Table{}, false
}

// DB maps canonical names to normalized addresses. Each address belongs to a
// single name.
type DB struct {
	table   Table
	symbols map[string]string
	owners  map[string]string
}

func newDB(t Table) *DB {
	return &DB{
		table:   t,
		symbols: make(map[string]string),
		owners:  make(map[string]string),
	}
}

// New builds a DB from already normalized name to address pairs, in order.
// Later pairs reusing an address are dropped.
func New(t Table, pairs ...[2]string) *DB {
	db := newDB(t)
	for _, p := range pairs {
		if _, ok := db.owners[p[1]]; ok {
			continue
		}
		db.owners[p[1]] = p[0]
		db.symbols[p[0]] = p[1]
	}
	return db
}

// Load reads a reference table in CSV form. Rows that are too short, are the
// header or have no name are skipped silently. Rows with an address lacking
// prefix, or whose address was already taken by an earlier row, are reported
// as recoverable diagnostics and skipped. Only I/O and CSV syntax errors are
// returned.
func Load(r io.Reader, source string, t Table, prefix string, report diag.Reporter) (*DB, error) {
	db := newDB(t)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", source)
		}
		if len(row) < t.MinColumns {
			continue
		}
		raw := row[0]
		if t.HeaderSentinel != "" && raw == t.HeaderSentinel {
			continue
		}
		name := row[t.NameColumn]
		if name == "" {
			continue
		}
		line, _ := cr.FieldPos(0)
		address, ok := addr.Normalize(raw, prefix)
		if !ok {
			report.Report(diag.Recoverable, diag.At(source, line-1, fmt.Errorf("Invalid Address: %s", raw)))
			continue
		}
		if _, taken := db.owners[address]; taken {
			report.Report(diag.Recoverable, diag.At(source, line-1, fmt.Errorf("Duplicate Address: %s", raw)))
			continue
		}
		db.owners[address] = name
		// A repeated name at a new address replaces the earlier mapping, but
		// the earlier address stays taken.
		db.symbols[name] = address
	}
	return db, nil
}

// LoadFile opens path on fs and loads it with Load.
func LoadFile(fs afero.Fs, path string, t Table, prefix string, report diag.Reporter) (*DB, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s reference table", t.Kind.Short())
	}
	defer f.Close()
	return Load(f, path, t, prefix, report)
}

// Lookup returns the normalized address of name.
func (db *DB) Lookup(name string) (string, bool) {
	a, ok := db.symbols[name]
	return a, ok
}

func (db *DB) Kind() link.Kind { return db.table.Kind }

func (db *DB) Len() int { return len(db.symbols) }
