// Package resolve turns declared links into addresses.
package resolve

import (
	"fmt"

	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/refdb"
	"github.com/botwmods/symsld/pkg/registry"
	"github.com/botwmods/symsld/pkg/version"
)

// Links is an address to symbols multimap that remembers insertion order:
// addresses in the order they first appeared, symbols in the order they were
// attached.
type Links struct {
	order   []string
	symbols map[string][]string
	n       int
}

func NewLinks() *Links {
	return &Links{symbols: make(map[string][]string)}
}

func (l *Links) Add(address, symbol string) {
	syms, ok := l.symbols[address]
	if !ok {
		l.order = append(l.order, address)
	}
	l.symbols[address] = append(syms, symbol)
	l.n++
}

// Each calls fn for every (address, symbol) pair in order.
func (l *Links) Each(fn func(address, symbol string)) {
	for _, a := range l.order {
		for _, s := range l.symbols[a] {
			fn(a, s)
		}
	}
}

// Len is the number of (address, symbol) pairs.
func (l *Links) Len() int { return l.n }

// Result holds the resolved links of every version.
type Result struct {
	links map[version.Version]*Links
}

// NewResult wraps already resolved links.
func NewResult(links map[version.Version]*Links) Result {
	return Result{links: links}
}

// Links returns the links of v. It is never nil.
func (r Result) Links(v version.Version) *Links {
	if l, ok := r.links[v]; ok {
		return l
	}
	return NewLinks()
}

// Tables supplies reference tables. Table is only called for kinds that have
// declarations to resolve.
type Tables interface {
	Table(k link.Kind) (*refdb.DB, error)
}

// Resolve looks up every declaration of reg. Direct address links are copied
// first, then data links and function links are resolved against their
// reference tables. Every failure is reported as fatal and resolution carries
// on, so one pass reports all unresolved symbols.
func Resolve(reg *registry.Registry, tables Tables, report diag.Reporter) Result {
	res := Result{links: make(map[version.Version]*Links)}
	for _, v := range version.All() {
		links := NewLinks()
		res.links[v] = links

		for _, e := range reg.Entries(v, link.Addr) {
			links.Add(e.Address, e.Symbol)
		}
		if !v.SupportsNamedLinks() {
			continue
		}
		for _, k := range []link.Kind{link.Data, link.Func} {
			entries := reg.Entries(v, k)
			if len(entries) == 0 {
				continue
			}
			db, err := tables.Table(k)
			if err != nil {
				report.Report(diag.Fatal, err)
				continue
			}
			for _, e := range entries {
				address, ok := db.Lookup(e.ReferenceName)
				if !ok {
					report.Report(diag.Fatal, unresolved(e))
					continue
				}
				links.Add(address, e.Symbol)
			}
		}
	}
	return res
}

func unresolved(e link.Entry) error {
	if e.ReferenceName != e.Symbol {
		return fmt.Errorf("Fail to link %s symbol %s (%s)", e.Kind.Short(), e.Symbol, e.ReferenceName)
	}
	return fmt.Errorf("Fail to link %s symbol %s", e.Kind.Short(), e.Symbol)
}

// Static is a fixed set of tables.
type Static map[link.Kind]*refdb.DB

func (s Static) Table(k link.Kind) (*refdb.DB, error) {
	db, ok := s[k]
	if !ok {
		return nil, fmt.Errorf("no %s reference table", k.Short())
	}
	return db, nil
}
