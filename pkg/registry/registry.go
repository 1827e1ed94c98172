// Package registry accumulates link declarations per version and kind.
package registry

import (
	"errors"
	"fmt"

	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/version"
)

var (
	ErrUnsupportedKind = errors.New("only link-addr is supported")
	ErrDuplicateSymbol = errors.New("duplicate")
)

type bucketKey struct {
	version version.Version
	kind    link.Kind
}

type bucket struct {
	entries []link.Entry
	index   map[string]int
}

// Registry holds every accepted declaration of one run. Mangled symbols are
// unique within a (version, kind) bucket; buckets are independent of each
// other.
type Registry struct {
	buckets map[bucketKey]*bucket
}

func New() *Registry {
	return &Registry{buckets: make(map[bucketKey]*bucket)}
}

// Add records e. A non-empty advisory is returned for declarations that are
// accepted but discouraged. Rejected declarations leave the registry unchanged.
func (r *Registry) Add(e link.Entry) (advisory string, err error) {
	if !e.Version.Valid() {
		return "", fmt.Errorf("unsupported version %v", e.Version)
	}
	switch {
	case e.Kind.Named():
		if !e.Version.SupportsNamedLinks() {
			return "", fmt.Errorf("%w for %s. Symbol: %q", ErrUnsupportedKind, e.Version, e.Symbol)
		}
	case e.Kind == link.Addr:
		if e.Version.SupportsNamedLinks() {
			advisory = fmt.Sprintf("link-addr is not recommended for %s. Symbol: %q", e.Version, e.Symbol)
		}
	default:
		return "", fmt.Errorf("unknown link kind %v", e.Kind)
	}

	if _, dup := r.Lookup(e.Version, e.Kind, e.Symbol); dup {
		return advisory, fmt.Errorf("%w %s symbol %q", ErrDuplicateSymbol, e.Kind.Short(), e.Symbol)
	}
	key := bucketKey{version: e.Version, kind: e.Kind}
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{index: make(map[string]int)}
		r.buckets[key] = b
	}
	b.index[e.Symbol] = len(b.entries)
	b.entries = append(b.entries, e)
	return advisory, nil
}

// Entries returns the declarations of a bucket in the order they were added.
func (r *Registry) Entries(v version.Version, k link.Kind) []link.Entry {
	b, ok := r.buckets[bucketKey{version: v, kind: k}]
	if !ok {
		return nil
	}
	return append([]link.Entry(nil), b.entries...)
}

// Lookup returns the declaration of symbol in a bucket.
func (r *Registry) Lookup(v version.Version, k link.Kind, symbol string) (link.Entry, bool) {
	b, ok := r.buckets[bucketKey{version: v, kind: k}]
	if !ok {
		return link.Entry{}, false
	}
	i, ok := b.index[symbol]
	if !ok {
		return link.Entry{}, false
	}
	return b.entries[i], true
}

func (r *Registry) Len(v version.Version, k link.Kind) int {
	if b, ok := r.buckets[bucketKey{version: v, kind: k}]; ok {
		return len(b.entries)
	}
	return 0
}

// Named returns how many declarations of v must be resolved by name.
func (r *Registry) Named(v version.Version) int {
	return r.Len(v, link.Func) + r.Len(v, link.Data)
}
