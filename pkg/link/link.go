// Package link defines the declarations collected from source comments.
package link

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/botwmods/symsld/pkg/version"
)

// Kind is the type of a link declaration.
type Kind int

const (
	_ Kind = iota
	// Func links a mangled symbol to a function of the function table.
	Func
	// Data links a mangled symbol to an object of the data table.
	Data
	// Addr links a mangled symbol to a literal address.
	Addr
)

var kindNames = map[Kind]string{
	Func: "link-func",
	Data: "link-data",
	Addr: "link-addr",
}

// Kinds returns every kind.
func Kinds() []Kind {
	return []Kind{Func, Data, Addr}
}

// ParseKind returns the kind spelled s in annotations.
func ParseKind(s string) (Kind, bool) {
	return lo.FindKey(kindNames, s)
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Short is the name used in resolution diagnostics: func, data or addr.
func (k Kind) Short() string {
	switch k {
	case Func:
		return "func"
	case Data:
		return "data"
	case Addr:
		return "addr"
	default:
		return k.String()
	}
}

// Named reports whether entries of k are resolved by name against a
// reference table.
func (k Kind) Named() bool {
	return k == Func || k == Data
}

// Entry is one declared link.
type Entry struct {
	Version version.Version
	Kind    Kind
	// Symbol is the mangled, linker visible name.
	Symbol string
	// ReferenceName is looked up in the reference table for Func and Data.
	ReferenceName string
	// Address is the literal address of Addr entries.
	Address string
}
