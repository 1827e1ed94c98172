// Package annotation extracts link declarations from source lines.
//
// A declaration lives in a single-line block comment:
//
//	/* [1.5.0][link-func] symbol=_ZN4sead10TextWriter6printfEPKcz, uking_name=sead::TextWriter::printf */
//
// Only the first "/*" ... "*/" span of a line is considered. Comments whose
// first two bracketed tokens are not a supported version and link kind are
// ignored.
package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/botwmods/symsld/pkg/addr"
	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/version"
)

const (
	KeySymbol        = "symbol"
	KeyReferenceName = "uking_name"
	KeyAddress       = "address"
)

var (
	ErrMalformedProperty = errors.New("malformed property")
	ErrMissingSymbol     = errors.New(`property "symbol" missing from link declaration`)
	ErrMissingAddress    = errors.New(`property "address" missing from link-addr declaration`)
	ErrInvalidAddress    = errors.New("invalid address")
)

// Annotation is a recognized link comment.
type Annotation struct {
	Version version.Version
	Kind    link.Kind
	// Props holds the key=value pairs. A repeated key keeps its last value.
	Props map[string]string
}

// ParseLine returns the annotation on line, or nil when the line carries no
// link declaration.
func ParseLine(line string) (*Annotation, error) {
	start := strings.Index(line, "/*")
	if start < 0 {
		return nil, nil
	}
	body := line[start+2:]
	end := strings.Index(body, "*/")
	if end < 0 {
		return nil, nil
	}
	body = body[:end]

	ver, rest, ok := bracket(body)
	if !ok {
		return nil, nil
	}
	v, ok := version.Parse(ver)
	if !ok {
		return nil, nil
	}
	kind, rest, ok := bracket(rest)
	if !ok {
		return nil, nil
	}
	k, ok := link.ParseKind(kind)
	if !ok {
		return nil, nil
	}

	props, err := parseProps(rest)
	if err != nil {
		return nil, err
	}
	return &Annotation{Version: v, Kind: k, Props: props}, nil
}

// bracket returns the trimmed contents of the first [...] in s and the text
// following it.
func bracket(s string) (string, string, bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return "", "", false
	}
	closing := strings.IndexByte(s[open:], ']')
	if closing < 0 {
		return "", "", false
	}
	closing += open
	return strings.TrimSpace(s[open+1 : closing]), s[closing+1:], true
}

func parseProps(s string) (map[string]string, error) {
	props := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedProperty, pair)
		}
		props[key] = strings.TrimSpace(value)
	}
	return props, nil
}

// Entry validates the properties for the annotation kind and returns the
// declared link.
func (a *Annotation) Entry() (link.Entry, error) {
	symbol, ok := a.Props[KeySymbol]
	if !ok || symbol == "" {
		return link.Entry{}, ErrMissingSymbol
	}
	e := link.Entry{
		Version: a.Version,
		Kind:    a.Kind,
		Symbol:  symbol,
	}
	switch a.Kind {
	case link.Func, link.Data:
		e.ReferenceName = symbol
		if name, ok := a.Props[KeyReferenceName]; ok && name != "" {
			e.ReferenceName = name
		}
	case link.Addr:
		address, ok := a.Props[KeyAddress]
		if !ok || address == "" {
			return e, ErrMissingAddress
		}
		if !addr.Valid(address) {
			return e, fmt.Errorf("%w %q for symbol %q", ErrInvalidAddress, address, symbol)
		}
		e.Address = address
	}
	return e, nil
}
