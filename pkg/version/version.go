// Package version enumerates the supported game releases.
package version

import (
	"fmt"
)

// Version is one of the supported releases. The zero value is not valid.
type Version int

const (
	_ Version = iota
	V150
	V160
)

var names = map[Version]string{
	V150: "1.5.0",
	V160: "1.6.0",
}

// All returns the supported versions in output order.
func All() []Version {
	return []Version{V150, V160}
}

// Earliest is the only release with a reverse-engineered reference database.
func Earliest() Version {
	return V150
}

// Parse returns the version named s.
func Parse(s string) (Version, bool) {
	for _, v := range All() {
		if names[v] == s {
			return v, true
		}
	}
	return 0, false
}

func (v Version) Valid() bool {
	_, ok := names[v]
	return ok
}

// SupportsNamedLinks reports whether link-func and link-data declarations are
// allowed. Newer releases only accept link-addr.
func (v Version) SupportsNamedLinks() bool {
	return v == Earliest()
}

func (v Version) String() string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

func (v Version) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid version %d", int(v))
	}
	return []byte(names[v]), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unsupported version %q", string(text))
	}
	*v = parsed
	return nil
}
