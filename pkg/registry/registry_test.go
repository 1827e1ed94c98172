package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/version"
)

func funcEntry(v version.Version, symbol, name string) link.Entry {
	return link.Entry{Version: v, Kind: link.Func, Symbol: symbol, ReferenceName: name}
}

func TestAddOrder(t *testing.T) {
	r := New()
	for _, s := range []string{"_Z1cv", "_Z1av", "_Z1bv"} {
		adv, err := r.Add(funcEntry(version.V150, s, s))
		require.NoError(t, err)
		require.Empty(t, adv)
	}
	entries := r.Entries(version.V150, link.Func)
	require.Len(t, entries, 3)
	assert.Equal(t, "_Z1cv", entries[0].Symbol)
	assert.Equal(t, "_Z1av", entries[1].Symbol)
	assert.Equal(t, "_Z1bv", entries[2].Symbol)
	assert.Equal(t, 3, r.Named(version.V150))
	assert.Nil(t, r.Entries(version.V160, link.Addr))
}

func TestDuplicate(t *testing.T) {
	r := New()
	_, err := r.Add(funcEntry(version.V150, "_Z1fv", "f"))
	require.NoError(t, err)

	_, err = r.Add(funcEntry(version.V150, "_Z1fv", "g"))
	require.ErrorIs(t, err, ErrDuplicateSymbol)
	assert.EqualError(t, err, `duplicate func symbol "_Z1fv"`)

	e, ok := r.Lookup(version.V150, link.Func, "_Z1fv")
	require.True(t, ok)
	assert.Equal(t, "f", e.ReferenceName, "first declaration is kept")
	assert.Equal(t, 1, r.Len(version.V150, link.Func))

	// Data links live in their own bucket.
	_, err = r.Add(link.Entry{Version: version.V150, Kind: link.Data, Symbol: "_Z1fv", ReferenceName: "f"})
	require.NoError(t, err)
	_, err = r.Add(link.Entry{Version: version.V150, Kind: link.Data, Symbol: "_Z1fv", ReferenceName: "f"})
	require.ErrorIs(t, err, ErrDuplicateSymbol)

	_, err = r.Add(link.Entry{Version: version.V160, Kind: link.Addr, Symbol: "_Z1fv", Address: "0x10"})
	require.NoError(t, err)
	_, err = r.Add(link.Entry{Version: version.V160, Kind: link.Addr, Symbol: "_Z1fv", Address: "0x20"})
	require.ErrorIs(t, err, ErrDuplicateSymbol)
}

func TestVersionRestrictions(t *testing.T) {
	r := New()
	for _, k := range []link.Kind{link.Func, link.Data} {
		_, err := r.Add(link.Entry{Version: version.V160, Kind: k, Symbol: "_Z1hv", ReferenceName: "_Z1hv"})
		require.ErrorIs(t, err, ErrUnsupportedKind)
		assert.EqualError(t, err, `only link-addr is supported for 1.6.0. Symbol: "_Z1hv"`)
		assert.Zero(t, r.Len(version.V160, k))
	}

	adv, err := r.Add(link.Entry{Version: version.V150, Kind: link.Addr, Symbol: "_Z1hv", Address: "0x10"})
	require.NoError(t, err)
	assert.Equal(t, `link-addr is not recommended for 1.5.0. Symbol: "_Z1hv"`, adv)

	adv, err = r.Add(link.Entry{Version: version.V160, Kind: link.Addr, Symbol: "_Z1hv", Address: "0x10"})
	require.NoError(t, err)
	assert.Empty(t, adv)
}

func TestInvalid(t *testing.T) {
	r := New()
	_, err := r.Add(link.Entry{Kind: link.Func, Symbol: "x"})
	require.Error(t, err)
	_, err = r.Add(link.Entry{Version: version.V150, Symbol: "x"})
	require.Error(t, err)
}
