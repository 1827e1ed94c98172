// Package ldscript renders resolved links as a linker script.
package ldscript

import (
	"bufio"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/botwmods/symsld/pkg/config"
	"github.com/botwmods/symsld/pkg/resolve"
	"github.com/botwmods/symsld/pkg/version"
)

// Counts is the number of symbol definitions written per version.
type Counts map[version.Version]int

// Total is the sum over all versions.
func (c Counts) Total() int {
	return lo.Sum(lo.Values(c))
}

// Write emits the header, then one banner per version in declared order
// followed by lines of the form
//
//	<symbol> = <address> - <offset>;
//
// The output only depends on res and cfg.
func Write(w io.Writer, cfg *config.Config, res resolve.Result) (Counts, error) {
	bw := bufio.NewWriter(w)
	counts := make(Counts)

	if _, err := io.WriteString(bw, cfg.Header); err != nil {
		return nil, err
	}
	for _, v := range version.All() {
		if _, err := fmt.Fprintf(bw, "\n/* %s */\n", v); err != nil {
			return nil, err
		}
		offset := cfg.Offset(v)
		var err error
		res.Links(v).Each(func(address, symbol string) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(bw, "%s = %s - %s;\n", symbol, address, offset)
			counts[v]++
		})
		if err != nil {
			return nil, err
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return counts, nil
}
