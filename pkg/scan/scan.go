// Package scan walks a source tree and feeds link declarations into a
// registry.
package scan

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/botwmods/symsld/pkg/annotation"
	"github.com/botwmods/symsld/pkg/diag"
	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/registry"
)

const maxLineSize = 1 << 20

// Scanner collects declarations from source files. Problems are reported and
// scanning continues, so a single pass reports every defect in the tree.
type Scanner struct {
	fs     afero.Fs
	exts   []string
	reg    *registry.Registry
	report diag.Reporter

	// OnEntry, when set, is called for every accepted declaration.
	OnEntry func(link.Entry)

	files int
}

func New(fs afero.Fs, exts []string, reg *registry.Registry, report diag.Reporter) *Scanner {
	return &Scanner{
		fs:     fs,
		exts:   exts,
		reg:    reg,
		report: report,
	}
}

// Files returns the number of source files scanned so far.
func (s *Scanner) Files() int { return s.files }

// Match reports whether path has one of the scanned extensions.
func (s *Scanner) Match(path string) bool {
	ext := filepath.Ext(path)
	return lo.ContainsBy(s.exts, func(e string) bool {
		return strings.EqualFold(ext, e)
	})
}

// Scan processes root, which is either a source file or a directory walked
// depth first in lexical order. Only a missing root is returned as an error;
// unreadable entries below it are reported.
func (s *Scanner) Scan(root string) error {
	if _, err := s.fs.Stat(root); err != nil {
		return errors.Wrap(err, "scanning sources")
	}
	return afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.report.Report(diag.Fatal, errors.Wrapf(err, "reading %s", path))
			return nil
		}
		if info.IsDir() || !s.Match(path) {
			return nil
		}
		if err := s.ScanFile(path); err != nil {
			s.report.Report(diag.Fatal, err)
		}
		return nil
	})
}

// ScanFile processes one source file regardless of its extension.
func (s *Scanner) ScanFile(path string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	s.files++
	return s.scan(path, f)
}

func (s *Scanner) scan(path string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 0; sc.Scan(); line++ {
		s.line(path, line, sc.Text())
	}
	return errors.Wrapf(sc.Err(), "reading %s", path)
}

func (s *Scanner) line(path string, n int, text string) {
	a, err := annotation.ParseLine(text)
	if err != nil {
		s.report.Report(diag.Fatal, diag.At(path, n, err))
		return
	}
	if a == nil {
		return
	}
	e, err := a.Entry()
	if err != nil {
		s.report.Report(diag.Fatal, diag.At(path, n, err))
		return
	}
	advisory, err := s.reg.Add(e)
	if advisory != "" {
		s.report.Report(diag.Warning, diag.At(path, n, errors.New(advisory)))
	}
	if err != nil {
		s.report.Report(diag.Fatal, diag.At(path, n, err))
		return
	}
	if s.OnEntry != nil {
		s.OnEntry(e)
	}
}
