package test

import (
	"testing"

	"github.com/go-kit/log"
)

type testingWriter struct {
	t testing.TB
}

func (w testingWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// NewTestingLogger returns a logfmt logger writing through t.Log, so output
// only shows up for failing or verbose tests.
func NewTestingLogger(t testing.TB) log.Logger {
	return log.NewLogfmtLogger(testingWriter{t: t})
}
