package context

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, defaultLogger, Logger(ctx))
	assert.NotNil(t, Registry(ctx))
	assert.Equal(t, os.Stdout, Output(ctx))
}

func TestValues(t *testing.T) {
	logger := log.NewNopLogger()
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer

	ctx := WithOutput(WithRegistry(WithLogger(context.Background(), logger), reg), &buf)
	assert.Equal(t, logger, Logger(ctx))
	assert.Same(t, reg, Registry(ctx))
	assert.Same(t, &buf, Output(ctx))
}
