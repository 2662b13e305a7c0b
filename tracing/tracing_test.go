package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")

	require.NoError(t, Init("fluxbpm", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "command startProcess", "INTERNAL")
	span.WithAttributes(map[string]string{"process.definition": "order:1"})
	current, ok := SpanFromContext(ctx)
	assert.True(t, ok)
	assert.NotNil(t, current)
	EndSpan(span, errors.New("boom"))

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "command startProcess")
}

func TestEndSpan_Nil(t *testing.T) {
	EndSpan(nil, nil)
	_, ok := SpanFromContext(context.Background())
	assert.False(t, ok)
}
