package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkPutAndGet(t *testing.T) {
	t.Parallel()
	sink := New()

	uri, err := sink.Put(context.Background(), "artifacts/job-1/output", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "memory://artifacts/job-1/output", uri)

	data, ok := sink.Get("artifacts/job-1/output")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestSinkPutOverwritesSameKey(t *testing.T) {
	t.Parallel()
	sink := New()
	ctx := context.Background()

	_, err := sink.Put(ctx, "artifacts/job-1/output", "text/plain", []byte("first"))
	require.NoError(t, err)
	uri, err := sink.Put(ctx, "artifacts/job-1/output", "text/plain", []byte("second"))
	require.NoError(t, err)
	assert.Equal(t, "memory://artifacts/job-1/output", uri)

	data, ok := sink.Get("artifacts/job-1/output")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), data)
}
