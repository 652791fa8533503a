package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"url":"https://shop.example/p/1","success":true}`)
	uri, err := store.PutObject(context.Background(), "jobs/job-1/results.jsonl", "application/x-ndjson", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://jobs/job-1/results.jsonl", uri)

	// The archive must not alias the caller's buffer.
	payload[0] = 'X'
	stored, ok := store.Object("jobs/job-1/results.jsonl")
	require.True(t, ok)
	assert.Equal(t, byte('{'), stored[0])
}

func TestBlobStoreObjectMissingPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, ok := store.Object("jobs/unknown/results.jsonl")
	assert.False(t, ok)
}

func TestBlobStorePutObjectOverwrites(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	_, err := store.PutObject(ctx, "jobs/job-1/results.jsonl", "application/x-ndjson", []byte("first"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "jobs/job-1/results.jsonl", "application/x-ndjson", []byte("second"))
	require.NoError(t, err)

	stored, ok := store.Object("jobs/job-1/results.jsonl")
	require.True(t, ok)
	assert.Equal(t, "second", string(stored))
}
