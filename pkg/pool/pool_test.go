package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesObjects(t *testing.T) {
	type scratch struct{ n int }

	p := New(
		func() *scratch { return &scratch{} },
		func(s *scratch) { s.n = 0 },
	)

	s := p.Get()
	s.n = 42
	p.Put(s)

	got := p.Get()
	assert.Equal(t, 0, got.n, "reset must run before reuse")

	gets, allocs := p.Stats()
	assert.Equal(t, int64(2), gets)
	assert.GreaterOrEqual(t, allocs, int64(1))
}

func TestChunkRoundTrip(t *testing.T) {
	chunk := GetChunk()
	require.NotNil(t, chunk)
	assert.Len(t, *chunk, chunkSize)
	PutChunk(chunk)
}

func TestPutChunkDropsResized(t *testing.T) {
	small := make([]byte, 8)
	PutChunk(&small)
	PutChunk(nil)

	chunk := GetChunk()
	assert.Len(t, *chunk, chunkSize)
}
