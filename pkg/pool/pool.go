// Package pool provides typed object pooling for the hot paths of the
// connector runtime, primarily the stream copy buffers used when relaying
// large provider responses.
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper over sync.Pool with hit/miss accounting.
// The reset function, when set, runs before an object re-enters the pool.
type Pool[T any] struct {
	pool   sync.Pool
	reset  func(T)
	gets   int64
	allocs int64
}

// New creates a pool backed by the given factory. reset may be nil.
func New[T any](factory func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.allocs, 1)
		return factory()
	}
	return p
}

// Get takes an object from the pool, allocating when empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool after resetting it.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats reports total Get calls and how many of them allocated.
func (p *Pool[T]) Stats() (gets, allocs int64) {
	return atomic.LoadInt64(&p.gets), atomic.LoadInt64(&p.allocs)
}

// chunkSize matches the transport read size used when streaming bodies.
const chunkSize = 32 * 1024

var chunkPool = New(
	func() *[]byte {
		buf := make([]byte, chunkSize)
		return &buf
	},
	nil,
)

// GetChunk returns a fixed-size buffer for streaming reads.
func GetChunk() *[]byte {
	return chunkPool.Get()
}

// PutChunk returns a chunk buffer to the pool. Buffers that were resized
// are dropped so the pool stays uniform.
func PutChunk(buf *[]byte) {
	if buf == nil || len(*buf) != chunkSize {
		return
	}
	chunkPool.Put(buf)
}
