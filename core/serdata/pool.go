// Package serdata implements the per-domain serialized-data pool: a
// bounded free-list of reusable buffers backing wire-format samples, so
// the common publish/read path avoids an allocation per sample.
package serdata

import "sync"

// MaxPoolSize and MaxSizeForPool mirror the original implementation's
// sizing constants exactly (confirmed against ddsi_serdata_default.c):
// at most 8192 pooled entries, each at most 256 bytes; anything larger
// bypasses the pool entirely.
const (
	MaxPoolSize    = 8192
	MaxSizeForPool = 256
	DefaultNewSize = 128
)

// Serdata is a refcounted, pool-backed sample buffer.
type Serdata struct {
	Bytes    []byte
	Key      [16]byte
	refcount int32

	pool *Pool
}

// Ref increments the refcount.
func (s *Serdata) Ref() { s.refcount++ }

// Unref decrements the refcount, returning s to its pool once it
// reaches zero.
func (s *Serdata) Unref() {
	s.refcount--
	if s.refcount <= 0 && s.pool != nil {
		s.pool.release(s)
	}
}

// Pool is a per-domain bounded free-list. The common path (entries at or
// below MaxSizeForPool, pool not yet at MaxPoolSize) is documented as
// lock-free in the originating implementation's free-list discipline;
// here it is a single mutex guarding a slice-backed stack, which is the
// idiomatic Go shape for a bounded freelist under moderate contention —
// a hand-rolled CAS-loop free-list would buy single-producer/
// multi-consumer throughput the domain root never needs at this layer
// (see DESIGN.md).
type Pool struct {
	mu    sync.Mutex
	free  [][]byte
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{free: make([][]byte, 0, MaxPoolSize)}
}

// Acquire returns a Serdata with at least size bytes of backing storage,
// popping from the free-list when possible and falling back to a fresh
// allocation otherwise. Buffers larger than MaxSizeForPool always bypass
// the pool, both on acquire and on release.
func (p *Pool) Acquire(size int) *Serdata {
	if size <= MaxSizeForPool {
		if buf, ok := p.pop(); ok {
			if cap(buf) < size {
				buf = make([]byte, size)
			} else {
				buf = buf[:size]
			}
			return &Serdata{Bytes: buf, refcount: 1, pool: p}
		}
	}
	n := size
	if n < DefaultNewSize {
		n = DefaultNewSize
	}
	sd := &Serdata{Bytes: make([]byte, size, n), refcount: 1}
	if size <= MaxSizeForPool {
		sd.pool = p
	}
	return sd
}

func (p *Pool) pop() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	return buf, true
}

func (p *Pool) release(s *Serdata) {
	if len(s.Bytes) > MaxSizeForPool {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= MaxPoolSize {
		return
	}
	p.free = append(p.free, s.Bytes[:0])
}

// Len reports the number of free entries currently pooled, for tests.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
