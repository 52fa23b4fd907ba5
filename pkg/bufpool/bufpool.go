// Package bufpool provides a tiered buffer pool for operation result payloads.
//
// NFSv4 results that carry variable-length data (filehandles, symlink targets,
// encoded attribute blocks, owner strings) take their backing storage from
// this pool and give it back when the result is freed. Every Get is counted
// and every Put uncounts it, so Outstanding reports how many buffers are
// currently owned by live results. Tests use this to prove that each
// produced reply is freed exactly once.
//
// # Usage
//
//	buf := bufpool.Get(len(src))
//	copy(buf, src)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Default buffer size classes.
const (
	// DefaultSmallSize fits filehandles and short names.
	DefaultSmallSize = 256

	// DefaultMediumSize fits symlink targets and typical attribute blocks.
	DefaultMediumSize = 4 << 10

	// DefaultLargeSize fits large attribute blocks.
	DefaultLargeSize = 64 << 10
)

// Pool manages a set of byte slice pools organized by size class.
type Pool struct {
	small      sync.Pool
	medium     sync.Pool
	large      sync.Pool
	smallSize  int
	mediumSize int
	largeSize  int

	outstanding atomic.Int64
}

// Config holds configuration for creating a custom buffer pool.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool creates a new buffer pool. A nil config selects the defaults.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}
	if cfg.SmallSize <= 0 {
		cfg.SmallSize = DefaultSmallSize
	}
	if cfg.MediumSize <= 0 {
		cfg.MediumSize = DefaultMediumSize
	}
	if cfg.LargeSize <= 0 {
		cfg.LargeSize = DefaultLargeSize
	}

	p := &Pool{
		smallSize:  cfg.SmallSize,
		mediumSize: cfg.MediumSize,
		largeSize:  cfg.LargeSize,
	}
	p.small.New = newBuffer(p.smallSize)
	p.medium.New = newBuffer(p.mediumSize)
	p.large.New = newBuffer(p.largeSize)

	return p
}

func newBuffer(size int) func() any {
	return func() any {
		buf := make([]byte, size)
		return &buf
	}
}

// Get returns a byte slice of exactly the requested length.
//
// The caller owns the slice until it hands it back with Put. Sizes above the
// large class are allocated directly but still counted as outstanding.
func (p *Pool) Get(size int) []byte {
	p.outstanding.Add(1)

	var bufPtr *[]byte
	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get. Nil buffers are ignored.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.outstanding.Add(-1)

	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&full)
	case p.mediumSize:
		p.medium.Put(&full)
	case p.largeSize:
		p.large.Put(&full)
	}
}

// Clone copies src into a new pooled buffer. A nil or empty src yields nil.
func (p *Pool) Clone(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	buf := p.Get(len(src))
	copy(buf, src)
	return buf
}

// Outstanding reports the number of buffers handed out and not yet returned.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

// =============================================================================
// Global Pool
// =============================================================================

var globalPool = NewPool(nil)

// Get returns a buffer from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// Clone copies src into a buffer from the global pool.
func Clone(src []byte) []byte {
	return globalPool.Clone(src)
}

// Outstanding reports the global pool's outstanding buffer count.
func Outstanding() int64 {
	return globalPool.Outstanding()
}
