package chunkedpipe

import (
	"math/bits"

	"github.com/rs/zerolog"
)

// Stats is a point-in-time snapshot of a Pool's allocation behavior,
// useful for diagnostics and tests.
type Stats struct {
	// Allocated is the total number of chunks ever freshly allocated
	// (i.e. not satisfied from a free list).
	Allocated int64
	// Recycled is the total number of chunks returned via Put and later
	// handed back out by Get (as opposed to discarded because the idle
	// list for that class was full).
	Recycled int64
	// Discarded is the total number of chunks dropped by Put because the
	// size class's free list was already at WithMaxIdlePerClass capacity.
	Discarded int64
	// Idle maps size class to the number of chunks currently sitting in
	// that class's free list.
	Idle map[int]int
}

// Pool is a size-classed free list of Chunks. Requested sizes are
// rounded up to the next power of two; chunks are only ever reused
// within their own size class, and a recycled chunk retains its
// original capacity. Pool is not safe for concurrent use, matching the
// single-threaded Pipe it backs.
type Pool struct {
	classes         map[int][]*Chunk
	maxIdlePerClass int
	logger          zerolog.Logger

	allocated int64
	recycled  int64
	discarded int64
}

// DefaultPool is a process-wide convenience Pool for callers that don't
// need an isolated pool of their own. Prefer constructing an explicit
// Pool with NewPool when isolation (e.g. independent Stats, independent
// WithMaxIdlePerClass tuning) matters.
var DefaultPool = NewPool()

// NewPool creates a Pool ready for use.
func NewPool(opts ...PoolOption) *Pool {
	cfg, err := newPoolConfig(opts)
	if err != nil {
		// All validation here is static (non-negative integers); a
		// caller passing a bad literal constant is a programming error,
		// not a runtime condition, so we panic rather than thread an
		// error return through every NewPool call site.
		panic(err)
	}
	return &Pool{
		classes:         make(map[int][]*Chunk),
		maxIdlePerClass: cfg.maxIdlePerClass,
		logger:          cfg.logger,
	}
}

func nextPow2(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// Get returns a Chunk whose capacity is the next power of two >= size,
// reused from the free list if one is available, or freshly allocated
// otherwise. The returned chunk is always empty (Len() == 0).
func (p *Pool) Get(size int) *Chunk {
	class := nextPow2(size)
	free := p.classes[class]
	if n := len(free); n > 0 {
		c := free[n-1]
		free[n-1] = nil
		p.classes[class] = free[:n-1]
		c.Reset()
		p.recycled++
		p.logger.Debug().Int("size", class).Bool("recycled", true).Msg("chunk allocated")
		return c
	}
	p.allocated++
	p.logger.Debug().Int("size", class).Bool("recycled", false).Msg("chunk allocated")
	return newChunk(class)
}

// Put returns a chunk to the free list for its own size class. If the
// class's idle list is already at WithMaxIdlePerClass capacity, the
// chunk is discarded instead (left for the garbage collector). Put
// panics if given a read-only chunk view (from Chunk.Part), since those
// do not own their backing memory.
func (p *Pool) Put(c *Chunk) {
	if c.readOnly {
		panic(invalidArgumentf("Put: chunk is a read-only view and cannot be recycled"))
	}
	class := c.Cap()
	if p.maxIdlePerClass > 0 && len(p.classes[class]) >= p.maxIdlePerClass {
		p.discarded++
		p.logger.Debug().Int("size", class).Msg("chunk discarded, idle list full")
		return
	}
	c.Reset()
	p.classes[class] = append(p.classes[class], c)
	p.logger.Debug().Int("size", class).Msg("chunk returned to pool")
}

// Stats returns a snapshot of this Pool's allocation counters.
func (p *Pool) Stats() Stats {
	idle := make(map[int]int, len(p.classes))
	for class, chunks := range p.classes {
		if len(chunks) > 0 {
			idle[class] = len(chunks)
		}
	}
	return Stats{
		Allocated: p.allocated,
		Recycled:  p.recycled,
		Discarded: p.discarded,
		Idle:      idle,
	}
}
