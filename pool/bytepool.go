// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"math/bits"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Stats are cumulative pool counters.
type Stats struct {
	Gets    int64
	Puts    int64
	Allocs  int64
	// Dropped counts buffers released to the GC because their class was
	// full or their capacity fit no class.
	Dropped int64
}

// BytePool hands out []byte buffers from power-of-two size classes
// between MinSize and MaxSize. Requests above MaxSize are allocated
// directly and never retained.
type BytePool struct {
	minShift int
	classes  []chan []byte

	_       cpu.CacheLinePad
	gets    atomic.Int64
	puts    atomic.Int64
	allocs  atomic.Int64
	dropped atomic.Int64
	_       cpu.CacheLinePad
}

// Defaults used by NewBytePool for non-positive arguments.
const (
	DefaultMinSize  = 64
	DefaultMaxSize  = 64 << 10
	DefaultPerClass = 256
)

// NewBytePool creates a pool. Sizes are rounded up to powers of two.
func NewBytePool(minSize, maxSize, perClass int) *BytePool {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if maxSize < minSize {
		maxSize = DefaultMaxSize
		if maxSize < minSize {
			maxSize = minSize
		}
	}
	if perClass <= 0 {
		perClass = DefaultPerClass
	}
	lo, hi := shiftFor(minSize), shiftFor(maxSize)
	p := &BytePool{minShift: lo, classes: make([]chan []byte, hi-lo+1)}
	for i := range p.classes {
		p.classes[i] = make(chan []byte, perClass)
	}
	return p
}

// shiftFor returns the exponent of the smallest power of two >= n.
func shiftFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func (p *BytePool) class(size int) int {
	i := shiftFor(size) - p.minShift
	if i < 0 {
		i = 0
	}
	return i
}

// MinSize is the capacity of the smallest class.
func (p *BytePool) MinSize() int { return 1 << p.minShift }

// MaxSize is the capacity of the largest class.
func (p *BytePool) MaxSize() int { return 1 << (p.minShift + len(p.classes) - 1) }

// Get returns a buffer of length size. Its capacity is the class size.
func (p *BytePool) Get(size int) []byte {
	p.gets.Add(1)
	if size < 0 {
		size = 0
	}
	i := p.class(size)
	if i >= len(p.classes) {
		p.allocs.Add(1)
		return make([]byte, size)
	}
	select {
	case b := <-p.classes[i]:
		return b[:size]
	default:
		p.allocs.Add(1)
		return make([]byte, size, 1<<(p.minShift+i))
	}
}

// Put recycles b. Buffers whose capacity is not exactly a class size are
// dropped.
func (p *BytePool) Put(b []byte) {
	p.puts.Add(1)
	c := cap(b)
	i := p.class(c)
	if c == 0 || i >= len(p.classes) || 1<<(p.minShift+i) != c {
		p.dropped.Add(1)
		return
	}
	select {
	case p.classes[i] <- b[:0]:
	default:
		p.dropped.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (p *BytePool) Stats() Stats {
	return Stats{
		Gets:    p.gets.Load(),
		Puts:    p.puts.Load(),
		Allocs:  p.allocs.Load(),
		Dropped: p.dropped.Load(),
	}
}
