// Package wqueue implements the bounded lock-free multi-producer,
// multi-consumer descriptor queues the scheduler and stage workers
// exchange work items through. It is a Dmitry Vyukov per-slot-sequence
// ring generalized from single-producer/single-consumer to multiple
// producers and consumers by adding a CAS reservation step on both
// ends; slot layout, cache-line padding, and the PopWait
// spin-then-relax shape follow the classic design.
package wqueue

import "sync/atomic"

type cell struct {
	seq uint64
	val uint64
}

// Queue is a fixed-capacity MPMC ring of descriptor.Tag-shaped uint64
// values. Producer and consumer cursors sit on separate cache lines to
// avoid false sharing.
type Queue struct {
	_          [64]byte
	enqueuePos uint64
	_          [64]byte
	dequeuePos uint64
	_          [64]byte
	mask       uint64
	buf        []cell
}

// New allocates a queue whose size must be a power of two.
func New(size int) *Queue {
	if size <= 0 || size&(size-1) != 0 {
		panic("wqueue: size must be >0 and a power of two")
	}
	q := &Queue{mask: uint64(size - 1), buf: make([]cell, size)}
	for i := range q.buf {
		q.buf[i].seq = uint64(i)
	}
	return q
}

// Push enqueues v, returning false if the queue is full. Safe for
// concurrent use by any number of producers.
func (q *Queue) Push(v uint64) bool {
	pos := atomic.LoadUint64(&q.enqueuePos)
	for {
		c := &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		switch {
		case seq == pos:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				c.val = v
				atomic.StoreUint64(&c.seq, pos+1)
				return true
			}
			pos = atomic.LoadUint64(&q.enqueuePos)
		case seq < pos:
			return false // full
		default:
			pos = atomic.LoadUint64(&q.enqueuePos)
		}
	}
}

// Pop dequeues one value, returning ok=false if the queue is empty. Safe
// for concurrent use by any number of consumers.
func (q *Queue) Pop() (v uint64, ok bool) {
	pos := atomic.LoadUint64(&q.dequeuePos)
	for {
		c := &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		switch {
		case seq == pos+1:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				v = c.val
				atomic.StoreUint64(&c.seq, pos+q.mask+1)
				return v, true
			}
			pos = atomic.LoadUint64(&q.dequeuePos)
		case seq < pos+1:
			return 0, false // empty
		default:
			pos = atomic.LoadUint64(&q.dequeuePos)
		}
	}
}

// PopWait busy-spins (hot-spin then cpuRelax as a cold-spin fallback)
// until a value is available or *stop becomes non-zero, in which case
// ok is false.
func (q *Queue) PopWait(stop *uint32) (v uint64, ok bool) {
	spins := 0
	for {
		if v, ok = q.Pop(); ok {
			return v, true
		}
		if atomic.LoadUint32(stop) != 0 {
			return 0, false
		}
		spins++
		if spins > spinBudget {
			cpuRelax()
		}
	}
}

const spinBudget = 64

// Len approximates the number of queued items; exact only when no
// producer/consumer is concurrently active, otherwise a momentary
// snapshot useful for backpressure heuristics.
func (q *Queue) Len() int {
	enq := atomic.LoadUint64(&q.enqueuePos)
	deq := atomic.LoadUint64(&q.dequeuePos)
	if enq < deq {
		return 0
	}
	return int(enq - deq)
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int { return len(q.buf) }
