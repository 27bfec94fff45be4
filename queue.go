// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"iter"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq/internal/arena"
	"code.hybscloud.com/spin"
)

// Queue is an unbounded lock-free multi-producer multi-consumer FIFO queue.
//
// Based on the Michael-Scott queue (PODC 1996). The list always holds a
// sentinel node; the oldest element lives in the sentinel's successor.
// Pop promotes that successor to be the new sentinel and retires the old
// one, so only Push allocates.
//
// Nodes are addressed by generation-tagged refs into an arena rather than
// by pointers. head and tail are 64-bit words updated by CAS; tail may lag
// the true end of the list but never falls behind head.
//
// Memory: one arena node per element plus the sentinel; retired nodes are
// recycled according to the queue's [Reclamation].
type Queue[T any] struct {
	_     pad
	head  atomix.Uint64 // Ref of the sentinel
	_     pad
	tail  atomix.Uint64 // Ref at or before the last node
	_     pad
	len   atomix.Int64 // Advisory
	_     pad
	arena *arena.Arena[T]
	reclaimer
}

// NewQueue creates an empty queue with epoch reclamation in a private domain.
func NewQueue[T any]() *Queue[T] {
	return newQueue[T](New().opts)
}

func newQueue[T any](o Options) *Queue[T] {
	q := &Queue[T]{
		arena:     arena.New[T](o.segment),
		reclaimer: newReclaimer(o),
	}
	var zero T
	sentinel := q.arena.Alloc(zero)
	q.head.StoreRelaxed(uint64(sentinel))
	q.tail.StoreRelaxed(uint64(sentinel))
	return q
}

// Push appends item to the queue. It never blocks and always succeeds.
//
// Panics if the queue has been closed or its node arena is exhausted.
func (q *Queue[T]) Push(item T) {
	g := q.pin()
	node := q.arena.Alloc(item)

	sw := spin.Wait{}
	cur := arena.Ref(q.tail.LoadAcquire())
	for {
		if cur.IsNil() {
			q.arena.Release(node)
			g.Unpin()
			panic("msq: push on closed queue")
		}
		n := q.arena.Node(cur)
		next := arena.Ref(n.Next.LoadAcquire())
		if !n.Live(cur) {
			// Walked onto a recycled node (manual reclamation).
			cur = arena.Ref(q.tail.LoadAcquire())
			continue
		}
		if !next.IsNil() {
			// Another producer linked past cur: help tail along and keep walking.
			q.tail.CompareAndSwapAcqRel(uint64(cur), uint64(next))
			cur = next
			continue
		}
		if n.Next.CompareAndSwapAcqRel(uint64(arena.Nil(cur.Gen())), uint64(node)) {
			break
		}
		sw.Once()
	}

	// Failure means a helper already moved tail past cur.
	q.tail.CompareAndSwapAcqRel(uint64(cur), uint64(node))
	q.len.AddAcqRel(1)
	g.Unpin()
}

// Pop removes and returns the oldest element.
// Returns (zero-value, false) if the queue is observed empty.
//
// The emptiness fast path consults the advisory length, so Pop may report
// empty while a concurrent Push is still in flight.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.len.LoadAcquire() <= 0 {
		return zero, false
	}

	g := q.pin()
	sw := spin.Wait{}
	for {
		head := arena.Ref(q.head.LoadAcquire())
		tail := arena.Ref(q.tail.LoadAcquire())
		if head.IsNil() {
			g.Unpin()
			return zero, false
		}
		hn := q.arena.Node(head)
		next := arena.Ref(hn.Next.LoadAcquire())
		if arena.Ref(q.head.LoadAcquire()) != head {
			sw.Once()
			continue
		}
		if next.IsNil() {
			g.Unpin()
			return zero, false
		}
		if head == tail {
			// Never move head past tail.
			q.tail.CompareAndSwapAcqRel(uint64(tail), uint64(next))
			continue
		}

		nn := q.arena.Node(next)
		var item T
		if !g.Protected() {
			// Unprotected, next may be recycled the moment head moves past
			// it, so copy first and let the CAS validate the copy.
			item = nn.Item
		}
		if q.head.CompareAndSwapAcqRel(uint64(head), uint64(next)) {
			if g.Protected() {
				item = nn.Item
				nn.Item = zero
			}
			g.Defer(q.arena, uint64(head))
			q.len.AddAcqRel(-1)
			g.Unpin()
			return item, true
		}
		sw.Once()
	}
}

// Enqueue adds an element to the queue.
// The queue is unbounded, so Enqueue always returns nil.
func (q *Queue[T]) Enqueue(elem *T) error {
	q.Push(*elem)
	return nil
}

// Dequeue removes and returns the oldest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) Dequeue() (T, error) {
	item, ok := q.Pop()
	if !ok {
		return item, ErrWouldBlock
	}
	return item, nil
}

// Len returns the advisory element count. It may be stale relative to
// concurrent pushes and pops and never goes below zero.
func (q *Queue[T]) Len() int {
	n := q.len.LoadAcquire()
	if n < 0 {
		return 0
	}
	return int(n)
}

// IsEmpty reports whether Len is zero. Like Len, it is advisory.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// All returns an iterator that pops elements until the queue is observed
// empty or the loop stops.
func (q *Queue[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := q.Pop()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Close drains the queue and releases the final sentinel through the
// reclamation strategy. It returns the number of elements discarded.
//
// Close must not run concurrently with other operations. Push after Close
// panics; Pop after Close reports empty. Closing twice is a no-op.
func (q *Queue[T]) Close() int {
	n := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		n++
	}

	head := q.head.LoadAcquire()
	if arena.Ref(head).IsNil() {
		return n
	}
	g := q.pin()
	q.head.StoreRelease(0)
	q.tail.StoreRelease(0)
	g.Defer(q.arena, head)
	g.Unpin()
	q.settle()
	return n
}
