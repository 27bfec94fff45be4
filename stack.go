// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq/internal/arena"
	"code.hybscloud.com/spin"
)

// Stack is an unbounded lock-free multi-producer multi-consumer LIFO stack.
//
// Based on Treiber's stack (IBM RJ 5118, 1986). top is a generation-tagged
// ref, so a pop that raced with the recycling of the node it loaded fails
// its CAS instead of installing a stale successor (the ABA problem).
//
// Stack shares node storage and reclamation strategies with [Queue].
type Stack[T any] struct {
	_     pad
	top   atomix.Uint64 // Ref of the top node, or 0
	_     pad
	len   atomix.Int64 // Advisory
	_     pad
	arena *arena.Arena[T]
	reclaimer
}

// closedTop marks a closed stack. Its index is 0, so Pop sees it as empty.
var closedTop = arena.Nil(^uint32(0))

// NewStack creates an empty stack with epoch reclamation in a private domain.
func NewStack[T any]() *Stack[T] {
	return newStack[T](New().opts)
}

func newStack[T any](o Options) *Stack[T] {
	return &Stack[T]{
		arena:     arena.New[T](o.segment),
		reclaimer: newReclaimer(o),
	}
}

// Push places item on top of the stack. It never blocks and always succeeds.
//
// Panics if the stack has been closed or its node arena is exhausted.
func (s *Stack[T]) Push(item T) {
	g := s.pin()
	node := s.arena.Alloc(item)
	n := s.arena.Node(node)

	sw := spin.Wait{}
	for {
		top := s.top.LoadAcquire()
		if arena.Ref(top) == closedTop {
			s.arena.Release(node)
			g.Unpin()
			panic("msq: push on closed stack")
		}
		n.Next.StoreRelaxed(top)
		if s.top.CompareAndSwapAcqRel(top, uint64(node)) {
			break
		}
		sw.Once()
	}
	s.len.AddAcqRel(1)
	g.Unpin()
}

// Pop removes and returns the most recently pushed element.
// Returns (zero-value, false) if the stack is empty.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	g := s.pin()
	sw := spin.Wait{}
	for {
		top := arena.Ref(s.top.LoadAcquire())
		if top.IsNil() {
			g.Unpin()
			return zero, false
		}
		n := s.arena.Node(top)
		next := n.Next.LoadAcquire()

		var item T
		if !g.Protected() {
			item = n.Item
		}
		if s.top.CompareAndSwapAcqRel(uint64(top), next) {
			if g.Protected() {
				item = n.Item
			}
			g.Defer(s.arena, uint64(top))
			s.len.AddAcqRel(-1)
			g.Unpin()
			return item, true
		}
		sw.Once()
	}
}

// Enqueue pushes an element. The stack is unbounded, so Enqueue always
// returns nil.
func (s *Stack[T]) Enqueue(elem *T) error {
	s.Push(*elem)
	return nil
}

// Dequeue pops an element.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *Stack[T]) Dequeue() (T, error) {
	item, ok := s.Pop()
	if !ok {
		return item, ErrWouldBlock
	}
	return item, nil
}

// Len returns the advisory element count, never below zero.
func (s *Stack[T]) Len() int {
	n := s.len.LoadAcquire()
	if n < 0 {
		return 0
	}
	return int(n)
}

// IsEmpty reports whether Len is zero.
func (s *Stack[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Close pops every remaining element and settles reclamation.
// It returns the number of elements discarded.
//
// Close must not run concurrently with other operations. Push after Close
// panics; Pop after Close reports empty. Closing twice is a no-op.
func (s *Stack[T]) Close() int {
	n := 0
	for {
		if _, ok := s.Pop(); !ok {
			break
		}
		n++
	}
	s.top.StoreRelease(uint64(closedTop))
	s.settle()
	return n
}
