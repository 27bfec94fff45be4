// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/cpu"
)

// ReclaimRing selects the bounded array baseline. It has no node
// reclamation at all; slots are reused in place.
const ReclaimRing = "ring"

// defaultRingSize is the ring capacity when Segment is unset.
const defaultRingSize = 1 << 14

// ringQueue is a bounded lock-free MPMC array queue with per-slot sequence
// numbers (Vyukov). Slot i is free for the producer at position p when its
// sequence equals p, and full for the consumer at position p when it
// equals p+1.
type ringQueue[T any] struct {
	_     cpu.CacheLinePad
	tail  atomix.Uint64
	_     cpu.CacheLinePad
	head  atomix.Uint64
	_     cpu.CacheLinePad
	slots []ringSlot[T]
	mask  uint64
}

type ringSlot[T any] struct {
	seq  atomix.Uint64
	data T
}

// newRingQueue creates a ring holding size elements. size must be a power
// of two.
func newRingQueue[T any](size int) *ringQueue[T] {
	n := uint64(size)
	q := &ringQueue[T]{
		slots: make([]ringSlot[T], n),
		mask:  n - 1,
	}
	for i := range q.slots {
		q.slots[i].seq.StoreRelaxed(uint64(i))
	}
	return q
}

// Enqueue returns msq.ErrWouldBlock when the ring is full.
func (q *ringQueue[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.slots[tail&q.mask]
		diff := int64(slot.seq.LoadAcquire()) - int64(tail)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.data = *elem
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		case diff < 0:
			return msq.ErrWouldBlock
		}
		sw.Once()
	}
}

func (q *ringQueue[T]) Dequeue() (T, error) {
	var zero T
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.slots[head&q.mask]
		diff := int64(slot.seq.LoadAcquire()) - int64(head+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.data
				slot.data = zero
				slot.seq.StoreRelease(head + q.mask + 1)
				return elem, nil
			}
		case diff < 0:
			return zero, msq.ErrWouldBlock
		}
		sw.Once()
	}
}

// Len is advisory.
func (q *ringQueue[T]) Len() int {
	n := int64(q.tail.LoadAcquire() - q.head.LoadAcquire())
	if n < 0 {
		return 0
	}
	return int(n)
}
