// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

// Producer is the interface for adding elements.
//
// The element is passed by pointer to avoid copying large structs. The
// container stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Producer[T any] interface {
	// Enqueue adds an element (non-blocking).
	// Unbounded containers always return nil.
	Enqueue(elem *T) error
}

// Consumer is the interface for removing elements.
type Consumer[T any] interface {
	// Dequeue removes and returns an element (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if nothing is available.
	Dequeue() (T, error)
}

// Buffer is the combined producer-consumer interface implemented by
// [Queue] and [Stack].
//
// Len is advisory: in lock-free structures the count is maintained
// separately from the CAS that links or unlinks a node, so it can briefly
// disagree with what Dequeue observes.
//
// Example:
//
//	var b msq.Buffer[Job] = msq.NewQueue[Job]()
//
//	job := Job{ID: 1}
//	b.Enqueue(&job)
//
//	backoff := iox.Backoff{}
//	for {
//	    j, err := b.Dequeue()
//	    if msq.IsWouldBlock(err) {
//	        backoff.Wait()
//	        continue
//	    }
//	    backoff.Reset()
//	    run(j)
//	}
type Buffer[T any] interface {
	Producer[T]
	Consumer[T]
	Len() int
}
