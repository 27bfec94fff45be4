// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msq provides an unbounded lock-free FIFO queue and LIFO stack.
//
// Both containers are safe for any number of producer and consumer
// goroutines. No operation takes a lock or parks a goroutine: a failed
// CAS is retried after a CPU pause.
//
//   - Queue: Michael-Scott linked queue with tail helping
//   - Stack: Treiber stack
//
// # Quick Start
//
//	q := msq.NewQueue[Event]()
//	q.Push(ev)
//	ev, ok := q.Pop()
//
//	s := msq.NewStack[*Buffer]()
//	s.Push(buf)
//	buf, ok := s.Pop()
//
// Builder API selects the reclamation strategy and arena sizing:
//
//	q := msq.Build[Event](msq.New())                        // epoch, private domain
//	q := msq.Build[Event](msq.New().Manual())               // manual reclamation
//	q := msq.Build[Event](msq.New().Domain(d))              // epoch, shared domain
//	q := msq.Build[Event](msq.New().Segment(1 << 16))       // larger first segment
//
// # Basic Usage
//
// Push never fails. Pop reports whether it found an element:
//
//	q := msq.NewQueue[int]()
//	q.Push(42)
//
//	if v, ok := q.Pop(); ok {
//	    fmt.Println(v)
//	}
//
// Queue and Stack also implement [Buffer], the pointer-in / error-out shape
// shared with bounded queues, where an empty container reports
// [ErrWouldBlock]:
//
//	elem, err := q.Dequeue()
//	if msq.IsWouldBlock(err) {
//	    // Empty - try again later
//	}
//
// # Waiting for Elements
//
// The containers have no blocking operations. A consumer that wants to
// wait polls with backoff, or pairs the queue with its own notification:
//
//	backoff := iox.Backoff{}
//	for {
//	    v, ok := q.Pop()
//	    if !ok {
//	        backoff.Wait()
//	        continue
//	    }
//	    backoff.Reset()
//	    handle(v)
//	}
//
// # Node Storage
//
// Elements live in arena nodes addressed by a 32-bit slot index tagged with
// a 32-bit generation. The arena grows by doubling segments and never
// shrinks while the container is reachable. Released nodes go back on a
// lock-free free list and are reused before the arena grows.
//
// Because every head, tail, top and link word names an exact node
// incarnation, a CAS against a node that has been recycled since it was
// loaded always fails.
//
// # Reclamation
//
// A node unlinked by Pop is retired. Two strategies decide when it is
// released for reuse:
//
//	Epoch  - release is deferred through an epoch.Domain until every
//	         goroutine that could still be reading the node has finished
//	         its operation (default)
//	Manual - the popping goroutine releases the node immediately
//
// Epoch reclamation lets Pop read an element after it has won the CAS and
// clear the node's slot straight away. Manual reclamation has no
// per-operation pinning cost, but Pop has to copy the element before its
// CAS (the node may be recycled right after) and a promoted sentinel keeps
// a reference to its former element until the next Pop releases it.
//
// Epoch domains are explicit. By default every container owns a private
// domain; pass the same [epoch.Domain] to several containers to share one.
//
// # Length
//
// Len and IsEmpty read a counter that is updated after the CAS that links
// or unlinks a node, so they are hints. Pop consults the counter as a fast
// path and may report empty while a concurrent Push has linked its node
// but not yet counted it. Callers that need an exact count track it in
// application logic.
//
// # Teardown
//
// Close drains remaining elements and releases the queue's final sentinel.
// Close must not overlap other operations on the same container.
//
// # Race Detection
//
// Go's race detector does not model atomix memory orderings. Element slots
// are written and read as plain memory, ordered by acquire-release atomics
// on the link words, so the detector may report false positives. Under
// manual reclamation Pop also copies an element speculatively and discards
// the copy when its CAS fails; that copy can overlap a write to a recycled
// node, which is harmless but reported.
//
// Tests incompatible with race detection are excluded via //go:build !race
// or skipped when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package msq
