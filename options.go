// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "code.hybscloud.com/msq/epoch"

// defaultSegment is the number of node slots in the first arena segment.
const defaultSegment = 256

// maxSegment caps the first arena segment at 1M slots.
const maxSegment = 1 << 20

// Reclamation selects when a node unlinked from a queue or stack may be
// reused for a new element.
type Reclamation uint8

const (
	// Epoch defers reuse through an [epoch.Domain] until no goroutine that
	// was active when the node was unlinked can still be reading it.
	Epoch Reclamation = iota

	// Manual reuses a node as soon as the goroutine that unlinked it is
	// done with it. Safety rests on generation-tagged references: every
	// CAS names the exact node incarnation it expects, so a stale reader
	// can never link to or unlink a recycled node.
	Manual
)

// String returns "epoch" or "manual".
func (r Reclamation) String() string {
	switch r {
	case Epoch:
		return "epoch"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseReclamation parses the output of [Reclamation.String].
func ParseReclamation(s string) (Reclamation, bool) {
	switch s {
	case "epoch":
		return Epoch, true
	case "manual":
		return Manual, true
	}
	return Epoch, false
}

// Options configures queue and stack creation.
type Options struct {
	reclamation Reclamation
	domain      *epoch.Domain // shared domain, nil for a private one

	// Slots in the first arena segment (power of 2). Later segments double.
	segment int
}

// Builder creates queues and stacks with fluent configuration.
//
// Example:
//
//	// Epoch reclamation in a private domain (the default)
//	q := msq.Build[Event](msq.New())
//
//	// Two queues sharing one reclamation domain
//	d := epoch.New()
//	a := msq.Build[Event](msq.New().Domain(d))
//	b := msq.Build[Event](msq.New().Domain(d))
//
//	// Manual reclamation, larger first segment
//	s := msq.BuildStack[*Buffer](msq.New().Manual().Segment(4096))
type Builder struct {
	opts Options
}

// New creates a builder with the default configuration: epoch
// reclamation in a private domain, 256-slot first segment.
func New() *Builder {
	return &Builder{opts: Options{segment: defaultSegment}}
}

// Manual selects manual reclamation.
func (b *Builder) Manual() *Builder {
	b.opts.reclamation = Manual
	b.opts.domain = nil
	return b
}

// Epoch selects epoch reclamation in a private domain.
func (b *Builder) Epoch() *Builder {
	b.opts.reclamation = Epoch
	b.opts.domain = nil
	return b
}

// Reclamation selects r. Epoch reclamation uses a private domain unless
// [Builder.Domain] is called afterwards.
func (b *Builder) Reclamation(r Reclamation) *Builder {
	switch r {
	case Manual:
		return b.Manual()
	case Epoch:
		return b.Epoch()
	}
	panic("msq: unknown reclamation")
}

// Domain selects epoch reclamation in the shared domain d.
//
// Panics if d is nil.
func (b *Builder) Domain(d *epoch.Domain) *Builder {
	if d == nil {
		panic("msq: nil epoch domain")
	}
	b.opts.reclamation = Epoch
	b.opts.domain = d
	return b
}

// Segment sets the number of node slots in the first arena segment.
// Each further segment doubles the previous one.
//
// Size rounds up to the next power of 2, capped at 1<<20.
// Panics if n < 2.
func (b *Builder) Segment(n int) *Builder {
	if n < 2 {
		panic("msq: segment must be >= 2")
	}
	b.opts.segment = min(roundToPow2(n), maxSegment)
	return b
}

// Build creates a Queue[T].
func Build[T any](b *Builder) *Queue[T] {
	return newQueue[T](b.opts)
}

// BuildStack creates a Stack[T].
func BuildStack[T any](b *Builder) *Stack[T] {
	return newStack[T](b.opts)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
