// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena provides generation-tagged node storage for linked
// lock-free structures.
//
// Nodes live in segments that are never returned to the Go allocator while
// the arena is reachable. A node is addressed by a [Ref]: its slot index
// plus the generation the slot had when the ref was minted. Releasing a slot
// bumps its generation, so every CAS against a stale ref fails and a reader
// can detect that the node it is looking at has been recycled.
package arena

import (
	"math"
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/cpu"
)

// maxSegments bounds the segment directory. With doubling segment sizes
// this covers the full 32-bit index space for any base size >= 1.
const maxSegments = 33

// Ref identifies a node incarnation: low 32 bits index, high 32 bits generation.
type Ref uint64

// MakeRef packs an index and a generation.
func MakeRef(index, gen uint32) Ref {
	return Ref(uint64(gen)<<32 | uint64(index))
}

// Nil returns the null link tagged with generation gen.
func Nil(gen uint32) Ref {
	return MakeRef(0, gen)
}

// Index returns the slot index.
func (r Ref) Index() uint32 { return uint32(r) }

// Gen returns the slot generation.
func (r Ref) Gen() uint32 { return uint32(r >> 32) }

// IsNil reports whether r is a null link.
func (r Ref) IsNil() bool { return uint32(r) == 0 }

// Node is a list cell. Item is owned by whoever holds the node exclusively;
// Next is the only field shared while the node is linked.
type Node[T any] struct {
	Next atomix.Uint64 // Ref of the successor, or Nil(gen)
	gen  atomix.Uint64
	free atomix.Uint64 // free-list successor index
	Item T
}

// Live reports whether the node still belongs to the incarnation named by r.
func (n *Node[T]) Live(r Ref) bool {
	return uint32(n.gen.LoadAcquire()) == r.Gen()
}

type segment[T any] struct {
	nodes []Node[T]
}

// Arena hands out nodes and takes them back.
//
// Alloc and Release are lock-free and safe for concurrent use. Memory is
// only ever grown; released slots are recycled through a tagged Treiber
// free list.
type Arena[T any] struct {
	_     cpu.CacheLinePad
	top   atomix.Uint64 // free list: version<<32 | index
	_     cpu.CacheLinePad
	bump  atomix.Uint64 // next never-used index
	_     cpu.CacheLinePad
	live  atomix.Int64
	_     cpu.CacheLinePad
	segs  [maxSegments]atomic.Pointer[segment[T]]
	base  uint64
	order uint
}

// New creates an arena whose first segment holds base slots.
// base must be a power of two.
func New[T any](base int) *Arena[T] {
	if base < 2 || base&(base-1) != 0 {
		panic("arena: base must be a power of two >= 2")
	}
	a := &Arena[T]{
		base:  uint64(base),
		order: uint(bits.TrailingZeros64(uint64(base))),
	}
	a.segs[0].Store(&segment[T]{nodes: make([]Node[T], base)})
	// Index 0 is the nil slot and is never handed out.
	a.bump.StoreRelaxed(1)
	return a
}

// locate maps an index to its segment number and offset.
// Segment k covers [base*(2^k-1), base*(2^(k+1)-1)).
func (a *Arena[T]) locate(index uint64) (k int, off uint64) {
	q := index>>a.order + 1
	k = bits.Len64(q) - 1
	off = index - a.base*(uint64(1)<<k-1)
	return k, off
}

// Node returns the node addressed by r's index, regardless of generation.
// Callers that may hold a stale ref must check [Node.Live].
func (a *Arena[T]) Node(r Ref) *Node[T] {
	k, off := a.locate(uint64(r.Index()))
	return &a.segs[k].Load().nodes[off]
}

// Alloc takes a node, stores item in it and returns its ref.
// The node's Next is the null link of the returned generation.
//
// Panics when the 32-bit index space is exhausted.
func (a *Arena[T]) Alloc(item T) Ref {
	sw := spin.Wait{}
	for {
		top := a.top.LoadAcquire()
		index := uint32(top)
		if index == 0 {
			break
		}
		n := a.Node(Ref(index))
		next := n.free.LoadAcquire()
		if a.top.CompareAndSwapAcqRel(top, (top>>32+1)<<32|next) {
			gen := uint32(n.gen.LoadAcquire())
			n.Item = item
			n.Next.StoreRelease(uint64(Nil(gen)))
			a.live.AddAcqRel(1)
			return MakeRef(index, gen)
		}
		sw.Once()
	}

	index := a.bump.AddAcqRel(1) - 1
	if index > math.MaxUint32 {
		panic("arena: node index space exhausted")
	}
	a.grow(index)
	n := a.Node(Ref(index))
	n.Item = item
	n.Next.StoreRelease(uint64(Nil(0)))
	a.live.AddAcqRel(1)
	return MakeRef(uint32(index), 0)
}

// grow makes sure the segment holding index exists. Racing allocators may
// both build the segment; only one is installed.
func (a *Arena[T]) grow(index uint64) {
	k, _ := a.locate(index)
	if a.segs[k].Load() != nil {
		return
	}
	seg := &segment[T]{nodes: make([]Node[T], a.base<<k)}
	a.segs[k].CompareAndSwap(nil, seg)
}

// Release returns the node named by r to the free list. The item is zeroed
// and the generation bumped before the slot becomes reusable.
//
// Release must be called at most once per incarnation.
func (a *Arena[T]) Release(r Ref) {
	n := a.Node(r)
	var zero T
	n.Item = zero
	n.gen.StoreRelease(uint64(r.Gen() + 1))

	sw := spin.Wait{}
	for {
		top := a.top.LoadAcquire()
		n.free.StoreRelease(uint64(uint32(top)))
		if a.top.CompareAndSwapAcqRel(top, (top>>32+1)<<32|uint64(r.Index())) {
			break
		}
		sw.Once()
	}
	a.live.AddAcqRel(-1)
}

// Live returns the number of allocated, unreleased nodes.
func (a *Arena[T]) Live() int {
	return int(a.live.LoadAcquire())
}

// Cap returns the number of slots provisioned so far, excluding the nil slot.
func (a *Arena[T]) Cap() int {
	n := 0
	for k := range a.segs {
		if a.segs[k].Load() == nil {
			break
		}
		n += int(a.base << k)
	}
	return n - 1
}

// Reclaim is Release for callers that carry refs as plain words,
// such as deferred reclamation queues.
func (a *Arena[T]) Reclaim(ref uint64) {
	a.Release(Ref(ref))
}
