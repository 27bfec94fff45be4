// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

const (
	defaultBatch = 64
	pinnedBit    = 1
)

// Reclaimer takes back a retired object identified by a machine word.
type Reclaimer interface {
	Reclaim(ref uint64)
}

type deferred struct {
	epoch uint64
	r     Reclaimer
	ref   uint64
	fn    func()
}

func (d deferred) run() {
	if d.fn != nil {
		d.fn()
		return
	}
	d.r.Reclaim(d.ref)
}

// record is a participant slot. state and owned are shared; bag is only
// touched by the goroutine that owns the record.
type record struct {
	_     cpu.CacheLinePad
	state atomix.Uint64 // epoch<<1 | pinnedBit
	owned atomix.Uint64 // 1 while claimed by a guard or a Barrier
	pins  atomix.Uint64 // bumped by every Pin and Unpin
	_     cpu.CacheLinePad
	bag   []deferred
	next  *record // immutable once published
}

// Domain is an epoch-based reclamation domain.
//
// The zero value is not usable; create domains with [New].
type Domain struct {
	_        cpu.CacheLinePad
	global   atomix.Uint64
	_        cpu.CacheLinePad
	head     atomic.Pointer[record]
	_        cpu.CacheLinePad
	pending  atomix.Int64
	released atomix.Uint64
	records  atomix.Int64
	batch    int
}

// New creates a reclamation domain.
func New() *Domain {
	return &Domain{batch: defaultBatch}
}

// WithBatch sets how many deferred releases a participant accumulates
// between collection attempts. Call before the domain is shared.
//
// Panics if n < 1.
func (d *Domain) WithBatch(n int) *Domain {
	if n < 1 {
		panic("epoch: batch must be >= 1")
	}
	d.batch = n
	return d
}

// Pin marks the calling goroutine as active in the current epoch and
// returns the guard that must be unpinned when the goroutine is done
// reading shared nodes.
func (d *Domain) Pin() Guard {
	rec := d.acquire()
	seq := rec.pins.AddAcqRel(1)
	for {
		// Sequentially consistent store then load: a collector either sees
		// this record pinned or we see the epoch it advanced to.
		e := d.global.Load()
		rec.state.Store(e<<1 | pinnedBit)
		if d.global.Load() == e {
			break
		}
	}
	return Guard{d: d, rec: rec, seq: seq}
}

// acquire claims an idle record or registers a new one.
func (d *Domain) acquire() *record {
	for r := d.head.Load(); r != nil; r = r.next {
		if r.owned.LoadRelaxed() == 0 && r.owned.CompareAndSwapAcqRel(0, 1) {
			return r
		}
	}

	r := &record{}
	r.owned.StoreRelaxed(1)
	for {
		head := d.head.Load()
		r.next = head
		if d.head.CompareAndSwap(head, r) {
			break
		}
	}
	d.records.AddAcqRel(1)
	return r
}

// tryAdvance moves the global epoch forward by one if every pinned
// participant has observed the current epoch. Returns the epoch now in force.
func (d *Domain) tryAdvance() uint64 {
	e := d.global.Load()
	for r := d.head.Load(); r != nil; r = r.next {
		s := r.state.Load()
		if s&pinnedBit != 0 && s>>1 != e {
			return e
		}
	}
	if d.global.CompareAndSwapAcqRel(e, e+1) {
		return e + 1
	}
	return d.global.Load()
}

// collect advances the epoch if possible and runs what has expired in rec.
func (d *Domain) collect(rec *record) int {
	return d.runExpired(rec, d.tryAdvance())
}

// runExpired runs every deferred release in rec whose epoch is at least two
// behind global. Caller owns rec.
func (d *Domain) runExpired(rec *record, global uint64) int {
	bag := rec.bag
	kept := bag[:0]
	n := 0
	for _, item := range bag {
		if item.epoch+2 <= global {
			item.run()
			n++
			continue
		}
		kept = append(kept, item)
	}
	clear(bag[len(kept):])
	rec.bag = kept
	if n > 0 {
		d.pending.AddAcqRel(-int64(n))
		d.released.AddAcqRel(uint64(n))
	}
	return n
}

// Barrier reconciles the domain: it tries to advance the epoch far enough
// for everything deferred before the call to expire, and runs the expired
// releases held by idle participants. Releases held by pinned guards, or
// blocked by them, are left in place.
//
// Returns the number of releases run.
func (d *Domain) Barrier() int {
	n := 0
	for range 3 {
		global := d.tryAdvance()
		for r := d.head.Load(); r != nil; r = r.next {
			if r.owned.CompareAndSwapAcqRel(0, 1) {
				n += d.runExpired(r, global)
				r.owned.StoreRelease(0)
			}
		}
	}
	return n
}

// Epoch returns the current global epoch.
func (d *Domain) Epoch() uint64 {
	return d.global.LoadAcquire()
}

// Pending returns the number of deferred releases not yet run.
func (d *Domain) Pending() int {
	return int(d.pending.LoadAcquire())
}

// Released returns the total number of deferred releases run.
func (d *Domain) Released() uint64 {
	return d.released.LoadAcquire()
}

// Participants returns the number of participant records ever registered,
// which bounds the peak number of simultaneously pinned guards.
func (d *Domain) Participants() int {
	return int(d.records.LoadAcquire())
}
