// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

// Guard is a pinned participant of a [Domain].
//
// A Guard belongs to the goroutine that pinned it and must not be used
// after Unpin. Copies share one pin: once any copy is unpinned, Unpin,
// Defer, DeferFunc and Flush on every copy panic. The zero value is the
// unprotected guard.
type Guard struct {
	d   *Domain
	rec *record
	seq uint64 // value of rec.pins when pinned
}

// Unprotected returns a guard that protects nothing. Defer and DeferFunc
// on it run the release immediately; Unpin and Flush are no-ops.
func Unprotected() Guard {
	return Guard{}
}

// Protected reports whether the guard is pinned in a domain.
func (g Guard) Protected() bool {
	return g.rec != nil
}

// Unpin marks the goroutine as no longer reading shared nodes and gives
// the participant record back to the domain.
func (g Guard) Unpin() {
	if g.rec == nil {
		return
	}
	g.check()
	// Retire the pin before the record can be claimed again, so no copy of
	// g can match a later owner's sequence.
	g.rec.pins.StoreRelease(g.seq + 1)
	s := g.rec.state.LoadRelaxed()
	g.rec.state.StoreRelease(s &^ pinnedBit)
	g.rec.owned.StoreRelease(0)
}

// check panics if g has been unpinned.
func (g Guard) check() {
	if g.rec.pins.LoadAcquire() != g.seq {
		panic("epoch: guard used after Unpin")
	}
}

// Defer schedules r.Reclaim(ref) for when no guard pinned before this call
// can still be observing the object.
func (g Guard) Defer(r Reclaimer, ref uint64) {
	if g.rec == nil {
		r.Reclaim(ref)
		return
	}
	g.check()
	g.push(deferred{r: r, ref: ref})
}

// DeferFunc is Defer for an arbitrary release function.
// fn must not use this guard.
func (g Guard) DeferFunc(fn func()) {
	if g.rec == nil {
		fn()
		return
	}
	g.check()
	g.push(deferred{fn: fn})
}

// Flush tries to advance the epoch and runs this participant's expired
// releases. Returns the number run.
func (g Guard) Flush() int {
	if g.rec == nil {
		return 0
	}
	g.check()
	return g.d.collect(g.rec)
}

func (g Guard) push(item deferred) {
	// Tag with the global epoch, which is never behind the epoch of any
	// guard that could have loaded the object before it was unlinked.
	item.epoch = g.d.global.Load()
	g.rec.bag = append(g.rec.bag, item)
	g.d.pending.AddAcqRel(1)
	if len(g.rec.bag)%g.d.batch == 0 {
		g.d.collect(g.rec)
	}
}
