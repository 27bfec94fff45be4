// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package epoch implements epoch-based deferred reclamation.
//
// A [Domain] tracks a global epoch and a registry of participants. A
// goroutine that is about to read shared nodes pins a [Guard]; while the
// guard is pinned, nothing deferred after the guard was pinned is run.
// Nodes unlinked from a shared structure are handed to [Guard.Defer] and
// released once the global epoch has advanced twice past the epoch in
// which they were deferred, which can only happen after every guard that
// might still observe them has been unpinned.
//
// Basic usage:
//
//	d := epoch.New()
//
//	g := d.Pin()
//	// ... load and traverse shared nodes ...
//	g.Defer(pool, ref) // pool.Reclaim(ref) runs later
//	g.Unpin()
//
// Domains are explicit values. Structures that should share a reclamation
// domain are given the same *Domain; structures that should not interfere
// each get their own.
//
// [Unprotected] returns a guard that protects nothing: Defer runs the
// release immediately. Structures use it to express manual reclamation
// through the same interface.
//
// Goroutines have no thread-local storage, so a pinned guard owns one
// participant record exclusively until Unpin. Records are never freed;
// an unpinned record is picked up by the next Pin, together with any
// deferred releases still waiting in it. Using a guard after Unpin
// panics, even when the record has already passed to another goroutine.
package epoch
