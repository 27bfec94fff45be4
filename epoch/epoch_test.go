// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/msq/epoch"
	"github.com/stretchr/testify/require"
)

// counter records reclaimed refs.
type counter struct {
	mu   sync.Mutex
	refs []uint64
}

func (c *counter) Reclaim(ref uint64) {
	c.mu.Lock()
	c.refs = append(c.refs, ref)
	c.mu.Unlock()
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.refs)
}

func TestUnprotectedRunsImmediately(t *testing.T) {
	g := epoch.Unprotected()
	require.False(t, g.Protected())

	c := &counter{}
	g.Defer(c, 7)
	require.Equal(t, []uint64{7}, c.refs)

	ran := false
	g.DeferFunc(func() { ran = true })
	require.True(t, ran)

	require.Equal(t, 0, g.Flush())
	g.Unpin()
}

func TestDeferWaitsForEpochs(t *testing.T) {
	d := epoch.New()
	c := &counter{}

	g := d.Pin()
	require.True(t, g.Protected())
	g.Defer(c, 1)
	require.Equal(t, 1, d.Pending())
	require.Equal(t, 0, c.count())
	g.Unpin()

	require.Equal(t, 1, d.Barrier())
	require.Equal(t, 1, c.count())
	require.Equal(t, 0, d.Pending())
	require.Equal(t, uint64(1), d.Released())
}

func TestPinnedGuardBlocksRelease(t *testing.T) {
	d := epoch.New()
	c := &counter{}

	reader := d.Pin()

	w := d.Pin()
	w.Defer(c, 42)
	w.Unpin()

	// The reader was pinned before the release was deferred, so the epoch
	// cannot move far enough while it stays pinned.
	for range 5 {
		d.Barrier()
	}
	require.Equal(t, 0, c.count())
	require.Equal(t, 1, d.Pending())

	reader.Unpin()
	require.Equal(t, 1, d.Barrier())
	require.Equal(t, []uint64{42}, c.refs)
}

func TestEpochAdvancesOnlyPastPinned(t *testing.T) {
	d := epoch.New()
	start := d.Epoch()

	g := d.Pin()
	d.Barrier()
	// One step is allowed (the guard observed the starting epoch);
	// further steps wait for it.
	require.LessOrEqual(t, d.Epoch(), start+1)
	g.Unpin()

	d.Barrier()
	require.Greater(t, d.Epoch(), start+1)
}

func TestRecordsAreReused(t *testing.T) {
	d := epoch.New()
	for range 100 {
		g := d.Pin()
		g.Unpin()
	}
	require.Equal(t, 1, d.Participants())

	a := d.Pin()
	b := d.Pin()
	require.Equal(t, 2, d.Participants())
	a.Unpin()
	b.Unpin()
}

func TestBatchTriggersCollection(t *testing.T) {
	d := epoch.New().WithBatch(4)
	c := &counter{}

	for i := range 64 {
		g := d.Pin()
		g.Defer(c, uint64(i))
		g.Unpin()
	}
	// With no long-lived guards, batch collections keep the backlog small.
	require.Greater(t, c.count(), 0)
	require.Less(t, d.Pending(), 64)

	d.Barrier()
	require.Equal(t, 64, c.count())
	require.Equal(t, 0, d.Pending())
}

func TestFlush(t *testing.T) {
	d := epoch.New()
	ran := 0

	g := d.Pin()
	g.DeferFunc(func() { ran++ })
	// The guard itself is pinned at the tagging epoch, so its own flush
	// cannot expire the release yet.
	require.Equal(t, 0, g.Flush())
	g.Unpin()

	for range 3 {
		g = d.Pin()
		g.Flush()
		g.Unpin()
	}
	require.Equal(t, 1, ran)
}

func TestWithBatchPanics(t *testing.T) {
	require.Panics(t, func() { epoch.New().WithBatch(0) })
}

func TestStaleGuardPanics(t *testing.T) {
	d := epoch.New()
	c := &counter{}

	g := d.Pin()
	g.Unpin()
	require.PanicsWithValue(t, "epoch: guard used after Unpin", g.Unpin)

	// The record is reused by the next Pin; the stale copy must not be
	// able to unpin it.
	h := d.Pin()
	require.Equal(t, 1, d.Participants())
	require.PanicsWithValue(t, "epoch: guard used after Unpin", g.Unpin)
	require.Panics(t, func() { g.Defer(c, 1) })
	require.Panics(t, func() { g.DeferFunc(func() {}) })
	require.Panics(t, func() { g.Flush() })

	w := d.Pin()
	w.Defer(c, 9)
	w.Unpin()
	for range 5 {
		d.Barrier()
	}
	require.Equal(t, 0, c.count(), "released while h still pinned")

	h.Unpin()
	d.Barrier()
	require.Equal(t, []uint64{9}, c.refs)
}

func TestGuardCopiesShareOnePin(t *testing.T) {
	d := epoch.New()
	g := d.Pin()
	cp := g
	cp.Unpin()
	require.Panics(t, g.Unpin)
}
