// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains concurrent correctness tests. Element slots are plain
// memory ordered by atomix acquire-release operations, which the race
// detector cannot see, so these tests are excluded from race builds.

package msq_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
	"code.hybscloud.com/msq/epoch"
)

// tag packs a producer id and sequence number into one element.
func tag(p, i int) uint64 { return uint64(p)<<32 | uint64(i) }

func untag(v uint64) (p, i int) { return int(v >> 32), int(uint32(v)) }

// stressItems returns the per-producer element count for stress tests.
func stressItems(t *testing.T, full int) int {
	if testing.Short() {
		return full / 20
	}
	return full
}

// runMPMC pushes producers*items tagged elements through b with the given
// number of consumers and returns, per producer, the order each consumer saw.
func runMPMC(t *testing.T, b msq.Buffer[uint64], producers, consumers, items int) [][]atomix.Int32 {
	t.Helper()
	seen := make([][]atomix.Int32, producers)
	for p := range seen {
		seen[p] = make([]atomix.Int32, items)
	}

	total := int64(producers * items)
	var consumed atomix.Int64
	var wg sync.WaitGroup

	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				v := tag(p, i)
				b.Enqueue(&v)
			}
		}()
	}
	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backoff := iox.Backoff{}
			for consumed.Load() < total {
				v, err := b.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				p, i := untag(v)
				if p >= producers || i >= items {
					t.Errorf("corrupt element %#x", v)
					consumed.Add(1)
					continue
				}
				seen[p][i].Add(1)
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()
	return seen
}

func checkExactlyOnce(t *testing.T, seen [][]atomix.Int32) {
	t.Helper()
	lost, dup := 0, 0
	for p := range seen {
		for i := range seen[p] {
			switch seen[p][i].Load() {
			case 0:
				lost++
			case 1:
			default:
				dup++
			}
		}
	}
	if lost != 0 || dup != 0 {
		t.Fatalf("lost %d, duplicated %d", lost, dup)
	}
}

// =============================================================================
// Queue - Concurrent
// =============================================================================

// TestQueueStress moves 4 producers x 1,000,000 elements through 4
// consumers and checks exactly-once delivery under both strategies.
func TestQueueStress(t *testing.T) {
	items := stressItems(t, 1_000_000)
	for _, b := range builders {
		t.Run(b.name, func(t *testing.T) {
			q := msq.Build[uint64](b.new())
			seen := runMPMC(t, q, 4, 4, items)
			checkExactlyOnce(t, seen)
			if _, ok := q.Pop(); ok {
				t.Fatal("queue not empty after stress")
			}
			if n := q.Close(); n != 0 {
				t.Fatalf("Close: discarded %d", n)
			}
			if n := q.ArenaLive(); n != 0 {
				t.Fatalf("live nodes after Close: %d", n)
			}
		})
	}
}

// TestQueuePerProducerOrder checks that a single consumer sees every
// producer's elements in push order.
func TestQueuePerProducerOrder(t *testing.T) {
	const producers = 4
	items := stressItems(t, 200_000)
	for _, b := range builders[:2] {
		t.Run(b.name, func(t *testing.T) {
			q := msq.Build[uint64](b.new())
			defer q.Close()

			var wg sync.WaitGroup
			for p := range producers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range items {
						q.Push(tag(p, i))
					}
				}()
			}

			next := make([]int, producers)
			backoff := iox.Backoff{}
			for got := 0; got < producers*items; {
				v, ok := q.Pop()
				if !ok {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				p, i := untag(v)
				if i != next[p] {
					t.Fatalf("producer %d: got seq %d, want %d", p, i, next[p])
				}
				next[p]++
				got++
			}
			wg.Wait()
		})
	}
}

// TestQueueLenNeverNegative samples Len while the queue churns.
func TestQueueLenNeverNegative(t *testing.T) {
	q := msq.NewQueue[int]()
	defer q.Close()

	var done atomix.Bool
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range stressItems(t, 100_000) {
				q.Push(i)
				q.Pop()
			}
		}()
	}
	go func() {
		wg.Wait()
		done.Store(true)
	}()
	for !done.Load() {
		if n := q.Len(); n < 0 {
			t.Fatalf("Len: %d", n)
		}
	}
}

// =============================================================================
// Stack - Concurrent
// =============================================================================

func TestStackStress(t *testing.T) {
	items := stressItems(t, 500_000)
	for _, b := range builders {
		t.Run(b.name, func(t *testing.T) {
			s := msq.BuildStack[uint64](b.new())
			seen := runMPMC(t, s, 4, 4, items)
			checkExactlyOnce(t, seen)
			if n := s.Close(); n != 0 {
				t.Fatalf("Close: discarded %d", n)
			}
			if n := s.ArenaLive(); n != 0 {
				t.Fatalf("live nodes after Close: %d", n)
			}
		})
	}
}

// =============================================================================
// Shared Domain - Concurrent
// =============================================================================

// TestSharedDomainStress drives a queue and a stack through one domain at
// the same time.
func TestSharedDomainStress(t *testing.T) {
	d := epoch.New()
	q := msq.Build[uint64](msq.New().Domain(d))
	s := msq.BuildStack[uint64](msq.New().Domain(d))
	items := stressItems(t, 200_000)

	var wg sync.WaitGroup
	var qSeen, sSeen [][]atomix.Int32
	wg.Add(2)
	go func() { defer wg.Done(); qSeen = runMPMC(t, q, 2, 2, items) }()
	go func() { defer wg.Done(); sSeen = runMPMC(t, s, 2, 2, items) }()
	wg.Wait()

	checkExactlyOnce(t, qSeen)
	checkExactlyOnce(t, sSeen)

	q.Close()
	s.Close()
	d.Barrier()
	if d.Pending() != 0 {
		t.Fatalf("Pending after Barrier: %d", d.Pending())
	}
	if q.ArenaLive() != 0 || s.ArenaLive() != 0 {
		t.Fatalf("live nodes: queue %d, stack %d", q.ArenaLive(), s.ArenaLive())
	}
	if want := uint64(4*items + 1); d.Released() != want {
		t.Fatalf("Released: got %d, want %d", d.Released(), want)
	}
}
