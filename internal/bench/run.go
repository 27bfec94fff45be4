// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
	"code.hybscloud.com/msq/epoch"
	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrLost reports elements that were pushed but never popped.
	ErrLost = errors.New("bench: elements lost")
	// ErrDuplicate reports elements that were popped more than once.
	ErrDuplicate = errors.New("bench: elements duplicated")
)

// checkEvery is how many pushes a producer makes between context checks,
// and how many pops a consumer batches into one meter update.
const checkEvery = 1 << 10

// Run executes the workload described by cfg and verifies delivery.
//
// Worker p pushes the values p*Items .. p*Items+Items-1. In split mode
// Producers push and Consumers pop until Producers*Items elements have been
// seen; in pairs mode each of Producers workers pops once after every push.
// The returned Result is filled in even when Run fails, so callers can
// report partial counts.
func Run(ctx context.Context, cfg Config, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	return run(ctx, cfg, newBuffer(cfg), log)
}

// run drives a validated workload through buf.
func run(ctx context.Context, cfg Config, buf msq.Buffer[uint64], log *zap.Logger) (Result, error) {
	res := Result{
		RunID:     uuid.New().String(),
		Kind:      cfg.Kind,
		Reclaim:   cfg.Reclaim,
		Mode:      cfg.mode(),
		Producers: cfg.Producers,
		Consumers: cfg.Consumers,
		Items:     cfg.Producers * cfg.Items,
	}
	if res.Mode == ModePairs {
		res.Consumers = cfg.Producers
	}
	log = log.With(zap.String("run_id", res.RunID))
	log.Debug("workload starting",
		zap.String("kind", cfg.Kind),
		zap.String("reclaim", cfg.Reclaim),
		zap.String("mode", res.Mode),
		zap.Int("producers", res.Producers),
		zap.Int("consumers", res.Consumers),
		zap.Int("items", res.Items),
	)

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	st := &stats{
		buf:         buf,
		total:       int64(res.Items),
		seen:        make([]atomix.Int32, res.Items),
		dequeued:    metrics.NewMeter(),
		emptyPolls:  metrics.NewCounter(),
		perConsumer: metrics.NewHistogram(metrics.NewUniformSample(1024)),
	}
	defer st.dequeued.Stop()

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for p := range cfg.Producers {
		base := uint64(p) * uint64(cfg.Items)
		if res.Mode == ModePairs {
			g.Go(func() error {
				if err := st.pairs(ctx, base, cfg.Items); err != nil {
					return fmt.Errorf("worker %d: %w", p, err)
				}
				return nil
			})
			continue
		}
		g.Go(func() error {
			if err := st.produce(ctx, base, cfg.Items); err != nil {
				return fmt.Errorf("producer %d: %w", p, err)
			}
			return nil
		})
	}
	if res.Mode == ModeSplit {
		for c := range cfg.Consumers {
			g.Go(func() error {
				if err := st.consume(ctx); err != nil {
					return fmt.Errorf("consumer %d: %w", c, err)
				}
				return nil
			})
		}
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)
	rate := st.dequeued.Snapshot()
	res.Dequeued = rate.Count()
	res.OpsPerSec = rate.RateMean()
	res.EmptyPolls = st.emptyPolls.Count()
	res.ConsumerMin = st.perConsumer.Min()
	res.ConsumerMax = st.perConsumer.Max()

	for i := range st.seen {
		switch st.seen[i].Load() {
		case 0:
			res.Missing++
		case 1:
		default:
			res.Duplicates++
		}
	}
	teardown(buf, &res)

	switch {
	case res.Duplicates > 0:
		return res, fmt.Errorf("%w: %d of %d", ErrDuplicate, res.Duplicates, res.Items)
	case res.Missing > 0 && err != nil:
		return res, fmt.Errorf("%w: %d of %d: %w", ErrLost, res.Missing, res.Items, err)
	case err != nil:
		return res, fmt.Errorf("bench: %w", err)
	case res.Missing > 0:
		return res, fmt.Errorf("%w: %d of %d", ErrLost, res.Missing, res.Items)
	}
	log.Debug("workload finished", zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// stats is the delivery state shared by the workers of one run.
type stats struct {
	buf         msq.Buffer[uint64]
	total       int64
	seen        []atomix.Int32 // pops per value
	consumed    atomix.Int64
	dequeued    metrics.Meter
	emptyPolls  metrics.Counter
	perConsumer metrics.Histogram
}

// tally is one popping goroutine's view of stats, flushed when it exits.
type tally struct {
	*stats
	got, empty, unmarked int64
}

func (t *tally) record(v uint64) error {
	if v >= uint64(t.total) {
		return fmt.Errorf("value %d out of range", v)
	}
	t.seen[v].Add(1)
	t.consumed.Add(1)
	t.got++
	if t.unmarked++; t.unmarked == checkEvery {
		t.dequeued.Mark(t.unmarked)
		t.unmarked = 0
	}
	return nil
}

func (t *tally) flush() {
	t.dequeued.Mark(t.unmarked)
	t.emptyPolls.Inc(t.empty)
	t.perConsumer.Update(t.got)
}

// push enqueues v, backing off while a bounded baseline is full.
func (s *stats) push(ctx context.Context, v uint64, backoff *iox.Backoff) error {
	for {
		err := s.buf.Enqueue(&v)
		if err == nil {
			backoff.Reset()
			return nil
		}
		if !msq.IsWouldBlock(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		backoff.Wait()
	}
}

func (s *stats) produce(ctx context.Context, base uint64, items int) error {
	backoff := iox.Backoff{}
	for i := range items {
		if err := s.push(ctx, base+uint64(i), &backoff); err != nil {
			return err
		}
		if i%checkEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *stats) consume(ctx context.Context) error {
	t := tally{stats: s}
	defer t.flush()
	backoff := iox.Backoff{}
	for s.consumed.Load() < s.total {
		v, err := s.buf.Dequeue()
		if err != nil {
			if !msq.IsWouldBlock(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.empty++
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if err := t.record(v); err != nil {
			return err
		}
	}
	return nil
}

// pairs pushes items values and pops one element after each push. The
// element popped need not be the one just pushed.
func (s *stats) pairs(ctx context.Context, base uint64, items int) error {
	t := tally{stats: s}
	defer t.flush()
	backoff := iox.Backoff{}
	for i := range items {
		if err := s.push(ctx, base+uint64(i), &backoff); err != nil {
			return err
		}
		for {
			v, err := s.buf.Dequeue()
			if err == nil {
				backoff.Reset()
				if err := t.record(v); err != nil {
					return err
				}
				break
			}
			// The advisory length can lag a concurrent push.
			if !msq.IsWouldBlock(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.empty++
			backoff.Wait()
		}
		if i%checkEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func newBuffer(cfg Config) msq.Buffer[uint64] {
	switch cfg.Reclaim {
	case ReclaimMutex:
		if cfg.Kind == KindStack {
			return &mutexStack[uint64]{}
		}
		return &mutexQueue[uint64]{}
	case ReclaimRing:
		size := defaultRingSize
		if cfg.Segment > 0 {
			size = 1 << bits.Len(uint(cfg.Segment-1))
		}
		return newRingQueue[uint64](max(size, 2))
	}

	r, _ := msq.ParseReclamation(cfg.Reclaim)
	b := msq.New().Reclamation(r)
	if cfg.Segment > 0 {
		b = b.Segment(cfg.Segment)
	}
	if cfg.Kind == KindStack {
		return msq.BuildStack[uint64](b)
	}
	return msq.Build[uint64](b)
}

// teardown closes lock-free containers and records reclamation counters.
func teardown(buf msq.Buffer[uint64], res *Result) {
	if d, ok := buf.(interface{ Domain() *epoch.Domain }); ok && d.Domain() != nil {
		defer func(dom *epoch.Domain) {
			res.Released = dom.Released()
			res.Pending = dom.Pending()
		}(d.Domain())
	}
	if c, ok := buf.(interface{ Close() int }); ok {
		res.Leftover = c.Close()
	} else {
		res.Leftover = buf.Len()
	}
}
