// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench

import (
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// Result summarizes one workload run.
type Result struct {
	RunID       string        `json:"run_id"`
	Kind        string        `json:"kind"`
	Reclaim     string        `json:"reclaim"`
	Mode        string        `json:"mode"`
	Producers   int           `json:"producers"`
	Consumers   int           `json:"consumers"`
	Items       int           `json:"items"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Dequeued    int64         `json:"dequeued"`
	OpsPerSec   float64       `json:"ops_per_sec"`
	EmptyPolls  int64         `json:"empty_polls"`
	ConsumerMin int64         `json:"consumer_min"` // fewest elements popped by one consumer
	ConsumerMax int64         `json:"consumer_max"`
	Missing     int           `json:"missing"`
	Duplicates  int           `json:"duplicates"`
	Leftover    int           `json:"leftover"`
	Released    uint64        `json:"released,omitempty"` // epoch only
	Pending     int           `json:"pending,omitempty"`  // epoch only
}

// JSON encodes the result as a single JSON object.
func (r Result) JSON() ([]byte, error) {
	return sonnet.Marshal(r)
}

// Fields returns the result as structured log fields.
func (r Result) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("kind", r.Kind),
		zap.String("reclaim", r.Reclaim),
		zap.String("mode", r.Mode),
		zap.Int("producers", r.Producers),
		zap.Int("consumers", r.Consumers),
		zap.Int("items", r.Items),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int64("dequeued", r.Dequeued),
		zap.Float64("ops_per_sec", r.OpsPerSec),
		zap.Int64("empty_polls", r.EmptyPolls),
		zap.Int64("consumer_min", r.ConsumerMin),
		zap.Int64("consumer_max", r.ConsumerMax),
		zap.Int("missing", r.Missing),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("leftover", r.Leftover),
	}
	if r.Released > 0 || r.Pending > 0 {
		fields = append(fields,
			zap.Uint64("released", r.Released),
			zap.Int("pending", r.Pending),
		)
	}
	return fields
}
