// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bench runs producer/consumer workloads against the lock-free
// containers and a mutex-guarded baseline, verifying that every element is
// delivered exactly once.
package bench

import (
	"errors"
	"fmt"
	"os"
	"time"

	"code.hybscloud.com/msq"
	"github.com/goccy/go-yaml"
)

// Container kinds.
const (
	KindQueue = "queue"
	KindStack = "stack"
)

// Workload shapes. Split runs Producers pushing goroutines against
// Consumers popping ones; pairs runs Producers goroutines that each pop once
// after every push.
const (
	ModeSplit = "split"
	ModePairs = "pairs"
)

// ReclaimMutex selects the mutex-guarded baseline instead of a lock-free
// container.
const ReclaimMutex = "mutex"

// Workload bounds. maxSegment matches the largest first segment the
// lock-free containers accept; maxItems bounds the delivery bitmap.
const (
	maxSegment = 1 << 20
	maxItems   = 1 << 27
)

// Config describes one workload.
type Config struct {
	Kind      string `yaml:"kind"`      // queue or stack
	Reclaim   string `yaml:"reclaim"`   // epoch, manual, mutex or ring
	Mode      string `yaml:"mode"`      // split or pairs
	Producers int    `yaml:"producers"` // producer goroutines
	Consumers int    `yaml:"consumers"` // consumer goroutines
	Items     int    `yaml:"items"`     // elements per producer
	Segment   int    `yaml:"segment"`   // first arena segment or ring size, 0 for default
	Timeout   string `yaml:"timeout"`   // e.g. "30s"

	timeout time.Duration
}

// DefaultConfig mirrors the classic stress scenario: 4 producers and 4
// consumers moving 4,000,000 tagged integers through an epoch queue.
func DefaultConfig() Config {
	return Config{
		Kind:      KindQueue,
		Reclaim:   msq.Epoch.String(),
		Mode:      ModeSplit,
		Producers: 4,
		Consumers: 4,
		Items:     1_000_000,
		Timeout:   "2m",
	}
}

// LoadConfig reads a YAML workload file over the defaults.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("bench: invalid config")

// Validate checks the workload and resolves the timeout.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindQueue, KindStack:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidConfig, c.Kind)
	}
	switch c.Reclaim {
	case ReclaimMutex:
	case ReclaimRing:
		if c.Kind != KindQueue {
			return fmt.Errorf("%w: ring baseline is a queue", ErrInvalidConfig)
		}
	default:
		if _, ok := msq.ParseReclamation(c.Reclaim); !ok {
			return fmt.Errorf("%w: reclaim %q", ErrInvalidConfig, c.Reclaim)
		}
	}
	switch c.mode() {
	case ModeSplit:
		if c.Producers < 1 || c.Consumers < 1 {
			return fmt.Errorf("%w: need at least one producer and one consumer", ErrInvalidConfig)
		}
	case ModePairs:
		if c.Producers < 1 {
			return fmt.Errorf("%w: need at least one worker", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Items < 1 {
		return fmt.Errorf("%w: items must be positive", ErrInvalidConfig)
	}
	if c.Items > maxItems/c.Producers {
		return fmt.Errorf("%w: producers*items exceeds %d", ErrInvalidConfig, maxItems)
	}
	if c.Segment < 0 || c.Segment == 1 || c.Segment > maxSegment {
		return fmt.Errorf("%w: segment must be 0 or in [2, %d]", ErrInvalidConfig, maxSegment)
	}
	c.timeout = 0
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %w", ErrInvalidConfig, err)
		}
		c.timeout = d
	}
	return nil
}

// mode returns Mode, defaulting to split.
func (c *Config) mode() string {
	if c.Mode == "" {
		return ModeSplit
	}
	return c.Mode
}
