// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code.hybscloud.com/msq/internal/bench"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runner struct {
	config   string
	level    string
	json     bool
	workload bench.Config
}

func cmdRun() *cobra.Command {
	r := runner{workload: bench.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a producer/consumer workload",
		Args:  cobra.NoArgs,
		Example: `  msqbench run --kind stack --reclaim manual --producers 8 --consumers 8
  msqbench run --mode pairs --reclaim mutex --producers 8
  msqbench run --config bench.yaml --json`,
		RunE: r.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&r.config, "config", "c", "", "YAML workload file")
	flags.StringVar(&r.level, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&r.json, "json", false, "Print the result as JSON on stdout")
	flags.StringVar(&r.workload.Kind, "kind", r.workload.Kind, "Container: queue or stack")
	flags.StringVar(&r.workload.Reclaim, "reclaim", r.workload.Reclaim, "Reclamation: epoch, manual, mutex or ring")
	flags.StringVar(&r.workload.Mode, "mode", r.workload.Mode, "Workload: split producers and consumers, or pairs of push then pop")
	flags.IntVarP(&r.workload.Producers, "producers", "p", r.workload.Producers, "Producer goroutines (workers in pairs mode)")
	flags.IntVarP(&r.workload.Consumers, "consumers", "n", r.workload.Consumers, "Consumer goroutines")
	flags.IntVar(&r.workload.Items, "items", r.workload.Items, "Elements per producer")
	flags.IntVar(&r.workload.Segment, "segment", r.workload.Segment, "First arena segment size (0 for default)")
	flags.StringVar(&r.workload.Timeout, "timeout", r.workload.Timeout, "Abort after this duration")
	return cmd
}

// resolve loads the config file, if any, and re-applies explicitly set
// flags over it.
func (r *runner) resolve(cmd *cobra.Command) (bench.Config, error) {
	if r.config == "" {
		return r.workload, nil
	}
	cfg, err := bench.LoadConfig(r.config)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("kind") {
		cfg.Kind = r.workload.Kind
	}
	if flags.Changed("reclaim") {
		cfg.Reclaim = r.workload.Reclaim
	}
	if flags.Changed("mode") {
		cfg.Mode = r.workload.Mode
	}
	if flags.Changed("producers") {
		cfg.Producers = r.workload.Producers
	}
	if flags.Changed("consumers") {
		cfg.Consumers = r.workload.Consumers
	}
	if flags.Changed("items") {
		cfg.Items = r.workload.Items
	}
	if flags.Changed("segment") {
		cfg.Segment = r.workload.Segment
	}
	if flags.Changed("timeout") {
		cfg.Timeout = r.workload.Timeout
	}
	return cfg, nil
}

func (r *runner) run(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd.ErrOrStderr(), r.level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	defer log.Sync()

	cfg, err := r.resolve(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bench.Run(ctx, cfg, log)
	if err != nil {
		log.Error("workload failed", append(res.Fields(), zap.Error(err))...)
		return err
	}
	log.Info("workload complete", res.Fields()...)

	if r.json {
		data, err := res.JSON()
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	return nil
}
