// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command msqbench drives producer/consumer workloads through the msq
// containers and a mutex baseline, and checks exactly-once delivery.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cmdRoot = &cobra.Command{
	Use:           "msqbench",
	Short:         "Lock-free queue and stack workload driver",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.EnableCommandSorting = false
	cmdRoot.Root().CompletionOptions.HiddenDefaultCmd = true
	cmdRoot.AddCommand(cmdRun())
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		cmdRoot.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
