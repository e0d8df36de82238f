// Command distaskd runs a distask cluster member and offers one-shot
// commands that query or drive a running cluster.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "distaskd",
	Short: "distaskd - distributed task coordination daemon",
	Long: `distaskd joins a cluster of task executors, runs submitted tasks and
answers cluster queries. The meta, tasks, cancel and submit commands join
the cluster briefly to run a single coordinator call.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(submitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
