package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/distask/coordinator"
	"github.com/xraph/distask/id"
	"github.com/xraph/distask/running"
)

var (
	listenAddr string
	taskName   string
	waitResult bool
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Print cluster metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator) (any, error) {
			return c.ClusterMeta(ctx)
		})
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks running anywhere in the cluster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator) (any, error) {
			var filters []running.Filter
			if taskName != "" {
				filters = append(filters, running.ByName(taskName))
			}
			return c.RunningTasks(ctx, filters...)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <member> <task-id>",
	Short: "Cancel a task running on a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := id.ParseTaskID(args[1]); err != nil {
			return err
		}
		return withClient(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator) (any, error) {
			cancelled, err := c.CancelRunningTask(ctx, args[0], args[1])
			return map[string]bool{"cancelled": cancelled}, err
		})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <name>",
	Short: "Submit a task to another member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator) (any, error) {
			factory, ok := c.Tasks().Get(args[0])
			if !ok {
				return nil, fmt.Errorf("unknown task type %q", args[0])
			}
			t, err := factory(id.NewTaskID())
			if err != nil {
				return nil, err
			}

			h, err := c.SubmitTask(ctx, t)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"task_id": h.TaskID(), "member": h.Member()}
			if waitResult {
				_, err := h.Wait(ctx)
				out["error"] = errString(err)
			}
			return out, nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{metaCmd, tasksCmd, cancelCmd, submitCmd} {
		cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:0", "address peers dial back to while the command runs")
	}
	tasksCmd.Flags().StringVar(&taskName, "name", "", "only list tasks of this type")
	submitCmd.Flags().BoolVar(&waitResult, "wait", false, "wait for the task to finish")
}

// withClient joins the cluster as a member without execution threads, runs
// fn and prints its result as JSON.
func withClient(ctx context.Context, fn func(ctx context.Context, c *coordinator.Coordinator) (any, error)) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Member.Listen = listenAddr
	cfg.Member.Address = ""
	cfg.Member.URL = ""
	logger := newLogger(LogConfig{Level: "warn", Format: cfg.Log.Format}, os.Stderr)

	n, err := startNode(ctx, cfg, logger, 0, coordinator.NewRoundRobinPlacement(true))
	if err != nil {
		return err
	}
	defer n.close()

	// Give seeds a moment to answer the handshake and dial back.
	if err := waitForPeers(ctx, n, cfg.Cluster.Heartbeat); err != nil {
		return err
	}

	result, err := fn(ctx, n.coord)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, result)
}

func waitForPeers(ctx context.Context, n *node, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for len(n.transport.View()) < 2 {
		if time.Now().After(deadline) {
			return fmt.Errorf("no peers reachable within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
