package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// queueCmd manages the offline operation queue.
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the offline operation queue",
	Long: `Inspect and replay operations that were queued while offline.

Replay runs in original enqueue order. An operation whose target changed
remotely while offline is marked conflicted and kept for manual review;
it is never silently discarded.`,
}

// queueListCmd lists queued operations.
var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		status, err := app.offline.Status(cmd.Context())
		if err != nil {
			return err
		}

		if len(status.Operations) == 0 {
			fmt.Printf("Queue is empty.\n")
			return nil
		}

		fmt.Printf("📋 %d pending, %d conflicted, %d failed\n\n",
			status.Pending, status.Conflicted, status.Failed)
		for _, op := range status.Operations {
			fmt.Printf("  #%d %s (%s, attempts %d, enqueued %s)\n",
				op.ID, op.Kind, op.Status, op.Attempts, op.EnqueuedAt.Format("2006-01-02 15:04:05"))
			if op.Detail != "" {
				fmt.Printf("     %s\n", op.Detail)
			}
		}
		return nil
	},
}

// queueSyncCmd replays pending operations.
var queueSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.offline.Sync(ctx)
		if err != nil {
			return err
		}

		for _, id := range report.Replayed {
			fmt.Printf("✅ Replayed operation #%d\n", id)
		}
		for _, conflict := range report.Conflicts {
			fmt.Printf("⚠️  Operation #%d conflicted: %s\n", conflict.OperationID, conflict.Reason)
		}
		for _, id := range report.Failed {
			fmt.Printf("❌ Operation #%d failed\n", id)
		}
		if report.Remaining > 0 {
			fmt.Printf("📴 Connection dropped again; %d operation(s) still pending\n", report.Remaining)
			return nil
		}

		if len(report.Conflicts) > 0 {
			fmt.Printf("💡 Review conflicts with 'templstack queue list', then 'templstack queue discard <id>'\n")
		} else if len(report.Replayed) == 0 && len(report.Failed) == 0 {
			fmt.Printf("Queue is empty.\n")
		}
		return nil
	},
}

// queueDiscardCmd drops a conflicted or failed operation.
var queueDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Discard a conflicted or failed operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid operation id %q", args[0])
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.offline.Queue().Discard(cmd.Context(), id); err != nil {
			return err
		}

		fmt.Printf("✅ Discarded operation #%d\n", id)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueSyncCmd)
	queueCmd.AddCommand(queueDiscardCmd)
}
