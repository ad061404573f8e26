package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"templstack/internal/registry"
)

// syncCmd brings local index slices up to date with their registries.
var syncCmd = &cobra.Command{
	Use:   "sync [registry-id]",
	Short: "Sync registry indexes",
	Long: `Sync the local index with one registry, or with all enabled
registries when no id is given.

Incremental sync fetches only changes since the last cursor; --full
replaces the local slice wholesale. Multi-registry sync runs bounded
concurrently and one registry's failure never aborts the others.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		full, _ := cmd.Flags().GetBool("full")

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		mode := registry.SyncIncremental
		if full {
			mode = registry.SyncFull
		}

		if len(args) == 1 {
			result, err := app.registries.SyncRegistry(ctx, args[0], mode)
			if err != nil {
				return err
			}
			printSyncResult(result)
			return nil
		}

		outcomes := app.registries.SyncAll(ctx, mode, app.cfg.Concurrency())
		if len(outcomes) == 0 {
			fmt.Printf("No enabled registries to sync.\n")
			return nil
		}

		ids := make([]string, 0, len(outcomes))
		for id := range outcomes {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		failed := 0
		for _, id := range ids {
			outcome := outcomes[id]
			if outcome.Err != nil {
				failed++
				fmt.Printf("❌ %s: %s\n", id, outcome.Error)
				continue
			}
			printSyncResult(outcome.Result)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d registries failed to sync", failed, len(outcomes))
		}
		return nil
	},
}

func printSyncResult(result *registry.SyncResult) {
	if !result.Changed {
		fmt.Printf("✅ %s: already up to date (cursor %d)\n", result.RegistryID, result.Cursor)
		return
	}
	fmt.Printf("✅ %s: +%d ~%d -%d (cursor %d, %s)\n",
		result.RegistryID, result.Added, result.Updated, result.Removed, result.Cursor, result.Mode)
}

func init() {
	syncCmd.Flags().Bool("full", false, "Replace the local index instead of merging a delta")
}
