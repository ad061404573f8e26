package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"templstack/internal/registry"
)

// infoCmd shows details for one template, combining the local index with
// live remote state when reachable.
var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show template details",
	Long: `Show a template's known versions from the local index and its
current remote state. While offline, remote state is served from the
read cache when a recent value is available.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		snapshot := app.registries.Snapshot()
		entries := snapshot.Search(name)

		var exact []registry.TemplateMetadata
		for _, entry := range entries {
			if entry.Name == name {
				exact = append(exact, entry)
			}
		}
		if len(exact) == 0 {
			return fmt.Errorf("'%s' not found in the local index; try 'templstack sync' first", name)
		}

		fmt.Printf("📦 %s\n", name)
		if exact[0].Description != "" {
			fmt.Printf("   %s\n", exact[0].Description)
		}
		for _, entry := range exact {
			fmt.Printf("   %s  [%s]\n", entry.Version, entry.OriginRegistryID)
		}

		// Live remote state, via the read cache while offline.
		registryID := exact[0].OriginRegistryID
		key := registryID + "/state/" + name
		payload, fromCache, err := app.offline.FetchThrough(ctx, key, 0, func(ctx context.Context) ([]byte, error) {
			client, err := app.registries.ClientFor(registryID)
			if err != nil {
				return nil, err
			}
			state, err := client.TemplateState(ctx, name)
			if err != nil {
				return nil, err
			}
			return json.Marshal(state)
		})
		if err != nil {
			fmt.Printf("\n⚠️  Remote state unavailable: %v\n", err)
			return nil
		}

		var state registry.RemoteState
		if err := json.Unmarshal(payload, &state); err != nil {
			return err
		}

		source := "live"
		if fromCache {
			source = "cached"
		}
		if state.Exists {
			fmt.Printf("\n🌐 Remote (%s): latest %s, revision %d\n", source, state.Version, state.Revision)
		} else {
			fmt.Printf("\n🌐 Remote (%s): not published\n", source)
		}
		return nil
	},
}
