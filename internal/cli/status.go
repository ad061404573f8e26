package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"templstack/internal/registry"
)

// statusCmd shows connectivity, queue and cache state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue and cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		connectivity := app.offline.DetectStatus(ctx)
		icon := "🌐"
		switch connectivity {
		case "degraded":
			icon = "🐢"
		case "offline":
			icon = "📴"
		}
		fmt.Printf("%s Connectivity: %s\n", icon, connectivity)

		if app.cfg.Current != "" {
			fmt.Printf("⭐ Active registry: %s\n", app.cfg.Current)
		}

		registries := app.registries.ListRegistries()
		if len(registries) > 0 {
			fmt.Printf("\n📋 Registries:\n")
			for _, reg := range registries {
				health := app.registries.Health(reg.ID)
				marker := "  "
				if health == registry.HealthUnreachable {
					marker = "❌"
				}
				fmt.Printf("%s %s: %s (cursor %d)\n", marker, reg.ID, health,
					app.registries.Snapshot().Cursor(reg.ID))
			}
		}

		queueStatus, err := app.offline.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n📥 Queue: %d pending, %d conflicted, %d failed\n",
			queueStatus.Pending, queueStatus.Conflicted, queueStatus.Failed)

		cacheStats := app.offline.Cache().Stats()
		fmt.Printf("🗄  Cache: %d entries, %.0f%% hit rate, %d invalidations\n",
			cacheStats.Entries, cacheStats.HitRate*100, cacheStats.Invalidations)

		netStats := app.transport.Bandwidth().Stats()
		fmt.Printf("📶 Network: %s profile, %d B/s budget, %d calls, %.0f%% success\n",
			netStats.Profile, netStats.BudgetBytesSec, netStats.TotalCalls, netStats.SuccessRate*100)

		return nil
	},
}
