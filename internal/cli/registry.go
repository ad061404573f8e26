package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"templstack/internal/config"
	"templstack/internal/registry"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage registries",
	Long: `Manage registry configurations for installing and publishing templates.

Multiple registries can be configured with different priorities; lower
priority wins when the same template exists in several registries.`,
}

// registryAddCmd adds a new registry
var registryAddCmd = &cobra.Command{
	Use:   "add <id> <url>",
	Short: "Add a new registry",
	Long: `Add a new registry configuration.

Registry Types:
  official   - Vendor-operated registry
  community  - Community registry (default)
  enterprise - Company-internal registry
  private    - Personal or team registry

Examples:
  templstack registry add main https://registry.templstack.dev
  templstack registry add corp https://templates.corp.example --type enterprise --priority 0 --token $TOKEN`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		registryType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		token, _ := cmd.Flags().GetString("token")
		apiKey, _ := cmd.Flags().GetString("api-key")

		cfg := registry.Config{
			ID:       args[0],
			Name:     args[0],
			URL:      args[1],
			Type:     registry.RegistryType(registryType),
			Priority: priority,
			Enabled:  true,
		}
		switch {
		case token != "":
			cfg.Auth = registry.AuthConfig{Kind: registry.AuthToken, Token: token}
		case apiKey != "":
			cfg.Auth = registry.AuthConfig{Kind: registry.AuthAPIKey, APIKey: apiKey}
		default:
			cfg.Auth = registry.AuthConfig{Kind: registry.AuthNone}
		}

		added, err := app.registries.AddRegistry(ctx, cfg)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Added registry '%s'\n", added.ID)
		fmt.Printf("🌐 URL: %s\n", added.URL)
		fmt.Printf("📋 Type: %s, priority %d\n", added.Type, added.Priority)

		// First registry becomes the active one.
		if app.cfg.Current == "" {
			app.cfg.Current = added.ID
			if err := config.SaveCLI(app.cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("⭐ Set as active registry\n")
		}

		fmt.Printf("💡 Run 'templstack sync %s' to fetch its index\n", added.ID)
		return nil
	},
}

// registryListCmd lists configured registries
var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured registries",
	Long:  `List all configured registries showing id, URL, priority and health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		registries := app.registries.ListRegistries()
		if len(registries) == 0 {
			fmt.Printf("No registries configured.\n")
			fmt.Printf("Add a registry with: templstack registry add <id> <url>\n")
			return nil
		}

		fmt.Printf("📋 Configured registries:\n\n")
		for _, reg := range registries {
			marker := "  "
			if app.cfg.Current == reg.ID {
				marker = "* "
			}

			state := "enabled"
			if !reg.Enabled {
				state = "disabled"
			}

			fmt.Printf("%s%s (%s, priority %d, %s)\n", marker, reg.ID, reg.Type, reg.Priority, state)
			fmt.Printf("    URL: %s\n", reg.URL)
			if reg.Auth.Kind != "" && reg.Auth.Kind != registry.AuthNone {
				fmt.Printf("    Auth: %s\n", reg.Auth.Kind)
			}
			if health := app.registries.Health(reg.ID); health != registry.HealthUnknown {
				fmt.Printf("    Health: %s\n", health)
			}
			fmt.Printf("\n")
		}

		if app.cfg.Current != "" {
			fmt.Printf("* = active registry\n")
		}
		return nil
	},
}

// registryUseCmd sets the active registry
var registryUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Set active registry",
	Long: `Set the active registry for installing and publishing.

The active registry is used when no --registry flag is specified.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		reg, err := app.registries.GetRegistry(args[0])
		if err != nil {
			return fmt.Errorf("registry '%s' not found. Use 'templstack registry list' to see available registries", args[0])
		}

		app.cfg.Current = reg.ID
		if err := config.SaveCLI(app.cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("✅ Set '%s' as active registry\n", reg.ID)
		fmt.Printf("🌐 URL: %s\n", reg.URL)
		return nil
	},
}

// registryRemoveCmd removes a registry
var registryRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a registry",
	Long: `Remove a registry configuration.

Its index slice and cached data are dropped with it; templates whose only
origin was this registry disappear from search results.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		reg, err := app.registries.GetRegistry(args[0])
		if err != nil {
			return fmt.Errorf("registry '%s' not found. Use 'templstack registry list' to see available registries", args[0])
		}

		if err := app.registries.RemoveRegistry(ctx, reg.ID); err != nil {
			return err
		}

		if app.cfg.Current == reg.ID {
			app.cfg.Current = ""
			if err := config.SaveCLI(app.cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("⚠️  Removed active registry. Use 'templstack registry use' to set a new one.\n")
		}

		fmt.Printf("✅ Removed registry '%s'\n", reg.ID)
		fmt.Printf("🌐 URL was: %s\n", reg.URL)
		return nil
	},
}

func init() {
	registryAddCmd.Flags().String("type", string(registry.TypeCommunity), "Registry type (official, community, enterprise, private)")
	registryAddCmd.Flags().Int("priority", 10, "Search priority (lower wins)")
	registryAddCmd.Flags().String("token", "", "Bearer token for authentication")
	registryAddCmd.Flags().String("api-key", "", "API key for authentication")

	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryUseCmd)
	registryCmd.AddCommand(registryRemoveCmd)
}
