package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"templstack/internal/offline"
	"templstack/internal/project"
	"templstack/internal/registry"
)

// publishCmd publishes the project as a template.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the project as a template",
	Long: `Publish the current project's manifest metadata to a registry.

While offline the publish is queued; on replay it applies only if nobody
published a newer revision of the same template in the meantime.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registryOverride, _ := cmd.Flags().GetString("registry")
		category, _ := cmd.Flags().GetString("category")
		author, _ := cmd.Flags().GetString("author")

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		manifest, err := project.LoadManifest(project.ManifestFileName)
		if err != nil {
			return fmt.Errorf("no project manifest: %w (run 'templstack init' first)", err)
		}

		registryID, err := app.currentRegistry(registryOverride)
		if err != nil {
			return err
		}

		metadata := registry.TemplateMetadata{
			ID:          manifest.Name + "@" + manifest.Version,
			Name:        manifest.Name,
			Version:     manifest.Version,
			Category:    category,
			Author:      author,
			Description: manifest.Description,
		}

		op, err := app.offline.Execute(ctx, offline.OpPublish, offline.OperationPayload{
			RegistryID: registryID,
			Name:       manifest.Name,
			Version:    manifest.Version,
			Metadata:   &metadata,
		})
		if err != nil {
			return fmt.Errorf("publish %s@%s: %w", manifest.Name, manifest.Version, err)
		}

		if op != nil {
			fmt.Printf("📴 Offline: publish queued (operation %d)\n", op.ID)
			fmt.Printf("💡 Run 'templstack queue sync' when back online\n")
			return nil
		}

		fmt.Printf("✅ Published %s@%s to '%s'\n", manifest.Name, manifest.Version, registryID)
		return nil
	},
}

func init() {
	publishCmd.Flags().String("registry", "", "Registry to publish to (defaults to the active registry)")
	publishCmd.Flags().String("category", "", "Template category")
	publishCmd.Flags().String("author", "", "Template author")
}
