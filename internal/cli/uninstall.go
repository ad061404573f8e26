package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"templstack/internal/offline"
	"templstack/internal/project"
)

// uninstallCmd removes a template from the project.
var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed template",
	Long: `Remove a template from the manifest and lockfile.

The removal is reported to the template's registry; while offline it is
queued and replayed on reconnect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		registryOverride, _ := cmd.Flags().GetString("registry")

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		manifest, err := project.LoadManifest(project.ManifestFileName)
		if err != nil {
			return fmt.Errorf("no project manifest: %w", err)
		}
		lock, err := project.LoadLockfile(project.LockFileName)
		if err != nil {
			return err
		}

		pinned, installed := lock.Installed[name]
		if !manifest.RemoveDependency(name) && !installed {
			return fmt.Errorf("'%s' is not a dependency of this project", name)
		}
		lock.Remove(name)

		if installed {
			registryID := pinned.Registry
			if registryID == "" {
				registryID, err = app.currentRegistry(registryOverride)
				if err != nil {
					return err
				}
			}

			op, err := app.offline.Execute(ctx, offline.OpUninstall, offline.OperationPayload{
				RegistryID: registryID,
				Name:       name,
				Version:    pinned.Version,
			})
			if err != nil {
				return fmt.Errorf("uninstall %s: %w", name, err)
			}
			if op != nil {
				fmt.Printf("📴 Offline: uninstall queued (operation %d)\n", op.ID)
			}
		}

		if err := project.SaveLockfile(project.LockFileName, lock); err != nil {
			return err
		}
		if err := project.SaveManifest(project.ManifestFileName, manifest); err != nil {
			return err
		}

		fmt.Printf("✅ Removed '%s'\n", name)
		return nil
	},
}

func init() {
	uninstallCmd.Flags().String("registry", "", "Registry to report the removal to")
}
