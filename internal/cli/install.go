package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"templstack/internal/offline"
	"templstack/internal/project"
	"templstack/internal/registry"
	"templstack/internal/resolver"
)

// installCmd resolves and installs the project's dependencies.
var installCmd = &cobra.Command{
	Use:   "install [name[@constraint]]",
	Short: "Resolve and install templates",
	Long: `Resolve the project's dependency constraints against the local index
and install the picked versions.

With an argument, the named template is first added to the manifest:

  templstack install
  templstack install flutter-starter
  templstack install flutter-starter@^3.0.0

Already-installed versions that still satisfy their constraints are kept.
While offline, installs are queued and replayed on reconnect.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		registryOverride, _ := cmd.Flags().GetString("registry")

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return runInstall(ctx, app, args, registryOverride)
	},
}

// runInstall resolves the manifest's constraints against the local index,
// reports the plan to each version's origin registry, and updates the
// lockfile. While offline the installs are queued instead.
func runInstall(ctx context.Context, app *app, args []string, registryOverride string) error {
	manifest, err := project.LoadManifest(project.ManifestFileName)
	if err != nil {
		return fmt.Errorf("no project manifest: %w (run 'templstack init' first)", err)
	}

	if len(args) == 1 {
		name, constraint := splitNameConstraint(args[0])
		if err := manifest.AddDependency(name, project.DependencySpec{Constraint: constraint}); err != nil {
			return err
		}
	}

	lock, err := project.LoadLockfile(project.LockFileName)
	if err != nil {
		return err
	}

	snapshot := app.registries.Snapshot()
	result, err := resolver.New(app.advisories).Resolve(ctx,
		manifest.ResolverDependencies(), lock.InstalledVersions(), snapshot, app.policy())
	if err != nil {
		return err
	}

	for _, advice := range result.Advisories {
		fmt.Printf("⚠️  %s\n", advice)
	}
	for _, finding := range result.Vulnerabilities {
		fmt.Printf("🔒 %s@%s: %s\n", finding.Name, finding.Version, finding.Reason)
	}
	for _, finding := range result.LicenseIssues {
		fmt.Printf("⚖️  %s@%s: %s\n", finding.Name, finding.Version, finding.Reason)
	}

	if len(result.Conflicts) > 0 {
		fmt.Printf("❌ Resolution failed with %d conflict(s):\n\n", len(result.Conflicts))
		for _, conflict := range result.Conflicts {
			fmt.Printf("  %s wanted by %s as %s\n",
				conflict.DependencyName,
				strings.Join(conflict.Requesters, ", "),
				strings.Join(conflict.Constraints, ", "))
			if conflict.SuggestedResolution != "" {
				fmt.Printf("  💡 %s\n", conflict.SuggestedResolution)
			}
		}
		return fmt.Errorf("dependency conflicts")
	}

	// Report each version to its origin registry; queued while offline.
	names := make([]string, 0, len(result.ResolvedVersions))
	for name := range result.ResolvedVersions {
		names = append(names, name)
	}
	sort.Strings(names)

	origins := make(map[string]string, len(names))
	queued := 0
	for _, name := range names {
		picked := result.ResolvedVersions[name]
		if current, ok := lock.Installed[name]; ok && current.Version == picked {
			continue
		}

		registryID := originRegistry(snapshot.Search(name), name, picked)
		if registryID == "" {
			registryID, err = app.currentRegistry(registryOverride)
			if err != nil {
				return err
			}
		}
		origins[name] = registryID

		op, err := app.offline.Execute(ctx, offline.OpInstall, offline.OperationPayload{
			RegistryID: registryID,
			Name:       name,
			Version:    picked,
		})
		if err != nil {
			return fmt.Errorf("install %s@%s: %w", name, picked, err)
		}
		if op != nil {
			queued++
			fmt.Printf("📥 %s@%s queued (operation %d)\n", name, picked, op.ID)
		} else {
			fmt.Printf("✅ %s@%s installed\n", name, picked)
		}
	}

	lock.Apply(result, origins)
	if err := project.SaveLockfile(project.LockFileName, lock); err != nil {
		return err
	}
	if err := project.SaveManifest(project.ManifestFileName, manifest); err != nil {
		return err
	}

	if queued > 0 {
		fmt.Printf("📴 Offline: %d operation(s) queued; run 'templstack queue sync' when back online\n", queued)
	}
	return nil
}

// splitNameConstraint parses "name@constraint"; a bare name means any
// version.
func splitNameConstraint(arg string) (string, string) {
	// Scoped names start with @, so split on the last separator.
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, "*"
}

// originRegistry finds which registry a picked version came from. Search
// already resolved priority collisions, so the first match wins.
func originRegistry(entries []registry.TemplateMetadata, name, version string) string {
	for _, entry := range entries {
		if entry.Name == name && entry.Version == version {
			return entry.OriginRegistryID
		}
	}
	return ""
}

func init() {
	installCmd.Flags().String("registry", "", "Registry to report installs to (defaults to each template's origin)")
}
