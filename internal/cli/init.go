package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"templstack/internal/project"
)

// initCmd creates a new project manifest in the current directory.
var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a project manifest",
	Long: `Create a templstack.json manifest in the current directory.

The project name defaults to the directory name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		name := filepath.Base(cwd)
		if len(args) == 1 {
			name = args[0]
		}

		path := filepath.Join(cwd, project.ManifestFileName)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", project.ManifestFileName)
		}

		manifest := project.CreateManifest(name)
		if err := project.SaveManifest(path, manifest); err != nil {
			return err
		}

		fmt.Printf("✅ Created %s for project '%s'\n", project.ManifestFileName, name)
		fmt.Printf("💡 Add dependencies with 'templstack install <name>@<constraint>'\n")
		return nil
	},
}
