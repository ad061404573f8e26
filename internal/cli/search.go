package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// searchCmd searches the combined local index.
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search templates in the local index",
	Long: `Search the combined local index across all registries.

Plain queries match by substring; glob patterns are supported:

  templstack search flutter
  templstack search 'ui/**'
  templstack search --category mobile`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		category, _ := cmd.Flags().GetString("category")
		author, _ := cmd.Flags().GetString("author")
		limit, _ := cmd.Flags().GetInt("limit")

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		results := app.registries.SearchIndex(query)

		shown := 0
		for _, entry := range results {
			if category != "" && entry.Category != category {
				continue
			}
			if author != "" && entry.Author != author {
				continue
			}

			fmt.Printf("📦 %s@%s", entry.Name, entry.Version)
			if entry.Category != "" {
				fmt.Printf(" (%s)", entry.Category)
			}
			fmt.Printf("  [%s]\n", entry.OriginRegistryID)
			if entry.Description != "" {
				fmt.Printf("    %s\n", entry.Description)
			}

			shown++
			if shown == limit {
				break
			}
		}

		if shown == 0 {
			fmt.Printf("No templates found.\n")
			fmt.Printf("💡 Run 'templstack sync' to refresh the local index\n")
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("category", "", "Filter by category")
	searchCmd.Flags().String("author", "", "Filter by author")
	searchCmd.Flags().Int("limit", 50, "Maximum results to show")
}
