package cli

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"templstack/internal/api"
	"templstack/internal/resolver"
)

// serveCmd runs the local status API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local status API",
	Long: `Serve the local HTTP API exposing search, registry health, the
offline queue, cache statistics and resolution as a service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		server := &api.Server{
			Registries: app.registries,
			Offline:    app.offline,
			Resolver:   resolver.New(app.advisories),
			Transport:  app.transport,
			Policy:     app.policy(),
		}

		router := mux.NewRouter()
		api.RegisterRoutes(router, server)

		fmt.Printf("🚀 Serving templstack API on %s\n", addr)
		return http.ListenAndServe(addr, router)
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:7464", "Listen address")
}
