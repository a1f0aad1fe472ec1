package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only inspection API server",
	Long: `Start the tagtree inspection API server with authentication.

Example:
  tagtree serve --api-key=mysecretkey --port=8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		apiKey, _ := cmd.Flags().GetString("api-key")

		if apiKey == "" {
			return fmt.Errorf("--api-key is required")
		}

		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		return api.StartServer(engine, api.ServerConfig{Port: port, APIKey: apiKey})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("api-key", "", "API key for inspection-server authentication (required)")
	serveCmd.MarkFlagRequired("api-key")
}
