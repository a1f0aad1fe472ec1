/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a tagtree configuration file with fresh API keys",
	Long: `Initialize a tagtree configuration file for local development.

This command will:
- Create the configuration directory
- Generate a system key and inspection-server API keys
- Write the configuration to disk with secure permissions

Examples:
  tagtree init --config=./tagtree.yaml --data-dir=./data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to reinitialize.\n", configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			return fmt.Errorf("failed to bootstrap configuration: %w", err)
		}

		cmd.Printf("Configuration written to %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("Client API key: %s\n", cfg.Security.ClientAPIKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("config", "", "Path to write the configuration file (defaults to the platform config directory)")
	initCmd.Flags().String("data-dir", "./data", "Data directory recorded in the generated configuration")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}
