/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
	"github.com/ssargent/tagtree/pkg/bptree"
	"github.com/ssargent/tagtree/pkg/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagtree",
	Short: "tagtree - a nested tag filesystem over a fixed-size block container",
	Long: `tagtree stores inodes under a tree of string tags, where every
tag can itself hold a nested tree of sub-tags, on top of a single
fixed-size block file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		containerPath, _ := cmd.Flags().GetString("container")
		if err := os.MkdirAll(filepath.Dir(containerPath), 0755); err != nil {
			return fmt.Errorf("failed to create container directory: %w", err)
		}

		cfg := config.DefaultConfig()
		engine, err := bptree.Open(containerPath, blockstore.Options{
			CacheEnabled:   cfg.Engine.CacheEnabled,
			CacheMaxWrites: cfg.Engine.CacheMaxWrites,
		})
		if err != nil {
			return fmt.Errorf("failed to open container: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), engineContextKey, engine))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if engine, ok := engineFromContext(cmd); ok {
			return engine.Close()
		}
		return nil
	},
}

type contextKey string

const engineContextKey contextKey = "engine"

func engineFromContext(cmd *cobra.Command) (*bptree.Engine, bool) {
	engine, ok := cmd.Context().Value(engineContextKey).(*bptree.Engine)
	return engine, ok
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("container", "c", "./data/tagtree.db", "Path to the block container file")
}
