package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Report structural diagnostics about the container",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		result, err := engine.Explain()
		if err != nil {
			return fmt.Errorf("failed to explain container: %w", err)
		}

		cmd.Printf("session:      %s\n", result.SessionID)
		cmd.Printf("max size:     %d blocks\n", result.MaxSize)
		cmd.Printf("root index:   %d\n", result.RootIndex)
		cmd.Printf("top-level keys: %d\n", result.KeyCount)
		cmd.Printf("free blocks:  %d\n", result.FreeBlocks)
		cmd.Printf("cache hits:   %d\n", result.CacheHits)
		cmd.Printf("cache misses: %d\n", result.CacheMiss)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
