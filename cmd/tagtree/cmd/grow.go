package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// growCmd represents the grow command
var growCmd = &cobra.Command{
	Use:   "grow <blocks>",
	Short: "Extend the container's free list by the given number of blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid block count %q: %w", args[0], err)
		}

		if err := engine.Grow(blockstore.BlockIndex(n)); err != nil {
			return fmt.Errorf("failed to grow container: %w", err)
		}

		cmd.Printf("Grew container by %d blocks\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(growCmd)
}
