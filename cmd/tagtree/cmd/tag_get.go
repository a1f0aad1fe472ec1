package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// tagGetCmd represents the tag-get command
var tagGetCmd = &cobra.Command{
	Use:   "tag-get <key>",
	Short: "List inodes tagged with a top-level key",
	Long: `Get every inode associated with a top-level key.

Example:
  tagtree tag-get photos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inodes, err := engine.Get(args[0])
		if err != nil {
			if err == blockstore.ErrNotFound {
				cmd.Printf("tag %q not found\n", args[0])
				return nil
			}
			return fmt.Errorf("failed to get tag: %w", err)
		}

		for _, inode := range inodes {
			cmd.Printf("%d\n", inode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagGetCmd)
}
