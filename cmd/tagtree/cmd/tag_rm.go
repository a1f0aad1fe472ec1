package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// tagRmCmd represents the tag-rm command
var tagRmCmd = &cobra.Command{
	Use:   "tag-rm <key> <inode>",
	Short: "Remove an inode from a top-level tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inode, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid inode %q: %w", args[1], err)
		}

		if err := engine.Untag(args[0], blockstore.Inode(inode)); err != nil {
			return fmt.Errorf("failed to untag inode: %w", err)
		}

		cmd.Printf("Removed inode %d from %q\n", inode, args[0])
		return nil
	},
}

// tagDeleteCmd represents the tag-delete command
var tagDeleteCmd = &cobra.Command{
	Use:   "tag-delete <key>",
	Short: "Delete a top-level tag entirely",
	Long: `Delete a top-level tag. Fails if the tag still has a non-empty
nested subkeys tree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		if err := engine.Remove(args[0]); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}

		cmd.Printf("Deleted tag %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagRmCmd)
	rootCmd.AddCommand(tagDeleteCmd)
}
