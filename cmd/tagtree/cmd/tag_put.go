package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// tagPutCmd represents the tag-put command
var tagPutCmd = &cobra.Command{
	Use:   "tag-put <key> <inode>",
	Short: "Associate an inode with a top-level tag",
	Long: `Tag an inode with a top-level key, creating the tag if it does
not already exist.

Example:
  tagtree tag-put photos 42`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inode, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid inode %q: %w", args[1], err)
		}

		if err := engine.Tag(args[0], blockstore.Inode(inode)); err != nil {
			return fmt.Errorf("failed to tag inode: %w", err)
		}

		cmd.Printf("Tagged inode %d with %q\n", inode, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagPutCmd)
}
