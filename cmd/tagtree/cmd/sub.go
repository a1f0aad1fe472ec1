package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ssargent/tagtree/pkg/blockstore"
)

// subPutCmd represents the sub-put command
var subPutCmd = &cobra.Command{
	Use:   "sub-put <key> <subkey> <inode>",
	Short: "Associate an inode with a nested tag",
	Long: `Tag an inode with a key nested under a parent tag's subkeys
tree, creating both the parent tag and the nested key on first use.

Example:
  tagtree sub-put albums paris-2024 7`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inode, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid inode %q: %w", args[2], err)
		}

		if err := engine.TagNested(args[0], args[1], blockstore.Inode(inode)); err != nil {
			return fmt.Errorf("failed to tag nested inode: %w", err)
		}

		cmd.Printf("Tagged inode %d with %q/%q\n", inode, args[0], args[1])
		return nil
	},
}

// subGetCmd represents the sub-get command
var subGetCmd = &cobra.Command{
	Use:   "sub-get <key> <subkey>",
	Short: "List inodes tagged with a nested key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inodes, err := engine.GetNested(args[0], args[1])
		if err != nil {
			if err == blockstore.ErrNotFound {
				cmd.Printf("nested tag %q/%q not found\n", args[0], args[1])
				return nil
			}
			return fmt.Errorf("failed to get nested tag: %w", err)
		}

		for _, inode := range inodes {
			cmd.Printf("%d\n", inode)
		}
		return nil
	},
}

// subRmCmd represents the sub-rm command
var subRmCmd = &cobra.Command{
	Use:   "sub-rm <key> <subkey> <inode>",
	Short: "Remove an inode from a nested tag",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		inode, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid inode %q: %w", args[2], err)
		}

		if err := engine.UntagNested(args[0], args[1], blockstore.Inode(inode)); err != nil {
			return fmt.Errorf("failed to untag nested inode: %w", err)
		}

		cmd.Printf("Removed inode %d from %q/%q\n", inode, args[0], args[1])
		return nil
	},
}

// subDeleteCmd represents the sub-delete command
var subDeleteCmd = &cobra.Command{
	Use:   "sub-delete <key> <subkey>",
	Short: "Delete a nested tag entirely",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		if err := engine.SubRemove(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to delete nested tag: %w", err)
		}

		cmd.Printf("Deleted nested tag %q/%q\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subPutCmd)
	rootCmd.AddCommand(subGetCmd)
	rootCmd.AddCommand(subRmCmd)
	rootCmd.AddCommand(subDeleteCmd)
}
