package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// synonymCmd represents the synonym command
var synonymCmd = &cobra.Command{
	Use:   "synonym <key> <target>",
	Short: "Make key an alias for target instead of an independent tag",
	Long: `Create a synonym: key becomes an alias that records target's
name rather than holding its own nested subkeys tree. Lookups of key
are not redirected to target. Fails if key already has a non-empty
subkeys tree.

Example:
  tagtree synonym jpg jpeg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, ok := engineFromContext(cmd)
		if !ok {
			return fmt.Errorf("container not open")
		}

		if err := engine.CreateSynonym(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to create synonym: %w", err)
		}

		cmd.Printf("%q is now a synonym for %q\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(synonymCmd)
}
