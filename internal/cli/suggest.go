package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var suggestMax int

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Suggest food names (local only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, r, _, cleanup, err := newEngine()
		if err != nil {
			return err
		}
		defer cleanup()

		for _, name := range r.Suggest(strings.Join(args, " "), suggestMax) {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().IntVar(&suggestMax, "max", 10, "maximum number of suggestions")
}
