package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var photos string

	cmd := &cobra.Command{
		Use:   "check <listing.xlsx>",
		Short: "List the photos named in a listing that cannot be found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd, false)
			if err != nil {
				return err
			}
			missing, err := e.service().CheckMissingFiles(args[0], photos)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(missing) == 0 {
				fmt.Fprintln(out, "All photos found.")
				return nil
			}
			fmt.Fprintf(out, "%d photos not found:\n", len(missing))
			for _, name := range missing {
				fmt.Fprintf(out, "- %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&photos, "photos", ".", "Directory searched (recursively) for the listed photos")
	return cmd
}
