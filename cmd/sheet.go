package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"geosnap/pipeline"
)

func newSheetCmd(root *rootOptions) *cobra.Command {
	var (
		photos   string
		output   string
		project  string
		document bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "sheet <listing.xlsx>",
		Short: "Rebuild the KMZ overlay from an edited photo listing",
		Long: `Reads the listing row by row, finds each named photo anywhere below the
photos directory and writes <project>.kmz in the listing's order (by the Nº
column). Existing files are never overwritten; a numeric suffix is added.`,
		Example: `  geosnap sheet reportes/obra.xlsx --photos ./fotos -o ./reportes --document`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			req := pipeline.ReverseRequest{
				SheetPath:   args[0],
				PhotosDir:   photos,
				OutputDir:   output,
				ProjectName: project,
				Document:    document,
			}
			var progress func(int, int, string)
			if !quiet {
				progress = printProgress(cmd.ErrOrStderr())
			}
			summary, err := e.service().ProcessSpreadsheet(cmd.Context(), req, progress)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.Message())
			return nil
		},
	}

	cmd.Flags().StringVar(&photos, "photos", ".", "Directory searched (recursively) for the listed photos")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Report base name (default \"reporte_desde_excel\")")
	cmd.Flags().BoolVar(&document, "document", false, "Also write the photo-caption PDF")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")

	return cmd
}
