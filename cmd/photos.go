package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"geosnap/pipeline"
)

func newPhotosCmd(root *rootOptions) *cobra.Command {
	var (
		output       string
		project      string
		includeNoGPS bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "photos <input-dir>",
		Short: "Build the KMZ overlay and XLSX listing from a folder of photos",
		Long: `Reads every JPEG, PNG and HEIC file directly inside <input-dir>, keeps those
with a GPS position and writes <project>.kmz and <project>.xlsx to the output
directory. Existing reports with the same name are overwritten.`,
		Example: `  # Reports named after the project
  geosnap photos ./fotos -o ./reportes -p obra_norte

  # Also list photos taken without a GPS fix
  geosnap photos ./fotos -o ./reportes --include-no-gps`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			req := pipeline.ForwardRequest{
				InputDir:     args[0],
				OutputDir:    output,
				ProjectName:  project,
				IncludeNoGPS: includeNoGPS,
			}
			var progress func(int, int, string)
			if !quiet {
				progress = printProgress(cmd.ErrOrStderr())
			}
			summary, err := e.service().ProcessPhotos(cmd.Context(), req, progress)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.Message())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Report base name (default \"reporte_completo\")")
	cmd.Flags().BoolVar(&includeNoGPS, "include-no-gps", false, "Keep photos without a GPS position, with blank coordinates")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")

	return cmd
}
